package repository

import (
	"time"

	"gorm.io/gorm"

	"vexchange/internal/domain"
	"vexchange/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(t *models.Transaction) error {
	return r.db.Create(t).Error
}

func (r *TransactionRepository) CreateTx(tx *gorm.DB, t *models.Transaction) error {
	return tx.Create(t).Error
}

func (r *TransactionRepository) GetByID(id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByPaymentID returns the transaction carrying the provider reference,
// regardless of status. PaymentID is unique, so there is at most one.
func (r *TransactionRepository) GetByPaymentID(tx *gorm.DB, paymentID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := tx.Where("payment_id = ?", paymentID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkCompleted flips pending → completed as a compare-and-set. Zero rows
// affected means the row was already settled (or failed), never that it was
// settled twice.
func (r *TransactionRepository) MarkCompleted(tx *gorm.DB, id uint, description string) (bool, error) {
	updates := map[string]interface{}{"status": domain.TxStatusCompleted}
	if description != "" {
		updates["description"] = description
	}
	res := tx.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, domain.TxStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed records a terminal provider failure. No wallet mutation ever
// follows a failed row.
func (r *TransactionRepository) MarkFailed(id uint, description string) error {
	return r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, domain.TxStatusPending).
		Updates(map[string]interface{}{"status": domain.TxStatusFailed, "description": description}).Error
}

// Filter narrows history listings. Zero values are ignored.
type Filter struct {
	Type     string
	Category string
	Status   string
	From     time.Time
	To       time.Time
	Limit    int
}

// ListByUser returns a user's transactions newest first.
func (r *TransactionRepository) ListByUser(userID uint, f Filter) ([]models.Transaction, error) {
	q := r.db.Where("user_id = ?", userID)
	q = applyFilter(q, f)
	var list []models.Transaction
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *TransactionRepository) List(f Filter) ([]models.Transaction, error) {
	q := applyFilter(r.db, f)
	var list []models.Transaction
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

// ListPendingDeposits returns pending deposits for a metadata source marker,
// e.g. manual crypto deposits awaiting admin confirmation.
func (r *TransactionRepository) ListPendingDeposits(source string) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("status = ? AND type = ? AND metadata LIKE ?",
		domain.TxStatusPending, domain.TxTypeDeposit, "%\"source\":\""+source+"\"%").
		Order("created_at DESC").Find(&list).Error
	return list, err
}

func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at <= ?", f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q
}
