package service

import (
	"errors"
	"strings"

	"vexchange/config"
	"vexchange/internal/auth"
	"vexchange/internal/domain"
	"vexchange/internal/models"
	"vexchange/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists    = errors.New("email already registered")
	ErrInvalidCreds   = errors.New("invalid email or password")
	ErrAccountBlocked = errors.New("account is blocked")
)

type AuthService struct {
	cfg     *config.Config
	users   *repository.UserRepository
	wallets *repository.WalletRepository
}

func NewAuthService(cfg *config.Config, users *repository.UserRepository, wallets *repository.WalletRepository) *AuthService {
	return &AuthService{cfg: cfg, users: users, wallets: wallets}
}

// Register creates the user, provisions an empty wallet and returns a signed
// token so the client is logged in immediately.
func (s *AuthService) Register(name, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.users.GetByEmail(email)
	if err == nil {
		return nil, "", ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	u := &models.User{
		Name:     strings.TrimSpace(name),
		Email:    email,
		Password: string(hash),
		Role:     domain.RoleUser,
	}
	if err := s.users.Create(u); err != nil {
		return nil, "", err
	}
	if _, err := s.wallets.GetOrCreate(u.ID); err != nil {
		return nil, "", err
	}
	token, err := auth.GenerateToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return u, "", err
	}
	return u, token, nil
}

func (s *AuthService) Login(email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	if u.IsBlocked {
		return nil, "", ErrAccountBlocked
	}
	token, err := auth.GenerateToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// ChangePassword verifies the current password before setting the new one.
func (s *AuthService) ChangePassword(userID uint, currentPassword, newPassword string) error {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(currentPassword)); err != nil {
		return ErrInvalidCreds
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return s.users.Update(u)
}
