package router

import (
	"time"

	"vexchange/config"
	"vexchange/internal/handler"
	"vexchange/internal/middleware"
	"vexchange/internal/repository"
	"vexchange/internal/service"
	"vexchange/internal/ws"
	"vexchange/pkg/pricing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, priceHub *ws.PriceHub, prices *service.PriceService, gecko *pricing.CoinGeckoClient, log *logrus.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	giftCardRepo := repository.NewGiftCardRepository(db)
	assetRepo := repository.NewCryptoAssetRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo, walletRepo)
	tradeSvc := service.NewTradeService(tradeRepo, walletRepo, giftCardRepo, prices)
	settlementSvc := service.NewSettlementService(db, walletRepo, tradeRepo, transactionRepo, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, userRepo, log)
	walletHandler := handler.NewWalletHandler(walletRepo, transactionRepo, settlementSvc, log)
	tradeHandler := handler.NewTradeHandler(tradeSvc, log)
	giftCardHandler := handler.NewGiftCardHandler(giftCardRepo, tradeSvc, tradeHandler, log)
	marketHandler := handler.NewMarketHandler(prices, gecko, log)
	paymentHandler := handler.NewPaymentHandler(cfg, transactionRepo, settlementSvc, log)
	webhookHandler := handler.NewPaymentWebhookHandler(cfg, settlementSvc, log)
	adminHandler := handler.NewAdminHandler(userRepo, walletRepo, tradeRepo, transactionRepo, giftCardRepo, assetRepo, settlementSvc, log)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", authMw, authHandler.Me)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
		}

		market := api.Group("/market")
		{
			market.GET("", marketHandler.Markets)
			market.GET("/price/:symbol", marketHandler.Price)
			market.GET("/ohlc/:id", marketHandler.OHLC)
			market.GET("/stream", ws.UpgradePriceWS(priceHub))
		}

		wallet := api.Group("/wallet")
		wallet.Use(authMw)
		{
			wallet.GET("", walletHandler.GetWallet)
			wallet.POST("/withdraw", walletHandler.Withdraw)
			wallet.GET("/transactions", walletHandler.Transactions)
		}

		trades := api.Group("/trades")
		trades.Use(authMw)
		{
			trades.GET("", tradeHandler.List)
			trades.POST("/crypto", tradeHandler.CreateCrypto)
			trades.POST("/peer", tradeHandler.CreatePeer)
		}

		giftcards := api.Group("/giftcards")
		{
			giftcards.GET("", giftCardHandler.List)
			giftcards.POST("/buy", authMw, giftCardHandler.Buy)
			giftcards.POST("/sell", authMw, giftCardHandler.Sell)
		}

		payments := api.Group("/payments")
		payments.Use(authMw)
		{
			payments.POST("/checkout", paymentHandler.CreateCheckout)
			payments.POST("/paypal/capture", paymentHandler.CapturePayPal)
			payments.POST("/crypto/deposit", paymentHandler.RequestCryptoDeposit)
			payments.GET("/crypto/options", paymentHandler.CryptoOptions)
		}

		// Provider callbacks authenticate with signatures, not bearer tokens.
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/payments", webhookHandler.Handle)
			webhooks.POST("/stripe", webhookHandler.HandleStripe)
			webhooks.POST("/coinbase", webhookHandler.HandleCoinbase)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.PATCH("/users/:id/block", adminHandler.SetUserBlocked)
			admin.GET("/trades", adminHandler.ListTrades)
			admin.POST("/trades/:id/approve", adminHandler.ApproveTrade)
			admin.POST("/trades/:id/reject", adminHandler.RejectTrade)
			admin.GET("/transactions", adminHandler.ListTransactions)
			admin.GET("/wallets", adminHandler.ListWallets)
			admin.POST("/wallets/fund", adminHandler.FundWallet)
			admin.GET("/giftcards", adminHandler.ListGiftCards)
			admin.POST("/giftcards", adminHandler.CreateGiftCard)
			admin.PATCH("/giftcards/:id/rates", adminHandler.SetGiftCardRates)
			admin.PATCH("/assets/:id/price", adminHandler.SetAssetPrice)
			admin.GET("/deposits/pending", adminHandler.PendingDeposits)
			admin.POST("/deposits/:id/confirm", adminHandler.ConfirmDeposit)
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
