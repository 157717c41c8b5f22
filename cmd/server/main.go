package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vexchange/config"
	"vexchange/internal/database"
	"vexchange/internal/logger"
	"vexchange/internal/repository"
	"vexchange/internal/router"
	"vexchange/internal/service"
	"vexchange/internal/ws"
	"vexchange/pkg/pricing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(os.Stdout, cfg.Server.Env)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	database.SeedAdmin(db)
	database.SeedGiftCards(db)
	database.SeedCryptoAssets(db)

	gecko := pricing.NewCoinGeckoClient(cfg.Pricing.BaseURL, cfg.Pricing.RequestTimeout)
	assetRepo := repository.NewCryptoAssetRepository(db)
	prices := service.NewPriceService(gecko, assetRepo, log)

	priceHub := ws.NewPriceHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go priceHub.Run(hubCtx, prices, cfg.Pricing.TickerInterval, log)

	engine := router.Setup(cfg, db, priceHub, prices, gecko, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	stopHub()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server shutdown failed")
	}
	log.Info("server stopped")
}
