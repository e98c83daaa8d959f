package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poultryflow/auth"
	"poultryflow/booking"
	"poultryflow/config"
	"poultryflow/db"
	"poultryflow/logger"
	"poultryflow/pricing"
	"poultryflow/product"
	"poultryflow/referral"
	"poultryflow/role"
	"poultryflow/server"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		baseLogger.Fatal("failed to init database pool", zap.Error(err))
	}
	defer pool.Close()

	policy := pricing.PolicyFromConfig(cfg.Pricing)

	authSvc := auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret)
	productSvc := product.NewService(product.NewRepository(pool))
	bookingSvc := booking.NewService(pool, booking.NewRepository(pool), productSvc, policy)
	roleSvc := role.NewService(pool, role.NewRepository(pool))
	referralSvc := referral.NewService(pool, referral.NewRepository(pool), policy)

	gin.SetMode(gin.ReleaseMode)
	engine := server.New(authSvc, productSvc, bookingSvc, roleSvc, referralSvc, logger.Named(baseLogger, "server")).Router()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("server stopped", zap.Error(err))
		}
	}()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	<-stop.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	baseLogger.Info("api stopped")
}
