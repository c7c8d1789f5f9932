package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"simstore/internal/backend"
	"simstore/internal/checkout"
	"simstore/internal/config"
	cronpkg "simstore/internal/cron"
	"simstore/internal/handler"
	"simstore/internal/payment"
	"simstore/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Backend API client ---
	backendClient := backend.New(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout, logger)

	// --- Redirect marker store (Redis with in-memory fallback) ---
	markers, markerErr := checkout.NewMarkerStore(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		cfg.Checkout.MarkerTTL,
	)
	if markerErr != nil {
		logger.Warn("Redis unavailable for checkout markers, using in-memory fallback", zap.Error(markerErr))
	}

	// --- Gateway SDKs ---
	fetcher := payment.NewHTTPFetcher()
	fetcher.RegisterElement(cfg.Gateways.ElementSDKURL, cfg.Gateways.ElementAPIBase)
	fetcher.RegisterDropIn(cfg.Gateways.DropInSDKURL, cfg.Gateways.DropInAPIBase, cfg.Gateways.DropInMode)
	loader := payment.NewLoader(fetcher, logger)

	// --- Purchase flow ---
	catalog := payment.NewCatalog(backendClient, logger)
	verifier := payment.NewVerifier(backendClient, logger)
	presenter := checkout.NewNotifyPresenter(logger)
	flow := checkout.NewFlow(checkout.FlowConfig{
		Orders:        backendClient,
		Verifier:      verifier,
		Markers:       markers,
		Presenter:     presenter,
		Loader:        loader,
		ElementSDKURL: cfg.Gateways.ElementSDKURL,
		DropInSDKURL:  cfg.Gateways.DropInSDKURL,
		ReturnURL:     cfg.Checkout.ReturnURL,
		Logger:        logger,
	})

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	checkoutHandler := handler.NewCheckoutHandler(flow, catalog, logger)
	router.Setup(e, checkoutHandler, cfg.Backend.APIKey)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(flow, checkoutHandler, cfg.Checkout.AttemptTTL, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting simstore checkout server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
