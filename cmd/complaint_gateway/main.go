package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"googlemaps.github.io/maps"

	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/adapters/analytics"
	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/adapters/dncform"
	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/adapters/geo"
	webhookHttp "github.com/donotcall-tel/complaint-gateway/internal/complaint_service/adapters/http"
	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/adapters/media"
	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/app"
	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/domain"
	"github.com/donotcall-tel/complaint-gateway/internal/platform/config"
	"github.com/donotcall-tel/complaint-gateway/internal/platform/logger"
)

const serviceName = "complaint_gateway"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Complaint gateway starting...", "port", cfg.ServerPort)

	var localizer domain.TimeLocalizer
	if cfg.GoogleMapsAPIKey != "" {
		mapsClient, err := maps.NewClient(maps.WithAPIKey(cfg.GoogleMapsAPIKey))
		if err != nil {
			appLogger.Error("Failed to initialize Google Maps client", "error", err)
			os.Exit(1)
		}
		localizer = geo.NewResolver(mapsClient, appLogger)
	} else {
		appLogger.Warn("GOOGLE_MAPS_API_KEY not set; complaint timestamps stay in UTC")
	}

	guard := app.NewDedupGuard(cfg.DedupTTL())
	defer guard.Stop()

	fetcher := media.NewHTTPFetcher(appLogger)
	tracker := analytics.NewTracker(cfg.GATrackingID, cfg.GAClientID, appLogger)

	launcher := dncform.NewRodLauncher(dncform.RodConfig{
		Headless:    cfg.BrowserHeadless,
		Bin:         cfg.BrowserBin,
		DebuggerURL: cfg.BrowserDebuggerURL,
		NavTimeout:  cfg.NavTimeout(),
	}, appLogger)

	submitter := dncform.NewSubmitter(cfg.ComplaintFormURL, cfg.DiagnosticDir, cfg.NavTimeout(), localizer, appLogger)

	appService := app.NewComplaintAppService(guard, fetcher, localizer, launcher, submitter, tracker, appLogger)

	handler := webhookHttp.NewWebhookHandler(appService, cfg.TwilioAuthToken, cfg.TwilioWebhookURL, appLogger)
	if cfg.TwilioAuthToken == "" {
		appLogger.Warn("TWILIO_AUTH_TOKEN not set; webhook signature validation disabled")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // submissions drive a browser; allow the batch to settle
		IdleTimeout:  60 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		appLogger.Info("Webhook server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Webhook server failed", "error", err)
			stop()
		}
	}()

	<-shutdownCtx.Done()
	appLogger.Info("Shutdown signal received, draining...")

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		appLogger.Error("Graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Complaint gateway stopped")
}
