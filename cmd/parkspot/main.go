// Package main запускает HTTP-сервер сервиса parkspot.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/parkspot/internal/config"
	"github.com/mmeshcher/parkspot/internal/handler"
	"github.com/mmeshcher/parkspot/internal/middleware"
	"github.com/mmeshcher/parkspot/internal/notify"
	"github.com/mmeshcher/parkspot/internal/repository"
	"github.com/mmeshcher/parkspot/internal/service"
	"github.com/mmeshcher/parkspot/internal/tracker"
)

func main() {
	baseLogger, _ := zap.NewProduction()
	logger := baseLogger.With(zap.String("service", "parkspot"))
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	tr := tracker.NewInMemory(clockwork.NewRealClock(), logger.Named("tracker"), tracker.Options{
		UncertainAfter: cfg.SpotUncertainAfter,
		EvictAfter:     cfg.SpotEvictAfter,
		NearRadius:     cfg.SpotNearRadius,
	})
	defer tr.Close()

	dispatcher, err := newDispatcher(cfg, logger.Named("notify"))
	if err != nil {
		sugar.Fatalw("notification dispatcher error", "error", err.Error())
	}
	defer dispatcher.Close()

	// Без базы данных работают только маршруты уличных мест.
	var svc *service.Service
	var handlerSvc handler.Service
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}

		svc = service.NewService(repo, logger.Named("service"))
		defer svc.Close()
		handlerSvc = svc
	} else {
		sugar.Warn("DATABASE_URI is not set, marketplace routes are disabled")
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(handlerSvc, tr, dispatcher, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tr.StartJanitor(ctx, cfg.SpotSweepInterval)
		return nil
	})

	if svc != nil {
		g.Go(func() error {
			svc.StartBookingUpdates(ctx, cfg.BookingSweepInterval)
			return nil
		})
	}

	g.Go(func() error {
		sugar.Infow("starting parkspot server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// newDispatcher выбирает транспорт уведомлений: брокер, затем webhook, иначе журнал.
func newDispatcher(cfg *config.Config, logger *zap.Logger) (notify.Dispatcher, error) {
	switch {
	case cfg.NotifyAMQPURL != "":
		return notify.NewAMQPDispatcher(cfg.NotifyAMQPURL, cfg.NotifyExchange, logger)
	case cfg.NotifyWebhookURL != "":
		return notify.NewWebhookDispatcher(cfg.NotifyWebhookURL, logger), nil
	default:
		return notify.NewLogDispatcher(logger), nil
	}
}
