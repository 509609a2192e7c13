package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/visadesk/visadesk/internal/app"
	"github.com/visadesk/visadesk/internal/applications"
	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/datastore"
	"github.com/visadesk/visadesk/internal/notify"
	"github.com/visadesk/visadesk/internal/observability"
	"github.com/visadesk/visadesk/internal/platform/cache"
	"github.com/visadesk/visadesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("visadesk", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Attempts: 5, Backoff: 500 * time.Millisecond})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	verifier := authz.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	authMiddleware := authz.Middleware{Verifier: verifier, Logger: logger}

	store := datastore.NewClient(cfg.DataStoreURL, cfg.DataStoreToken, cfg.DataStoreTimeout)

	var (
		dispatcher applications.Dispatcher
		inspector  jobs.QueueInspector
	)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	switch cfg.NotifyDispatch {
	case app.DispatchInline:
		dispatcher = notify.NewPublisher(redisClient, cfg.NotifyPrefix, logger)
	default:
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			return err
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		asynqInspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := asynqInspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		dispatcher = jobClient
		inspector = asynqInspector
	}

	service := applications.NewService(store, applications.NewEngine(), dispatcher, logger)

	transport := notify.NewRedisTransport(redisClient, verifier, cfg.NotifyPrefix)
	hub := notify.NewHub(transport, notify.ChannelOptions{
		Logger:     logger,
		MinBackoff: cfg.NotifyBackoffMin,
		MaxBackoff: cfg.NotifyBackoffMax,
		Observer:   metrics,
	})
	defer hub.Close()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Auth:                 authMiddleware,
		ApplicationsHandler:  applications.NewHandler(service, authMiddleware, logger),
		NotificationsHandler: notify.NewHandler(hub, authMiddleware, logger),
		PermissionsHandler:   authz.NewPermissionsHandler(authMiddleware),
		JobHandler:           jobs.NewHandler(inspector, logger),
		Readiness: []app.ReadinessCheck{
			{Name: "redis", Check: cache.Ping(redisClient)},
			{Name: "datastore", Check: store.Ping},
		},
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("dispatch", cfg.NotifyDispatch))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", slog.Any("error", err))
		}
		return nil
	})
	return g.Wait()
}
