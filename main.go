package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/screenops/alertcore/internal/client"
	"github.com/screenops/alertcore/internal/config"
	"github.com/screenops/alertcore/internal/db"
	"github.com/screenops/alertcore/internal/escalation"
	"github.com/screenops/alertcore/internal/handler"
	"github.com/screenops/alertcore/internal/logger"
	"github.com/screenops/alertcore/internal/metrics"
	"github.com/screenops/alertcore/internal/ratelimit"
	"github.com/screenops/alertcore/internal/service"
	"go.uber.org/zap"
)

// @title alertcore API
// @version 1.0
// @description Alert raising, escalation, lifecycle and notification dispatch for the signage platform.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("alertcore stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := db.NewPostgres(pool, log.Named("db"))
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	// Prometheus
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(log.Named("metrics"), registry, metrics.WithSlowThreshold(cfg.Metrics.SlowOperation))

	// Rate limiter
	limiter := ratelimit.New(ratelimit.Config{
		MaxPerWindow: cfg.RateLimit.MaxPerWindow,
		Window:       cfg.RateLimit.Window,
		Enabled:      cfg.RateLimit.Enabled,
	}, ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval), ratelimit.WithLogger(log.Named("ratelimit")))
	limiter.Start(ctx)
	defer limiter.Stop()

	// Escalation rules (파일이 지정되면 hot reload)
	rules := escalation.NewTable(escalation.DefaultRules())
	if path := cfg.Escalation.RulesFile; path != "" {
		loaded, err := escalation.LoadRules(path)
		if err != nil {
			return err
		}
		rules.Set(loaded)
		go func() {
			if err := config.WatchRules(ctx, path, log.Named("escalation"), rules.Set); err != nil {
				log.Error("escalation rules watcher stopped", zap.Error(err))
			}
		}()
	}

	// Notification dispatcher
	var dispatcherOpts []service.DispatcherOption
	queue, err := client.NewMailQueue(ctx, cfg.MailQueue, log.Named("mailqueue"))
	if err != nil {
		return err
	}
	if queue != nil {
		defer func() {
			if err := queue.Close(); err != nil {
				log.Warn("mail queue close failed", zap.Error(err))
			}
		}()
		dispatcherOpts = append(dispatcherOpts, service.WithMailQueue(queue))
	}
	slackClient := client.NewSlackClient(cfg.Slack, log.Named("slack"))
	if slackClient.IsConfigured() {
		dispatcherOpts = append(dispatcherOpts, service.WithOpsMirror(slackClient))
	}
	dispatcherOpts = append(dispatcherOpts, service.WithOpsMirror(service.NewWebhookDeliveryService(store, nil, log.Named("webhook"))))
	dispatcher := service.NewNotificationDispatcher(store, cfg.Notify, recorder, log.Named("notify"), dispatcherOpts...)

	// Services
	authService, err := service.NewAuthService(cfg.Auth)
	if err != nil {
		return err
	}
	alertService := service.NewAlertService(store, dispatcher, limiter, rules, recorder, log.Named("alert"))
	notificationService := service.NewNotificationService(store, log.Named("inbox"))
	webhookService := service.NewWebhookService(store)

	// HTTP
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.RouterDeps{
		Auth:           authService,
		Alerts:         handler.NewAlertHandler(alertService, log.Named("http")),
		Notifications:  handler.NewNotificationHandler(notificationService, log.Named("http")),
		Diagnostics:    handler.NewDiagnosticsHandler(recorder, limiter, rules, log.Named("http")),
		Webhooks:       handler.NewWebhookSettingsHandler(webhookService, log.Named("http")),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log.Named("access"),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("alertcore shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
