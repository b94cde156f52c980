package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AlphaPipe/internal/domain/repository"
	"AlphaPipe/internal/handler/api"
	mid "AlphaPipe/internal/middleware"
	"AlphaPipe/internal/usecase"
	pkgch "AlphaPipe/pkg/clickhouse"
	"AlphaPipe/pkg/config"
	xhttp "AlphaPipe/pkg/http"
	pkgkafka "AlphaPipe/pkg/kafka"
	applogger "AlphaPipe/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	pipeline    *usecase.InsightPipeline
	guard       *mid.FeedGuard
	collector   *usecase.FeedCollector
	consumer    *pkgkafka.Consumer
	kh          *usecase.KafkaInsightsHandler
	chClient    *pkgch.Client
	messaging   repository.MessagingSink
	persistence repository.PersistenceSink
	handler     *api.InsightsHandler
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	pipeline *usecase.InsightPipeline,
	guard *mid.FeedGuard,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaInsightsHandler,
	chClient *pkgch.Client,
	messaging repository.MessagingSink,
	persistence repository.PersistenceSink,
	handler *api.InsightsHandler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log.With("app"),
		pipeline:    pipeline,
		guard:       guard,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		chClient:    chClient,
		messaging:   messaging,
		persistence: persistence,
		handler:     handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now().UTC()
	if err := a.pipeline.Initialize(now, now.AddDate(100, 0, 0), now); err != nil {
		return err
	}
	if err := a.pipeline.Start(ctx); err != nil {
		return err
	}
	a.guard.Start(ctx)

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("collector error", applogger.Error(err))
			}
		}()
		a.log.Info("collector started", applogger.Int("symbols", len(a.cfg.Feed.Symbols)))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
	}
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithRequestMetrics(a.log, time.Second),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops producers first, then drains the pipeline, then closes
// infrastructure. Order matters: nothing may feed the pipeline while it
// drains.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}
	a.guard.Stop()

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.pipeline.Stop(shutdownCtx); err != nil {
		a.log.Error("pipeline stop error", applogger.Error(err))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if err := a.messaging.Close(); err != nil {
		a.log.Warn("messaging close error", applogger.Error(err))
	}
	if err := a.persistence.Close(); err != nil {
		a.log.Warn("persistence close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
