package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/speed-report-prep/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/speed-report-prep/internal/adapter/kafka"
	"github.com/couchcryptid/speed-report-prep/internal/adapter/tzcache"
	"github.com/couchcryptid/speed-report-prep/internal/config"
	"github.com/couchcryptid/speed-report-prep/internal/domain"
	"github.com/couchcryptid/speed-report-prep/internal/observability"
	"github.com/couchcryptid/speed-report-prep/internal/pipeline"
	"github.com/couchcryptid/speed-report-prep/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	locations := tzcache.NewCachedLoader(domain.StdLocationLoader{}, cfg.TZCacheSize, metrics)
	preparer := domain.NewPreparer(cfg.PrepConfig(), locations)
	renderer := render.New(render.WithMetrics(metrics))
	logger.Info("report preparation configured",
		"default_timezone", cfg.ReportTimezone,
		"chart_low_count_threshold", cfg.ChartLowCountThreshold,
		"table_count_missing_threshold", cfg.TableCountMissingThreshold,
		"tz_cache_size", cfg.TZCacheSize,
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(preparer, logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, preparer, renderer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
