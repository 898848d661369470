// Command veridict runs the fake-news verdict service: the analysis
// pipeline, its feedback loop and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"dev.veridict.agent/internal/analysis"
	"dev.veridict.agent/internal/config"
	"dev.veridict.agent/internal/events"
	"dev.veridict.agent/internal/judge"
	"dev.veridict.agent/internal/meta"
	"dev.veridict.agent/internal/metrics"
	"dev.veridict.agent/internal/optimizer"
	"dev.veridict.agent/internal/pipeline"
	"dev.veridict.agent/internal/reliability"
	"dev.veridict.agent/internal/server"
	"dev.veridict.agent/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// .env is optional; environment overrides still apply without it.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := setupLogger(cfg.Log)
	log.WithField("addr", cfg.Server.Addr).Info("starting veridict")

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer store.Close()

	units := []analysis.Unit{
		analysis.NewSourceTracker(),
		analysis.NewTextualAnalyzer(),
		analysis.NewVisualValidator(),
	}
	unitIDs := make([]string, len(units))
	for i, u := range units {
		unitIDs[i] = u.ID()
	}
	registry := reliability.NewRegistry(unitIDs...)

	if entries, err := store.LoadReliability(context.Background()); err != nil {
		log.WithError(err).Warn("could not load reliability checkpoint")
	} else if len(entries) > 0 {
		registry.Restore(entries)
		log.WithField("units", len(entries)).Info("reliability checkpoint restored")
	}

	bus := events.NewBus(nil)
	defer bus.Close()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(promRegistry)

	opt := optimizer.New(cfg.Optimizer, registry, bus, log)

	controller, err := pipeline.NewController(cfg.Pipeline, pipeline.Deps{
		Preprocessor: analysis.NewPreprocessor(),
		Units:        units,
		Judge:        judge.New(cfg.Judge, registry.Weight),
		Meta:         meta.New(),
		Optimizer:    opt,
		Registry:     registry,
		Bus:          bus,
		Metrics:      collector,
		Log:          log,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	defer controller.Close()

	srv := server.New(controller, store, collector, registry, opt, promRegistry, log)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go checkpointLoop(ctx, srv, cfg.Storage.CheckpointInterval.Std(), log)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := srv.Checkpoint(shutdownCtx); err != nil {
		log.WithError(err).Warn("final reliability checkpoint failed")
	}
}

// checkpointLoop periodically persists the reliability registry so learned
// trust weights survive restarts.
func checkpointLoop(ctx context.Context, srv *server.Server, interval time.Duration, log *logrus.Entry) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := srv.Checkpoint(cpCtx); err != nil {
				log.WithError(err).Warn("reliability checkpoint failed")
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

func setupLogger(cfg config.LogConfig) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logrus.NewEntry(logger).WithField("service", "veridict")
}
