package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autobit/compute/internal/config"
	"github.com/autobit/compute/internal/core"
	"github.com/autobit/compute/internal/db"
	"github.com/autobit/compute/internal/events"
	"github.com/autobit/compute/internal/logging"
	"github.com/autobit/compute/internal/metrics"
	"github.com/autobit/compute/internal/runtime"
	"github.com/autobit/compute/internal/sampler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("usage-sampler"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	var pub core.EventPublisher = events.Noop{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, "usage-sampler", logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events disabled")
		} else {
			defer np.Close()
			pub = np
		}
	}

	rt := runtime.New(ctx, cfg, logger)
	logger.Info().Str("runtime_mode", rt.Mode()).Msg("container runtime selected")

	services := core.NewServices(pool, rt, pub, cfg, logger)
	smp := sampler.New(services.Server, services.Usage, rt, cfg.SamplingInterval, cfg.SamplerMaxConcurrency, logger)

	if cfg.MetricsListenAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("signal received, stopping sampler")
		cancel()
	}()

	if err := smp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("sampler failed")
	}
}
