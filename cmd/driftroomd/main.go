// Command driftroomd serves the driftroom WebSocket protocol: one room
// per connected client group, replicated to Redis so a room survives a
// restart.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/jamsocket-labs/driftroom/internal/config"
	"github.com/jamsocket-labs/driftroom/internal/kv"
	"github.com/jamsocket-labs/driftroom/internal/logging"
	"github.com/jamsocket-labs/driftroom/internal/metrics"
	"github.com/jamsocket-labs/driftroom/internal/roomdir"
	"github.com/jamsocket-labs/driftroom/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "driftroomd: config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "driftroomd: logging: %v\n", err)
		os.Exit(1)
	}

	var store kv.Store
	if cfg.DisableReplication {
		log.Info().Msg("replication disabled, rooms are in-memory only")
	} else {
		store = kv.NewRedisStore(cfg.RedisAddr, cfg.RedisDB)
		log.Info().Str("addr", cfg.RedisAddr).Msg("replicating to redis")
	}

	metricsRegistry := metrics.NewRegistry()
	dir := roomdir.New(store, cfg.RoomIdleTimeout, log, metricsRegistry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir.StartSweeper(ctx, cfg.SweepInterval)

	server := transport.New(transport.Config{
		Addr:             cfg.Addr,
		OutboxSize:       cfg.OutboxSize,
		RateLimitPerSec:  cfg.RateLimitPerSec,
		RateLimitBurst:   cfg.RateLimitBurst,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, dir, metricsRegistry, log)

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("transport start failed")
	}

	metricsErrCh := make(chan error, 1)
	go func() {
		metricsErrCh <- runMetricsServer(ctx, cfg.MetricsAddr, metricsRegistry)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-metricsErrCh:
		if err != nil {
			log.Error().Err(err).Msg("metrics server error")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("transport shutdown error")
	}
	log.Info().Msg("driftroomd stopped")
}
