package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/detent"
	"github.com/aretw0/detent/internal/config"
	"github.com/aretw0/detent/pkg/adapters/redis"
	"github.com/aretw0/detent/pkg/adapters/sim"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// runtimeDeps is everything a command needs to drive an engine.
type runtimeDeps struct {
	engine   *detent.Engine
	platform *sim.Platform
	store    *redis.Store
}

func (d *runtimeDeps) Close() {
	if d.store != nil {
		_ = d.store.Close()
	}
}

type engineSetup struct {
	hooks    domain.LifecycleHooks
	registry prometheus.Registerer
}

// buildEngine wires the simulated platform, the optional redis snapshot store and metrics.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, setup engineSetup) (*runtimeDeps, error) {
	platform := sim.New(
		sim.WithDuration(cfg.Platform.Duration),
		sim.WithFrames(cfg.Platform.Frames),
		sim.WithLogger(logger),
	)

	opts := []detent.Option{
		detent.WithPlatform(platform),
		detent.WithLogger(logger),
		detent.WithLifecycleHooks(setup.hooks),
	}
	if setup.registry != nil {
		opts = append(opts, detent.WithMetrics(setup.registry))
	}

	deps := &runtimeDeps{platform: platform}
	if cfg.Redis != nil {
		store, err := openStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		deps.store = store
		opts = append(opts,
			detent.WithSnapshotStore(store),
			detent.WithLocker(redis.NewLocker(store.Client(), prefix(cfg.Redis))),
		)
		logger.Info("Mirroring snapshots to redis", "addr", cfg.Redis.Addr)
	}

	deps.engine = detent.New(opts...)
	platform.Bind(deps.engine)
	return deps, nil
}

func openStore(ctx context.Context, rc *config.Redis) (*redis.Store, error) {
	store := redis.New(rc.Addr, rc.Password, rc.DB,
		redis.WithPrefix(prefix(rc)),
		redis.WithTTL(rc.TTL),
	)
	if err := store.Client().Ping(ctx).Err(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
	}
	return store, nil
}

func prefix(rc *config.Redis) string {
	if rc.Prefix != "" {
		return rc.Prefix
	}
	return redis.DefaultPrefix
}

// mountAll mounts the configured sheets.
func mountAll(eng *detent.Engine, sheets []domain.SheetConfig) error {
	for _, cfg := range sheets {
		if _, err := eng.Mount(cfg); err != nil {
			return fmt.Errorf("mount %q: %w", cfg.Name, err)
		}
	}
	return nil
}
