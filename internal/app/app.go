// Package app wires the stores, the lock and the appointment service
// shared by every command.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

type App struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Service *appointment.Service
	Metrics *metrics.Collector
	Log     zerolog.Logger
}

// Open connects Postgres and Redis, makes sure the schema exists and builds
// the service. Callers must Close the returned App.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.Connect(pgCtx, cfg.PostgresDSN, db.PoolOptions{}, log)
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	locker := redisclient.NewRedisStoreLocker(rdb, redisclient.LockOptions{
		TTL:         cfg.LockTTL,
		WaitTimeout: cfg.LockWaitTimeout,
	})
	repo := appointment.NewPgRepository(pool)
	svc := appointment.NewService(repo, locker, cfg, log, m)

	return &App{
		Pool:    pool,
		Redis:   rdb,
		Service: svc,
		Metrics: m,
		Log:     log,
	}, nil
}

func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("error closing redis")
	}
	a.Pool.Close()
}
