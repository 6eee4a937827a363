package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/ateliemoda/backend-atelie/internal/config"
	"github.com/ateliemoda/backend-atelie/internal/events"
	"github.com/ateliemoda/backend-atelie/internal/lock"
	"github.com/ateliemoda/backend-atelie/internal/obs"
	"github.com/ateliemoda/backend-atelie/internal/repo"
	"github.com/ateliemoda/backend-atelie/internal/stock"
	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

const taskReservationSweep = "reservation:sweep"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), os.Getenv("OBS_LOG_LEVEL")).
		With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("atelie", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	store := repo.NewStore(pool)
	ledger := stock.NewPGLedger(pool)
	bus := events.NewBus(store, logger)
	defer bus.Wait()
	locker := lock.Locker{R: redisClient}

	sweep := func(ctx context.Context) error {
		tenants, err := store.ListTenants(ctx)
		if err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}
		for _, t := range tenants {
			tctx := tenant.WithTenant(ctx, t.ID.String())
			key := tenant.PrefixKey(t.ID.String(), "lock:reservation-sweep")
			err := locker.WithLock(tctx, key, time.Minute, func(ctx context.Context) error {
				released, err := ledger.ExpireReservations(ctx)
				if err != nil {
					return err
				}
				if released > 0 {
					logger.Info().Str("tenant", t.Slug).Int("released", released).Msg("reservations expired")
					bus.Publish(ctx, events.TopicReservationExpired, t.ID, map[string]any{
						"tenantId": t.ID,
						"released": released,
					})
				}
				return nil
			})
			if err != nil {
				logger.Error().Err(err).Str("tenant", t.Slug).Msg("reservation sweep failed")
			}
		}
		return nil
	}

	asynqOpts := asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB}

	scheduler := asynq.NewScheduler(asynqOpts, &asynq.SchedulerOpts{})
	every := cfg.ReservationSweepEvery
	if every < time.Minute {
		every = time.Minute
	}
	if _, err := scheduler.Register(fmt.Sprintf("@every %s", every),
		asynq.NewTask(taskReservationSweep, nil)); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}

	srv := asynq.NewServer(asynqOpts, asynq.Config{Concurrency: 2})
	mux := asynq.NewServeMux()
	mux.HandleFunc(taskReservationSweep, func(ctx context.Context, _ *asynq.Task) error {
		return sweep(ctx)
	})

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Fatal().Err(err).Msg("run scheduler")
		}
	}()
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Fatal().Err(err).Msg("run task server")
		}
	}()
	logger.Info().Dur("interval", every).Msg("worker running")

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh
	logger.Info().Msg("shutting down")
	scheduler.Shutdown()
	srv.Shutdown()
}
