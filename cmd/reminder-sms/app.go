package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/reminder-sms/internal/api"
	"github.com/LeventeLantos/reminder-sms/internal/cache"
	"github.com/LeventeLantos/reminder-sms/internal/client"
	"github.com/LeventeLantos/reminder-sms/internal/config"
	"github.com/LeventeLantos/reminder-sms/internal/lock"
	"github.com/LeventeLantos/reminder-sms/internal/repo"
	"github.com/LeventeLantos/reminder-sms/internal/retry"
	"github.com/LeventeLantos/reminder-sms/internal/scheduler"
	"github.com/LeventeLantos/reminder-sms/internal/service"
)

type app struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	store      *repo.Postgres
	rdb        *redis.Client
	job        *service.AggregationJob
	dispatcher *service.Dispatcher
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadAll()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	pool, err := repo.NewPool(ctx, cfg.Database.PostgresURL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return nil, err
	}
	store := repo.NewPostgres(pool)

	a := &app{cfg: cfg, pool: pool, store: store}

	gateway := client.NewGatewayClient(client.GatewayConfig{
		BaseURL:       cfg.Gateway.URL,
		Token:         cfg.Gateway.Token,
		SendEnabled:   cfg.Gateway.SendSMS,
		Timeout:       cfg.Gateway.Timeout,
		DefaultRegion: cfg.Gateway.DefaultRegion,
	})
	a.dispatcher = service.NewDispatcher(store, gateway)

	var locker lock.Locker = lock.NopLocker{}
	if cfg.Redis.Enabled {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}

		rl, err := lock.NewRedisLocker(a.rdb, cfg.Redis.LockTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		locker = rl
		a.dispatcher.WithSentCache(cache.NewRedisCache(a.rdb, cfg.Redis.TTL))
	}

	a.job = service.NewAggregationJob(store, store, store, locker)

	slog.Info("reminder-sms initialised",
		"redis", cfg.Redis.Enabled,
		"send_sms", cfg.Gateway.SendSMS,
		"aggregation_hour_utc", cfg.Aggregation.HourUTC,
		"dispatch_interval", cfg.Dispatch.Interval.String(),
	)
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	a.pool.Close()
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	runner := service.NewDispatchRunner(ctx, a.dispatcher, retry.DefaultDispatchPolicy(), cfg.Dispatch.Concurrency)
	poller := service.NewDispatchPoller(a.store, runner, cfg.Dispatch.BatchSize, cfg.Dispatch.StaleAfter)

	dispatchSched, err := scheduler.New("dispatch", cfg.Dispatch.Interval, func(ctx context.Context) {
		if _, err := poller.Tick(ctx); err != nil {
			slog.Error("dispatch poll failed", "err", err)
		}
	})
	if err != nil {
		return err
	}

	aggSched, err := scheduler.NewDaily("aggregation", cfg.Aggregation.HourUTC, func(ctx context.Context) {
		if _, err := a.job.Run(ctx); err != nil {
			slog.Error("sms aggregation failed", "err", err)
		}
	})
	if err != nil {
		return err
	}

	aggSched.Start()
	dispatchSched.Start()

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(api.NewHandler(a.job, a.store, aggSched, dispatchSched))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-errCh:
		slog.Error("server error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Error("server shutdown failed", "err", shutdownErr)
	}

	aggSched.Stop()
	dispatchSched.Stop()
	stop()
	runner.Wait()

	slog.Info("server stopped")
	return err
}
