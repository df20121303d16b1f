package app

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

	"github.com/kirinyoku/cinehold/internal/config"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/event"
	amqppub "github.com/kirinyoku/cinehold/internal/event/amqp"
	"github.com/kirinyoku/cinehold/internal/gateway/razorpay"
	"github.com/kirinyoku/cinehold/internal/postgres"
	"github.com/kirinyoku/cinehold/internal/reaper"
	redisx "github.com/kirinyoku/cinehold/internal/redis"
	postgresrepo "github.com/kirinyoku/cinehold/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/cinehold/internal/repository/redis"
	"github.com/kirinyoku/cinehold/internal/service"
	"github.com/kirinyoku/cinehold/internal/service/query"
	"github.com/kirinyoku/cinehold/internal/service/reservation"
	"github.com/kirinyoku/cinehold/internal/service/settlement"
	httpgin "github.com/kirinyoku/cinehold/internal/transport/http/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	reaper     *reaper.Reaper
	closers    []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	a := &App{cfg: cfg, logger: logger}

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, cfg.Postgres.DSN()); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		logger.Info("migrations applied")
	}

	pool, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN(), MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	store := postgresrepo.NewStore(pool)

	deps, idem, guard, err := a.wire(ctx, store)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	services := service.NewServices(deps, logger, service.Config{
		Reservation: reservation.Config{
			HoldDuration: cfg.Booking.HoldDuration,
			Currency:     cfg.Booking.Currency,
			Pricing: domain.Pricing{
				Standard: cfg.Booking.StandardPrice,
				Premium:  cfg.Booking.PremiumPrice,
			},
		},
		Settlement: settlement.Config{Currency: cfg.Booking.Currency},
		Query:      query.Config{ShowTTL: cfg.Booking.ShowCacheTTL},
	})

	a.reaper = reaper.New(store.Ledger(), guard, deps.Notifier, deps.Events, logger, reaper.Config{
		Interval:  cfg.Reaper.Interval,
		BatchSize: cfg.Reaper.BatchSize,
	})

	router := httpgin.NewRouter(services, idem, logger, httpgin.RouterConfig{
		JWTSecret:       cfg.Auth.JWTSecret,
		CORSOrigins:     cfg.Server.CORSOrigins,
		WebhookMaxBytes: cfg.Webhook.MaxBytes,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// wire builds the storage and integration ports. Redis and AMQP are optional;
// without them the corresponding features are off.
func (a *App) wire(
	ctx context.Context,
	store *postgresrepo.Store,
) (service.Deps, httpgin.IdempotencyStore, reaper.Guard, error) {
	cfg := a.cfg

	deps := service.Deps{
		Catalog: store.Catalog(),
		Ledger:  store.Ledger(),
		Query:   store.Query(),
		Gateway: razorpay.New(razorpay.Config{
			BaseURL:          cfg.Gateway.BaseURL,
			KeyID:            cfg.Gateway.KeyID,
			KeySecret:        cfg.Gateway.KeySecret,
			Timeout:          cfg.Gateway.Timeout,
			BreakerThreshold: cfg.Gateway.BreakerThreshold,
		}),
		Verifier: settlement.NewHMACVerifier(cfg.Webhook.Secret),
		Notifier: event.Nop{},
		Events:   event.Nop{},
	}

	var (
		idem  httpgin.IdempotencyStore
		guard reaper.Guard
	)

	if !cfg.Redis.Disabled {
		rdb, err := redisx.New(ctx, redisx.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return service.Deps{}, nil, nil, err
		}
		a.closers = append(a.closers, rdb.Close)

		a.wireRedis(rdb, &deps)
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.Booking.IdempotencyTTL)
		guard = redisrepo.NewReaperLock(rdb, redisx.KeyReaperLock(), cfg.Reaper.LockTTL)
	} else {
		a.logger.Warn("redis disabled: no show cache, rate limit, idempotency or reaper lock")
	}

	if cfg.AMQP.URL != "" {
		pub, err := amqppub.New(amqppub.Config{URL: cfg.AMQP.URL, Exchange: cfg.AMQP.Exchange})
		if err != nil {
			return service.Deps{}, nil, nil, err
		}
		a.closers = append(a.closers, pub.Close)
		deps.Events = pub
	}

	return deps, idem, guard, nil
}

func (a *App) wireRedis(rdb *redis.Client, deps *service.Deps) {
	deps.Cache = redisrepo.NewShowCache(rdb)
	deps.Notifier = redisx.NewShowsPubSub(rdb)
	deps.Limiter = redisrepo.NewSlidingWindowLimiter(rdb, "bookings", a.cfg.Booking.RateLimit, a.cfg.Booking.RateLimitWindow)
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.reaper.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		return a.httpServer.Shutdown(ctx)
	})

	err := g.Wait()

	if cerr := a.Close(); cerr != nil {
		a.logger.Warn("close resources", slog.Any("err", cerr))
	}

	return err
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}
