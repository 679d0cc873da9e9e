package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	zlog "github.com/rs/zerolog/log"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/application/user"
	"github.com/jd52dev/excursion/internal/audit"
	"github.com/jd52dev/excursion/internal/config"
	rediscache "github.com/jd52dev/excursion/internal/infrastructure/caching/redis"
	"github.com/jd52dev/excursion/internal/infrastructure/db/postgres"
	"github.com/jd52dev/excursion/internal/infrastructure/db/userdir"
	"github.com/jd52dev/excursion/internal/infrastructure/memory"
	"github.com/jd52dev/excursion/internal/infrastructure/messaging/rabbitmq"
	"github.com/jd52dev/excursion/internal/logger"
	"github.com/jd52dev/excursion/internal/security"
	"github.com/jd52dev/excursion/internal/transport/http/handlers"
	authmw "github.com/jd52dev/excursion/internal/transport/http/middleware"
	"github.com/jd52dev/excursion/internal/transport/http/router"
)

// App holds all dependencies for the service
type App struct {
	Config *config.Config
	Server *http.Server

	Pool      *pgxpool.Pool
	UserDB    *sql.DB
	Redis     *rediscache.Client
	Publisher *rabbitmq.Publisher
}

func (a *App) Close() {
	if a.Publisher != nil {
		_ = a.Publisher.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.UserDB != nil {
		_ = a.UserDB.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		zlog.Info().
			Str("db_user", u.User.Username()).
			Str("db_host", u.Host).
			Str("db_db", u.Path).
			Msg("db config loaded")
	}

	a, err := NewApp(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zlog.Info().Msg("shutting down")
	case err := <-errCh:
		zlog.Error().Err(err).Msg("server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Err(err).Msg("graceful shutdown failed")
	}
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	fail := func(err error) (*App, error) {
		a.Close()
		return nil, err
	}

	// 1) Infrastructure
	pool, err := openPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	a.Pool = pool
	repo := postgres.New(pool)

	udb, err := userdir.Open(cfg.UserDirDatabaseURL)
	if err != nil {
		return fail(err)
	}
	a.UserDB = udb
	users := userdir.New(udb)

	if cfg.AutoMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := repo.Migrate(mctx); err != nil {
			return fail(err)
		}
		if err := users.Migrate(mctx); err != nil {
			return fail(err)
		}
	}

	var cache app.Cache
	var notifier app.Notifier = memory.NewHub()
	deps := map[string]handlers.Pinger{"postgres": repo, "userdir": users}

	if cfg.RedisAddr != "" {
		rc := rediscache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			zlog.Warn().Err(err).Msg("redis unavailable: cache disabled, change notifications stay in process")
			_ = rc.Close()
		} else {
			a.Redis = rc
			cache = rc
			notifier = rediscache.NewNotifier(rc)
			deps["redis"] = rc
		}
	} else {
		zlog.Warn().Msg("REDIS_ADDR empty: cache disabled, change notifications stay in process")
	}

	auditLog := audit.New(logger.Component("audit"))

	if cfg.OutboxEnabled {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return fail(err)
		}
		a.Publisher = p
		repo.StartOutboxWorker(ctx, p, auditLog)
		zlog.Info().Str("exchange", cfg.RabbitExchange).Msg("rabbit publisher ready")
	} else {
		zlog.Warn().Msg("OUTBOX_ENABLED=false: domain events stay in the outbox table")
	}

	// 2) Application
	clock := app.SystemClock{}
	svc := app.New(repo, users, clock, cache, notifier, auditLog, cfg.CacheEventTTL)
	usvc := user.New(users, clock)

	if cfg.ConsumerEnabled {
		c := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.IdentityExchange, repo, usvc)
		if err := c.Start(ctx); err != nil {
			return fail(err)
		}
	}

	// 3) Transport
	verifier := security.NewHS256Verifier(cfg.JWTSecret,
		security.WithIssuer(cfg.JWTIssuer),
		security.WithLeeway(30*time.Second),
	)
	httpHandler := router.New(
		handlers.NewExcursionsHandler(svc),
		handlers.NewUsersHandler(usvc),
		handlers.NewHealthHandler(deps),
		authmw.NewAuth(verifier),
		cfg,
	)

	a.Server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return a, nil
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 20
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
