package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/aegis-auth/aegis/internal/app"
	"github.com/aegis-auth/aegis/internal/auth"
	"github.com/aegis-auth/aegis/internal/mail"
	"github.com/aegis-auth/aegis/internal/observability"
	"github.com/aegis-auth/aegis/internal/password"
	"github.com/aegis-auth/aegis/internal/platform/cache"
	"github.com/aegis-auth/aegis/internal/platform/db"
	"github.com/aegis-auth/aegis/internal/ratelimit"
	"github.com/aegis-auth/aegis/internal/sessions"
	"github.com/aegis-auth/aegis/internal/token"
	"github.com/aegis-auth/aegis/internal/users"
	"github.com/aegis-auth/aegis/internal/verification"
	"github.com/aegis-auth/aegis/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	codec := token.NewCodec(token.Config{
		AccessSecret:  []byte(cfg.JWTSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL,
	})
	hasher := password.NewBcryptHasher(cfg.BcryptCost)

	userStore := users.NewPGStore(pool)
	sessionStore := sessions.NewPGStore(pool)
	codeStore := verification.NewPGStore(pool)

	sessionManager := sessions.NewManager(sessionStore, codec, cfg.SessionTTL, cfg.SessionRotateWithin)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	mailer := mail.NewQueueSender(jobClient)

	loginThrottle := ratelimit.NewLimiter(redisClient, "aegis:login", cfg.LoginThrottleLimit, cfg.LoginThrottleWindow)

	authService := auth.NewService(
		auth.Config{
			Origin:       cfg.AppOrigin,
			EmailCodeTTL: cfg.EmailCodeTTL,
			ResetCodeTTL: cfg.ResetCodeTTL,
		},
		userStore,
		sessionManager,
		codeStore,
		hasher,
		codec,
		mailer,
		loginThrottle,
		logger,
	).WithAtomic(func(ctx context.Context, fn func(users.Store, sessions.Store) error) error {
		return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			return fn(userStore.WithTx(tx), sessionStore.WithTx(tx))
		})
	})

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Codec:           codec,
		AuthHandler:     auth.NewHandler(logger, authService, metrics, cfg.IsProduction(), cfg.AccessTokenTTL, cfg.SessionTTL),
		UsersHandler:    users.NewHandler(logger, users.NewService(userStore)),
		SessionsHandler: sessions.NewHandler(logger, sessionManager),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
