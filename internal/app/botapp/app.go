package botapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lubowsky/mood-tracker/internal/config"
	tginfra "github.com/lubowsky/mood-tracker/internal/infra/telegram"
	"github.com/lubowsky/mood-tracker/internal/jobs/cleanup"
	"github.com/lubowsky/mood-tracker/internal/jobs/scheduler"
	pgrepo "github.com/lubowsky/mood-tracker/internal/repo/postgres"
	redrepo "github.com/lubowsky/mood-tracker/internal/repo/redis"
	contentsvc "github.com/lubowsky/mood-tracker/internal/services/content"
	entriessvc "github.com/lubowsky/mood-tracker/internal/services/entries"
	notifiersvc "github.com/lubowsky/mood-tracker/internal/services/notifier"
	paymentsvc "github.com/lubowsky/mood-tracker/internal/services/payments"
	subssvc "github.com/lubowsky/mood-tracker/internal/services/subscriptions"
	userssvc "github.com/lubowsky/mood-tracker/internal/services/users"
)

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	bot      *tginfra.Bot

	conversationRepo *redrepo.ConversationRepo

	userService    *userssvc.Service
	subsService    *subssvc.Service
	contentService *contentsvc.Service
	entryService   *entriessvc.Service
	paymentService *paymentsvc.Service
	notifier       *notifiersvc.Service
	schedulerJob   *scheduler.Job
	cleanupJob     *cleanup.Job

	httpServer *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	if err := pgrepo.Migrate(cfg.Postgres.DSN); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	userRepo := pgrepo.NewUserRepo(pool)
	subRepo := pgrepo.NewSubscriptionRepo(pool)
	entryRepo := pgrepo.NewEntryRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)
	conversationRepo := redrepo.NewConversationRepo(redisClient)

	userService := userssvc.NewService(userRepo)
	subsService := subssvc.NewService(subRepo, userRepo, subssvc.Config{
		TrialDuration: cfg.Trial.Duration,
	})
	contentService := contentsvc.NewService()
	entryService := entriessvc.NewService(entryRepo)
	paymentService := paymentsvc.NewService(paymentRepo, subRepo, logger)

	var bot *tginfra.Bot
	if strings.TrimSpace(cfg.Bot.Token) != "" {
		bot, err = tginfra.NewBot(cfg.Bot.Token, cfg.Bot.SendTimeout)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		logger.Warn("BOT_TOKEN is empty, notifications and bot listener disabled")
	}

	app := &App{
		cfg:              cfg,
		logger:           logger,
		postgres:         pool,
		redis:            redisClient,
		bot:              bot,
		conversationRepo: conversationRepo,
		userService:      userService,
		subsService:      subsService,
		contentService:   contentService,
		entryService:     entryService,
		paymentService:   paymentService,
		cleanupJob:       cleanup.New(subRepo, cfg.Cleanup.Retention, logger),
	}

	if bot != nil {
		app.notifier = notifiersvc.NewService(bot, contentService, userService, conversationRepo, logger)
		app.schedulerJob = scheduler.New(userService, subsService, app.notifier, cfg.Scheduler.PacingDelay, logger)
	}

	app.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      app.routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started",
		zap.String("http_addr", a.cfg.HTTP.Addr),
		zap.Bool("bot_enabled", a.bot != nil))

	errCh := make(chan error, 4)

	go func() {
		errCh <- a.runHTTPServer(ctx)
	}()

	go func() {
		errCh <- a.runCleanupLoop(ctx)
	}()

	if a.schedulerJob != nil {
		go func() {
			errCh <- a.runSchedulerLoop(ctx)
		}()
	}

	if a.bot != nil {
		go func() {
			errCh <- a.bot.Listen(ctx, tginfra.Handlers{
				OnCommand:  a.handleCommand,
				OnText:     a.handleText,
				OnCallback: a.handleCallback,
			})
		}()
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

func (a *App) runHTTPServer(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.httpServer.Shutdown(shutdownCtx)
	}()

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (a *App) runSchedulerLoop(ctx context.Context) error {
	interval := a.cfg.Scheduler.TickInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.schedulerJob.Run(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				// A failed tick is retried on the next minute.
				a.logger.Error("scheduler tick failed", zap.Error(err))
			}
		}
	}
}

func (a *App) runCleanupLoop(ctx context.Context) error {
	interval := a.cfg.Cleanup.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	if err := a.cleanupJob.Run(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.cleanupJob.Run(ctx); err != nil {
				return err
			}
		}
	}
}

func (a *App) Router() chi.Router {
	return a.routes()
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
