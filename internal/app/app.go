package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"taskBot/internal/command"
	"taskBot/internal/config"
	"taskBot/internal/cooldown"
	"taskBot/internal/dispatch"
	"taskBot/internal/gateway/httpgw"
	"taskBot/internal/handlers"
	"taskBot/internal/logger"
	"taskBot/internal/middleware"
	"taskBot/internal/repository/task/inmemory"
	"taskBot/internal/repository/task/postgres"
	"taskBot/internal/repository/task/sqlite"
	"taskBot/internal/service"
	"taskBot/internal/worker"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config       *config.Config
	server       *http.Server
	storage      service.TaskStorage
	service      *service.TaskService
	dispatcher   *dispatch.Dispatcher
	janitor      *worker.CooldownJanitor
	shutdowns    []func()
	shutdownOnce sync.Once
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init builds every component. On failure whatever was already opened is
// released.
func (a *App) Init(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.Shutdown()
		}
	}()

	if err := logger.Init(a.config.Logging.Development, a.config.Logging.File); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: Flushing logs")
		logger.Sync()
	})

	storage, err := newStorage(ctx, a.config)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.storage = storage
	a.shutdowns = append(a.shutdowns, func() {
		if err := storage.Close(); err != nil {
			logger.Error("App: Failed to close storage", err)
		}
	})

	if err := storage.Init(ctx); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	limiter, err := a.newLimiter(ctx)
	if err != nil {
		return fmt.Errorf("init cooldown: %w", err)
	}

	a.service = service.NewTaskService(storage, a.config.Bot.MaxDescriptionLength)
	taskHandler := handlers.NewTaskHandler(a.service, a.config.Bot.PageSize, a.config.Bot.Prefix)

	a.dispatcher = dispatch.New(a.config.Bot.Prefix,
		middleware.RequestID,
		middleware.Logging,
		middleware.Recover,
		middleware.Cooldown(limiter),
	)
	for name, h := range taskHandler.Commands() {
		a.dispatcher.Handle(name, h)
	}

	gateway := httpgw.New(a.dispatcher, a.service)
	a.server = &http.Server{
		Addr: a.config.GetServerAddr(),
		Handler: gateway.Router(httpgw.Options{
			AllowedOrigins: a.config.Server.AllowedOrigins,
			RateLimitRPM:   a.config.Server.RateLimitRPM,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("App: Initialized",
		zap.String("repository", a.config.Repository.Type),
		zap.String("cooldown", a.config.Cooldown.Backend),
		zap.String("addr", a.server.Addr))
	return nil
}

func newStorage(ctx context.Context, cfg *config.Config) (service.TaskStorage, error) {
	switch cfg.Repository.Type {
	case config.RepositorySQLite:
		return sqlite.New(ctx, cfg.Database.Path, cfg.Bot.MaxDescriptionLength)
	case config.RepositoryPostgres:
		return postgres.New(ctx, cfg.Database.URL, cfg.Bot.MaxDescriptionLength, postgres.Options{
			MaxConnections: cfg.Database.MaxConnections,
			IdleTimeout:    cfg.Database.IdleTimeout,
		})
	case config.RepositoryInMemory:
		return inmemory.NewTaskStorage(), nil
	default:
		return nil, fmt.Errorf("unknown repository type %q", cfg.Repository.Type)
	}
}

func (a *App) newLimiter(ctx context.Context) (cooldown.Limiter, error) {
	if a.config.Cooldown.Backend != config.CooldownRedis {
		limiter := cooldown.NewMemory(a.config.Cooldown.Window)
		a.janitor = worker.NewCooldownJanitor(limiter, a.config.Cooldown.PruneInterval)
		return limiter, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})
	a.shutdowns = append(a.shutdowns, func() {
		if err := client.Close(); err != nil {
			logger.Error("App: Failed to close redis client", err)
		}
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return cooldown.NewRedis(client, a.config.Redis.KeyPrefix, a.config.Cooldown.Window), nil
}

func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

func (a *App) Service() *service.TaskService {
	return a.service
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Dispatch lets in-process gateways feed messages without going over HTTP.
func (a *App) Dispatch(ctx context.Context, senderID, content string, replier command.Replier) bool {
	return a.dispatcher.Dispatch(ctx, dispatch.Invocation{
		SenderID: senderID,
		Content:  content,
		Replier:  replier,
	})
}

// Run serves until ctx is cancelled, lets in-flight requests finish within
// the shutdown timeout and then releases every resource.
func (a *App) Run(ctx context.Context) error {
	defer a.Shutdown()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("App: Gateway listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	if a.janitor != nil {
		g.Go(func() error {
			a.janitor.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("App: Shutting down gateway")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown gateway: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown runs the registered cleanups in reverse order, once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		for i := len(a.shutdowns) - 1; i >= 0; i-- {
			a.shutdowns[i]()
		}
	})
}
