package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"MovieCurator/internal/api"
	"MovieCurator/internal/config"
	"MovieCurator/internal/infrastructure/lock"
	"MovieCurator/internal/infrastructure/scheduler"
	"MovieCurator/internal/infrastructure/source"
	"MovieCurator/internal/infrastructure/storage"
	"MovieCurator/internal/infrastructure/telegram"
	"MovieCurator/internal/infrastructure/tmdb"
	"MovieCurator/internal/ports"
	"MovieCurator/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *Store
	curator *usecase.Curator
	router  http.Handler
}

// Store bundles the database handle with the featured repository on top of it.
type Store struct {
	DB         *sql.DB
	Repository *storage.FeaturedRepository
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStore connects to the configured database and makes sure the schema exists.
func OpenStore(ctx context.Context, cfg config.Config) (*Store, error) {
	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewFeaturedRepository(db, cfg.Database.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db, Repository: repo}, nil
}

// New builds a runnable application instance. Provider credentials are required.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	if err := cfg.RequireProvider(); err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var opts []tmdb.Option
	if cfg.Provider.ReadToken != "" {
		opts = append(opts, tmdb.WithReadToken(cfg.Provider.ReadToken))
	}
	client, err := tmdb.New(cfg.Provider.APIKey, cfg.Provider.BaseURL, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	lister := tmdb.NewBreakerClient(client, tmdb.BreakerSettings{}, baseLogger)

	candidates := source.NewUpcomingSource(lister, source.Options{
		Region:         cfg.Provider.Region,
		Language:       cfg.Provider.Language,
		RequestTimeout: cfg.Provider.RequestTimeout,
	}, baseLogger.With("component", "source"))

	var locker ports.RunLock
	if cfg.Lock.Path != "" {
		fl, err := lock.NewFileLock(cfg.Lock.Path)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		locker = fl
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	curator := usecase.NewCurator(usecase.CuratorDeps{
		Source:          candidates,
		Repository:      store.Repository,
		Locker:          locker,
		Notifier:        notifier,
		Logger:          baseLogger,
		Interval:        cfg.Curation.Interval,
		DefaultMaxPages: cfg.Curation.DefaultMaxPages,
	})

	handler := api.NewHandler(curator, cfg.Server.CronSecret, baseLogger)
	router := api.NewRouter(handler, api.RouterConfig{CurateRateLimit: cfg.Server.CurateRateLimit})

	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		store:   store,
		curator: curator,
		router:  router,
	}, nil
}

// Curator exposes the orchestrator for one-shot commands.
func (a *Application) Curator() *usecase.Curator {
	return a.curator
}

// Handler exposes the HTTP router.
func (a *Application) Handler() http.Handler {
	return a.router
}

// Close releases held resources.
func (a *Application) Close() error {
	return a.store.Close()
}

// Run serves HTTP and, when enabled, the background scheduler until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	root := suture.New("moviecurator", suture.Spec{
		EventHook: (&sutureslog.Handler{Logger: a.logger.With("component", "supervisor")}).MustHook(),
		Timeout:   a.cfg.Server.ShutdownTimeout + 5*time.Second,
	})

	root.Add(newHTTPService(a.cfg.Server.Addr, a.router, a.cfg.Server.ShutdownTimeout, a.logger))
	if a.cfg.Scheduler.Enabled {
		driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval)
		root.Add(usecase.NewScheduler(driver, a.curator, a.logger))
	} else {
		a.logger.Info("background scheduler disabled")
	}

	err := root.Serve(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
