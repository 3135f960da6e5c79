// Package app assembles the Glow services from a configuration
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aethra/glow/internal/api"
	"github.com/aethra/glow/internal/auth"
	"github.com/aethra/glow/internal/client"
	"github.com/aethra/glow/internal/config"
	"github.com/aethra/glow/internal/controller"
	"github.com/aethra/glow/internal/database"
	"github.com/aethra/glow/internal/engine"
	"github.com/aethra/glow/internal/metrics"
	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/ui"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Version is set at build time.
var Version = "dev"

// shutdownTimeout bounds how long in-flight requests may finish on stop.
const shutdownTimeout = 10 * time.Second

// reseedTimeout bounds the reseed that follows a schema reload.
const reseedTimeout = time.Minute

// App holds every long-lived service of a running server.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Schema   *engine.SchemaEngine
	Mock     *engine.MockEngine
	Store    *database.Store // nil without a database
	Data     *engine.DataEngine
	Local    engine.Local
	Client   *client.Client
	Sessions *controller.Sessions
	Auth     *auth.SessionService
	Renderer *ui.Renderer
	Metrics  *metrics.Collector
	Registry *prometheus.Registry

	db      *gorm.DB
	watcher *engine.SchemaWatcher
}

// LoadSchema reads the configured modules file, or the built-in garage
// schema when none is set.
func LoadSchema(cfg *config.Config, logger zerolog.Logger) (*engine.SchemaEngine, error) {
	modules := engine.DefaultModules()
	if cfg.ModulesFile != "" {
		loaded, err := engine.LoadModulesFile(cfg.ModulesFile)
		if err != nil {
			return nil, err
		}
		modules = loaded
	}
	return engine.NewSchemaEngine(modules, logger)
}

// OpenStore connects to the configured database and applies migrations.
func OpenStore(cfg *config.Config, logger zerolog.Logger) (*database.Store, *gorm.DB, error) {
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	applied, err := database.RunMigrations(db, logger)
	if err != nil {
		return nil, nil, err
	}
	if len(applied) > 0 {
		logger.Info().Strs("migrations", applied).Msg("migrations applied")
	}
	return database.NewStore(db, logger), db, nil
}

// SeedIfEmpty fills an empty store with the generated rows.
func SeedIfEmpty(ctx context.Context, store *database.Store, schema *engine.SchemaEngine, rows int) error {
	counts, err := store.Counts(ctx)
	if err != nil {
		return err
	}
	if len(counts) > 0 {
		return nil
	}
	built, err := engine.BuildAll(schema.Modules(), rows)
	if err != nil {
		return err
	}
	return store.Seed(ctx, built)
}

// Seeder stores generated rows, replacing what a module held before.
type Seeder interface {
	Seed(ctx context.Context, built map[string][]models.Row) error
}

// ReseedOnChange regenerates the stored rows after every schema change so
// they carry the fields of the new schema.
func ReseedOnChange(schema *engine.SchemaEngine, store Seeder, rows int, logger zerolog.Logger) {
	schema.OnChange(func(modules []models.Module) {
		built, err := engine.BuildAll(modules, rows)
		if err != nil {
			logger.Error().Err(err).Msg("reseed after schema reload failed")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), reseedTimeout)
		defer cancel()
		if err := store.Seed(ctx, built); err != nil {
			logger.Error().Err(err).Msg("reseed after schema reload failed")
			return
		}
		logger.Info().Int("modules", len(built)).Msg("database reseeded after schema reload")
	})
}

// rowSource serves rows from primary, falling back to the mock engine when
// primary fails. A nil primary means mock rows only.
func rowSource(primary engine.RowSource, mock *engine.MockEngine, logger zerolog.Logger) engine.RowSource {
	if primary == nil {
		return mock
	}
	return engine.FallbackSource{Primary: primary, Secondary: mock, Logger: logger}
}

// New builds the services described by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewWithRegistry(a.Registry)

	schema, err := LoadSchema(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	a.Schema = schema
	a.Metrics.SchemaModules.Set(float64(len(schema.Modules())))

	a.Mock, err = engine.NewMockEngine(schema, logger,
		engine.WithDelay(cfg.Mock.Delay),
		engine.WithRowCount(cfg.Mock.Rows),
	)
	if err != nil {
		return nil, fmt.Errorf("build mock data: %w", err)
	}

	var primary engine.RowSource
	if cfg.Database.Enabled() {
		a.Store, a.db, err = OpenStore(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := SeedIfEmpty(ctx, a.Store, schema, cfg.Mock.Rows); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed database: %w", err)
		}
		ReseedOnChange(schema, a.Store, cfg.Mock.Rows, logger)
		primary = a.Store
		logger.Info().Str("driver", cfg.Database.Driver).Msg("serving rows from database")
	}

	a.Data = engine.NewDataEngine(schema, rowSource(primary, a.Mock, logger), logger, engine.WithObserver(a.Metrics))
	a.Local = engine.Local{DataEngine: a.Data, User: engine.DefaultUser()}
	a.Client = client.New(client.Config{
		BaseURL:      cfg.API.BaseURL,
		Version:      cfg.API.Version,
		Portal:       cfg.API.Portal,
		Timeout:      cfg.API.Timeout,
		RetryMax:     cfg.API.RetryMax,
		RetryDelay:   cfg.API.RetryDelay,
		DefaultLimit: cfg.Pagination.PageSize,
	}, logger, client.WithFallback(a.Local), client.WithRecorder(a.Metrics))

	a.Sessions = controller.NewSessions(func() *controller.Controller {
		return controller.New(a.Client, logger,
			controller.WithPageSize(cfg.Pagination.PageSize),
			controller.WithDebounce(cfg.Pagination.SearchDebounce),
		)
	}, controller.DefaultSessionTTL, logger, controller.WithMaxSessions(cfg.Auth.MaxSessions))

	secret := cfg.Auth.SessionSecret
	if secret == "" {
		secret = config.GenerateSessionSecret()
		logger.Warn().Msg("no session secret configured, sessions will not survive a restart")
	}
	a.Auth = auth.NewSessionService(secret, cfg.Auth.SessionTTL)

	a.Renderer, err = ui.NewRenderer()
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.WatchSchema && cfg.ModulesFile != "" {
		a.watcher, err = engine.NewSchemaWatcher(schema, cfg.ModulesFile, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.watcher.OnReload = a.Metrics.RecordSchemaReload
	}
	return a, nil
}

// Router returns the HTTP handler for the app.
func (a *App) Router() *gin.Engine {
	return api.SetupRouter(api.Deps{
		Config:   a.Config,
		Schema:   a.Schema,
		Portal:   a.Local,
		Client:   a.Client,
		Sessions: a.Sessions,
		Auth:     a.Auth,
		Renderer: a.Renderer,
		Metrics:  a.Metrics,
		Gatherer: a.Registry,
		Logger:   a.Logger,
	})
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	gin.SetMode(a.Config.Server.Mode)

	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			return fmt.Errorf("watch modules file: %w", err)
		}
	}
	a.Sessions.Start(0)

	srv := &http.Server{
		Addr:         ":" + a.Config.Server.Port,
		Handler:      a.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Str("version", Version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// Close stops background work and closes the database.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.Sessions != nil {
		a.Sessions.Stop()
	}
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
