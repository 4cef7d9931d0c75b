package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"poolview/pkg/cacheapi"
	"poolview/pkg/common"
	"poolview/pkg/common/compress"
	"poolview/pkg/common/config"
	"poolview/pkg/common/database"
	"poolview/pkg/common/fs"
	"poolview/pkg/common/logger"
	"poolview/pkg/common/restful"
	"poolview/pkg/common/tracing"
	"poolview/pkg/common/worker"
	"poolview/pkg/process"
	"poolview/pkg/query"
	"poolview/pkg/query/persist"
	"poolview/pkg/routes"
	"poolview/pkg/workpools"
)

// App is the assembled dashboard server.
type App struct {
	cfg       *config.Config
	log       *zerolog.Logger
	proc      *process.Process
	cache     *query.Client
	persister query.Persister
	api       *workpools.Client
	srv       *restful.Server
}

// New wires every component from cfg. Nothing listens until Start. On error
// whatever was already set up is released.
func New(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, log: logger.WithComponent("app"), proc: process.New()}
	a.proc.Start()
	if err := a.wire(); err != nil {
		_ = a.proc.Stop(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.cfg
	tp, err := tracing.Init(cfg.Tracing.Enabled, os.Stderr)
	if err != nil {
		return err
	}
	_ = a.proc.Register("tracing", func(ctx context.Context) error { return tracing.Shutdown(ctx, tp) })

	if err := worker.Init(cfg.Workers.Size); err != nil {
		return fmt.Errorf("worker pool init failed: %w", err)
	}
	_ = a.proc.Register("workers", func(ctx context.Context) error {
		return worker.Release(cfg.Server.ShutdownTimeout)
	})

	a.cache = query.NewClient(query.Options{
		StaleTime:         cfg.Query.StaleTime,
		GCTime:            cfg.Query.GCTime,
		FetchTimeout:      cfg.Query.FetchTimeout,
		RevalidateIfStale: cfg.Query.RevalidateIfStale,
		Submit:            func(f func()) error { return worker.Submit(f) },
	})
	if cfg.Metrics.Enabled {
		if err := query.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		if err := routes.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return err
		}
	}
	if err := a.openPersister(); err != nil {
		return err
	}
	if a.persister != nil {
		if _, err := query.RestoreClient(a.proc.Context(), a.cache, a.persister, cfg.Query.GCTime); err != nil {
			// a broken snapshot only costs a cold cache
			a.log.Warn().Err(err).Msg("query cache restore failed")
		}
		_ = a.proc.Register("persist", func(ctx context.Context) error {
			return query.PersistClient(ctx, a.cache, a.persister)
		})
	}
	a.cache.Start(a.proc.Context())

	a.api = workpools.NewClient(workpools.ClientConfig{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.RetryCount,
		Token:      cfg.API.Token,
	})
	_ = a.proc.Register("workpools", func(ctx context.Context) error { return a.api.Close() })

	a.srv = restful.NewServer(
		restful.WithAddress(cfg.Server.Address),
		restful.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		restful.WithMiddleware(restful.ErrorBoundary(routes.StatusFor)),
	)
	routes.Mount(a.srv.Engine, routes.WorkPoolDetail(a.cache, a.api))
	cacheapi.RegisterRoutes(a.srv.Engine.Group("/api"), &cacheapi.Handler{Cache: a.cache, Process: a.proc, Backend: a.api})
	if cfg.Metrics.Enabled {
		cacheapi.RegisterMetrics(a.srv.Engine, prometheus.DefaultGatherer)
	}
	return nil
}

func (a *App) openPersister() error {
	switch a.cfg.Query.Persist {
	case "file":
		ct, err := compress.ParseType(a.cfg.Query.PersistCompression)
		if err != nil {
			return err
		}
		compressor, err := compress.NewCompressor(ct)
		if err != nil {
			return err
		}
		fsys, err := fs.NewWithFs(afero.NewOsFs(), a.cfg.Runtime.BasePath, compressor)
		if err != nil {
			return fmt.Errorf("filesystem init failed: %w", err)
		}
		a.log.Info().
			Str("runtime_path", fsys.GetRuntimePath()).
			Str("compression", fsys.GetCompressor().Type().String()).
			Msg("Runtime paths ready")
		a.persister = persist.NewFilePersister(fsys, persist.DefaultFileName)
	case "sqlite":
		db, err := database.Init(a.cfg.Runtime.BasePath, persist.DefaultDBName)
		if err != nil {
			return err
		}
		p, err := persist.NewDBPersister(db)
		if err != nil {
			return err
		}
		a.persister = p
		_ = a.proc.Register("database", func(ctx context.Context) error { return database.Close() })
	}
	return nil
}

// Handler serves the app without a listener, for tests.
func (a *App) Handler() http.Handler { return a.srv.Handler() }

// Cache exposes the shared query client.
func (a *App) Cache() *query.Client { return a.cache }

// Start begins serving HTTP.
func (a *App) Start() error {
	if err := a.srv.Start(); err != nil {
		return err
	}
	_ = a.proc.Register("server", a.srv.Shutdown)
	return nil
}

// Shutdown stops the server first, then persists the cache and releases the rest.
func (a *App) Shutdown(ctx context.Context) error {
	return a.proc.Stop(ctx)
}

// RunAPI loads configuration from configPath and serves until SIGINT or SIGTERM.
func RunAPI(configPath string) error {
	cfg, err := common.Init(configPath)
	if err != nil {
		return err
	}
	log := common.GetLogger()
	log.Info().Str("backend", cfg.API.BaseURL).Msg("Starting poolview")
	if common.IsDebug() {
		log.Debug().Msg("Debug mode enabled")
	}

	a, err := New(cfg)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := <-quit; sig == syscall.SIGHUP; sig = <-quit {
		if _, err := common.Reload(); err != nil {
			log.Error().Err(err).Msg("Config reload failed")
			continue
		}
		log.Info().Msg("Config reloaded")
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
		return err
	}
	log.Info().Msg("Server exited cleanly")
	return nil
}
