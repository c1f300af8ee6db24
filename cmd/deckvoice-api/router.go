// Package main provides the API router setup.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/deckvoice/deckvoice/cmd/deckvoice-api/handlers"
	"github.com/deckvoice/deckvoice/cmd/deckvoice-api/middleware"
	"github.com/deckvoice/deckvoice/internal/config"
	"github.com/deckvoice/deckvoice/internal/deck"
	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/export"
	"github.com/deckvoice/deckvoice/internal/llm"
	"github.com/deckvoice/deckvoice/internal/narrate"
	"github.com/deckvoice/deckvoice/internal/observability"
	"github.com/deckvoice/deckvoice/internal/pipeline"
	"github.com/deckvoice/deckvoice/internal/render"
	"github.com/deckvoice/deckvoice/internal/session"
	"github.com/deckvoice/deckvoice/internal/storage"
)

// App bundles the wired service and the resources that need closing on
// shutdown.
type App struct {
	Router http.Handler
	store  session.Store
	db     *sql.DB
}

// Close releases the session store and database connections.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// NewApp wires all services from configuration and builds the router.
func NewApp(cfg *config.Config, logger *observability.Logger) (*App, error) {
	generator, err := llm.NewClient(llm.Config{
		Model:          cfg.LLM.Model,
		BaseURL:        cfg.LLM.BaseURL,
		RequestTimeout: cfg.LLM.RequestTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
	}, logger)
	if err != nil {
		return nil, err
	}

	extractor := deck.NewExtractor(cfg.Limits.MaxSlides, cfg.Limits.MaxFileSizeBytes(), logger)

	var renderer *render.Renderer
	if cfg.Render.Enabled {
		renderer = render.NewRenderer(cfg.Render.SofficePath, cfg.Render.JPEGQuality, logger)
	}

	engine := narrate.NewEngine(generator, cfg.LLM.Concurrency, cfg.Limits.NotesContextRunes, logger)

	store, err := newSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	progress := domain.NewProgressStore()
	service := pipeline.NewService(extractor, renderer, engine, store, blobs, progress, logger)
	exporter := export.NewExporter(blobs, logger)

	app := &App{store: store}

	if !cfg.Stateless() {
		db, err := storage.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			store.Close()
			return nil, err
		}
		if err := storage.EnsureSchema(context.Background(), db); err != nil {
			db.Close()
			store.Close()
			return nil, err
		}
		app.db = db
	}

	app.Router = newRouter(cfg, logger, service, exporter, app.db)
	return app, nil
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	if cfg.Session.Driver == "redis" {
		return session.NewRedisStore(session.RedisOptions{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
			PoolSize: cfg.Session.Redis.PoolSize,
		}, cfg.Session.TTL)
	}
	return session.NewMemoryStore(cfg.Session.TTL), nil
}

func newBlobStore(cfg *config.Config) (storage.Blob, error) {
	if cfg.Storage.Driver == "s3" {
		return storage.NewS3Blob(context.Background(), storage.S3Options{
			Endpoint:       cfg.Storage.S3.Endpoint,
			Region:         cfg.Storage.S3.Region,
			Bucket:         cfg.Storage.S3.Bucket,
			AccessKey:      cfg.Storage.S3.AccessKey,
			SecretKey:      cfg.Storage.S3.SecretKey,
			ForcePathStyle: cfg.Storage.S3.ForcePathStyle,
		})
	}
	return storage.NewLocalBlob(cfg.Storage.Local.Dir)
}

func newRouter(cfg *config.Config, logger *observability.Logger, service *pipeline.Service, exporter *export.Exporter, db *sql.DB) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"deckvoice"}`))
	})

	runHandler := handlers.NewRunHandler(logger, service, exporter, cfg.Limits.MaxFileSizeBytes()+1024*1024)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", runHandler.Create)
			r.Route("/{runId}", func(r chi.Router) {
				r.Get("/", runHandler.Get)
				r.Delete("/", runHandler.Delete)
				r.Get("/progress", runHandler.Progress)
				r.Get("/export", runHandler.Export)
				r.Post("/narration/retry", runHandler.RetryNarration)
				r.Post("/rewrite", runHandler.GlobalRewrite)
				r.Post("/slides/{index}/refine", runHandler.RefineSlide)
			})
		})

		if db != nil {
			projectHandler := handlers.NewProjectHandler(
				logger,
				storage.NewProjectRepository(db),
				storage.NewRunRepository(db),
				service,
			)
			r.Route("/projects", func(r chi.Router) {
				r.Post("/", projectHandler.Create)
				r.Get("/", projectHandler.List)
				r.Route("/{projectId}", func(r chi.Router) {
					r.Delete("/", projectHandler.Delete)
					r.Post("/runs", projectHandler.SaveRun)
					r.Get("/runs", projectHandler.ListRuns)
					r.Get("/runs/{savedRunId}", projectHandler.GetRun)
				})
			})
		}
	})

	return r
}

// Addr returns the configured listen address.
func Addr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}
