// Package runtime wires the catalog's dependencies and manages the HTTP
// server lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/openshelf/library-service/internal/config"
	"github.com/openshelf/library-service/internal/httpapi"
	"github.com/openshelf/library-service/internal/platform/migrations"
	"github.com/openshelf/library-service/internal/services/authors"
	"github.com/openshelf/library-service/internal/services/books"
	"github.com/openshelf/library-service/internal/services/users"
	"github.com/openshelf/library-service/internal/storage"
	"github.com/openshelf/library-service/internal/storage/memory"
	"github.com/openshelf/library-service/internal/storage/postgres"
	"github.com/openshelf/library-service/pkg/logger"
)

// Application holds the wired services and the HTTP server.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	handler http.Handler
	server  *http.Server
	db      *sqlx.DB

	Books   *books.Service
	Authors *authors.Service
	Users   *users.Service
}

// NewApplication constructs an application from the given configuration. A
// nil configuration is loaded from the environment.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	bookStore, authorStore, userStore, db, err := buildStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	bookSvc := books.New(bookStore, authorStore, userStore, log.WithField("component", "books"))
	authorSvc := authors.New(authorStore, bookStore, log.WithField("component", "authors"))
	userSvc := users.New(userStore, bookStore, authorStore, log.WithField("component", "users"))

	handler := httpapi.NewHandler(bookSvc, authorSvc, userSvc, log.WithField("component", "httpapi"))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:     cfg,
		log:     log,
		handler: handler,
		server:  server,
		db:      db,
		Books:   bookSvc,
		Authors: authorSvc,
		Users:   userSvc,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until the context is cancelled or the
// server fails.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.log.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

func buildStores(cfg *config.Config) (storage.BookStore, storage.AuthorStore, storage.UserStore, *sqlx.DB, error) {
	switch cfg.Database.Driver {
	case "memory":
		store := memory.New()
		return store, store, store, nil, nil

	case "postgres":
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		store := postgres.New(db)
		return store, store, store, db, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrations.Apply(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
