// Package server initializes and runs the auth server: it selects the store
// backend, wires the auth manager and the external-auth proxy, runs the
// periodic flush/sweep task, and serves the HTTP API with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/starfall-project/authcore/internal/logging"
	"github.com/starfall-project/authcore/internal/server/authmgr"
	"github.com/starfall-project/authcore/internal/server/config"
	"github.com/starfall-project/authcore/internal/server/httpapi"
	"github.com/starfall-project/authcore/internal/server/proxy"
	"github.com/starfall-project/authcore/internal/server/ratelimit"
	"github.com/starfall-project/authcore/internal/server/store"
	"github.com/starfall-project/authcore/internal/server/token"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   store.Store
	manager *authmgr.Manager
	handler *httpapi.Handler
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	st, err := openStore(c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	manager := authmgr.New(
		st,
		token.NewService([]byte(c.SecretKey)),
		ratelimit.New(c.RateLimitMax, c.RateLimitWindow),
		logger,
		c.TokenTTL,
	)
	handler := httpapi.NewHandler(c, logger, manager, proxy.New(c.ProxyTimeout, logger))

	return &App{
		config:  c,
		logger:  logger,
		store:   st,
		manager: manager,
		handler: handler,
	}, nil
}

func openStore(c *config.Config) (store.Store, error) {
	switch c.StoreBackend {
	case "memory":
		return store.NewMemoryStore(c.MaxUsers), nil
	case "file":
		return store.OpenFileStore(c.UsersFile, c.MaxUsers)
	case "postgres":
		return store.OpenPostgresStore(context.Background(), c.DatabaseDSN, c.MaxUsers)
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runMaintenance flushes the file store and sweeps expired limiter windows
// and token revocations until the context ends.
func (app *App) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(app.config.FlushInterval)
	defer ticker.Stop()

	flusher, _ := app.store.(*store.FileStore)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.manager.Sweep()
			if flusher != nil {
				if err := flusher.Flush(ctx); err != nil {
					app.logger.Error(ctx, "flush failed", "error", err)
				}
			}
		}
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.Addr,
		Handler:           app.handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "starting http server", "addr", app.config.Addr, "backend", app.config.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runMaintenance(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.store.Close(closeCtx); err != nil {
		app.logger.Error(closeCtx, "store close error", "error", err)
	}
}
