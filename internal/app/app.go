package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datalytics/console/internal/auth"
	"github.com/datalytics/console/internal/backend"
	"github.com/datalytics/console/internal/batch"
	"github.com/datalytics/console/internal/config"
	"github.com/datalytics/console/internal/crypto"
	"github.com/datalytics/console/internal/handler"
	"github.com/datalytics/console/internal/store"
	"github.com/datalytics/console/internal/web"
)

// purgeInterval is how often expired console sessions are deleted.
const purgeInterval = time.Hour

type App struct {
	config   *config.Config
	logger   *slog.Logger
	store    store.SessionStore
	verifier *auth.Verifier
	guard    *auth.Guard
	console  *handler.Console
}

func (app *App) Close() {
	if err := app.store.Close(); err != nil {
		app.logger.Error("closing session store", "err", err)
	}
}

// New opens the session store and wires the console.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := newLogger(cfg)

	crypter, err := crypto.New([]byte(cfg.SessionSecret))
	if err != nil {
		return nil, fmt.Errorf("session crypter: %w", err)
	}

	st, err := store.Open(ctx, cfg.DatabaseURL, crypter)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	return newApp(cfg, logger, st, nil), nil
}

// newApp wires an App around an open store. clock may be nil.
func newApp(cfg *config.Config, logger *slog.Logger, st store.SessionStore, clock func() time.Time) *App {
	client := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
	}, logger)

	verifier := auth.NewVerifier(logger)
	guard := auth.NewGuard(verifier, clock)
	login := auth.NewLoginController(auth.NewGate(), logger)

	console := handler.NewConsole(logger, client, web.Templates, verifier, guard, login, handler.Options{
		Brand:          cfg.Brand,
		GuardCutover:   cfg.GuardCutover,
		DefaultCutover: cfg.DefaultCutover,
		FirstBatchYear: cfg.FirstBatchYear,
		CountryCode:    cfg.CountryCode,
		MaxImageBytes:  cfg.MaxImageMB << 20,
	})

	return &App{
		config:   cfg,
		logger:   logger,
		store:    st,
		verifier: verifier,
		guard:    guard,
		console:  console,
	}
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	app.warnCutovers()

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "backend", app.config.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		app.purgeLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or parent context to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

// purgeLoop deletes expired sessions now and then every purgeInterval until
// ctx is done.
func (app *App) purgeLoop(ctx context.Context) {
	app.purgeExpired(ctx)

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.purgeExpired(ctx)
		}
	}
}

func (app *App) purgeExpired(ctx context.Context) {
	n, err := app.store.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			app.logger.Error("sessions: purge failed", "err", err)
		}
		return
	}
	if n > 0 {
		app.logger.Info("sessions: purged expired", "count", n)
	}
}

// warnCutovers logs when access checks and form defaults use different
// cutover months and today falls between them, so operators know the
// tokens currently disagree.
func (app *App) warnCutovers() {
	if !app.config.CutoversDiffer() {
		return
	}
	now := app.guard.Now()
	guardTok := batch.Current(now, app.config.GuardCutover)
	defaultTok := batch.Current(now, app.config.DefaultCutover)
	attrs := []any{
		"guard_cutover", app.config.GuardCutover.String(),
		"default_cutover", app.config.DefaultCutover.String(),
	}
	if guardTok != defaultTok {
		app.logger.Warn("batch cutovers disagree today", append(attrs, "guard_batch", guardTok, "default_batch", defaultTok)...)
		return
	}
	app.logger.Info("batch cutovers differ", attrs...)
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
