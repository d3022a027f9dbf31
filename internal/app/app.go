// Package app wires the configured components into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tylerlaw/portfolio/internal/config"
	"github.com/tylerlaw/portfolio/internal/credentials"
	"github.com/tylerlaw/portfolio/internal/database"
	"github.com/tylerlaw/portfolio/internal/gallery"
	"github.com/tylerlaw/portfolio/internal/google"
	"github.com/tylerlaw/portfolio/internal/importer"
	"github.com/tylerlaw/portfolio/internal/media"
	"github.com/tylerlaw/portfolio/internal/server"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// App holds the long-lived components of a running backend.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   database.Store
	storage media.Storage
	auth    *credentials.Provider
	gallery *gallery.Service
	server  *server.Server
}

// New opens the store and media storage, restores credentials and builds the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := database.NewStoreFromConfig(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("database ready", zap.String("type", store.DatabaseType()))

	storage, err := media.NewStorageFromConfig(ctx, cfg.Media)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open media storage: %w", err)
	}

	oauthCfg := credentials.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret,
		cfg.Google.RedirectURL, cfg.Google.ScopeList())
	auth := credentials.NewProvider(oauthCfg, credentials.NewFileStore(cfg.Google.TokenFile), logger)
	if err := auth.Load(); err != nil {
		logger.Warn("stored google credentials unreadable", zap.Error(err))
	}

	client := google.NewClient(auth)
	imp := importer.New(store, storage, client, logger,
		importer.WithTranscoder(media.HEICToJPEG{Quality: cfg.Media.JPEGQuality}),
		importer.WithTokenRefresher(auth))
	svc := gallery.NewService(store, storage, logger)

	opts := server.Options{
		Store:             store,
		Gallery:           svc,
		Importer:          imp,
		Google:            client,
		Auth:              auth,
		Logger:            logger,
		AllowedOrigins:    cfg.Server.Origins(),
		SessionSecret:     cfg.Server.SessionSecret,
		PostLoginRedirect: cfg.Server.PostLoginRedirect,
		SecureCookies:     strings.HasPrefix(cfg.Google.RedirectURL, "https://"),
	}
	if local, ok := storage.(*media.LocalStorage); ok {
		opts.Media = local.Handler()
		opts.MediaPrefix = local.URLPrefix()
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		storage: storage,
		auth:    auth,
		gallery: svc,
		server:  server.New(opts),
	}, nil
}

// Addr is the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Server.Port) }

// Handler is the root HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Addr(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.Bool("google_authenticated", a.auth.IsAuthenticated()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("server exited")
	return nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.store.Close()
}
