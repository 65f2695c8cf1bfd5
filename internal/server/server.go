package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dittrime/stride/internal/cache"
	"github.com/dittrime/stride/internal/client/strava"
	"github.com/dittrime/stride/internal/config"
	"github.com/dittrime/stride/internal/oauth"
	"github.com/dittrime/stride/internal/repository"
	"github.com/dittrime/stride/internal/tokenstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

// Run wires the full serving surface from config and blocks until ctx is
// cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	tokens, closeTokens, err := NewTokenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing token store: %w", err)
	}
	defer closeTokens()

	store, closeCache, err := NewCacheStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer closeCache()

	oauthConfig := oauth.NewConfig(cfg.Strava)
	tokenSource := oauth.NewTokenSource(oauthConfig, tokens)
	authenticator := oauth.NewAuthenticator(oauthConfig, tokens)

	client := strava.New(tokenSource,
		strava.WithCache(store, cfg.Cache),
		strava.WithRefresher(tokenSource),
		strava.WithAthleteID(func() int64 { return tokenSource.AthleteID(ctx) }),
		strava.WithTimeout(cfg.Strava.Timeout),
		strava.WithLogger(logger),
	)

	repo := repository.New(client.Activities, logger)

	api := NewHandler(repo, client, store, cfg.Cache.Stats,
		func() int64 { return tokenSource.AthleteID(ctx) })
	auth := NewAuthHandler(authenticator, tokenSource, store)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewMux(api, auth, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting server", slog.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// NewTokenStore selects the credential backend from config. The returned
// func releases backend resources.
func NewTokenStore(ctx context.Context, cfg config.Config) (tokenstore.Store, func(), error) {
	switch cfg.TokenBackend {
	case config.TokenBackendFile:
		store := tokenstore.NewFileStore(filepath.Join(cfg.DataDir, "token.json"))
		return store, func() {}, nil
	case config.TokenBackendSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, nil, err
		}
		store, err := tokenstore.NewSQLiteStore(filepath.Join(cfg.DataDir, "stride.db"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.TokenBackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := tokenstore.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown token backend %q", cfg.TokenBackend)
	}
}

// NewCacheStore selects the response-cache backend from config.
func NewCacheStore(cfg config.Config) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheBackendFS:
		store, err := cache.NewFS(filepath.Join(cfg.DataDir, "cache"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case config.CacheBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		return cache.NewRedis(client), func() { _ = client.Close() }, nil
	case config.CacheBackendMemory:
		store := cache.NewMemory()
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
