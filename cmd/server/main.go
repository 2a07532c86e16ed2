package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"versioned-notes-server/internal/config"
	"versioned-notes-server/internal/handler"
	"versioned-notes-server/internal/logger"
	"versioned-notes-server/internal/middleware"
	"versioned-notes-server/internal/repository/backend"
	"versioned-notes-server/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close storage backend")
		}
	}()

	authService := service.NewAuthService(store.Accounts, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	noteService := service.NewNoteService(store.Accounts, store.Notes)
	mediaService := service.NewMediaService(cfg.Media.Dir, cfg.Media.MaxBytes, log.With().Str("component", "media").Logger())

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute)
	}

	router := handler.NewRouter(handler.Routes{
		Auth:          handler.NewAuthHandler(authService),
		Notes:         handler.NewNoteHandler(noteService),
		Media:         handler.NewMediaHandler(mediaService, cfg.Media.MaxBytes),
		Authenticator: authService,
		RateLimiter:   limiter,
		CORS:          cfg.CORS,
		UploadsDir:    mediaService.Dir(),
		Backend:       store.Name,
		Log:           log,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Server.Env).Str("backend", store.Name).Msg("starting versioned notes server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}
