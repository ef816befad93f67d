package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"accounts/backend/internal/config"
	"accounts/backend/internal/httpserver"
	"accounts/backend/internal/infrastructure/password"
	"accounts/backend/internal/infrastructure/postgres"
	"accounts/backend/internal/infrastructure/token"
	"accounts/backend/internal/logging"
	"accounts/backend/internal/observability"
	authusecase "accounts/backend/internal/usecase/auth"
	orgusecase "accounts/backend/internal/usecase/organisation"
	userusecase "accounts/backend/internal/usecase/user"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := logging.Setup("accounts", version, cfg.LogFormat, cmd.ErrOrStderr())
			slog.SetDefault(logger)
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	authCfg, err := cfg.Auth()
	if err != nil {
		return err
	}

	if cfg.MigrateOnStart {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	tokenManager, err := token.NewJWTManager(authCfg)
	if err != nil {
		return err
	}
	hasher := password.NewArgon2Hasher(authCfg)
	users := postgres.NewUserRepository(db.Pool)
	orgs := postgres.NewOrganisationRepository(db.Pool)

	server := httpserver.NewServer(
		cfg,
		logger,
		observability.NewMetrics(),
		tokenManager,
		authusecase.NewService(users, hasher, tokenManager, logger),
		userusecase.NewService(users),
		orgusecase.NewService(orgs, users),
	)

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(stopCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	logger.Info("graceful shutdown completed")
	return nil
}
