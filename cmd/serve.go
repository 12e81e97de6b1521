package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/logging"
	"github.com/teemow/inboxsense/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Routes:
  GET  /                 liveness text
  GET  /auth/google      start the Google consent flow
  GET  /oauth2callback   OAuth redirect target
  POST /analyze-test     analyze a built-in sample email
  POST /analyze          analyze {"subject": ..., "body": ...}
  POST /analyze-latest   analyze the newest unread inbox message

Google OAuth:
  --google-client-id, --google-client-secret and --google-redirect-uri
  OR GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URI.
  The redirect URI must point at /oauth2callback on this server.

AI provider:
  --ai-provider gemini (GEMINI_API_KEY) or openai (OPENAI_API_KEY).

Missing credentials do not stop the server; the affected endpoints answer
with an error until they are provided. Authorizations are kept in memory and
are lost on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	addServeFlags(cmd.Flags())
	return cmd
}

// newLogger builds the process logger and installs it as slog's default.
func newLogger(opts logging.Options) *slog.Logger {
	logger, err := logging.New(opts)
	if err != nil {
		logger.Warn("invalid logging configuration, using defaults", logging.Err(err))
	}
	slog.SetDefault(logger)
	return logger
}

func runServe(cfg Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg.Log)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	a := newApp(ctx, cfg, provider, logger)
	defer a.Close()
	a.reportMissing()

	sessions := server.NewSessionManager(server.SessionConfig{
		PerSession:    cfg.Server.PerSession,
		SecureCookies: cfg.Server.SecureCookies,
		Store:         a.store,
		Metrics:       provider.Metrics(),
		Logger:        logger,
	})

	srv, err := server.New(ctx, server.Config{
		Addr:         cfg.Server.Addr(),
		Auth:         a.flow,
		Pipeline:     a.pipeline,
		Sessions:     sessions,
		AIConfigured: a.analyzer.Configured(),
		Metrics:      provider.Metrics(),
		Logger:       logger,
	})
	if err != nil {
		sessions.Stop()
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 2)

	var metricsServer *server.MetricsServer
	if cfg.Server.MetricsEnabled && provider.ServesPrometheus() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Server.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			sessions.Stop()
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server stopped unexpectedly", logging.Err(runErr))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down metrics server", logging.Err(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down server", logging.Err(err))
	}
	return runErr
}
