package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-unfurler/internal/api"
	"github.com/JakeFAU/link-unfurler/internal/policy/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the 'serve' subcommand that runs the HTTP API.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the preview HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), appInstance)
		},
	}
}

func buildAPIServer(app *App) *api.Server {
	opts := api.Options{
		AllowedOrigins: app.Config.Server.AllowedOrigins,
		RequestTimeout: app.Config.RequestTimeout(),
	}
	if app.Config.RateLimit.PerHostRPS > 0 {
		opts.Limiter = ratelimit.New(ratelimit.Config{
			PerHostRPS: app.Config.RateLimit.PerHostRPS,
			Burst:      app.Config.RateLimit.Burst,
		})
	}
	return api.NewServer(app.Service, app.Policy, opts, app.Logger)
}

func runServer(parent context.Context, app *App) error {
	logger := app.Logger
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if app.Config.Blocklist.Watch {
		go func() {
			if err := app.Blocklist.Watch(ctx); err != nil {
				logger.Error("blocklist watch stopped", zap.Error(err))
			}
		}()
	}

	apiServer := buildAPIServer(app)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Config.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", app.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")
	apiServer.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
