package main

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

	"syncqueue-client/internal/api"
	"syncqueue-client/internal/logger"
	"syncqueue-client/internal/sync"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local sync status dashboard",
		Long: `Serve the sync status view over HTTP on server.host:server.port.

The queue is loaded once at startup and then refreshed on scheduler.interval
when scheduler.enabled is set. Every write made through the dashboard reloads
the view.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("Starting sync status dashboard", zap.String("backend", a.cfg.API.BaseURL))

	feed := sync.NewFeed(a.cfg.View.FeedSize)
	redirects := &sync.RedirectRecorder{}
	busy := &sync.BusyCounter{}
	manager := sync.NewManager(a.client, sync.Notifiers{feed, sync.LogNotifier{}}, busy, redirects, a.viewOptions())

	// A failed first load is not fatal; the dashboard shows the notice.
	if err := manager.Load(ctx); err != nil {
		logger.Log.Warn("Initial load failed", zap.Error(err))
	}

	scheduler := sync.NewScheduler(a.cfg.Scheduler, manager)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	handler := api.NewHandler(manager, feed, redirects, busy, a.cfg.Server)

	serverAddr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  a.cfg.Server.GetReadTimeout(),
		WriteTimeout: a.cfg.Server.GetWriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
