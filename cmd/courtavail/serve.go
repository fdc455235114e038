package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "courtavail/internal/log"
	"courtavail/internal/refresh"
	"courtavail/internal/report"
	"courtavail/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI, JSON API and refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			// --listen overrides config file listen if provided.
			if listen != "" {
				a.cfg.Listen = listen
			}
			return serve(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(parent context.Context, a *app) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Serve the last saved report until the first refresh completes.
	if prev, err := report.Load(a.cfg.OutputPath); err == nil {
		a.store.Set(prev, time.Now())
		appLog.Info("previous report restored", "path", a.cfg.OutputPath, "dates", len(prev.Availability))
	}

	runTimeout := time.Duration(a.cfg.Source.TimeoutSeconds)*time.Second + time.Minute
	sched, err := refresh.NewScheduler(a.cfg.RefreshCron, a.loc, a.runner, runTimeout)
	if err != nil {
		return err
	}

	go func() {
		runCtx, runCancel := context.WithTimeout(ctx, runTimeout)
		defer runCancel()
		_, _ = a.runner.Run(runCtx)
	}()
	sched.Start(ctx)

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           web.NewServer(a.cfg, a.store, a.runner, a.metrics, a.loc).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			sched.Stop(context.Background())
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server forced to shutdown", err)
	}
	appLog.Info("courtavail exiting")
	return nil
}
