package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/metrics"
	"github.com/aretw0/botflow/internal/presentation/tui"
	botflowhttp "github.com/aretw0/botflow/pkg/adapters/http"
	"github.com/aretw0/botflow/pkg/debug"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the debugger HTTP server",
	Long: `Starts the debug API over HTTP: session control under /api/debug, live session
diffs over Server-Sent Events and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.cfg.Server.Addr = addr
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}

		streams := botflowhttp.NewStreamManager()
		registry := botflow.New(a.options(
			botflow.WithLifecycleHooks(m.Hooks()),
			botflow.WithLifecycleHooks(streams.Hooks()),
		)...)
		if err := metrics.RegisterStats(reg, registry); err != nil {
			return err
		}

		handler := botflowhttp.NewHandler(registry,
			botflowhttp.WithLogger(a.logger),
			botflowhttp.WithStreams(streams),
			botflowhttp.WithGatherer(reg),
		)

		srv := &http.Server{
			Addr:              a.cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go reap(ctx, registry, a.cfg.Debug.ReapInterval, a.cfg.Debug.SessionMaxAge)

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			tui.PrintBanner(os.Stderr)
			a.logger.Info("Starting botflow server", "addr", srv.Addr, "bots_dir", a.cfg.Storage.BotsDir, "store", a.cfg.Storage.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			a.logger.Info("Shutting down", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("failed to close server: %w", err)
				}
			}
			a.logger.Info("botflow server stopped gracefully")
		}
		return nil
	},
}

// reap drops finished sessions idle for longer than maxAge, every interval.
func reap(ctx context.Context, registry *debug.Registry, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Reap(maxAge)
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
}
