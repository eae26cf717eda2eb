package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentrouter/internal/config"
	"github.com/haasonsaas/agentrouter/internal/observability"
	"github.com/haasonsaas/agentrouter/internal/orchestrator"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentrouter orchestrator",
		Long: `Start the agentrouter orchestrator with all configured backends.

The server will:
1. Load and validate configuration
2. Connect every configured LLM backend and register its models
3. Start the confirmation sweeper for pending tool approvals
4. Expose Prometheus metrics and OTLP traces

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  agentrouter serve

  # Start with a specific config file
  agentrouter serve --config /etc/agentrouter/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	slog.Info("starting agentrouter", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sys, err := buildSystem(cfg)
	if err != nil {
		return fmt.Errorf("build system: %w", err)
	}
	defer sys.close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := sys.orchestrator.HealthCheck(r.Context(), adapterAvailability(ctx, sys))
		if report.Status != orchestrator.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "status=%s models=%d tools=%d\n", report.Status, report.RegisteredModels, report.RegisteredTools)
	})
	mux.HandleFunc("/timeline/", func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Path[len("/timeline/"):]
		if runID == "" {
			http.Error(w, "missing run id", http.StatusBadRequest)
			return
		}
		events, err := sys.events.GetByRunID(runID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(events) == 0 {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, observability.FormatTimeline(observability.BuildTimeline(events)))
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("observability endpoint listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		return fmt.Errorf("observability server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("observability server shutdown error", "error", err)
	}

	slog.Info("agentrouter stopped")
	return nil
}

func adapterAvailability(ctx context.Context, sys *system) map[string]bool {
	availability := make(map[string]bool, len(sys.adapters))
	for id, adapter := range sys.adapters {
		availability[id] = adapter.IsAvailable(ctx)
	}
	return availability
}
