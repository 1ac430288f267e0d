package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	taskgrid "github.com/vk/taskgrid"
	"github.com/vk/taskgrid/gridfile"
	"github.com/vk/taskgrid/internal/cli"
	"github.com/vk/taskgrid/internal/ctxlog"
)

// main is the entrypoint for the taskgrid CLI.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := cli.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	reg := gridfile.NewRegistry()
	if err := gridfile.RegisterBuiltins(reg); err != nil {
		return err
	}

	spec, err := gridfile.Load(cfg.GridPath, reg)
	if err != nil {
		return err
	}

	g := taskgrid.New(cfg.Workers)
	defer g.Close()

	if cfg.MetricsPort > 0 {
		stopMetrics := serveMetrics(g, cfg.MetricsPort, logger)
		defer stopMetrics()
	}

	nodes, err := spec.Build(g)
	if err != nil {
		return err
	}

	if g.HasCycle() {
		return &cli.ExitError{Code: 1, Message: "grid has a dependency cycle; refusing to run"}
	}

	logger.Info("Executing grid.", "path", cfg.GridPath, "tasks", len(nodes), "workers", cfg.Workers)
	if err := g.Execute(ctx); err != nil {
		return err
	}

	failed := 0
	for name, node := range nodes {
		if err := node.Err(); err != nil {
			failed++
			logger.Warn("Task failed.", "task", name, "error", err)
			continue
		}
		if v, err := node.Value(); err == nil {
			logger.Info("Task finished.", "task", name, "result", v)
		}
	}

	if failed > 0 {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%d task(s) failed", failed)}
	}
	return nil
}

// serveMetrics registers the pool's instruments on a fresh registry and
// serves them on /metrics. The returned function shuts the server down.
func serveMetrics(g *taskgrid.Graph, port int, logger *slog.Logger) func() {
	promReg := prometheus.NewRegistry()
	g.Pool().RegisterMetrics(promReg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed.", "error", err)
		}
	}()

	return func() { _ = srv.Close() }
}
