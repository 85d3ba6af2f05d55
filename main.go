// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"traceidle/internal/collectors/tracestats"
	"traceidle/internal/config"
	"traceidle/internal/logger"
	"traceidle/internal/report"
	"traceidle/internal/runner"
)

var (
	version = "0.1.0"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to configuration file (optional).")
		topEvents     = flag.Int("top", -1, "Number of optimization candidates to report (overrides config).")
		serveMetrics  = flag.Bool("serve", false, "Serve summary metrics over HTTP after analysis.")
		listenAddress = flag.String("web.listen-address", "", "Metrics listen address (overrides config).")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Command line flags override the config file.
	if *topEvents >= 0 {
		cfg.Analysis.TopEvents = *topEvents
	}
	if *serveMetrics {
		cfg.Server.Enabled = true
	}
	if *listenAddress != "" {
		cfg.Server.ListenAddress = *listenAddress
	}

	if err := logger.Setup(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure loggers: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	paths := flag.Args()
	if len(paths) == 0 {
		log.Fatal().Msg("No trace files given; usage: traceidle [flags] trace.json ...")
	}

	log.Info().
		Str("version", version).
		Int("traces", len(paths)).
		Int("top_events", cfg.Analysis.TopEvents).
		Int32("drain_threshold", cfg.Analysis.DrainThreshold).
		Msg("Starting trace idle-time analysis")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	run := runner.New(cfg)
	if err := run.Run(ctx, paths); err != nil {
		log.Fatal().Err(err).Msg("Trace analysis failed")
	}

	sourcePattern := regexp.MustCompile(cfg.Analysis.SourcePattern)
	for _, path := range paths {
		res, ok := run.Result(path)
		if !ok {
			continue
		}
		fmt.Printf("=== %s ===\n", path)
		if _, err := report.WriteOptimizable(os.Stdout, res.Eval, cfg.Analysis.TopEvents, sourcePattern); err != nil {
			log.Error().Err(err).Str("trace", path).Msg("Failed to write report")
		}
	}

	if cfg.Server.Enabled {
		serve(ctx, cfg, run)
	}
}

// serve exposes the per-trace summary metrics until the context is
// cancelled by a signal.
func serve(ctx context.Context, cfg *config.AppConfig, run *runner.Runner) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(tracestats.NewCollector(run))

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.Server.ListenAddress,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	log.Info().
		Str("listen_address", cfg.Server.ListenAddress).
		Str("metrics_path", cfg.Server.MetricsPath).
		Msg("Serving summary metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Metrics server failed")
	}
}
