// Package main is the entry point for the visionflow-core daemon: it keeps
// the tool catalog current from manifests, executes pipeline definitions
// dropped into the spool directory, and serves metrics and health endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/visionflowai/visionflow-oss/internal/governance"
	"github.com/visionflowai/visionflow-oss/pkg/catalog"
	"github.com/visionflowai/visionflow-oss/pkg/config"
	"github.com/visionflowai/visionflow-oss/pkg/domain"
	"github.com/visionflowai/visionflow-oss/pkg/engine"
	"github.com/visionflowai/visionflow-oss/pkg/graph"
	"github.com/visionflowai/visionflow-oss/pkg/logging"
	"github.com/visionflowai/visionflow-oss/pkg/policy"
	"github.com/visionflowai/visionflow-oss/pkg/telemetry"
	"github.com/visionflowai/visionflow-oss/pkg/tools"
)

const defaultConfigPath = "visionflow.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	// The default config path is optional; an explicitly named file is not.
	path := *configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := logging.NewLogger(logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	slog.SetDefault(logger)

	logger.Info("Starting visionflow-core", "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "visionflow-core",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	prom := telemetry.NewMetrics()
	registry := telemetry.NewRegistry(prom)
	cat := catalog.New(registry)

	if cfg.Catalog.Builtins {
		if err := tools.RegisterBuiltins(cat); err != nil {
			logger.Error("Failed to register builtin tools", "error", err)
			os.Exit(1)
		}
	}
	if cfg.Catalog.ManifestDir != "" {
		entries, err := catalog.LoadManifestDir(cfg.Catalog.ManifestDir)
		if err != nil {
			logger.Error("Failed to load manifest directory", "dir", cfg.Catalog.ManifestDir, "error", err)
			os.Exit(1)
		}
		if err := cat.ApplyManifest(entries); err != nil {
			logger.Error("Failed to apply manifests", "error", err)
			os.Exit(1)
		}
		logger.Info("Tool manifests loaded", "dir", cfg.Catalog.ManifestDir, "tools", len(entries))
	}
	if cfg.Catalog.Manifest != "" {
		provider, err := catalog.NewManifestProvider(cfg.Catalog.Manifest, logger)
		if err != nil {
			logger.Error("Failed to start manifest provider", "path", cfg.Catalog.Manifest, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := provider.Close(); err != nil {
				logger.Error("Failed to close manifest provider", "error", err)
			}
		}()
		go watchManifests(ctx, provider, cat, logger)
	}

	admission, err := loadAdmissionPolicy(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to load admission policy", "error", err)
		os.Exit(1)
	}

	runner := engine.NewToolRunner(engine.ToolRunnerConfig{
		Catalog: cat,
		Metrics: registry,
		Breakers: governance.NewBreakerManager(governance.BreakerConfig{
			MaxFailures: cfg.Engine.BreakerMaxFailures,
			CoolDown:    time.Duration(cfg.Engine.BreakerCoolDownMS) * time.Millisecond,
		}),
		Logger: logger,
	})
	executor := engine.NewExecutor(engine.ExecutorConfig{
		Runner:         runner,
		DefaultTimeout: time.Duration(cfg.Engine.DefaultTimeoutMS) * time.Millisecond,
		Logger:         logger,
	})

	if cfg.Pipeline.Dir != "" {
		go watchPipelineSpool(ctx, cfg.Pipeline.Dir, cat, admission, executor, logger)
	}

	server := startServer(cfg.Metrics.Address, prom, logger)

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("Telemetry shutdown failed", "error", err)
	}
}

// watchManifests applies manifest updates to the catalog as they arrive.
func watchManifests(ctx context.Context, provider *catalog.ManifestProvider, cat *catalog.Catalog, logger *slog.Logger) {
	updates := provider.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case entries, ok := <-updates:
			if !ok {
				return
			}
			if len(entries) == 0 {
				continue
			}
			if err := cat.ApplyManifest(entries); err != nil {
				logger.Error("Failed to apply manifest update", "error", err)
				continue
			}
			logger.Info("Catalog updated from manifest", "tools", len(entries))
		}
	}
}

// loadAdmissionPolicy builds the admission engine from the configured rego
// directory. A missing directory disables admission entirely.
func loadAdmissionPolicy(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*policy.Engine, error) {
	if cfg.Policy.Dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(cfg.Policy.Dir)
	if err != nil {
		return nil, err
	}
	modules := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".rego" {
			continue
		}
		path := filepath.Join(cfg.Policy.Dir, entry.Name())
		// #nosec G304 -- Policy directory is configured by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		modules[entry.Name()] = string(data)
	}
	if len(modules) == 0 {
		logger.Warn("Policy directory contains no rego modules", "dir", cfg.Policy.Dir)
		return nil, nil
	}

	admission, err := policy.NewEngine(ctx, policy.Options{
		Entrypoint: cfg.Policy.Entrypoint,
		Modules:    modules,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Admission policy loaded", "dir", cfg.Policy.Dir, "modules", len(modules))
	return admission, nil
}

// watchPipelineSpool executes pipeline definition files written into the
// spool directory: admission first, then validation, then execution.
func watchPipelineSpool(ctx context.Context, dir string, cat *catalog.Catalog, admission *policy.Engine, executor *engine.Executor, logger *slog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("Failed to create spool watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		logger.Error("Failed to watch spool directory", "dir", dir, "error", err)
		return
	}
	logger.Info("Watching pipeline spool", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			runPipelineFile(ctx, event.Name, cat, admission, executor, logger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error("Spool watcher error", "error", err)
		}
	}
}

func runPipelineFile(ctx context.Context, path string, cat *catalog.Catalog, admission *policy.Engine, executor *engine.Executor, logger *slog.Logger) {
	// #nosec G304 -- Spool directory is configured by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("Failed to read pipeline definition", "path", path, "error", err)
		return
	}

	pipeline, err := domain.DecodePipeline(data)
	if err != nil {
		logger.Error("Failed to decode pipeline definition", "path", path, "error", err)
		return
	}
	if pipeline.ID == "" {
		pipeline.ID = filepath.Base(path)
	}

	if admission != nil {
		decision, err := admission.Evaluate(ctx, pipeline)
		if err != nil {
			logger.Error("Admission evaluation failed", "pipeline_id", pipeline.ID, "error", err)
			return
		}
		if !decision.Allow {
			logger.Warn("Pipeline denied by admission policy",
				"pipeline_id", pipeline.ID, "reasons", decision.Reasons)
			return
		}
	}

	validation := graph.Validate(pipeline, cat)
	if !validation.Valid {
		logger.Warn("Pipeline failed validation", "pipeline_id", pipeline.ID, "errors", len(validation.Errors))
		for _, issue := range validation.Errors {
			logger.Warn("Validation issue", "pipeline_id", pipeline.ID, "node_id", issue.NodeID, "reason", issue.Reason)
		}
		return
	}

	report := executor.Execute(ctx, pipeline, map[string]any{}, validation)
	payload, _ := json.Marshal(report)
	logger.Info("Pipeline run finished",
		"pipeline_id", pipeline.ID,
		"run_id", report.RunID,
		"ok", report.OK,
		"report", string(payload),
	)
}

// startServer exposes the Prometheus scrape endpoint and a health probe.
func startServer(addr string, prom *telemetry.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(mux, "visionflow.admin"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Admin server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin server failed", "error", err)
		}
	}()

	return server
}
