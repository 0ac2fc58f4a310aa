// Package main is the visionflow command line interface: it validates and
// runs pipeline definitions against the local tool catalog and lists the
// registered tools. Output is the engine's wire shape so the CLI doubles as
// a debugging harness for anything that talks to the daemon.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/visionflowai/visionflow-oss/pkg/catalog"
	"github.com/visionflowai/visionflow-oss/pkg/domain"
	"github.com/visionflowai/visionflow-oss/pkg/engine"
	"github.com/visionflowai/visionflow-oss/pkg/graph"
	"github.com/visionflowai/visionflow-oss/pkg/logging"
	"github.com/visionflowai/visionflow-oss/pkg/telemetry"
	"github.com/visionflowai/visionflow-oss/pkg/tools"
)

var (
	manifestPath string
	manifestDir  string
	noBuiltins   bool
	logLevel     string
)

func main() {
	root := &cobra.Command{
		Use:           "visionflow",
		Short:         "Validate and run tool pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&manifestPath, "manifest", "", "Tool manifest file to load")
	root.PersistentFlags().StringVar(&manifestDir, "manifest-dir", "", "Directory of tool manifests to load")
	root.PersistentFlags().BoolVar(&noBuiltins, "no-builtins", false, "Skip registration of the builtin tools")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(newValidateCmd(), newRunCmd(), newToolsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newValidateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline definition without executing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := loadPipeline(file)
			if err != nil {
				return err
			}
			cat, err := buildCatalog(nil)
			if err != nil {
				return err
			}

			result := graph.Validate(pipeline, cat)
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if !result.Valid {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Pipeline definition file (JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		file      string
		inputFile string
		timeoutMS int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate and execute a pipeline definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := loadPipeline(file)
			if err != nil {
				return err
			}
			initialInput, err := loadInput(inputFile)
			if err != nil {
				return err
			}

			registry := telemetry.NewRegistry(nil)
			cat, err := buildCatalog(registry)
			if err != nil {
				return err
			}

			validation := graph.Validate(pipeline, cat)
			if !validation.Valid {
				if err := printJSON(cmd, validation); err != nil {
					return err
				}
				os.Exit(1)
			}

			logger := logging.NewLogger(logging.Config{Level: logLevel, Pretty: true})
			runner := engine.NewToolRunner(engine.ToolRunnerConfig{
				Catalog: cat,
				Metrics: registry,
				Logger:  logger,
			})
			executor := engine.NewExecutor(engine.ExecutorConfig{
				Runner:         runner,
				DefaultTimeout: time.Duration(timeoutMS) * time.Millisecond,
				Logger:         logger,
			})

			report := executor.Execute(cmd.Context(), pipeline, initialInput, validation)
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.OK {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Pipeline definition file (JSON)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Initial input file (JSON object)")
	cmd.Flags().IntVar(&timeoutMS, "timeout-ms", 60_000, "Default per-node timeout in milliseconds")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered tools and their declared types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := buildCatalog(nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, cat.List())
		},
	})
	return cmd
}

// buildCatalog assembles the CLI's local catalog from the builtin tools and
// any manifests named on the command line.
func buildCatalog(registry *telemetry.Registry) (*catalog.Catalog, error) {
	cat := catalog.New(registry)

	if !noBuiltins {
		if err := tools.RegisterBuiltins(cat); err != nil {
			return nil, err
		}
	}
	if manifestDir != "" {
		entries, err := catalog.LoadManifestDir(manifestDir)
		if err != nil {
			return nil, err
		}
		if err := cat.ApplyManifest(entries); err != nil {
			return nil, err
		}
	}
	if manifestPath != "" {
		entries, err := catalog.LoadManifestFile(manifestPath)
		if err != nil {
			return nil, err
		}
		if err := cat.ApplyManifest(entries); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func loadPipeline(path string) (*domain.Pipeline, error) {
	// #nosec G304 -- File path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline definition: %w", err)
	}
	return domain.DecodePipeline(data)
}

func loadInput(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	// #nosec G304 -- File path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse input file: %w", err)
	}
	return input, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}
