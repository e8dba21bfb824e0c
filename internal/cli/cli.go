// Package cli implements the strataflow command-line interface.
//
// This package provides commands for classifying datasets through
// classification trees, computing sankey layouts, comparing trees, and
// running the HTTP server. The CLI is built using cobra and supports
// verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - classify: Route a dataset through a tree and emit the flow graph
//   - layout: Compute sankey coordinates for a classified tree
//   - compare: Match flows between two trees over the same dataset
//   - histogram: Summarize a metric column in the terminal
//   - build: Interactively grow a tree stage by stage
//   - serve: Run the HTTP API server
//   - cache: Manage the local result cache
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/strataviz/strataflow/pkg/buildinfo"
	"github.com/strataviz/strataflow/pkg/cache"
	"github.com/strataviz/strataflow/pkg/dataset"
	"github.com/strataviz/strataflow/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "strataflow"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "strataflow",
		Short:        "Strataflow classifies datasets into hierarchical flow diagrams",
		Long:         `Strataflow routes scored datasets through configurable classification trees and lays the resulting flows out as layered sankey diagrams, making it easier to see how a population splits across successive passes.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.classifyCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.compareCommand())
	root.AddCommand(c.histogramCommand())
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	store, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(store, nil, c.Logger), nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/strataflow/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// loadDataset reads records from a JSON file and builds an in-memory dataset.
func loadDataset(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	records, err := dataset.ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return dataset.New(records), nil
}

// parseFilters turns repeated "key=v1,v2" flag values into dataset filters.
func parseFilters(values []string) (dataset.Filters, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filters := make(dataset.Filters, len(values))
	for _, v := range values {
		key, list, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value[,value]", v)
		}
		filters[key] = append(filters[key], strings.Split(list, ",")...)
	}
	return filters, nil
}

// writeJSONFile marshals v with indentation and writes it to path.
func writeJSONFile(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// outputPath resolves the output flag, deriving a sibling path from the
// input file when the flag is empty.
func outputPath(flag, input, suffix string) string {
	if flag != "" {
		return flag
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + suffix
}
