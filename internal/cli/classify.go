package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strataviz/strataflow/pkg/graphio"
	"github.com/strataviz/strataflow/pkg/pipeline"
	"github.com/strataviz/strataflow/pkg/tree"
)

// classifyCommand creates the classify command for routing a dataset
// through a classification tree.
func (c *CLI) classifyCommand() *cobra.Command {
	var (
		dataPath    string
		filterFlags []string
		output      string
		noCache     bool
		refresh     bool
		skipMissing bool
	)

	cmd := &cobra.Command{
		Use:   "classify [tree.json]",
		Short: "Route a dataset through a classification tree",
		Long: `Route a dataset through a classification tree.

The classify command reads a tree definition (produced by 'build' or
written by hand), routes every dataset record through it, and writes the
resulting flow graph as a sankey.json file. Node and link counts in the
output reflect how the filtered population splits at each stage.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(filterFlags)
			if err != nil {
				return err
			}
			opts := pipeline.Options{
				Filters:     filters,
				SkipMissing: skipMissing,
				Refresh:     refresh,
			}
			return c.runClassify(cmd.Context(), args[0], dataPath, opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "dataset file (JSON records)")
	cmd.Flags().StringArrayVarP(&filterFlags, "filter", "f", nil, "label filter key=value[,value] (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.sankey.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().BoolVar(&skipMissing, "skip-missing", true, "skip records lacking a required metric instead of failing")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// runClassify loads inputs, runs the classifier, and writes the sankey output.
func (c *CLI) runClassify(ctx context.Context, input, dataPath string, opts pipeline.Options, output string, noCache bool) error {
	tr, err := graphio.ReadTreeFile(input, tree.DefaultCatalog())
	if err != nil {
		return fmt.Errorf("load tree %s: %w", input, err)
	}
	ds, err := loadDataset(dataPath)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, "Classifying dataset...")
	spinner.Start()

	_, sankey, cacheHit, err := runner.ClassifyWithCacheInfo(ctx, tr, ds, opts)
	if err != nil {
		spinner.StopWithError("Classification failed")
		return fmt.Errorf("classify: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outPath := outputPath(output, input, ".sankey.json")
	if err := writeJSONFile(sankey, outPath); err != nil {
		return fmt.Errorf("write output %s: %w", outPath, err)
	}

	printSuccess("Classification complete")
	printFile(outPath)
	printStats(sankey.Metadata.Total, len(sankey.Nodes), cacheHit)
	printNewline()
	printNextStep("Layout", "strataflow layout "+input+" -d "+dataPath)

	return nil
}
