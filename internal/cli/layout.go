package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strataviz/strataflow/pkg/graphio"
	"github.com/strataviz/strataflow/pkg/pipeline"
	"github.com/strataviz/strataflow/pkg/tree"
)

// layoutCommand creates the layout command for computing sankey coordinates.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		dataPath    string
		filterFlags []string
		output      string
		noCache     bool
		refresh     bool
	)
	opts := pipeline.Options{
		Width:  pipeline.DefaultWidth,
		Height: pipeline.DefaultHeight,
	}

	cmd := &cobra.Command{
		Use:   "layout [tree.json]",
		Short: "Compute sankey layout for a classified tree",
		Long: `Compute sankey layout for a classified tree.

The layout command classifies the dataset through the tree and computes
pixel coordinates for every node and link: columns ordered to minimize
edge crossings, heights proportional to item counts. The output is a
layout.json file consumable by any sankey renderer.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(filterFlags)
			if err != nil {
				return err
			}
			opts.Filters = filters
			opts.SkipMissing = true
			opts.Refresh = refresh
			return c.runLayout(cmd.Context(), args[0], dataPath, opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "dataset file (JSON records)")
	cmd.Flags().StringArrayVarP(&filterFlags, "filter", "f", nil, "label filter key=value[,value] (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().Float64Var(&opts.Width, "width", opts.Width, "frame width")
	cmd.Flags().Float64Var(&opts.Height, "height", opts.Height, "frame height")
	cmd.Flags().Float64Var(&opts.NodeWidth, "node-width", opts.NodeWidth, "node rectangle width")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// runLayout runs the full classify-then-layout pipeline and writes output.
func (c *CLI) runLayout(ctx context.Context, input, dataPath string, opts pipeline.Options, output string, noCache bool) error {
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

	spinner := newSpinnerWithContext(ctx, "Computing sankey layout...")
	spinner.Start()

	result, err := runner.Execute(ctx, tr, ds, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outPath := outputPath(output, input, ".layout.json")
	out := map[string]any{
		"sankey": result.Sankey,
		"layout": result.Layout,
	}
	if err := writeJSONFile(out, outPath); err != nil {
		return fmt.Errorf("write output %s: %w", outPath, err)
	}

	printSuccess("Layout complete")
	printFile(outPath)
	printStats(result.Stats.ItemCount, result.Stats.NodeCount, result.CacheInfo.LayoutHit)
	printDetail("%d crossings", result.Layout.Crossings)

	return nil
}
