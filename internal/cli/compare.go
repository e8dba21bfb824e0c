package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strataviz/strataflow/pkg/flow"
	"github.com/strataviz/strataflow/pkg/graphio"
	"github.com/strataviz/strataflow/pkg/pipeline"
	"github.com/strataviz/strataflow/pkg/tree"
)

// compareCommand creates the compare command for matching flows between
// two trees.
func (c *CLI) compareCommand() *cobra.Command {
	var (
		dataPath    string
		filterFlags []string
		output      string
		noCache     bool
	)

	cmd := &cobra.Command{
		Use:   "compare [left.json] [right.json]",
		Short: "Match item flows between two classification trees",
		Long: `Match item flows between two classification trees.

The compare command classifies the same dataset through both trees, aligns
their populations at the deepest stage the trees share, and grades every
cross-tree edge by how much the two classifications disagree. A high
consistency rate means the trees sort items the same way despite their
structural differences.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(filterFlags)
			if err != nil {
				return err
			}
			opts := pipeline.Options{Filters: filters, SkipMissing: true}
			return c.runCompare(cmd.Context(), args[0], args[1], dataPath, opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "dataset file (JSON records)")
	cmd.Flags().StringArrayVarP(&filterFlags, "filter", "f", nil, "label filter key=value[,value] (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "comparison.json", "output file")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// runCompare classifies both trees and writes the matched flow edges.
func (c *CLI) runCompare(ctx context.Context, leftPath, rightPath, dataPath string, opts pipeline.Options, output string, noCache bool) error {
	catalog := tree.DefaultCatalog()
	left, err := graphio.ReadTreeFile(leftPath, catalog)
	if err != nil {
		return fmt.Errorf("load tree %s: %w", leftPath, err)
	}
	right, err := graphio.ReadTreeFile(rightPath, catalog)
	if err != nil {
		return fmt.Errorf("load tree %s: %w", rightPath, err)
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

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, "Matching flows...")
	spinner.Start()

	leftRes, err := runner.Classify(ctx, left, ds, opts)
	if err != nil {
		spinner.StopWithError("Comparison failed")
		return fmt.Errorf("classify %s: %w", leftPath, err)
	}
	rightRes, err := runner.Classify(ctx, right, ds, opts)
	if err != nil {
		spinner.StopWithError("Comparison failed")
		return fmt.Errorf("classify %s: %w", rightPath, err)
	}

	comparison, cacheHit, err := runner.CompareWithCacheInfo(ctx, left, right, leftRes, rightRes, opts)
	if err != nil {
		spinner.StopWithError("Comparison failed")
		return fmt.Errorf("compare: %w", err)
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Matched %d edges", len(comparison.Edges)))

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := writeJSONFile(comparison, output); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	printSuccess("Comparison complete")
	printFile(output)
	printStats(ds.Filter(opts.Filters).Len(), 0, cacheHit)
	if comparison.Summary != nil {
		printNewline()
		printComparisonSummary(comparison)
	}

	return nil
}

// printComparisonSummary shows the edge triviality breakdown.
func printComparisonSummary(cmp graphio.Comparison) {
	grades := map[flow.Triviality]int{}
	for _, e := range cmp.Edges {
		grades[e.Triviality]++
	}

	printKeyValue("edges", fmt.Sprintf("%d", cmp.Summary.TotalEdges))
	printKeyValue("consistent", fmt.Sprintf("%d", cmp.Summary.Consistent))

	rate := fmt.Sprintf("%.1f%%", cmp.Summary.ConsistencyRate)
	if cmp.Summary.ConsistencyRate >= 50 {
		printKeyValue("consistency", StyleSuccess.Render(rate))
	} else {
		printKeyValue("consistency", StyleWarning.Render(rate))
	}

	for _, grade := range []flow.Triviality{flow.Trivial, flow.Minor, flow.Moderate, flow.Major, flow.DifferentStage} {
		if n := grades[grade]; n > 0 {
			printDetail("%-14s %d", grade.String(), n)
		}
	}
}
