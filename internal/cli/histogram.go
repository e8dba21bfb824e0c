package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strataviz/strataflow/pkg/dataset"
)

// histogramCommand creates the histogram command for metric summaries.
func (c *CLI) histogramCommand() *cobra.Command {
	var (
		dataPath    string
		filterFlags []string
		bins        int
	)

	cmd := &cobra.Command{
		Use:   "histogram [metric]",
		Short: "Summarize a metric column in the terminal",
		Long: `Summarize a metric column in the terminal.

The histogram command bins the metric values of the (optionally filtered)
dataset and draws the distribution as horizontal bars, along with summary
statistics. With --bins 0 the bin count is chosen automatically from the
sample size and spread.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(filterFlags)
			if err != nil {
				return err
			}
			return c.runHistogram(args[0], dataPath, filters, bins)
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "dataset file (JSON records)")
	cmd.Flags().StringArrayVarP(&filterFlags, "filter", "f", nil, "label filter key=value[,value] (repeatable)")
	cmd.Flags().IntVarP(&bins, "bins", "b", 0, "number of bins (0 = automatic)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// barWidth is the character width of the longest histogram bar.
const barWidth = 40

func (c *CLI) runHistogram(metric, dataPath string, filters dataset.Filters, bins int) error {
	ds, err := loadDataset(dataPath)
	if err != nil {
		return err
	}
	view := ds.Filter(filters)

	h, err := view.Histogram(metric, bins)
	if err != nil {
		return fmt.Errorf("histogram %s: %w", metric, err)
	}

	fmt.Println(StyleTitle.Render(metric))
	printNewline()

	maxCount := 0
	for _, n := range h.Counts {
		if n > maxCount {
			maxCount = n
		}
	}
	for i, n := range h.Counts {
		width := 0
		if maxCount > 0 {
			width = n * barWidth / maxCount
		}
		label := fmt.Sprintf("[%9.4g, %9.4g)", h.Edges[i], h.Edges[i+1])
		fmt.Printf("  %s %s %s\n",
			StyleDim.Render(label),
			styleBar.Render(strings.Repeat("█", width)),
			StyleValue.Render(fmt.Sprintf("%d", n)))
	}

	printNewline()
	printKeyValue("samples", fmt.Sprintf("%d", h.Total))
	printKeyValue("min", fmt.Sprintf("%g", h.Stats.Min))
	printKeyValue("max", fmt.Sprintf("%g", h.Stats.Max))
	printKeyValue("mean", fmt.Sprintf("%g", h.Stats.Mean))
	printKeyValue("median", fmt.Sprintf("%g", h.Stats.Median))
	printKeyValue("std", fmt.Sprintf("%g", h.Stats.Std))

	return nil
}
