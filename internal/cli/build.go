package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/strataviz/strataflow/pkg/graphio"
	"github.com/strataviz/strataflow/pkg/tree"
)

// buildCommand creates the build command for interactive tree construction.
func (c *CLI) buildCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "build [tree.json]",
		Short: "Interactively grow a classification tree",
		Long: `Interactively grow a classification tree.

The build command opens a terminal UI over a tree: pick a leaf, pick a
stage type to split it with, repeat. Press 'w' to write the tree and
quit. With a tree.json argument the existing tree is extended; without
one a fresh root-only tree is started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := tree.DefaultCatalog()

			var tr *tree.Tree
			input := ""
			if len(args) == 1 {
				input = args[0]
				var err error
				tr, err = graphio.ReadTreeFile(input, catalog)
				if err != nil {
					return fmt.Errorf("load tree %s: %w", input, err)
				}
			} else {
				tr = tree.New(catalog)
			}

			model := NewBuilderModel(tr)
			program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
			final, err := program.Run()
			if err != nil {
				return fmt.Errorf("run builder: %w", err)
			}

			result, ok := final.(BuilderModel)
			if !ok || !result.Saved {
				printInfo("Tree discarded")
				return nil
			}

			outPath := output
			if outPath == "" {
				if input != "" {
					outPath = input
				} else {
					outPath = "tree.json"
				}
			}
			if err := graphio.WriteTreeFile(result.Tree, outPath); err != nil {
				return fmt.Errorf("write tree %s: %w", outPath, err)
			}

			printSuccess("Tree written")
			printFile(outPath)
			printDetail("%d nodes, %d stages", result.Tree.NodeCount(), result.Tree.MaxStage())
			printNewline()
			printNextStep("Classify", "strataflow classify "+outPath+" -d items.json")

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input path, or tree.json)")

	return cmd
}
