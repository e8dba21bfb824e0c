package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// completionCommand emits a completion script for the named shell on
// stdout; redirect it wherever the shell loads completions from.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for strataflow.

Load it for the current session:

  source <(strataflow completion bash)
  strataflow completion fish | source

Or install it permanently, for example:

  strataflow completion bash > /etc/bash_completion.d/strataflow
  strataflow completion zsh > "${fpath[1]}/_strataflow"
  strataflow completion fish > ~/.config/fish/completions/strataflow.fish
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
}
