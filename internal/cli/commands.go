package cli

import (
	"sort"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(commandsCmd())
}

// commandInfo is one entry of the machine-readable command list.
type commandInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	About string `json:"about"`
}

func commandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "Echo the command list as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []commandInfo
			for _, c := range rootCmd.Commands() {
				if c.Hidden {
					continue
				}
				out = append(out, commandInfo{
					Name:  c.Name(),
					Path:  rootCmd.Name() + " " + c.Name(),
					About: c.Short,
				})
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
			return printJSON(cmd, out)
		},
	}
}
