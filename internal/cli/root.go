package cli

import (
	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/pkg/client"
)

var (
	serverAddr string
	apiClient  *client.Client
)

// NewRootCmd creates the top-level kiln CLI command with all subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kiln",
		Short: "Reference-counted, hot-reloadable resource factory",
		Long: `Kiln serves named binary resources from an archive, a remote HTTP
endpoint, or the local filesystem, and keeps one typed in-memory instance
per resource with live reload support.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Skip client init for commands that don't talk to a daemon.
			name := cmd.Name()
			if name == "serve" || name == "pack" {
				return
			}
			apiClient = client.New(serverAddr)
		},
	}

	cmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8001", "kiln daemon address")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json|yaml")

	cmd.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newReloadCmd(),
		newPackCmd(),
		newTopCmd(),
	)

	return cmd
}
