package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload <name>",
		Short: "Trigger an in-place reload of a resource",
		Long: `Ask a running daemon to reload a resource by its relative name.
The daemon recreates the typed object in place and notifies its reload
observers; the outcome is reported in the daemon's log.`,
		Example: `  kiln reload config/settings.json
  kiln reload a.txt --server http://127.0.0.1:9001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := apiClient.Reload(name); err != nil {
				return fmt.Errorf("reloading %s: %w", name, err)
			}
			fmt.Printf("reload of %s requested\n", name)
			return nil
		},
	}

	return cmd
}
