package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/internal/tui"
)

func newTopCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:     "top",
		Aliases: []string{"ui"},
		Short:   "Live terminal view of a daemon's interned resources",
		Long:    "Poll a running daemon and display its resources with reference counts; press r to reload the selected resource.",
		Example: `  kiln top
  kiln top --server http://127.0.0.1:9001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := tui.NewApp(server)
			if err := app.Run(); err != nil {
				return fmt.Errorf("UI error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:8001", "kiln daemon address")

	return cmd
}
