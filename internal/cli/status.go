package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/pkg/api"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the interned resources of a running daemon",
		Example: `  kiln status
  kiln status --server http://127.0.0.1:9001
  kiln status -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := apiClient.Health()
			if err != nil {
				color.Red("Kiln daemon: UNREACHABLE")
				return fmt.Errorf("cannot reach daemon: %w", err)
			}

			bold := color.New(color.FgCyan, color.Bold)
			bold.Println("Kiln Daemon Status")
			fmt.Printf("Factory ID: %s\n", health.UID)
			fmt.Println()

			resources, err := apiClient.Resources()
			if err != nil {
				return fmt.Errorf("listing resources: %w", err)
			}
			if len(resources) == 0 {
				fmt.Println("No resources interned.")
				return nil
			}

			items := make([]interface{}, 0, len(resources))
			for i := range resources {
				items = append(items, &resources[i])
			}
			printOutput(items, resourceHeaders(), resourceToRow)
			return nil
		},
	}

	return cmd
}

func resourceHeaders() []string {
	return []string{"FILENAME", "EXTENSION", "REFS"}
}

func resourceToRow(item interface{}) []string {
	r := item.(*api.ResourceInfo)
	return []string{r.Filename, r.Extension, strconv.FormatUint(uint64(r.ReferenceCount), 10)}
}
