package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/internal/archive"
)

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack <dir> <out>",
		Short: "Build a builtins archive from a directory tree",
		Long: `Collect every regular file under dir into an archive blob that a
factory can consult before its other transports. Entry names are the
paths relative to dir, with forward slashes.`,
		Example: `  kiln pack ./assets builtins.kln
  kiln serve --uri file:///var/lib/assets --archive builtins.kln`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, out := args[0], args[1]

			entries := map[string][]byte{}
			err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.Type().IsRegular() {
					return nil
				}
				rel, err := filepath.Rel(dir, path)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				entries[filepath.ToSlash(rel)] = data
				return nil
			})
			if err != nil {
				return fmt.Errorf("collecting files under %s: %w", dir, err)
			}

			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			defer file.Close()

			if err := archive.Write(file, entries); err != nil {
				return fmt.Errorf("writing archive: %w", err)
			}

			fmt.Printf("packed %d entries into %s\n", len(entries), out)
			return nil
		},
	}

	return cmd
}
