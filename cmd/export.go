package cmd

import (
	"fmt"

	"github.com/artifex-heritage/artifex/internal/snapshot"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var output string
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch the catalogue and write a snapshot",
		Long: `Fetches the whole catalogue from the backend and writes it out.

With --output the format follows the file extension (.parquet, .jsonl, .yaml, .csv).
Without it the snapshot is written to stdout in --format (jsonl, yaml, csv).
Parquet and JSONL snapshots can be served again with --snapshot.`,
		Example: `  # Archive the catalogue for offline serving
  artifex export --output snapshots/catalogue.parquet

  # Print as CSV
  artifex export --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			records, err := newFetcher(cfg, newFrontQLClient(cfg)).Fetch(cmd.Context())
			if err != nil {
				return err
			}

			if output != "" {
				if err := snapshot.WriteFile(output, records); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d artifact(s) to %s\n", len(records), output)
				return nil
			}

			return snapshot.Write(cmd.OutOrStdout(), snapshot.Format(format), records)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot file to write")
	cmd.Flags().StringVarP(&format, "format", "f", string(snapshot.FormatJSONL), "Format for stdout (jsonl, yaml, csv)")

	return cmd
}
