package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [dataset]",
		Short: "Show lineage records, newest first",
		Long: `Show the lineage log: one record per completed run with the input
path, its checksum, the schema version and the pipeline steps executed.`,
		Example: `  leapgov history
  leapgov history orders --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			dataset := ""
			if len(args) == 1 {
				dataset = args[0]
			}
			records, err := cmdCtx.Engine.Lineage().History(cmd.Context(), dataset, limit)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if ok, err := r.Structured(records); ok {
				return err
			}

			title := "Lineage"
			if dataset != "" {
				title += ": " + dataset
			}
			r.Header(1, fmt.Sprintf("%s (%d records)", title, len(records)))
			if len(records) == 0 {
				r.Muted("no runs recorded")
				return nil
			}
			rows := make([][]any, len(records))
			for i, rec := range records {
				rows[i] = []any{rec.Timestamp, rec.Dataset, rec.Version, rec.RowCount, shortSum(rec.Checksum), rec.SourcePath, strings.Join(rec.Steps, ",")}
			}
			r.Table([]string{"Timestamp", "Dataset", "Version", "Rows", "Checksum", "Source", "Steps"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show (0 for all)")

	return cmd
}

func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
