package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapgov/internal/registry"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/spf13/cobra"
)

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the schema registry",
		Long: `Inspect registered dataset schemas and their versions.

A dataset's version starts at 0.0.1 and its patch number is bumped every time
a run sees a schema that differs from the registered one.`,
	}

	cmd.AddCommand(newRegistryListCommand())
	cmd.AddCommand(newRegistryShowCommand())

	return cmd
}

// registryRow is one line of "registry list".
type registryRow struct {
	Dataset string `json:"dataset"`
	Version string `json:"version"`
	Columns int    `json:"columns"`
}

func newRegistryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := cmdCtx.Engine.Registry().List(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(entries))
			for name := range entries {
				names = append(names, name)
			}
			sort.Strings(names)

			list := make([]registryRow, len(names))
			for i, name := range names {
				list[i] = registryRow{Dataset: name, Version: entries[name].Version, Columns: len(entries[name].Schema)}
			}

			r := cmdCtx.Renderer
			if ok, err := r.Structured(list); ok {
				return err
			}
			r.Header(1, fmt.Sprintf("Registry (%d datasets)", len(list)))
			if len(list) == 0 {
				r.Muted("no schemas registered yet")
				return nil
			}
			rows := make([][]any, len(list))
			for i, row := range list {
				rows[i] = []any{row.Dataset, row.Version, row.Columns}
			}
			r.Table([]string{"Dataset", "Version", "Columns"}, rows)
			return nil
		},
	}
}

// registryDetail is the output of "registry show".
type registryDetail struct {
	Dataset string               `json:"dataset"`
	Version string               `json:"version"`
	Schema  core.Schema          `json:"schema"`
	History []core.SchemaVersion `json:"history,omitempty"`
}

func newRegistryShowCommand() *cobra.Command {
	var withHistory bool

	cmd := &cobra.Command{
		Use:   "show <dataset>",
		Short: "Show the registered schema of a dataset",
		Example: `  leapgov registry show orders
  leapgov registry show orders --output yaml
  leapgov registry show orders --history --store sqlite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			name := args[0]
			reg := cmdCtx.Engine.Registry()

			entry, err := reg.Get(ctx, name)
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("dataset %s is not registered, run: leapgov run %s", name, name)
			}
			detail := registryDetail{Dataset: name, Version: entry.Version, Schema: entry.Schema}

			if withHistory {
				detail.History, err = reg.History(ctx, name)
				if errors.Is(err, registry.ErrHistoryUnsupported) {
					return fmt.Errorf("schema history needs a database store (--store sqlite or postgres): %w", err)
				}
				if err != nil {
					return err
				}
			}

			r := cmdCtx.Renderer
			if ok, err := r.Structured(detail); ok {
				return err
			}

			r.Header(1, name)
			r.KeyValue("Version", detail.Version)
			r.Println()
			rows := make([][]any, 0, len(detail.Schema))
			for _, col := range detail.Schema.Columns() {
				spec := detail.Schema[col]
				rows = append(rows, []any{col, spec.Type, spec.Required, constraints(spec)})
			}
			r.Table([]string{"Column", "Type", "Required", "Constraints"}, rows)

			if withHistory {
				r.Header(2, "History")
				hrows := make([][]any, len(detail.History))
				for i, v := range detail.History {
					hrows[i] = []any{v.Version, v.RecordedAt, len(v.Schema)}
				}
				r.Table([]string{"Version", "Recorded", "Columns"}, hrows)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withHistory, "history", false, "Include every registered version")

	return cmd
}

func constraints(spec core.ColumnSpec) string {
	var parts []string
	if spec.Type == core.TypeDate {
		parts = append(parts, "format="+spec.DateFormat())
	}
	if spec.Min != nil {
		parts = append(parts, fmt.Sprintf("min=%v", spec.Min))
	}
	if spec.Max != nil {
		parts = append(parts, fmt.Sprintf("max=%v", spec.Max))
	}
	if len(spec.Allowed) > 0 {
		parts = append(parts, fmt.Sprintf("allowed=%v", spec.Allowed))
	}
	if spec.Regex != "" {
		parts = append(parts, "regex="+spec.Regex)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
