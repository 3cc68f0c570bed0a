package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/dbschemadiff/engine/pkg/engine"
)

const jsonFlag = "json"

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two schemas and report what differs",
	Long: `Compare loads --from and --to, normalizes both, and computes the symmetric
diff between them. By default it prints a human-readable summary; pass --json
for a machine-readable {diff, summary} document.`,
	RunE: compareCommand,
}

var compareFlags map[string]cobraflags.Flag

func init() {
	compareFlags = newCommonFlags()
	compareFlags[jsonFlag] = &cobraflags.BoolFlag{
		Name:  jsonFlag,
		Value: false,
		Usage: "Emit {diff, summary} as JSON instead of a text summary",
	}
	cobraflags.RegisterMap(compareCmd, compareFlags)
}

func compareCommand(_ *cobra.Command, _ []string) error {
	from, to, err := resolveDescriptors(compareFlags)
	if err != nil {
		return err
	}

	ctx := context.Background()
	fromModel, toModel, err := engine.LoadPair(ctx, from, to)
	if err != nil {
		return err
	}

	normOpts := engine.DefaultNormalizeOptions()
	fromModel = engine.NormalizeSchemaModel(fromModel, normOpts)
	toModel = engine.NormalizeSchemaModel(toModel, normOpts)
	diff := engine.ComputeDiff(fromModel, toModel)

	if compareFlags[jsonFlag].GetBool() {
		return printDiffJSON(diff)
	}
	printDiffSummary(diff)
	return nil
}

func printDiffJSON(diff *engine.Diff) error {
	doc := struct {
		Diff    *engine.Diff `json:"diff"`
		Summary bucketCounts `json:"summary"`
	}{
		Diff:    diff,
		Summary: summarize(diff),
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

type bucketCounts struct {
	TablesAdded     int `json:"tablesAdded"`
	TablesRemoved   int `json:"tablesRemoved"`
	TablesChanged   int `json:"tablesChanged"`
	ViewsAdded      int `json:"viewsAdded"`
	ViewsRemoved    int `json:"viewsRemoved"`
	ViewsChanged    int `json:"viewsChanged"`
	RoutinesAdded   int `json:"routinesAdded"`
	RoutinesRemoved int `json:"routinesRemoved"`
	RoutinesChanged int `json:"routinesChanged"`
	TriggersAdded   int `json:"triggersAdded"`
	TriggersRemoved int `json:"triggersRemoved"`
	TriggersChanged int `json:"triggersChanged"`
}

func summarize(diff *engine.Diff) bucketCounts {
	return bucketCounts{
		TablesAdded:     len(diff.Tables.Added),
		TablesRemoved:   len(diff.Tables.Removed),
		TablesChanged:   len(diff.Tables.Changed),
		ViewsAdded:      len(diff.Views.Added),
		ViewsRemoved:    len(diff.Views.Removed),
		ViewsChanged:    len(diff.Views.Changed),
		RoutinesAdded:   len(diff.Routines.Added),
		RoutinesRemoved: len(diff.Routines.Removed),
		RoutinesChanged: len(diff.Routines.Changed),
		TriggersAdded:   len(diff.Triggers.Added),
		TriggersRemoved: len(diff.Triggers.Removed),
		TriggersChanged: len(diff.Triggers.Changed),
	}
}

func printDiffSummary(diff *engine.Diff) {
	s := summarize(diff)
	fmt.Fprintln(stdout, "=== SCHEMA COMPARISON ===")
	fmt.Fprintf(stdout, "tables:   +%d -%d ~%d\n", s.TablesAdded, s.TablesRemoved, s.TablesChanged)
	fmt.Fprintf(stdout, "views:    +%d -%d ~%d\n", s.ViewsAdded, s.ViewsRemoved, s.ViewsChanged)
	fmt.Fprintf(stdout, "routines: +%d -%d ~%d\n", s.RoutinesAdded, s.RoutinesRemoved, s.RoutinesChanged)
	fmt.Fprintf(stdout, "triggers: +%d -%d ~%d\n", s.TriggersAdded, s.TriggersRemoved, s.TriggersChanged)

	for _, t := range diff.Tables.Added {
		fmt.Fprintf(stdout, "  + table %s\n", t.Name)
	}
	for _, t := range diff.Tables.Removed {
		fmt.Fprintf(stdout, "  - table %s\n", t.Name)
	}
	for _, c := range diff.Tables.Changed {
		fmt.Fprintf(stdout, "  ~ table %s (%d columns, %d indexes, %d checks, %d foreign keys changed)\n",
			c.Name, len(c.Columns.Changed)+len(c.Columns.Added)+len(c.Columns.Removed),
			len(c.Indexes.Changed)+len(c.Indexes.Added)+len(c.Indexes.Removed),
			len(c.Checks.Changed)+len(c.Checks.Added)+len(c.Checks.Removed),
			len(c.ForeignKeys.Changed)+len(c.ForeignKeys.Added)+len(c.ForeignKeys.Removed))
	}
}
