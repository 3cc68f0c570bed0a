package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/dbschemadiff/engine/pkg/connstr"
	"github.com/dbschemadiff/engine/pkg/engine"
)

const (
	diffSnippetLimit = 1000
	ddlSnippetLimit  = 4000
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Render a Markdown review prompt summarizing a schema diff",
	Long: `Prompt loads --from and --to, diffs them, and renders a Markdown document
suitable for pasting into an AI code-review conversation: a short prose
summary, a bounded diff snippet, and a bounded preview of the AtoB migration
script.`,
	RunE: promptCommand,
}

var promptFlags map[string]cobraflags.Flag

func init() {
	promptFlags = newCommonFlags()
	cobraflags.RegisterMap(promptCmd, promptFlags)
}

func promptCommand(_ *cobra.Command, _ []string) error {
	from, to, err := resolveDescriptors(promptFlags)
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
	ddl := engine.ToPostgres(diff, engine.GenOptions{Direction: engine.AtoB, WithTransaction: true, SafeMode: true})

	fmt.Fprint(stdout, renderPrompt(from, to, diff, ddl))
	return nil
}

func renderPrompt(from, to *connstr.Descriptor, diff *engine.Diff, ddl string) string {
	s := summarize(diff)

	var b strings.Builder
	fmt.Fprintf(&b, "# Schema Review: %s -> %s\n\n", from.String(), to.String())
	fmt.Fprintf(&b, "%d tables, %d views, %d routines, and %d triggers differ. "+
		"Review the changes below before applying the suggested migration.\n\n",
		s.TablesAdded+s.TablesRemoved+s.TablesChanged,
		s.ViewsAdded+s.ViewsRemoved+s.ViewsChanged,
		s.RoutinesAdded+s.RoutinesRemoved+s.RoutinesChanged,
		s.TriggersAdded+s.TriggersRemoved+s.TriggersChanged)

	b.WriteString("## Diff summary\n\n```\n")
	b.WriteString(truncate(diffText(diff), diffSnippetLimit))
	b.WriteString("\n```\n\n")

	b.WriteString("## Suggested migration (PostgreSQL, safe mode)\n\n```sql\n")
	b.WriteString(truncate(ddl, ddlSnippetLimit))
	b.WriteString("\n```\n")

	return b.String()
}

func diffText(diff *engine.Diff) string {
	var b strings.Builder
	for _, t := range diff.Tables.Added {
		fmt.Fprintf(&b, "+ table %s\n", t.Name)
	}
	for _, t := range diff.Tables.Removed {
		fmt.Fprintf(&b, "- table %s\n", t.Name)
	}
	for _, c := range diff.Tables.Changed {
		fmt.Fprintf(&b, "~ table %s\n", c.Name)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
