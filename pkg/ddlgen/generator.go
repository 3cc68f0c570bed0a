package ddlgen

import (
	"fmt"
	"strings"

	"github.com/dbschemadiff/engine/pkg/differ"
	"github.com/dbschemadiff/engine/pkg/schema"
)

// dialect captures everything that varies between PostgreSQL and MariaDB
// rendering: identifier quoting, column syntax, and table-level suffixes.
type dialect struct {
	name              string
	transactionOpener string
	quoteIdent        func(string) string
	columnDef         func(*schema.Column) (string, []string) // rendered def, TODO markers
	createTableSuffix string // appended before ';' on CREATE TABLE, e.g. " ENGINE=InnoDB"
}

// generate walks diff and renders a SQL script per the fixed emission order
// in the DDL Generator's component design: transaction opener, safe-mode
// banner, table drops, table creates, per-table column/index changes, view
// changes, routine changes, trigger changes, transaction closer.
func (d dialect) generate(diff *differ.Diff, opts Options) string {
	var stmts []string

	addedTables, removedTables := diff.Tables.Added, diff.Tables.Removed
	if opts.Direction == BtoA {
		addedTables, removedTables = removedTables, addedTables
	}

	anyTableDrop := len(addedTables) > 0

	if opts.WithTransaction {
		stmts = append(stmts, d.transactionOpener)
	}
	if opts.SafeMode && anyTableDrop {
		stmts = append(stmts, "-- SAFE MODE: destructive statements below are commented out")
	}

	for _, t := range addedTables {
		stmts = append(stmts, d.maybeComment(opts, fmt.Sprintf("DROP TABLE %s%s;", d.quoteIdent(t.Name), cascadeSuffix(opts))))
	}
	for _, t := range removedTables {
		stmts = append(stmts, d.renderCreateTable(t))
	}

	for _, tc := range diff.Tables.Changed {
		stmts = append(stmts, d.renderTableChange(tc, opts)...)
	}

	stmts = append(stmts, d.renderViewChanges(diff.Views, opts)...)
	stmts = append(stmts, d.renderRoutineChanges(diff.Routines, opts)...)
	stmts = append(stmts, d.renderTriggerChanges(diff.Triggers, opts)...)

	if opts.WithTransaction {
		stmts = append(stmts, "COMMIT;")
	}

	return strings.Join(nonEmpty(stmts), "\n\n")
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func cascadeSuffix(opts Options) string {
	if opts.Cascade {
		return " CASCADE"
	}
	return ""
}

func ifExistsClause(opts Options) string {
	if opts.IfExists {
		return "IF EXISTS "
	}
	return ""
}

func (d dialect) maybeComment(opts Options, stmt string) string {
	if opts.SafeMode && strings.HasPrefix(stmt, "DROP ") {
		return "-- " + stmt
	}
	return stmt
}

func (d dialect) renderCreateTable(t *schema.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", d.quoteIdent(t.Name))

	var lines []string
	for _, c := range t.Columns {
		def, todos := d.columnDef(c)
		lines = append(lines, "  "+d.quoteIdent(c.Name)+" "+def)
		for _, todo := range todos {
			lines = append(lines, "  -- TODO: "+todo)
		}
	}
	if t.PrimaryKey != nil && len(t.PrimaryKey.Columns) > 0 {
		lines = append(lines, "  PRIMARY KEY ("+d.quoteIdentList(t.PrimaryKey.Columns)+")")
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	b.WriteString(d.createTableSuffix)
	b.WriteString(";")
	return b.String()
}

func (d dialect) quoteIdentList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.quoteIdent(n)
	}
	return strings.Join(out, ", ")
}

// renderTableChange renders, in fixed order: column drops, column adds,
// column alters, index drops, index creates.
func (d dialect) renderTableChange(tc *differ.TableChange, opts Options) []string {
	var stmts []string
	tbl := d.quoteIdent(tc.Name)

	for _, c := range columnsToDrop(tc, opts) {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s%s;", tbl, d.quoteIdent(c.Name), cascadeSuffix(opts))
		if opts.SafeMode {
			stmt = "-- " + stmt
		}
		stmts = append(stmts, stmt)
	}
	for _, c := range columnsToAdd(tc, opts) {
		def, todos := d.columnDef(c)
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", tbl, d.quoteIdent(c.Name), def))
		for _, todo := range todos {
			stmts = append(stmts, "-- TODO: "+todo)
		}
	}
	for _, cc := range tc.Columns.Changed {
		stmts = append(stmts, d.renderColumnAlters(tbl, cc, opts)...)
	}
	for _, idx := range indexesToDrop(tc, opts) {
		stmts = append(stmts, d.maybeComment(opts, fmt.Sprintf("DROP INDEX %s;", d.quoteIdent(idx.Name))))
	}
	for _, idx := range indexesToAdd(tc, opts) {
		stmts = append(stmts, d.renderCreateIndex(tc.Name, idx))
	}
	for _, ic := range tc.Indexes.Changed {
		idx := ic.To
		if opts.Direction == BtoA {
			idx = ic.From
		}
		stmts = append(stmts, d.maybeComment(opts, fmt.Sprintf("DROP INDEX %s;", d.quoteIdent(ic.Name))))
		stmts = append(stmts, d.renderCreateIndex(tc.Name, idx))
	}

	return stmts
}

func columnsToDrop(tc *differ.TableChange, opts Options) []*schema.Column {
	if opts.Direction == BtoA {
		return tc.Columns.Removed
	}
	return tc.Columns.Added
}

func columnsToAdd(tc *differ.TableChange, opts Options) []*schema.Column {
	if opts.Direction == BtoA {
		return tc.Columns.Added
	}
	return tc.Columns.Removed
}

func indexesToDrop(tc *differ.TableChange, opts Options) []*schema.Index {
	if opts.Direction == BtoA {
		return tc.Indexes.Removed
	}
	return tc.Indexes.Added
}

func indexesToAdd(tc *differ.TableChange, opts Options) []*schema.Index {
	if opts.Direction == BtoA {
		return tc.Indexes.Added
	}
	return tc.Indexes.Removed
}

func (d dialect) renderCreateIndex(table string, idx *schema.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	using := ""
	if idx.Using != "" {
		using = "USING " + idx.Using + " "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s %s(%s);", unique, d.quoteIdent(idx.Name), d.quoteIdent(table), using, d.quoteIdentList(idx.Columns))
}

// renderColumnAlters renders one ALTER clause per differing attribute, in
// the direction the change should be applied.
func (d dialect) renderColumnAlters(tbl string, cc *differ.ColumnChange, opts Options) []string {
	var stmts []string
	col := d.quoteIdent(cc.Name)
	to := func(p *differ.ValuePair) string {
		if opts.Direction == BtoA {
			return p.From
		}
		return p.To
	}

	if cc.TypeChanged != nil {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", tbl, col, to(cc.TypeChanged)))
		stmts = append(stmts, fmt.Sprintf("-- TODO: verify casts for %s", cc.Name))
	}
	if cc.NullableChanged != nil {
		if to(cc.NullableChanged) == "true" {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", tbl, col))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", tbl, col))
		}
	}
	if cc.DefaultChanged != nil {
		v := to(cc.DefaultChanged)
		if v == "" {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", tbl, col))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", tbl, col, v))
		}
	}
	if cc.LengthChanged != nil || cc.PrecisionChanged != nil {
		stmts = append(stmts, fmt.Sprintf("-- TODO: verify casts for %s", cc.Name))
	}
	if cc.GeneratedChanged != nil {
		stmts = append(stmts, fmt.Sprintf("-- TODO: reconcile generation strategy for %s", cc.Name))
	}
	if cc.CollationChanged != nil {
		stmts = append(stmts, fmt.Sprintf("-- TODO: adjust collation for %s", cc.Name))
	}
	return stmts
}

func (d dialect) renderViewChanges(b differ.ViewBucket, opts Options) []string {
	added, removed := b.Added, b.Removed
	if opts.Direction == BtoA {
		added, removed = removed, added
	}
	var stmts []string
	for _, v := range added {
		stmts = append(stmts, d.maybeComment(opts, fmt.Sprintf("DROP VIEW %s%s;", ifExistsClause(opts), d.quoteIdent(v.Name))))
	}
	for _, v := range removed {
		stmts = append(stmts, fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s;", d.quoteIdent(v.Name), v.Definition))
	}
	for _, vc := range b.Changed {
		def := vc.To
		if opts.Direction == BtoA {
			def = vc.From
		}
		stmts = append(stmts, fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s;", d.quoteIdent(vc.Name), def))
	}
	return stmts
}

func (d dialect) renderRoutineChanges(b differ.RoutineBucket, opts Options) []string {
	added, removed := b.Added, b.Removed
	if opts.Direction == BtoA {
		added, removed = removed, added
	}
	var stmts []string
	for _, r := range added {
		stmts = append(stmts, d.maybeComment(opts, fmt.Sprintf("DROP %s %s%s;", strings.ToUpper(string(r.Kind)), ifExistsClause(opts), d.quoteIdent(r.Name))))
	}
	for _, r := range removed {
		stmts = append(stmts, fmt.Sprintf("-- TODO: routine %s definition missing; recreate manually.", r.Name))
	}
	for _, rc := range b.Changed {
		stmts = append(stmts, fmt.Sprintf("-- TODO: routine %s definition changed; drop and recreate manually.", rc.Name))
	}
	return stmts
}

func (d dialect) renderTriggerChanges(b differ.TriggerBucket, opts Options) []string {
	added, removed := b.Added, b.Removed
	if opts.Direction == BtoA {
		added, removed = removed, added
	}
	var stmts []string
	for _, t := range added {
		stmts = append(stmts, d.maybeComment(opts, fmt.Sprintf("DROP TRIGGER %s%s;", ifExistsClause(opts), d.quoteIdent(t.Name))))
	}
	for _, t := range removed {
		stmts = append(stmts, fmt.Sprintf("-- TODO: trigger %s definition missing; recreate manually.", t.Name))
	}
	for _, tc := range b.Changed {
		stmts = append(stmts, d.maybeComment(opts, fmt.Sprintf("DROP TRIGGER %s%s;", ifExistsClause(opts), d.quoteIdent(tc.Name))))
		stmts = append(stmts, fmt.Sprintf("-- TODO: trigger %s definition changed; recreate manually.", tc.Name))
	}
	return stmts
}
