// Package normalize implements the Normalizer stage: a pure function over a
// schema.Model that folds away superficial cross-dialect noise (name case,
// type synonyms, default-expression spelling, whitespace in expressions) so
// the differ only reports meaningful deltas.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dbschemadiff/engine/pkg/schema"
)

// NameCaseStrategy selects how entity names are folded.
type NameCaseStrategy string

const (
	// NamePreserve leaves names untouched.
	NamePreserve NameCaseStrategy = "preserve"
	// NameLower lowercases names (Unicode-aware).
	NameLower NameCaseStrategy = "lower"
	// NameUpper uppercases names (Unicode-aware).
	NameUpper NameCaseStrategy = "upper"
)

// NameCase configures the name-case strategy, with an optional list of
// literal names that bypass folding entirely.
type NameCase struct {
	Strategy NameCaseStrategy
	Ignore   []string
}

// Options configures one Normalizer run. The zero value leaves names
// untouched (NameCase.Strategy == "" is treated the same as NamePreserve)
// and does not canonicalize default expressions; types are always
// canonicalized using the built-in synonym table regardless of Options.
// Callers that want the Normalizer's conventional configuration — lowercase
// names plus default canonicalization — should use DefaultOptions.
type Options struct {
	NameCase          NameCase
	NormalizeDefaults bool
	MapTypes          map[string]string
}

// DefaultOptions returns the Normalizer's conventional configuration:
// lowercase names, built-in type synonyms, default canonicalization on.
func DefaultOptions() Options {
	return Options{
		NameCase:          NameCase{Strategy: NameLower},
		NormalizeDefaults: true,
	}
}

// builtinTypeSynonyms collapses dialect-specific spellings to one canonical,
// lowercase token. Callers may extend this table via Options.MapTypes; the
// user-supplied map takes precedence over these defaults.
var builtinTypeSynonyms = map[string]string{
	"double precision":            "double",
	"character varying":           "varchar",
	"timestamp without time zone": "timestamp",
	"timestamp with time zone":    "timestamptz",
	"integer":                     "int",
	"int4":                        "int",
	"int8":                        "bigint",
	"int2":                        "smallint",
	"tinyint(1)":                  "boolean",
	"bool":                        "boolean",
	"bit(1)":                      "boolean",
}

// Normalizer applies Options to a schema.Model, producing a deep-copied,
// normalized Model. The input is never mutated.
type Normalizer struct {
	opts    Options
	caser   cases.Caser
	ignore  map[string]bool
	synonym map[string]string
}

// New builds a Normalizer from opts.
func New(opts Options) *Normalizer {
	n := &Normalizer{opts: opts}

	switch opts.NameCase.Strategy {
	case NameLower:
		n.caser = cases.Lower(language.Und)
	case NameUpper:
		n.caser = cases.Upper(language.Und)
	}

	n.ignore = make(map[string]bool, len(opts.NameCase.Ignore))
	for _, name := range opts.NameCase.Ignore {
		n.ignore[name] = true
	}

	n.synonym = make(map[string]string, len(builtinTypeSynonyms)+len(opts.MapTypes))
	for k, v := range builtinTypeSynonyms {
		n.synonym[k] = v
	}
	for k, v := range opts.MapTypes {
		n.synonym[strings.ToLower(k)] = strings.ToLower(v)
	}

	return n
}

// Normalize returns a normalized deep copy of m. Calling Normalize again on
// the result is a no-op: Normalize(Normalize(m)) == Normalize(m).
func (n *Normalizer) Normalize(m *schema.Model) *schema.Model {
	out := m.Clone()

	normalizedTables := make(map[string]*schema.Table, len(out.Tables))
	for _, t := range out.Tables {
		n.normalizeTable(t)
		normalizedTables[n.foldName(t.Name)] = t
	}
	out.Tables = normalizedTables

	normalizedViews := make(map[string]*schema.View, len(out.Views))
	for _, v := range out.Views {
		v.Name = n.foldName(v.Name)
		normalizedViews[v.Name] = v
	}
	out.Views = normalizedViews

	normalizedRoutines := make(map[schema.RoutineKey]*schema.Routine, len(out.Routines))
	for _, r := range out.Routines {
		r.Name = n.foldName(r.Name)
		normalizedRoutines[schema.RoutineKey{Kind: r.Kind, Name: r.Name}] = r
	}
	out.Routines = normalizedRoutines

	normalizedTriggers := make(map[schema.TriggerKey]*schema.Trigger, len(out.Triggers))
	for _, t := range out.Triggers {
		t.Table = n.foldName(t.Table)
		t.Name = n.foldName(t.Name)
		normalizedTriggers[schema.TriggerKey{Table: t.Table, Name: t.Name}] = t
	}
	out.Triggers = normalizedTriggers

	return out
}

func (n *Normalizer) normalizeTable(t *schema.Table) {
	t.Name = n.foldName(t.Name)

	for _, c := range t.Columns {
		c.Name = n.foldName(c.Name)
		c.DataType = n.canonicalType(c.DataType)
		if n.opts.NormalizeDefaults && c.Default != nil {
			v := canonicalizeDefault(*c.Default)
			c.Default = &v
		}
	}

	if t.PrimaryKey != nil {
		for i, col := range t.PrimaryKey.Columns {
			t.PrimaryKey.Columns[i] = n.foldName(col)
		}
	}

	normalizedIndexes := make(map[string]*schema.Index, len(t.Indexes))
	for _, idx := range t.Indexes {
		idx.Name = n.foldName(idx.Name)
		idx.Table = t.Name
		idx.Using = strings.ToLower(idx.Using)
		for i, col := range idx.Columns {
			idx.Columns[i] = n.foldName(col)
		}
		normalizedIndexes[idx.Name] = idx
	}
	t.Indexes = normalizedIndexes

	normalizedChecks := make(map[string]*schema.Check, len(t.Checks))
	for _, chk := range t.Checks {
		chk.Name = n.foldName(chk.Name)
		chk.Table = t.Name
		chk.Expression = canonicalizeExpression(chk.Expression)
		normalizedChecks[chk.Name] = chk
	}
	t.Checks = normalizedChecks

	normalizedFKs := make(map[string]*schema.ForeignKey, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		fk.Name = n.foldName(fk.Name)
		fk.Table = t.Name
		fk.ReferencedTable = n.foldName(fk.ReferencedTable)
		for i, col := range fk.Columns {
			fk.Columns[i] = n.foldName(col)
		}
		for i, col := range fk.ReferencedColumns {
			fk.ReferencedColumns[i] = n.foldName(col)
		}
		fk.OnUpdate = strings.ToUpper(fk.OnUpdate)
		fk.OnDelete = strings.ToUpper(fk.OnDelete)
		normalizedFKs[fk.Name] = fk
	}
	t.ForeignKeys = normalizedFKs
}

// foldName applies the configured name-case strategy, bypassing names on
// the ignore list verbatim.
func (n *Normalizer) foldName(name string) string {
	if name == "" || n.ignore[name] || n.opts.NameCase.Strategy == "" || n.opts.NameCase.Strategy == NamePreserve {
		return name
	}
	return n.caser.String(name)
}

// canonicalType maps a raw, dialect-specific type spelling to its canonical
// lowercase token. Matching is case-insensitive; unrecognized types pass
// through lowercased but otherwise unchanged.
func (n *Normalizer) canonicalType(typeName string) string {
	lower := strings.ToLower(strings.TrimSpace(typeName))
	if canon, ok := n.synonym[lower]; ok {
		return canon
	}
	return lower
}

// canonicalizeDefault trims whitespace, iteratively strips fully-wrapping
// parentheses, and canonicalizes now() to CURRENT_TIMESTAMP.
func canonicalizeDefault(value string) string {
	v := strings.TrimSpace(value)
	for len(v) >= 2 && v[0] == '(' && v[len(v)-1] == ')' && parenWraps(v) {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	if strings.EqualFold(v, "now()") {
		return "CURRENT_TIMESTAMP"
	}
	return v
}

// parenWraps reports whether v's first '(' and last ')' are a matching pair
// that wraps the entire string, as opposed to e.g. "(a)+(b)".
func parenWraps(v string) bool {
	depth := 0
	for i, r := range v {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(v)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// canonicalizeExpression collapses whitespace runs to single spaces and
// trims. No SQL parsing is performed.
func canonicalizeExpression(expr string) string {
	return strings.Join(strings.Fields(expr), " ")
}
