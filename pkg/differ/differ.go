// Package differ implements the Differ stage: a pure function over two
// normalized schema.Models that produces a symmetric, directional Diff
// describing how to transform one into the other.
package differ

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dbschemadiff/engine/pkg/schema"
)

// Diff is the complete description of how model A differs from model B.
// Applying it in direction AtoB turns A into B; in direction BtoA, B into A.
type Diff struct {
	Tables   TableBucket
	Views    ViewBucket
	Routines RoutineBucket
	Triggers TriggerBucket
}

// TableBucket holds table-level added/removed/changed sets.
type TableBucket struct {
	Added   []*schema.Table
	Removed []*schema.Table
	Changed []*TableChange
}

// ViewBucket holds view-level added/removed/changed sets.
type ViewBucket struct {
	Added   []*schema.View
	Removed []*schema.View
	Changed []*ViewChange
}

// RoutineBucket holds routine-level added/removed/changed sets, keyed by
// (kind, name).
type RoutineBucket struct {
	Added   []*schema.Routine
	Removed []*schema.Routine
	Changed []*RoutineChange
}

// TriggerBucket holds trigger-level added/removed/changed sets, keyed by
// (table, name).
type TriggerBucket struct {
	Added   []*schema.Trigger
	Removed []*schema.Trigger
	Changed []*TriggerChange
}

// ValuePair records the A-side (from) and B-side (to) value of one changed
// attribute.
type ValuePair struct {
	From string
	To   string
}

// TableChange is a table present in both models under the same name but
// differing in at least one nested attribute or collection.
type TableChange struct {
	Name           string
	Columns        ColumnBucket
	Indexes        IndexBucket
	Checks         CheckBucket
	ForeignKeys    ForeignKeyBucket
	PrimaryKey     *PrimaryKeyChange
}

// ColumnBucket holds column-level added/removed/changed sets within a table.
type ColumnBucket struct {
	Added   []*schema.Column
	Removed []*schema.Column
	Changed []*ColumnChange
}

// ColumnChange records which attributes differ between the A-side and
// B-side column of the same name, one ValuePair per differing attribute.
type ColumnChange struct {
	Name             string
	TypeChanged      *ValuePair
	LengthChanged    *ValuePair
	PrecisionChanged *ValuePair
	NullableChanged  *ValuePair
	DefaultChanged   *ValuePair
	GeneratedChanged *ValuePair
	CollationChanged *ValuePair
}

// HasChanges reports whether at least one attribute differs.
func (c *ColumnChange) HasChanges() bool {
	return c.TypeChanged != nil || c.LengthChanged != nil || c.PrecisionChanged != nil ||
		c.NullableChanged != nil || c.DefaultChanged != nil || c.GeneratedChanged != nil ||
		c.CollationChanged != nil
}

// IndexBucket holds index-level added/removed/changed sets within a table.
type IndexBucket struct {
	Added   []*schema.Index
	Removed []*schema.Index
	Changed []*IndexChange
}

// IndexChange records an index present on both sides with differing
// uniqueness, access method, or column set.
type IndexChange struct {
	Name           string
	From           *schema.Index
	To             *schema.Index
	UniqueChanged  bool
	UsingChanged   bool
	ColumnsChanged bool
}

// CheckBucket holds check-constraint added/removed/changed sets.
type CheckBucket struct {
	Added   []*schema.Check
	Removed []*schema.Check
	Changed []*CheckChange
}

// CheckChange records a check constraint whose expression differs.
type CheckChange struct {
	Name string
	From string
	To   string
}

// ForeignKeyBucket holds foreign-key added/removed/changed sets.
type ForeignKeyBucket struct {
	Added   []*schema.ForeignKey
	Removed []*schema.ForeignKey
	Changed []*ForeignKeyChange
}

// ForeignKeyChange records a foreign key present on both sides with a
// differing column set, referenced table, or action.
type ForeignKeyChange struct {
	Name    string
	From    *schema.ForeignKey
	To      *schema.ForeignKey
}

// PrimaryKeyChange records a table's primary key differing (including
// present-on-only-one-side asymmetry) between the two models.
type PrimaryKeyChange struct {
	From *schema.PrimaryKey
	To   *schema.PrimaryKey
}

// ViewChange records a view present on both sides with a differing
// definition.
type ViewChange struct {
	Name string
	From string
	To   string
}

// RoutineChange records a routine present on both sides with a differing
// body.
type RoutineChange struct {
	Kind schema.RoutineKind
	Name string
	From string
	To   string
}

// TriggerChange records a trigger present on both sides with a differing
// timing, event set, or body.
type TriggerChange struct {
	Table string
	Name  string
	From  *schema.Trigger
	To    *schema.Trigger
}

// Compute produces the Diff between normalized models a and b. Both models
// must already have passed through normalize.Normalizer; Compute performs no
// normalization itself.
func Compute(a, b *schema.Model) *Diff {
	d := &Diff{}
	d.Tables = diffTables(a.Tables, b.Tables)
	d.Views = diffViews(a.Views, b.Views)
	d.Routines = diffRoutines(a.Routines, b.Routines)
	d.Triggers = diffTriggers(a.Triggers, b.Triggers)
	return d
}

func diffTables(a, b map[string]*schema.Table) TableBucket {
	var bucket TableBucket

	for _, name := range sortedKeys(a, b) {
		ta, inA := a[name]
		tb, inB := b[name]
		switch {
		case !inA:
			bucket.Added = append(bucket.Added, tb)
		case !inB:
			bucket.Removed = append(bucket.Removed, ta)
		default:
			if tc := diffTable(ta, tb); tc != nil {
				bucket.Changed = append(bucket.Changed, tc)
			}
		}
	}
	return bucket
}

func diffTable(a, b *schema.Table) *TableChange {
	tc := &TableChange{Name: a.Name}
	tc.Columns = diffColumns(a.Columns, b.Columns)
	tc.Indexes = diffIndexes(a.Indexes, b.Indexes)
	tc.Checks = diffChecks(a.Checks, b.Checks)
	tc.ForeignKeys = diffForeignKeys(a.ForeignKeys, b.ForeignKeys)
	tc.PrimaryKey = diffPrimaryKey(a.PrimaryKey, b.PrimaryKey)

	if len(tc.Columns.Added) == 0 && len(tc.Columns.Removed) == 0 && len(tc.Columns.Changed) == 0 &&
		len(tc.Indexes.Added) == 0 && len(tc.Indexes.Removed) == 0 && len(tc.Indexes.Changed) == 0 &&
		len(tc.Checks.Added) == 0 && len(tc.Checks.Removed) == 0 && len(tc.Checks.Changed) == 0 &&
		len(tc.ForeignKeys.Added) == 0 && len(tc.ForeignKeys.Removed) == 0 && len(tc.ForeignKeys.Changed) == 0 &&
		tc.PrimaryKey == nil {
		return nil
	}
	return tc
}

func diffColumns(a, b []*schema.Column) ColumnBucket {
	am := columnsByName(a)
	bm := columnsByName(b)
	var bucket ColumnBucket

	for _, name := range sortedKeys(am, bm) {
		ca, inA := am[name]
		cb, inB := bm[name]
		switch {
		case !inA:
			bucket.Added = append(bucket.Added, cb)
		case !inB:
			bucket.Removed = append(bucket.Removed, ca)
		default:
			if cc := diffColumn(ca, cb); cc.HasChanges() {
				bucket.Changed = append(bucket.Changed, cc)
			}
		}
	}
	return bucket
}

func columnsByName(cols []*schema.Column) map[string]*schema.Column {
	m := make(map[string]*schema.Column, len(cols))
	for _, c := range cols {
		m[c.Name] = c
	}
	return m
}

func diffColumn(a, b *schema.Column) *ColumnChange {
	cc := &ColumnChange{Name: a.Name}

	if a.DataType != b.DataType {
		cc.TypeChanged = &ValuePair{From: a.DataType, To: b.DataType}
	}
	if intPtrStr(a.Length) != intPtrStr(b.Length) {
		cc.LengthChanged = &ValuePair{From: intPtrStr(a.Length), To: intPtrStr(b.Length)}
	}
	if precisionScaleStr(a) != precisionScaleStr(b) {
		cc.PrecisionChanged = &ValuePair{From: precisionScaleStr(a), To: precisionScaleStr(b)}
	}
	if a.Nullable != b.Nullable {
		cc.NullableChanged = &ValuePair{From: boolStr(a.Nullable), To: boolStr(b.Nullable)}
	}
	if !defaultsEqual(a.Default, b.Default) {
		cc.DefaultChanged = &ValuePair{From: strPtrOrEmpty(a.Default), To: strPtrOrEmpty(b.Default)}
	}
	if a.Generated != b.Generated {
		cc.GeneratedChanged = &ValuePair{From: string(a.Generated), To: string(b.Generated)}
	}
	if a.Collation != b.Collation {
		cc.CollationChanged = &ValuePair{From: a.Collation, To: b.Collation}
	}
	return cc
}

// defaultsEqual treats a missing default and an explicit SQL NULL default as
// equal, per the column-equality rule in §4.3.
func defaultsEqual(a, b *string) bool {
	av := strPtrOrEmpty(a)
	bv := strPtrOrEmpty(b)
	if strings.EqualFold(av, "null") {
		av = ""
	}
	if strings.EqualFold(bv, "null") {
		bv = ""
	}
	return av == bv
}

func diffIndexes(a, b map[string]*schema.Index) IndexBucket {
	var bucket IndexBucket
	for _, name := range sortedKeys(a, b) {
		ia, inA := a[name]
		ib, inB := b[name]
		switch {
		case !inA:
			bucket.Added = append(bucket.Added, ib)
		case !inB:
			bucket.Removed = append(bucket.Removed, ia)
		default:
			if ic := diffIndex(ia, ib); ic != nil {
				bucket.Changed = append(bucket.Changed, ic)
			}
		}
	}
	return bucket
}

func diffIndex(a, b *schema.Index) *IndexChange {
	ic := &IndexChange{Name: a.Name, From: a, To: b}
	ic.UniqueChanged = a.Unique != b.Unique
	ic.UsingChanged = !strings.EqualFold(a.Using, b.Using)
	ic.ColumnsChanged = !sortedSetEqual(a.Columns, b.Columns)

	if !ic.UniqueChanged && !ic.UsingChanged && !ic.ColumnsChanged {
		return nil
	}
	return ic
}

func diffChecks(a, b map[string]*schema.Check) CheckBucket {
	var bucket CheckBucket
	for _, name := range sortedKeys(a, b) {
		ca, inA := a[name]
		cb, inB := b[name]
		switch {
		case !inA:
			bucket.Added = append(bucket.Added, cb)
		case !inB:
			bucket.Removed = append(bucket.Removed, ca)
		default:
			if ca.Expression != cb.Expression {
				bucket.Changed = append(bucket.Changed, &CheckChange{Name: ca.Name, From: ca.Expression, To: cb.Expression})
			}
		}
	}
	return bucket
}

func diffForeignKeys(a, b map[string]*schema.ForeignKey) ForeignKeyBucket {
	var bucket ForeignKeyBucket
	for _, name := range sortedKeys(a, b) {
		fa, inA := a[name]
		fb, inB := b[name]
		switch {
		case !inA:
			bucket.Added = append(bucket.Added, fb)
		case !inB:
			bucket.Removed = append(bucket.Removed, fa)
		default:
			if !foreignKeysEqual(fa, fb) {
				bucket.Changed = append(bucket.Changed, &ForeignKeyChange{Name: fa.Name, From: fa, To: fb})
			}
		}
	}
	return bucket
}

func foreignKeysEqual(a, b *schema.ForeignKey) bool {
	return sortedSetEqual(a.Columns, b.Columns) &&
		sortedSetEqual(a.ReferencedColumns, b.ReferencedColumns) &&
		strings.EqualFold(a.ReferencedTable, b.ReferencedTable) &&
		actionsEqual(a.OnUpdate, b.OnUpdate) &&
		actionsEqual(a.OnDelete, b.OnDelete)
}

func actionsEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

func diffPrimaryKey(a, b *schema.PrimaryKey) *PrimaryKeyChange {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil || b == nil:
		return &PrimaryKeyChange{From: a, To: b}
	case !sortedSetEqual(a.Columns, b.Columns):
		return &PrimaryKeyChange{From: a, To: b}
	default:
		return nil
	}
}

func diffViews(a, b map[string]*schema.View) ViewBucket {
	var bucket ViewBucket
	for _, name := range sortedKeys(a, b) {
		va, inA := a[name]
		vb, inB := b[name]
		switch {
		case !inA:
			bucket.Added = append(bucket.Added, vb)
		case !inB:
			bucket.Removed = append(bucket.Removed, va)
		default:
			if va.Definition != vb.Definition {
				bucket.Changed = append(bucket.Changed, &ViewChange{Name: va.Name, From: va.Definition, To: vb.Definition})
			}
		}
	}
	return bucket
}

func diffRoutines(a, b map[schema.RoutineKey]*schema.Routine) RoutineBucket {
	var bucket RoutineBucket
	for _, key := range sortedRoutineKeys(a, b) {
		ra, inA := a[key]
		rb, inB := b[key]
		switch {
		case !inA:
			bucket.Added = append(bucket.Added, rb)
		case !inB:
			bucket.Removed = append(bucket.Removed, ra)
		default:
			if ra.Body != rb.Body {
				bucket.Changed = append(bucket.Changed, &RoutineChange{Kind: key.Kind, Name: key.Name, From: ra.Body, To: rb.Body})
			}
		}
	}
	return bucket
}

func diffTriggers(a, b map[schema.TriggerKey]*schema.Trigger) TriggerBucket {
	var bucket TriggerBucket
	for _, key := range sortedTriggerKeys(a, b) {
		ta, inA := a[key]
		tb, inB := b[key]
		switch {
		case !inA:
			bucket.Added = append(bucket.Added, tb)
		case !inB:
			bucket.Removed = append(bucket.Removed, ta)
		default:
			if !triggersEqual(ta, tb) {
				bucket.Changed = append(bucket.Changed, &TriggerChange{Table: key.Table, Name: key.Name, From: ta, To: tb})
			}
		}
	}
	return bucket
}

func triggersEqual(a, b *schema.Trigger) bool {
	if a.Timing != b.Timing || a.Body != b.Body || len(a.Events) != len(b.Events) {
		return false
	}
	for ev := range a.Events {
		if _, ok := b.Events[ev]; !ok {
			return false
		}
	}
	return true
}

// sortedSetEqual compares two column-name lists as sorted sets of
// lowercased names, per the index/FK equality rule in §4.3.
func sortedSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := lowerSorted(a)
	bs := lowerSorted(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func lowerSorted(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(v)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](a, b map[string]V) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedRoutineKeys(a, b map[schema.RoutineKey]*schema.Routine) []schema.RoutineKey {
	seen := make(map[schema.RoutineKey]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]schema.RoutineKey, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sortedTriggerKeys(a, b map[schema.TriggerKey]*schema.Trigger) []schema.TriggerKey {
	seen := make(map[schema.TriggerKey]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]schema.TriggerKey, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func intPtrStr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func precisionScaleStr(c *schema.Column) string {
	if c.Precision == nil {
		return ""
	}
	s := strconv.Itoa(*c.Precision)
	if c.Scale != nil {
		s += "," + strconv.Itoa(*c.Scale)
	}
	return s
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func strPtrOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
