// Package schema defines the dialect-neutral Schema Model produced by the
// catalog loaders and consumed by the normalizer, differ, and DDL generator.
package schema

// GenerationKind classifies how a column's value is produced.
type GenerationKind string

const (
	GenerationNone          GenerationKind = "none"
	GenerationIdentity      GenerationKind = "identity"
	GenerationSequence      GenerationKind = "sequence"
	GenerationAutoIncrement GenerationKind = "auto_increment"
)

// RoutineKind distinguishes stored functions from stored procedures.
type RoutineKind string

const (
	RoutineFunction  RoutineKind = "function"
	RoutineProcedure RoutineKind = "procedure"
)

// TriggerTiming is when a trigger fires relative to its event.
type TriggerTiming string

const (
	TriggerBefore TriggerTiming = "before"
	TriggerAfter  TriggerTiming = "after"
)

// TriggerEvent is one of the statement kinds a trigger can fire on.
type TriggerEvent string

const (
	TriggerInsert TriggerEvent = "insert"
	TriggerUpdate TriggerEvent = "update"
	TriggerDelete TriggerEvent = "delete"
)

// Model is the complete, dialect-neutral representation of one database
// schema as of a single Catalog Loader invocation. It is produced once,
// normalized, compared, and discarded — nothing downstream mutates it.
type Model struct {
	Tables   map[string]*Table
	Views    map[string]*View
	Routines map[RoutineKey]*Routine
	Triggers map[TriggerKey]*Trigger
}

// NewModel returns an empty Model with all collections initialized.
func NewModel() *Model {
	return &Model{
		Tables:   make(map[string]*Table),
		Views:    make(map[string]*View),
		Routines: make(map[RoutineKey]*Routine),
		Triggers: make(map[TriggerKey]*Trigger),
	}
}

// RoutineKey is the composite key of a Routine: a function and a procedure
// sharing a name are distinct entities.
type RoutineKey struct {
	Kind RoutineKind
	Name string
}

// TriggerKey is the composite key of a Trigger.
type TriggerKey struct {
	Table string
	Name  string
}

// Table is a base table and everything attached to it.
type Table struct {
	Name        string
	Columns     []*Column
	PrimaryKey  *PrimaryKey
	Indexes     map[string]*Index
	Checks      map[string]*Check
	ForeignKeys map[string]*ForeignKey
}

// Column describes one table column in ordinal order.
type Column struct {
	Name       string
	DataType   string
	Length     *int
	Precision  *int
	Scale      *int
	Nullable   bool
	Default    *string
	Generated  GenerationKind
	Collation  string
	Ordinal    int
}

// PrimaryKey is the optional single primary key of a table.
type PrimaryKey struct {
	Name    string
	Columns []string
}

// Index is a secondary (non-primary-key) index.
type Index struct {
	Name     string
	Table    string
	Unique   bool
	Columns  []string
	Using    string // access method, e.g. "btree"; empty if not reported
}

// Check is a CHECK constraint.
type Check struct {
	Name       string
	Table      string
	Expression string
}

// ForeignKey is a FOREIGN KEY constraint.
type ForeignKey struct {
	Name              string
	Table             string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnUpdate          string
	OnDelete          string
}

// View is a stored SELECT definition.
type View struct {
	Name       string
	Definition string
}

// Routine is a stored function or procedure.
type Routine struct {
	Kind     RoutineKind
	Name     string
	Language string
	Body     string
}

// Trigger fires on a set of events against a table.
type Trigger struct {
	Table  string
	Name   string
	Timing TriggerTiming
	Events map[TriggerEvent]struct{}
	Body   string
}

// NewTable returns an empty Table with its nested collections initialized.
func NewTable(name string) *Table {
	return &Table{
		Name:        name,
		Indexes:     make(map[string]*Index),
		Checks:      make(map[string]*Check),
		ForeignKeys: make(map[string]*ForeignKey),
	}
}

// Clone returns a deep copy of the model so normalization never mutates its
// input.
func (m *Model) Clone() *Model {
	out := NewModel()
	for name, t := range m.Tables {
		out.Tables[name] = t.clone()
	}
	for name, v := range m.Views {
		vv := *v
		out.Views[name] = &vv
	}
	for key, r := range m.Routines {
		rr := *r
		out.Routines[key] = &rr
	}
	for key, tr := range m.Triggers {
		out.Triggers[key] = tr.clone()
	}
	return out
}

func (t *Table) clone() *Table {
	out := NewTable(t.Name)
	for _, c := range t.Columns {
		cc := *c
		if c.Length != nil {
			v := *c.Length
			cc.Length = &v
		}
		if c.Precision != nil {
			v := *c.Precision
			cc.Precision = &v
		}
		if c.Scale != nil {
			v := *c.Scale
			cc.Scale = &v
		}
		if c.Default != nil {
			v := *c.Default
			cc.Default = &v
		}
		out.Columns = append(out.Columns, &cc)
	}
	if t.PrimaryKey != nil {
		pk := *t.PrimaryKey
		pk.Columns = append([]string(nil), t.PrimaryKey.Columns...)
		out.PrimaryKey = &pk
	}
	for name, idx := range t.Indexes {
		ii := *idx
		ii.Columns = append([]string(nil), idx.Columns...)
		out.Indexes[name] = &ii
	}
	for name, chk := range t.Checks {
		cc := *chk
		out.Checks[name] = &cc
	}
	for name, fk := range t.ForeignKeys {
		ff := *fk
		ff.Columns = append([]string(nil), fk.Columns...)
		ff.ReferencedColumns = append([]string(nil), fk.ReferencedColumns...)
		out.ForeignKeys[name] = &ff
	}
	return out
}

func (tr *Trigger) clone() *Trigger {
	out := *tr
	out.Events = make(map[TriggerEvent]struct{}, len(tr.Events))
	for ev := range tr.Events {
		out.Events[ev] = struct{}{}
	}
	return &out
}
