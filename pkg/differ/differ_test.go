package differ_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/ptr"

	"github.com/dbschemadiff/engine/pkg/differ"
	"github.com/dbschemadiff/engine/pkg/schema"
)

func usersModel(emailLength int) *schema.Model {
	m := schema.NewModel()
	t := schema.NewTable("users")
	length := emailLength
	t.Columns = []*schema.Column{
		{Name: "id", DataType: "int", Nullable: false},
		{Name: "email", DataType: "varchar", Length: &length, Nullable: false},
	}
	t.PrimaryKey = &schema.PrimaryKey{Name: "users_pkey", Columns: []string{"id"}}
	m.Tables["users"] = t
	return m
}

func TestComputeEmptyDiffIdentity(t *testing.T) {
	c := qt.New(t)
	m := usersModel(255)

	d := differ.Compute(m, m)

	c.Assert(d.Tables.Added, qt.HasLen, 0)
	c.Assert(d.Tables.Removed, qt.HasLen, 0)
	c.Assert(d.Tables.Changed, qt.HasLen, 0)
}

func TestComputeColumnLengthNarrowing(t *testing.T) {
	c := qt.New(t)
	a := usersModel(255)
	b := usersModel(128)

	d := differ.Compute(a, b)

	c.Assert(d.Tables.Changed, qt.HasLen, 1)
	colChanges := d.Tables.Changed[0].Columns.Changed
	c.Assert(colChanges, qt.HasLen, 1)
	c.Assert(colChanges[0].Name, qt.Equals, "email")
	c.Assert(colChanges[0].LengthChanged, qt.DeepEquals, &differ.ValuePair{From: "255", To: "128"})
	c.Assert(colChanges[0].TypeChanged, qt.IsNil)
}

func TestComputeAddedColumnWithDefault(t *testing.T) {
	c := qt.New(t)
	a := usersModel(255)
	b := usersModel(255)
	b.Tables["users"].Columns = append(b.Tables["users"].Columns, &schema.Column{
		Name: "status", DataType: "varchar", Nullable: true, Default: ptr.To("'pending'"),
	})

	d := differ.Compute(a, b)

	c.Assert(d.Tables.Changed, qt.HasLen, 1)
	c.Assert(d.Tables.Changed[0].Columns.Added, qt.HasLen, 1)
	c.Assert(d.Tables.Changed[0].Columns.Added[0].Name, qt.Equals, "status")
}

func TestComputeIndexUniquenessFlip(t *testing.T) {
	c := qt.New(t)
	a := usersModel(255)
	b := usersModel(255)
	a.Tables["users"].Indexes["users_email_key"] = &schema.Index{Name: "users_email_key", Table: "users", Unique: true, Columns: []string{"email"}}
	b.Tables["users"].Indexes["users_email_key"] = &schema.Index{Name: "users_email_key", Table: "users", Unique: false, Columns: []string{"email"}}

	d := differ.Compute(a, b)

	c.Assert(d.Tables.Changed, qt.HasLen, 1)
	c.Assert(d.Tables.Changed[0].Indexes.Changed, qt.HasLen, 1)
	c.Assert(d.Tables.Changed[0].Indexes.Changed[0].UniqueChanged, qt.IsTrue)
}

func TestComputeIndexColumnOrderInsensitive(t *testing.T) {
	c := qt.New(t)
	a := usersModel(255)
	b := usersModel(255)
	a.Tables["users"].Indexes["idx"] = &schema.Index{Name: "idx", Table: "users", Columns: []string{"id", "email"}}
	b.Tables["users"].Indexes["idx"] = &schema.Index{Name: "idx", Table: "users", Columns: []string{"email", "id"}}

	d := differ.Compute(a, b)

	c.Assert(d.Tables.Changed, qt.HasLen, 0)
}

func TestComputeDirectionSymmetry(t *testing.T) {
	c := qt.New(t)
	a := usersModel(255)
	b := usersModel(255)
	b.Tables["audit_log"] = schema.NewTable("audit_log")

	ab := differ.Compute(a, b)
	ba := differ.Compute(b, a)

	c.Assert(len(ab.Tables.Added), qt.Equals, len(ba.Tables.Removed))
	c.Assert(ab.Tables.Added[0].Name, qt.Equals, ba.Tables.Removed[0].Name)
}

func TestComputeNewTableWithoutPrimaryKey(t *testing.T) {
	c := qt.New(t)
	a := usersModel(255)
	b := usersModel(255)
	audit := schema.NewTable("audit_log")
	audit.Columns = []*schema.Column{
		{Name: "id", DataType: "bigint"},
		{Name: "payload", DataType: "jsonb", Nullable: true},
	}
	b.Tables["audit_log"] = audit

	d := differ.Compute(a, b)

	c.Assert(d.Tables.Added, qt.HasLen, 1)
	c.Assert(d.Tables.Added[0].Name, qt.Equals, "audit_log")
}

func TestComputeRoutineBodyChange(t *testing.T) {
	c := qt.New(t)
	a := schema.NewModel()
	b := schema.NewModel()
	key := schema.RoutineKey{Kind: schema.RoutineFunction, Name: "touch_updated_at"}
	a.Routines[key] = &schema.Routine{Kind: key.Kind, Name: key.Name, Body: "old body"}
	b.Routines[key] = &schema.Routine{Kind: key.Kind, Name: key.Name, Body: "new body"}

	d := differ.Compute(a, b)

	c.Assert(d.Routines.Changed, qt.HasLen, 1)
	c.Assert(d.Routines.Changed[0].From, qt.Equals, "old body")
	c.Assert(d.Routines.Changed[0].To, qt.Equals, "new body")
}

func TestComputeDeterministicOrdering(t *testing.T) {
	c := qt.New(t)
	a := schema.NewModel()
	b := schema.NewModel()
	b.Tables["zzz"] = schema.NewTable("zzz")
	b.Tables["aaa"] = schema.NewTable("aaa")

	d := differ.Compute(a, b)

	c.Assert(d.Tables.Added, qt.HasLen, 2)
	c.Assert(d.Tables.Added[0].Name, qt.Equals, "aaa")
	c.Assert(d.Tables.Added[1].Name, qt.Equals, "zzz")
}
