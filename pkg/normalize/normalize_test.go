package normalize_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/ptr"

	"github.com/dbschemadiff/engine/pkg/normalize"
	"github.com/dbschemadiff/engine/pkg/schema"
)

func sampleModel() *schema.Model {
	m := schema.NewModel()
	t := schema.NewTable("Users")
	t.Columns = []*schema.Column{
		{Name: "ID", DataType: "INTEGER", Nullable: false},
		{Name: "CreatedAt", DataType: "timestamp without time zone", Default: ptr.To("(now())")},
	}
	t.ForeignKeys["fk_owner"] = &schema.ForeignKey{
		Name: "fk_owner", Table: "Users", Columns: []string{"OwnerID"},
		ReferencedTable: "Accounts", ReferencedColumns: []string{"ID"},
		OnDelete: "cascade",
	}
	t.Checks["chk_id"] = &schema.Check{Name: "chk_id", Table: "Users", Expression: "id   >   0"}
	m.Tables["Users"] = t
	return m
}

func TestNormalizeNameCaseAndTypes(t *testing.T) {
	c := qt.New(t)
	n := normalize.New(normalize.DefaultOptions())

	out := n.Normalize(sampleModel())

	table, ok := out.Tables["users"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(table.Columns[0].DataType, qt.Equals, "int")
	c.Assert(table.Columns[1].DataType, qt.Equals, "timestamp")
	c.Assert(*table.Columns[1].Default, qt.Equals, "CURRENT_TIMESTAMP")
}

func TestNormalizeForeignKeyActionsUppercased(t *testing.T) {
	c := qt.New(t)
	n := normalize.New(normalize.DefaultOptions())

	out := n.Normalize(sampleModel())
	fk := out.Tables["users"].ForeignKeys["fk_owner"]
	c.Assert(fk.OnDelete, qt.Equals, "CASCADE")
	c.Assert(fk.ReferencedTable, qt.Equals, "accounts")
}

func TestNormalizeCollapsesCheckWhitespace(t *testing.T) {
	c := qt.New(t)
	n := normalize.New(normalize.DefaultOptions())

	out := n.Normalize(sampleModel())
	chk := out.Tables["users"].Checks["chk_id"]
	c.Assert(chk.Expression, qt.Equals, "id > 0")
}

func TestNormalizeIdempotent(t *testing.T) {
	c := qt.New(t)
	n := normalize.New(normalize.DefaultOptions())

	once := n.Normalize(sampleModel())
	twice := n.Normalize(once)

	c.Assert(twice.Tables["users"].Columns[0].DataType, qt.Equals, once.Tables["users"].Columns[0].DataType)
	c.Assert(*twice.Tables["users"].Columns[1].Default, qt.Equals, *once.Tables["users"].Columns[1].Default)
}

func TestNormalizeIgnoreList(t *testing.T) {
	c := qt.New(t)
	opts := normalize.DefaultOptions()
	opts.NameCase.Ignore = []string{"Users"}
	n := normalize.New(opts)

	out := n.Normalize(sampleModel())
	_, preserved := out.Tables["Users"]
	c.Assert(preserved, qt.IsTrue)
}

func TestNormalizePreserveStrategy(t *testing.T) {
	c := qt.New(t)
	n := normalize.New(normalize.Options{NameCase: normalize.NameCase{Strategy: normalize.NamePreserve}})

	out := n.Normalize(sampleModel())
	_, preserved := out.Tables["Users"]
	c.Assert(preserved, qt.IsTrue)
}

func TestNormalizeCustomTypeMap(t *testing.T) {
	c := qt.New(t)
	opts := normalize.DefaultOptions()
	opts.MapTypes = map[string]string{"citext": "varchar"}
	n := normalize.New(opts)

	m := schema.NewModel()
	tbl := schema.NewTable("t")
	tbl.Columns = []*schema.Column{{Name: "x", DataType: "CITEXT"}}
	m.Tables["t"] = tbl

	out := n.Normalize(m)
	c.Assert(out.Tables["t"].Columns[0].DataType, qt.Equals, "varchar")
}
