package ddlgen

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/dbschemadiff/engine/pkg/differ"
	"github.com/dbschemadiff/engine/pkg/schema"
)

// ToPostgres renders diff as a PostgreSQL SQL script per opts.
func ToPostgres(diff *differ.Diff, opts Options) string {
	d := dialect{
		name:              "postgres",
		transactionOpener: "BEGIN;",
		quoteIdent:        pq.QuoteIdentifier,
		columnDef:         postgresColumnDef,
	}
	return d.generate(diff, opts)
}

func postgresColumnDef(c *schema.Column) (string, []string) {
	var b strings.Builder
	b.WriteString(postgresTypeSQL(c))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil && *c.Default != "" {
		fmt.Fprintf(&b, " DEFAULT %s", *c.Default)
	}
	if c.Collation != "" {
		fmt.Fprintf(&b, " COLLATE %s", pq.QuoteIdentifier(c.Collation))
	}

	var todos []string
	if c.Generated == schema.GenerationIdentity || c.Generated == schema.GenerationSequence {
		todos = append(todos, "ensure generation strategy is preserved")
	}
	return b.String(), todos
}

func postgresTypeSQL(c *schema.Column) string {
	if c.Length != nil {
		return fmt.Sprintf("%s(%d)", c.DataType, *c.Length)
	}
	if c.Precision != nil {
		if c.Scale != nil {
			return fmt.Sprintf("%s(%d,%d)", c.DataType, *c.Precision, *c.Scale)
		}
		return fmt.Sprintf("%s(%d)", c.DataType, *c.Precision)
	}
	return c.DataType
}
