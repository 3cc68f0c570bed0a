package ddlgen

import (
	"fmt"
	"strings"

	"github.com/dbschemadiff/engine/pkg/differ"
	"github.com/dbschemadiff/engine/pkg/schema"
)

// ToMariaDB renders diff as a MariaDB SQL script per opts.
func ToMariaDB(diff *differ.Diff, opts Options) string {
	d := dialect{
		name:              "mariadb",
		transactionOpener: "START TRANSACTION;",
		quoteIdent:        mariadbQuoteIdent,
		columnDef:         mariadbColumnDef,
		createTableSuffix: " ENGINE=InnoDB",
	}
	return d.generate(diff, opts)
}

// mariadbQuoteIdent backtick-quotes an identifier, doubling any embedded
// backtick.
func mariadbQuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func mariadbColumnDef(c *schema.Column) (string, []string) {
	var b strings.Builder
	b.WriteString(mariadbTypeSQL(c))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil && *c.Default != "" {
		fmt.Fprintf(&b, " DEFAULT %s", *c.Default)
	}
	if c.Generated == schema.GenerationAutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	if c.Collation != "" {
		fmt.Fprintf(&b, " COLLATE %s", c.Collation)
	}
	return b.String(), nil
}

func mariadbTypeSQL(c *schema.Column) string {
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
