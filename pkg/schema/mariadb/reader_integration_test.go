//go:build integration

package mariadb

import (
	"context"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
)

// TestLoadAgainstLiveDatabase requires DBDIFF_TEST_MARIADB_DSN to point at a
// reachable MariaDB instance. Skipped otherwise.
func TestLoadAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("DBDIFF_TEST_MARIADB_DSN")
	schemaName := os.Getenv("DBDIFF_TEST_MARIADB_SCHEMA")
	if dsn == "" || schemaName == "" {
		t.Skip("DBDIFF_TEST_MARIADB_DSN / DBDIFF_TEST_MARIADB_SCHEMA not set")
	}
	c := qt.New(t)

	model, err := LoadSchema(context.Background(), dsn, schemaName)
	c.Assert(err, qt.IsNil)
	c.Assert(model, qt.IsNotNil)
}
