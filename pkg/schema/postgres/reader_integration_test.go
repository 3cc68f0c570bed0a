//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
)

// TestLoadAgainstLiveDatabase requires DBDIFF_TEST_POSTGRES_DSN to point at a
// reachable PostgreSQL instance with a "public" schema. Skipped otherwise.
func TestLoadAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("DBDIFF_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DBDIFF_TEST_POSTGRES_DSN not set")
	}
	c := qt.New(t)

	model, err := LoadSchema(context.Background(), dsn, "public")
	c.Assert(err, qt.IsNil)
	c.Assert(model, qt.IsNotNil)
}
