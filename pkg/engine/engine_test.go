package engine_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/dbschemadiff/engine/pkg/connstr"
	"github.com/dbschemadiff/engine/pkg/engine"
)

func TestLoadRejectsMismatchedDialect(t *testing.T) {
	c := qt.New(t)

	ref, err := connstr.Parse("mariadb://root@localhost/appdb?schema=appdb")
	c.Assert(err, qt.IsNil)

	_, err = engine.LoadPostgres(nil, ref) //nolint:staticcheck // nil context is fine: Load fails before using it
	c.Assert(err, qt.ErrorAs, new(engine.ConfigError))
}

func TestLoadDispatchesUnsupportedDialect(t *testing.T) {
	c := qt.New(t)

	_, err := engine.Load(nil, &connstr.Descriptor{Dialect: "oracle"}) //nolint:staticcheck
	c.Assert(err, qt.ErrorAs, new(engine.ConfigError))
}
