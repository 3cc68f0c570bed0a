package mariadb

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/dbschemadiff/engine/pkg/engineerr"
)

func TestOpenRejectsSystemSchema(t *testing.T) {
	c := qt.New(t)

	for _, name := range []string{"mysql", "performance_schema", "information_schema", "sys"} {
		_, err := Open("user:pass@tcp(localhost:3306)/db", name)
		c.Assert(err, qt.ErrorAs, new(engineerr.ConfigError))
	}
}

func TestOpenRejectsEmptySchema(t *testing.T) {
	c := qt.New(t)

	_, err := Open("user:pass@tcp(localhost:3306)/db", "")
	c.Assert(err, qt.ErrorAs, new(engineerr.ConfigError))
}

func TestParseInlineLength(t *testing.T) {
	c := qt.New(t)

	c.Assert(*parseInlineLength("varchar(128)"), qt.Equals, 128)
	c.Assert(parseInlineLength("enum('a','b')"), qt.IsNil)
	c.Assert(parseInlineLength("text"), qt.IsNil)
}
