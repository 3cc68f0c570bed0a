package main

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/dbschemadiff/engine/pkg/engine"
)

func TestRootCommandWiring(t *testing.T) {
	c := qt.New(t)

	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Use] = true
	}
	c.Assert(names["compare"], qt.IsTrue)
	c.Assert(names["generate"], qt.IsTrue)
	c.Assert(names["prompt"], qt.IsTrue)
}

func TestWithSchemaAppendsQueryParam(t *testing.T) {
	c := qt.New(t)

	c.Assert(withSchema("postgres://u@h/db", "public"), qt.Equals, "postgres://u@h/db?schema=public")
	c.Assert(withSchema("postgres://u@h/db?ssl=true", "public"), qt.Equals, "postgres://u@h/db?ssl=true&schema=public")
	c.Assert(withSchema("postgres://u@h/db?schema=existing", ""), qt.Equals, "postgres://u@h/db?schema=existing")
}

func TestResolveDescriptorsRequiresFromAndTo(t *testing.T) {
	c := qt.New(t)

	flags := newCommonFlags()
	_, _, err := resolveDescriptors(flags)
	c.Assert(err, qt.ErrorMatches, ".*--from and --to.*")
}

func TestParseDirection(t *testing.T) {
	c := qt.New(t)

	d, err := parseDirection("AtoB")
	c.Assert(err, qt.IsNil)
	c.Assert(d, qt.Equals, engine.AtoB)

	_, err = parseDirection("sideways")
	c.Assert(err, qt.ErrorMatches, ".*--direction.*")
}

func TestTruncate(t *testing.T) {
	c := qt.New(t)

	c.Assert(truncate("short", 10), qt.Equals, "short")
	c.Assert(truncate("0123456789abcdef", 10), qt.Equals, "0123456789\n... (truncated)")
}
