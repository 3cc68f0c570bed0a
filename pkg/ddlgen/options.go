// Package ddlgen implements the DDL Generator stage: one renderer per target
// dialect, each a pure function from a differ.Diff plus Options to a SQL
// script string.
package ddlgen

// Direction selects which side of a Diff is treated as the desired end
// state.
type Direction string

const (
	// AtoB treats A as desired: objects added in B are dropped, objects
	// removed from A are (re)created.
	AtoB Direction = "AtoB"
	// BtoA is the mirror of AtoB.
	BtoA Direction = "BtoA"
)

// Options configures one generation run.
type Options struct {
	Direction       Direction
	WithTransaction bool
	SafeMode        bool
	Cascade         bool
	IfExists        bool
}
