package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/dbschemadiff/engine/pkg/engine"
)

const (
	targetFlag          = "target"
	directionFlag       = "direction"
	withTransactionFlag = "with-transaction"
	safeFlag            = "safe"
	cascadeFlag         = "cascade"
	ifExistsFlag        = "if-exists"
	outFlag             = "out"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a migration script between two schemas",
	Long: `Generate loads --from and --to, normalizes and diffs them, and renders the
result as a SQL script for --target, in the direction given by --direction.`,
	RunE: generateCommand,
}

var generateFlags map[string]cobraflags.Flag

func init() {
	generateFlags = newCommonFlags()
	generateFlags[targetFlag] = &cobraflags.StringFlag{
		Name:  targetFlag,
		Value: "",
		Usage: "Dialect to render DDL for: postgres or mariadb (required)",
	}
	generateFlags[directionFlag] = &cobraflags.StringFlag{
		Name:  directionFlag,
		Value: "AtoB",
		Usage: "Which side is authoritative: AtoB (from -> to) or BtoA (to -> from)",
	}
	generateFlags[withTransactionFlag] = &cobraflags.BoolFlag{
		Name:  withTransactionFlag,
		Value: false,
		Usage: "Wrap the script in a transaction block",
	}
	generateFlags[safeFlag] = &cobraflags.BoolFlag{
		Name:  safeFlag,
		Value: false,
		Usage: "Comment out DROP statements instead of emitting them live",
	}
	generateFlags[cascadeFlag] = &cobraflags.BoolFlag{
		Name:  cascadeFlag,
		Value: false,
		Usage: "Append CASCADE to DROP TABLE and DROP COLUMN statements (other DROP statements are unaffected)",
	}
	generateFlags[ifExistsFlag] = &cobraflags.BoolFlag{
		Name:  ifExistsFlag,
		Value: false,
		Usage: "Add IF EXISTS to DROP VIEW, DROP FUNCTION/PROCEDURE and DROP TRIGGER statements (table, column and index drops are unaffected)",
	}
	generateFlags[outFlag] = &cobraflags.StringFlag{
		Name:  outFlag,
		Value: "",
		Usage: "Also write the generated script to this file",
	}
	cobraflags.RegisterMap(generateCmd, generateFlags)
}

func generateCommand(_ *cobra.Command, _ []string) error {
	from, to, err := resolveDescriptors(generateFlags)
	if err != nil {
		return err
	}

	target := generateFlags[targetFlag].GetString()
	if target != "postgres" && target != "mariadb" {
		return fmt.Errorf("--target must be postgres or mariadb, got %q", target)
	}

	direction, err := parseDirection(generateFlags[directionFlag].GetString())
	if err != nil {
		return err
	}

	ctx := context.Background()
	fromModel, toModel, err := engine.LoadPair(ctx, from, to)
	if err != nil {
		return err
	}
	normOpts := engine.DefaultNormalizeOptions()
	fromModel = engine.NormalizeSchemaModel(fromModel, normOpts)
	toModel = engine.NormalizeSchemaModel(toModel, normOpts)
	diff := engine.ComputeDiff(fromModel, toModel)

	opts := engine.GenOptions{
		Direction:       direction,
		WithTransaction: generateFlags[withTransactionFlag].GetBool(),
		SafeMode:        generateFlags[safeFlag].GetBool(),
		Cascade:         generateFlags[cascadeFlag].GetBool(),
		IfExists:        generateFlags[ifExistsFlag].GetBool(),
	}

	var script string
	switch target {
	case "postgres":
		script = engine.ToPostgres(diff, opts)
	case "mariadb":
		script = engine.ToMariaDB(diff, opts)
	}

	fmt.Fprintln(stdout, script)

	if outPath := generateFlags[outFlag].GetString(); outPath != "" {
		if err := os.WriteFile(outPath, []byte(script+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing --out file: %w", err)
		}
	}
	return nil
}

func parseDirection(raw string) (engine.Direction, error) {
	switch raw {
	case "AtoB", "":
		return engine.AtoB, nil
	case "BtoA":
		return engine.BtoA, nil
	default:
		return "", fmt.Errorf("--direction must be AtoB or BtoA, got %q", raw)
	}
}
