// Package engine exposes the stable contract consumed by the CLI: load two
// schemas, normalize, diff, and generate DDL, without either caller needing
// to touch pkg/schema/postgres, pkg/schema/mariadb, pkg/differ, or
// pkg/ddlgen directly.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/dbschemadiff/engine/pkg/connstr"
	"github.com/dbschemadiff/engine/pkg/ddlgen"
	"github.com/dbschemadiff/engine/pkg/differ"
	"github.com/dbschemadiff/engine/pkg/engineerr"
	"github.com/dbschemadiff/engine/pkg/normalize"
	"github.com/dbschemadiff/engine/pkg/schema"
	"github.com/dbschemadiff/engine/pkg/schema/mariadb"
	"github.com/dbschemadiff/engine/pkg/schema/postgres"
)

// Re-export the error taxonomy under the engine package so callers need only
// import pkg/engine to recover failure classes with errors.As.
type (
	ConfigError     = engineerr.ConfigError
	ConnectError    = engineerr.ConnectError
	CatalogError    = engineerr.CatalogError
	GenerationError = engineerr.GenerationError
)

// LoadPostgres loads the schema named in ref, which must have
// ref.Dialect == connstr.Postgres.
func LoadPostgres(ctx context.Context, ref *connstr.Descriptor) (*schema.Model, error) {
	if ref.Dialect != connstr.Postgres {
		return nil, engineerr.ConfigError{Reason: fmt.Sprintf("LoadPostgres called with dialect %q", ref.Dialect)}
	}
	return postgres.LoadSchema(ctx, ref.PostgresDSN(), ref.Schema)
}

// LoadMariaDB loads the schema named in ref, which must have
// ref.Dialect == connstr.MariaDB.
func LoadMariaDB(ctx context.Context, ref *connstr.Descriptor) (*schema.Model, error) {
	if ref.Dialect != connstr.MariaDB {
		return nil, engineerr.ConfigError{Reason: fmt.Sprintf("LoadMariaDB called with dialect %q", ref.Dialect)}
	}
	return mariadb.LoadSchema(ctx, ref.MariaDBDSN(), ref.Schema)
}

// Load dispatches to LoadPostgres or LoadMariaDB based on ref.Dialect.
func Load(ctx context.Context, ref *connstr.Descriptor) (*schema.Model, error) {
	switch ref.Dialect {
	case connstr.Postgres:
		return LoadPostgres(ctx, ref)
	case connstr.MariaDB:
		return LoadMariaDB(ctx, ref)
	default:
		return nil, engineerr.ConfigError{Reason: fmt.Sprintf("unsupported dialect %q", ref.Dialect)}
	}
}

// LoadPair loads both sides of a comparison concurrently. Each loader is
// isolated with its own connection pool; both goroutines are always joined,
// so a connection opened by the slower loader is never leaked even if the
// faster one fails first.
func LoadPair(ctx context.Context, from, to *connstr.Descriptor) (fromModel, toModel *schema.Model, err error) {
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		m, loadErr := Load(ctx, from)
		if loadErr != nil {
			errs <- fmt.Errorf("loading --from: %w", loadErr)
			return
		}
		fromModel = m
	}()
	go func() {
		defer wg.Done()
		m, loadErr := Load(ctx, to)
		if loadErr != nil {
			errs <- fmt.Errorf("loading --to: %w", loadErr)
			return
		}
		toModel = m
	}()
	wg.Wait()
	close(errs)

	for e := range errs {
		if err == nil {
			err = e
		}
	}
	return fromModel, toModel, err
}

// NormalizeOptions mirrors normalize.Options under the engine package so
// callers need not import pkg/normalize directly.
type NormalizeOptions = normalize.Options

// DefaultNormalizeOptions returns the Normalizer's conventional
// configuration (lowercase names, default canonicalization on). Callers
// that just want "the normal thing" should use this instead of the zero
// value, which leaves names unfolded.
func DefaultNormalizeOptions() NormalizeOptions {
	return normalize.DefaultOptions()
}

// NormalizeSchemaModel applies opts to model, returning a normalized deep
// copy.
func NormalizeSchemaModel(model *schema.Model, opts NormalizeOptions) *schema.Model {
	return normalize.New(opts).Normalize(model)
}

// Diff is re-exported so callers can reference it without importing
// pkg/differ.
type Diff = differ.Diff

// ComputeDiff produces the symmetric Diff between two normalized models.
func ComputeDiff(a, b *schema.Model) *Diff {
	return differ.Compute(a, b)
}

// GenOptions mirrors ddlgen.Options under the engine package.
type GenOptions = ddlgen.Options

// Direction mirrors ddlgen.Direction under the engine package.
type Direction = ddlgen.Direction

const (
	AtoB = ddlgen.AtoB
	BtoA = ddlgen.BtoA
)

// ToPostgres renders diff as a PostgreSQL SQL script.
func ToPostgres(diff *Diff, opts GenOptions) string {
	return ddlgen.ToPostgres(diff, opts)
}

// ToMariaDB renders diff as a MariaDB SQL script.
func ToMariaDB(diff *Diff, opts GenOptions) string {
	return ddlgen.ToMariaDB(diff, opts)
}
