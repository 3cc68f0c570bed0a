// Package postgres implements the PostgreSQL Catalog Loader: it turns a live
// connection into a dialect-neutral schema.Model.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"

	"github.com/dbschemadiff/engine/pkg/engineerr"
	"github.com/dbschemadiff/engine/pkg/schema"
)

var systemSchemas = map[string]bool{
	"pg_catalog":         true,
	"information_schema": true,
	"pg_toast":           true,
	"pg_internal":        true,
}

// Reader loads a Schema Model from a PostgreSQL database.
type Reader struct {
	db     *sql.DB
	schema string
	log    *slog.Logger
}

// Open establishes a connection to dsn and returns a Reader bound to schema.
// The caller must call Close when done; Load does not close the connection.
// For one-shot use, LoadSchema wraps Open, Load and Close and releases the
// connection on every exit path.
func Open(dsn, schemaName string) (*Reader, error) {
	if systemSchemas[schemaName] {
		return nil, engineerr.ConfigError{Reason: fmt.Sprintf("refusing to introspect system schema %q", schemaName)}
	}
	if schemaName == "" {
		return nil, engineerr.ConfigError{Reason: "schema is required"}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, engineerr.ConnectError{Dialect: "postgres", Reason: err.Error()}
	}
	db.SetMaxOpenConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, engineerr.ConnectError{Dialect: "postgres", Reason: err.Error()}
	}

	return &Reader{db: db, schema: schemaName, log: slog.Default().With("dialect", "postgres", "schema", schemaName)}, nil
}

// Close releases the underlying connection pool.
func (r *Reader) Close() error {
	return r.db.Close()
}

// LoadSchema opens dsn, loads the named schema, and closes the connection
// regardless of outcome.
func LoadSchema(ctx context.Context, dsn, schemaName string) (*schema.Model, error) {
	r, err := Open(dsn, schemaName)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Load(ctx)
}

// Load reads the complete schema for r's bound schema name.
func (r *Reader) Load(ctx context.Context) (*schema.Model, error) {
	model := schema.NewModel()

	if err := r.loadTables(ctx, model); err != nil {
		return nil, fmt.Errorf("loading tables: %w", err)
	}
	if err := r.loadColumns(ctx, model); err != nil {
		return nil, fmt.Errorf("loading columns: %w", err)
	}
	if err := r.loadPrimaryKeys(ctx, model); err != nil {
		return nil, fmt.Errorf("loading primary keys: %w", err)
	}
	if err := r.loadIndexes(ctx, model); err != nil {
		return nil, fmt.Errorf("loading indexes: %w", err)
	}
	if err := r.loadForeignKeys(ctx, model); err != nil {
		return nil, fmt.Errorf("loading foreign keys: %w", err)
	}
	if err := r.loadChecks(ctx, model); err != nil {
		return nil, fmt.Errorf("loading checks: %w", err)
	}
	if err := r.loadViews(ctx, model); err != nil {
		return nil, fmt.Errorf("loading views: %w", err)
	}
	if err := r.loadRoutines(ctx, model); err != nil {
		return nil, fmt.Errorf("loading routines: %w", err)
	}
	if err := r.loadTriggers(ctx, model); err != nil {
		return nil, fmt.Errorf("loading triggers: %w", err)
	}

	r.log.Debug("schema loaded", "tables", len(model.Tables), "views", len(model.Views))
	return model, nil
}

// loadTables lists base tables (relkind r=ordinary table, p=partitioned table).
func (r *Reader) loadTables(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN ('r', 'p')
		ORDER BY c.relname`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "tables", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return engineerr.CatalogError{Entity: "tables", Reason: err.Error()}
		}
		model.Tables[name] = schema.NewTable(name)
	}
	return rows.Err()
}

// loadColumns fetches every column in ordinal order, deriving Generated from
// identity-column metadata or an owned sequence default.
func (r *Reader) loadColumns(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT
			c.table_name, c.column_name, c.data_type, c.udt_name,
			c.is_nullable, c.column_default,
			c.character_maximum_length, c.numeric_precision, c.numeric_scale,
			c.ordinal_position, COALESCE(c.identity_generation, ''),
			COALESCE(c.collation_name, '')
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "columns", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, dataType, udtName, isNullable string
		var def sql.NullString
		var charLen, numPrec, numScale sql.NullInt64
		var ordinal int
		var identityGen, collation string

		if err := rows.Scan(&tableName, &colName, &dataType, &udtName, &isNullable,
			&def, &charLen, &numPrec, &numScale, &ordinal, &identityGen, &collation); err != nil {
			return engineerr.CatalogError{Entity: "columns", Reason: err.Error()}
		}

		table, ok := model.Tables[tableName]
		if !ok {
			continue // table filtered out (shouldn't normally happen)
		}

		col := &schema.Column{
			Name:      colName,
			DataType:  dataType,
			Nullable:  isNullable == "YES",
			Ordinal:   ordinal,
			Collation: collation,
			Generated: schema.GenerationNone,
		}
		if udtName != "" && strings.HasPrefix(dataType, "USER-DEFINED") {
			col.DataType = udtName
		}
		if charLen.Valid {
			v := int(charLen.Int64)
			col.Length = &v
		}
		if numPrec.Valid {
			v := int(numPrec.Int64)
			col.Precision = &v
		}
		if numScale.Valid {
			v := int(numScale.Int64)
			col.Scale = &v
		}
		if def.Valid {
			v := def.String
			col.Default = &v
			if strings.Contains(v, "nextval(") {
				col.Generated = schema.GenerationSequence
			}
		}
		if identityGen != "" {
			col.Generated = schema.GenerationIdentity
		}

		table.Columns = append(table.Columns, col)
	}
	return rows.Err()
}

// loadPrimaryKeys fetches one primary key per table, columns in ordinal order.
func (r *Reader) loadPrimaryKeys(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT tc.table_name, tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY tc.table_name, kcu.ordinal_position`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "primary keys", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, constraintName, colName string
		if err := rows.Scan(&tableName, &constraintName, &colName); err != nil {
			return engineerr.CatalogError{Entity: "primary keys", Reason: err.Error()}
		}
		table, ok := model.Tables[tableName]
		if !ok {
			continue
		}
		if table.PrimaryKey == nil {
			table.PrimaryKey = &schema.PrimaryKey{Name: constraintName}
		}
		table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, colName)
	}
	return rows.Err()
}

// loadIndexes takes uniqueness from pg_index.indisunique and parses
// pg_get_indexdef to recover the access method and the column list; the
// primary-key-backing index is skipped.
func (r *Reader) loadIndexes(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT
			t.relname AS table_name,
			i.relname AS index_name,
			pg_get_indexdef(ix.indexrelid) AS indexdef,
			ix.indisprimary,
			ix.indisunique
		FROM pg_index ix
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1
		ORDER BY t.relname, i.relname`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "indexes", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, indexName, indexDef string
		var isPrimary, isUnique bool
		if err := rows.Scan(&tableName, &indexName, &indexDef, &isPrimary, &isUnique); err != nil {
			return engineerr.CatalogError{Entity: "indexes", Reason: err.Error()}
		}
		if isPrimary {
			continue
		}
		table, ok := model.Tables[tableName]
		if !ok {
			continue
		}

		idx := &schema.Index{Name: indexName, Table: tableName, Unique: isUnique}
		idx.Using = parseIndexUsing(indexDef)
		cols, err := parseIndexColumns(indexDef)
		if err != nil {
			return engineerr.CatalogError{Entity: fmt.Sprintf("index %s.%s", tableName, indexName), Reason: err.Error()}
		}
		idx.Columns = cols
		table.Indexes[indexName] = idx
	}
	return rows.Err()
}

// parseIndexUsing extracts the access method from an indexdef like
// `CREATE INDEX idx ON t USING btree (col)`.
func parseIndexUsing(def string) string {
	lower := strings.ToLower(def)
	marker := " using "
	i := strings.Index(lower, marker)
	if i < 0 {
		return ""
	}
	rest := def[i+len(marker):]
	end := strings.IndexAny(rest, " (")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// parseIndexColumns extracts and unquotes the parenthesized column list of
// an indexdef.
func parseIndexColumns(def string) ([]string, error) {
	start := strings.Index(def, "(")
	end := strings.LastIndex(def, ")")
	if start < 0 || end < 0 || start >= end {
		return nil, fmt.Errorf("could not locate column list in %q", def)
	}
	raw := def[start+1 : end]
	parts := strings.Split(raw, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"`)
		cols = append(cols, p)
	}
	return cols, nil
}

// loadForeignKeys groups key_column_usage / constraint_column_usage rows by
// (table, constraint) and accumulates columns in ordinal order.
func (r *Reader) loadForeignKeys(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT
			tc.table_name, tc.constraint_name, kcu.column_name, kcu.ordinal_position,
			ccu.table_name AS ref_table, ccu.column_name AS ref_column,
			COALESCE(rc.update_rule, ''), COALESCE(rc.delete_rule, '')
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = rc.unique_constraint_name AND ccu.constraint_schema = rc.unique_constraint_schema
			AND ccu.position_in_unique_constraint = kcu.position_in_unique_constraint
		WHERE tc.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "foreign keys", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, constraintName, colName, refTable, refCol, onUpdate, onDelete string
		var ordinal int
		if err := rows.Scan(&tableName, &constraintName, &colName, &ordinal, &refTable, &refCol, &onUpdate, &onDelete); err != nil {
			return engineerr.CatalogError{Entity: "foreign keys", Reason: err.Error()}
		}
		table, ok := model.Tables[tableName]
		if !ok {
			continue
		}
		fk, ok := table.ForeignKeys[constraintName]
		if !ok {
			fk = &schema.ForeignKey{
				Name: constraintName, Table: tableName,
				ReferencedTable: refTable, OnUpdate: onUpdate, OnDelete: onDelete,
			}
			table.ForeignKeys[constraintName] = fk
		}
		fk.Columns = append(fk.Columns, colName)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	return rows.Err()
}

// loadChecks fetches CHECK constraint clauses. PostgreSQL's
// information_schema views also surface the implicit NOT NULL backing
// checks (constraint_type 'CHECK', name ending in "not_null", clause
// "<col> IS NOT NULL"); rows matching both of those are filtered out.
func (r *Reader) loadChecks(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT tc.table_name, tc.constraint_name, cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
			ON cc.constraint_name = tc.constraint_name AND cc.constraint_schema = tc.table_schema
		WHERE tc.table_schema = $1 AND tc.constraint_type = 'CHECK'
			AND NOT (tc.constraint_name LIKE '%not_null' AND cc.check_clause LIKE '% IS NOT NULL')
		ORDER BY tc.table_name, tc.constraint_name`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "checks", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, name, clause string
		if err := rows.Scan(&tableName, &name, &clause); err != nil {
			return engineerr.CatalogError{Entity: "checks", Reason: err.Error()}
		}
		table, ok := model.Tables[tableName]
		if !ok {
			continue
		}
		table.Checks[name] = &schema.Check{Name: name, Table: tableName, Expression: clause}
	}
	return rows.Err()
}

func (r *Reader) loadViews(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT table_name, view_definition
		FROM information_schema.views
		WHERE table_schema = $1
		ORDER BY table_name`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "views", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return engineerr.CatalogError{Entity: "views", Reason: err.Error()}
		}
		model.Views[name] = &schema.View{Name: name, Definition: def}
	}
	return rows.Err()
}

func (r *Reader) loadRoutines(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT routine_name, routine_type, external_language, COALESCE(routine_definition, '')
		FROM information_schema.routines
		WHERE routine_schema = $1
		ORDER BY routine_type, routine_name`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "routines", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var name, routineType, language, body string
		if err := rows.Scan(&name, &routineType, &language, &body); err != nil {
			return engineerr.CatalogError{Entity: "routines", Reason: err.Error()}
		}
		kind := schema.RoutineFunction
		if strings.EqualFold(routineType, "PROCEDURE") {
			kind = schema.RoutineProcedure
		}
		key := schema.RoutineKey{Kind: kind, Name: name}
		model.Routines[key] = &schema.Routine{Kind: kind, Name: name, Language: language, Body: body}
	}
	return rows.Err()
}

// loadTriggers groups rows by (table, trigger_name); PostgreSQL exposes one
// row per event, so events are deduplicated into a set.
func (r *Reader) loadTriggers(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT event_object_table, trigger_name, action_timing, event_manipulation,
		       action_statement
		FROM information_schema.triggers
		WHERE trigger_schema = $1
		ORDER BY event_object_table, trigger_name`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "triggers", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, name, timing, event, body string
		if err := rows.Scan(&tableName, &name, &timing, &event, &body); err != nil {
			return engineerr.CatalogError{Entity: "triggers", Reason: err.Error()}
		}
		key := schema.TriggerKey{Table: tableName, Name: name}
		trig, ok := model.Triggers[key]
		if !ok {
			t := schema.TriggerBefore
			if strings.EqualFold(timing, "AFTER") {
				t = schema.TriggerAfter
			}
			trig = &schema.Trigger{
				Table: tableName, Name: name, Timing: t, Body: body,
				Events: make(map[schema.TriggerEvent]struct{}),
			}
			model.Triggers[key] = trig
		}
		switch strings.ToUpper(event) {
		case "INSERT":
			trig.Events[schema.TriggerInsert] = struct{}{}
		case "UPDATE":
			trig.Events[schema.TriggerUpdate] = struct{}{}
		case "DELETE":
			trig.Events[schema.TriggerDelete] = struct{}{}
		}
	}
	return rows.Err()
}
