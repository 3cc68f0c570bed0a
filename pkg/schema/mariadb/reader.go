// Package mariadb implements the MariaDB Catalog Loader: it turns a live
// connection into a dialect-neutral schema.Model using direct
// information_schema queries (no SHOW CREATE TABLE / DDL parsing).
package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dbschemadiff/engine/pkg/engineerr"
	"github.com/dbschemadiff/engine/pkg/schema"
)

var systemSchemas = map[string]bool{
	"mysql":               true,
	"performance_schema":  true,
	"information_schema":  true,
	"sys":                 true,
}

// Reader loads a Schema Model from a MariaDB (or MySQL) database.
type Reader struct {
	db     *sql.DB
	schema string
	log    *slog.Logger
}

// Open establishes a connection to dsn (a go-sql-driver/mysql DSN) and
// returns a Reader bound to schema.
func Open(dsn, schemaName string) (*Reader, error) {
	if systemSchemas[schemaName] {
		return nil, engineerr.ConfigError{Reason: fmt.Sprintf("refusing to introspect system schema %q", schemaName)}
	}
	if schemaName == "" {
		return nil, engineerr.ConfigError{Reason: "schema is required"}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, engineerr.ConnectError{Dialect: "mariadb", Reason: err.Error()}
	}
	db.SetMaxOpenConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, engineerr.ConnectError{Dialect: "mariadb", Reason: err.Error()}
	}

	return &Reader{db: db, schema: schemaName, log: slog.Default().With("dialect", "mariadb", "schema", schemaName)}, nil
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

// loadTables lists base tables, including the MariaDB-specific
// SYSTEM VERSIONED table type.
func (r *Reader) loadTables(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE IN ('BASE TABLE', 'SYSTEM VERSIONED')
		ORDER BY TABLE_NAME`

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

// loadColumns fetches every column in ordinal order directly from
// information_schema.COLUMNS — no DDL text is parsed. generated is derived
// from the EXTRA column's "auto_increment" marker.
func (r *Reader) loadColumns(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT
			TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
			IS_NULLABLE, COLUMN_DEFAULT,
			CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE,
			ORDINAL_POSITION, EXTRA, COALESCE(COLLATION_NAME, '')
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "columns", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, dataType, columnType, isNullable string
		var def sql.NullString
		var charLen, numPrec, numScale sql.NullInt64
		var ordinal int
		var extra, collation string

		if err := rows.Scan(&tableName, &colName, &dataType, &columnType, &isNullable,
			&def, &charLen, &numPrec, &numScale, &ordinal, &extra, &collation); err != nil {
			return engineerr.CatalogError{Entity: "columns", Reason: err.Error()}
		}

		table, ok := model.Tables[tableName]
		if !ok {
			continue
		}

		col := &schema.Column{
			Name:      colName,
			DataType:  dataType,
			Nullable:  isNullable == "YES",
			Ordinal:   ordinal,
			Collation: collation,
			Generated: schema.GenerationNone,
		}
		if dataType == "tinyint" && strings.Contains(columnType, "(1)") {
			col.DataType = "tinyint(1)" // fed through normalize's synonym table as boolean
		}
		if charLen.Valid {
			v := int(charLen.Int64)
			col.Length = &v
		} else if n := parseInlineLength(columnType); n != nil {
			col.Length = n
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
		}
		if strings.Contains(extra, "auto_increment") {
			col.Generated = schema.GenerationAutoIncrement
		}

		table.Columns = append(table.Columns, col)
	}
	return rows.Err()
}

// parseInlineLength recovers a length from MySQL's inline type syntax, e.g.
// "varchar(128)" or "int(11)", when CHARACTER_MAXIMUM_LENGTH is null
// (as it is for non-string types that still carry a display width). Value
// lists such as "enum('a','b')" yield nil.
func parseInlineLength(columnType string) *int {
	start := strings.Index(columnType, "(")
	end := strings.Index(columnType, ")")
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	inner := columnType[start+1 : end]
	if strings.Contains(inner, "'") {
		return nil // enum/set value list, not a length
	}
	inner = strings.Split(inner, ",")[0]
	n, err := strconv.Atoi(strings.TrimSpace(inner))
	if err != nil {
		return nil
	}
	return &n
}

// loadPrimaryKeys fetches one primary key per table from STATISTICS, named
// "PRIMARY" by MariaDB convention.
func (r *Reader) loadPrimaryKeys(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT TABLE_NAME, COLUMN_NAME
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND INDEX_NAME = 'PRIMARY'
		ORDER BY TABLE_NAME, SEQ_IN_INDEX`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "primary keys", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName string
		if err := rows.Scan(&tableName, &colName); err != nil {
			return engineerr.CatalogError{Entity: "primary keys", Reason: err.Error()}
		}
		table, ok := model.Tables[tableName]
		if !ok {
			continue
		}
		if table.PrimaryKey == nil {
			table.PrimaryKey = &schema.PrimaryKey{Name: "PRIMARY"}
		}
		table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, colName)
	}
	return rows.Err()
}

// loadIndexes aggregates information_schema.STATISTICS rows sharing
// (table, index_name), skipping the PRIMARY index.
func (r *Reader) loadIndexes(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT
			s.TABLE_NAME,
			s.INDEX_NAME,
			GROUP_CONCAT(s.COLUMN_NAME ORDER BY s.SEQ_IN_INDEX) AS cols,
			MIN(s.NON_UNIQUE) AS non_unique,
			MIN(s.INDEX_TYPE) AS index_type
		FROM information_schema.STATISTICS s
		WHERE s.TABLE_SCHEMA = ? AND s.INDEX_NAME != 'PRIMARY'
		GROUP BY s.TABLE_NAME, s.INDEX_NAME
		ORDER BY s.TABLE_NAME, s.INDEX_NAME`

	rows, err := r.db.QueryContext(ctx, q, r.schema)
	if err != nil {
		return engineerr.CatalogError{Entity: "indexes", Reason: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, indexName, colsStr, indexType string
		var nonUnique int
		if err := rows.Scan(&tableName, &indexName, &colsStr, &nonUnique, &indexType); err != nil {
			return engineerr.CatalogError{Entity: "indexes", Reason: err.Error()}
		}
		table, ok := model.Tables[tableName]
		if !ok {
			continue
		}
		table.Indexes[indexName] = &schema.Index{
			Name:    indexName,
			Table:   tableName,
			Unique:  nonUnique == 0,
			Columns: strings.Split(colsStr, ","),
			Using:   strings.ToLower(indexType),
		}
	}
	return rows.Err()
}

// loadForeignKeys joins TABLE_CONSTRAINTS / KEY_COLUMN_USAGE /
// REFERENTIAL_CONSTRAINTS, grouping rows by (table, constraint).
func (r *Reader) loadForeignKeys(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT
			tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.COLUMN_NAME, kcu.ORDINAL_POSITION,
			kcu.REFERENCED_TABLE_NAME, kcu.REFERENCED_COLUMN_NAME,
			COALESCE(rc.UPDATE_RULE, ''), COALESCE(rc.DELETE_RULE, '')
		FROM information_schema.TABLE_CONSTRAINTS tc
		JOIN information_schema.KEY_COLUMN_USAGE kcu
			ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
			AND kcu.TABLE_NAME = tc.TABLE_NAME
		JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
			ON rc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND rc.CONSTRAINT_SCHEMA = tc.TABLE_SCHEMA
		WHERE tc.TABLE_SCHEMA = ? AND tc.CONSTRAINT_TYPE = 'FOREIGN KEY'
		ORDER BY tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

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

// loadChecks fetches CHECK_CONSTRAINTS rows, present since MariaDB 10.2.1.
func (r *Reader) loadChecks(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT tc.TABLE_NAME, tc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
		FROM information_schema.TABLE_CONSTRAINTS tc
		JOIN information_schema.CHECK_CONSTRAINTS cc
			ON cc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND cc.CONSTRAINT_SCHEMA = tc.TABLE_SCHEMA
		WHERE tc.TABLE_SCHEMA = ? AND tc.CONSTRAINT_TYPE = 'CHECK'
		ORDER BY tc.TABLE_NAME, tc.CONSTRAINT_NAME`

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
		SELECT TABLE_NAME, VIEW_DEFINITION
		FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`

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
		SELECT ROUTINE_NAME, ROUTINE_TYPE, COALESCE(ROUTINE_BODY, 'SQL'), COALESCE(ROUTINE_DEFINITION, '')
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		ORDER BY ROUTINE_TYPE, ROUTINE_NAME`

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

// loadTriggers groups rows by (table, trigger_name); MySQL/MariaDB exposes
// exactly one event per trigger row (no comma-separated lists), so each
// trigger maps to a singleton event set.
func (r *Reader) loadTriggers(ctx context.Context, model *schema.Model) error {
	const q = `
		SELECT EVENT_OBJECT_TABLE, TRIGGER_NAME, ACTION_TIMING, EVENT_MANIPULATION, ACTION_STATEMENT
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY EVENT_OBJECT_TABLE, TRIGGER_NAME`

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
