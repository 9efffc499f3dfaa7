// Package sqlexec runs fraud-detection SQL and persists approved tools
// through database/sql. Databricks SQL warehouses, PostgreSQL (pgx) and
// SQLite (modernc) are supported.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	dbsql "github.com/databricks/databricks-sql-go"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/sicko7947/fraudflow"
	_ "modernc.org/sqlite"
)

const validatedBy = "fraudflow"

// Executor implements fraudflow.SQLExecutor
type Executor struct {
	db      *sql.DB
	dialect Dialect
	logger  zerolog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(x *Executor) {
		x.logger = logger
	}
}

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect, opts ...Option) *Executor {
	x := &Executor{
		db:      db,
		dialect: dialect,
		logger:  zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Open connects with a DSN through the dialect's driver and verifies the
// connection
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*Executor, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// single writer; also keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	}
	return ping(ctx, db, dialect, opts...)
}

// WarehouseConfig addresses a Databricks SQL warehouse
type WarehouseConfig struct {
	ServerHostname string
	HTTPPath       string
	AccessToken    string
	Timeout        time.Duration
}

// OpenDatabricks connects to a SQL warehouse with a token
func OpenDatabricks(ctx context.Context, cfg WarehouseConfig, opts ...Option) (*Executor, error) {
	connOpts := []dbsql.ConnOption{
		dbsql.WithServerHostname(cfg.ServerHostname),
		dbsql.WithPort(443),
		dbsql.WithHTTPPath(cfg.HTTPPath),
		dbsql.WithAccessToken(cfg.AccessToken),
	}
	if cfg.Timeout > 0 {
		connOpts = append(connOpts, dbsql.WithTimeout(cfg.Timeout))
	}

	connector, err := dbsql.NewConnector(connOpts...)
	if err != nil {
		return nil, fmt.Errorf("configure databricks connector: %w", err)
	}
	return ping(ctx, sql.OpenDB(connector), DialectDatabricks, opts...)
}

func ping(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Executor, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}
	return New(db, dialect, opts...), nil
}

// DB exposes the underlying handle
func (x *Executor) DB() *sql.DB {
	return x.db
}

// Close releases the connection pool
func (x *Executor) Close() error {
	return x.db.Close()
}

// Run executes query and returns at most rowLimit rows. A rowLimit of 0
// returns every row.
func (x *Executor) Run(ctx context.Context, query string, rowLimit int) (*fraudflow.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty SQL query")
	}

	rows, err := x.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &fraudflow.QueryResult{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		if rowLimit > 0 && len(result.Rows) >= rowLimit {
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	x.logger.Debug().
		Int("columns", len(columns)).
		Int("rows", len(result.Rows)).
		Msg("Query executed")
	return result, nil
}

// UpsertTool replaces the tool row with the same id. A failed delete is
// ignored so the insert decides the outcome.
func (x *Executor) UpsertTool(ctx context.Context, tool fraudflow.ToolRecord) error {
	if err := ValidateTableName(tool.TargetTable); err != nil {
		return err
	}
	d := x.dialect

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE tool_id = %s", tool.TargetTable, d.placeholder(1))
	if _, err := x.db.ExecContext(ctx, deleteSQL, tool.ToolID); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		x.logger.Debug().Err(err).Str("tool_id", tool.ToolID).Msg("Delete before insert failed")
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s
		(tool_id, pattern_id, policy_id, sql_query, validation_status,
		 validated_by, validated_at, execution_count, created_at, updated_at)
		VALUES (%s, %s, %s, %s, 'validated', '%s', %s, 0, %s, %s)`,
		tool.TargetTable,
		d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4),
		validatedBy, d.now(), d.now(), d.now())

	if _, err := x.db.ExecContext(ctx, insertSQL, tool.ToolID, tool.PatternID, tool.PolicyID, tool.SQL); err != nil {
		return fmt.Errorf("insert tool %s: %w", tool.ToolID, err)
	}
	return nil
}

// LinkPatternTool sets the pattern's tool id and marks it active
func (x *Executor) LinkPatternTool(ctx context.Context, patternID, toolID, patternsTable string) error {
	if err := ValidateTableName(patternsTable); err != nil {
		return err
	}
	d := x.dialect

	updateSQL := fmt.Sprintf(`UPDATE %s
		SET tool_id = %s, status = 'active', updated_at = %s
		WHERE pattern_id = %s`,
		patternsTable, d.placeholder(1), d.now(), d.placeholder(2))

	res, err := x.db.ExecContext(ctx, updateSQL, toolID, patternID)
	if err != nil {
		return fmt.Errorf("link pattern %s: %w", patternID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fraudflow.NewWorkflowError(fraudflow.ErrCodeNotFound, fmt.Sprintf("pattern %s not found in %s", patternID, patternsTable))
	}
	return nil
}
