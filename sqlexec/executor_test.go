package sqlexec

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sicko7947/fraudflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE claims (
	claim_id TEXT PRIMARY KEY,
	provider_npi TEXT,
	fare_amount REAL,
	payload BLOB
);
CREATE TABLE sql_tools (
	tool_id TEXT,
	pattern_id TEXT,
	policy_id TEXT,
	sql_query TEXT,
	validation_status TEXT,
	validated_by TEXT,
	validated_at TIMESTAMP,
	execution_count INTEGER,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);
CREATE TABLE patterns (
	pattern_id TEXT PRIMARY KEY,
	tool_id TEXT,
	status TEXT,
	updated_at TIMESTAMP
);
INSERT INTO claims VALUES ('C1', 'N1', 100.5, x'6869');
INSERT INTO claims VALUES ('C2', 'N1', 200.0, NULL);
INSERT INTO claims VALUES ('C3', 'N2', 300.0, NULL);
INSERT INTO patterns (pattern_id, status) VALUES ('FRAUD-001', 'draft');
`

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	ctx := context.Background()

	x, err := Open(ctx, DialectSQLite, ":memory:", WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { x.Close() })

	_, err = x.DB().ExecContext(ctx, testSchema)
	require.NoError(t, err)
	return x
}

func TestExecutor_RunCapsRows(t *testing.T) {
	x := newTestExecutor(t)

	res, err := x.Run(context.Background(), "SELECT claim_id, fare_amount FROM claims ORDER BY claim_id", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"claim_id", "fare_amount"}, res.Columns)
	require.Equal(t, 2, res.RowCount())
	assert.Equal(t, "C1", res.Rows[0][0])
	assert.Equal(t, 100.5, res.Rows[0][1])

	all, err := x.Run(context.Background(), "SELECT claim_id FROM claims", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, all.RowCount())
}

func TestExecutor_RunConvertsBytes(t *testing.T) {
	x := newTestExecutor(t)

	res, err := x.Run(context.Background(), "SELECT payload FROM claims WHERE claim_id = 'C1'", 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount())
	assert.Equal(t, "hi", res.Rows[0][0])
}

func TestExecutor_RunEmptyResult(t *testing.T) {
	x := newTestExecutor(t)

	res, err := x.Run(context.Background(), "SELECT claim_id FROM claims WHERE 1 = 0", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"claim_id"}, res.Columns)
	assert.NotNil(t, res.Rows)
	assert.Zero(t, res.RowCount())
}

func TestExecutor_RunErrors(t *testing.T) {
	x := newTestExecutor(t)

	_, err := x.Run(context.Background(), "SELECT * FROM no_such_table", 10)
	assert.Error(t, err)

	_, err = x.Run(context.Background(), "   ", 10)
	assert.Error(t, err)
}

func TestExecutor_UpsertToolIsIdempotent(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()

	tool := fraudflow.ToolRecord{
		ToolID:      "tool_FRAUD-001",
		PatternID:   "FRAUD-001",
		PolicyID:    "POL-1",
		SQL:         "SELECT 1",
		TargetTable: "sql_tools",
	}
	require.NoError(t, x.UpsertTool(ctx, tool))

	tool.SQL = "SELECT 2"
	require.NoError(t, x.UpsertTool(ctx, tool))

	res, err := x.Run(ctx, "SELECT sql_query, validation_status, validated_by, execution_count FROM sql_tools WHERE tool_id = 'tool_FRAUD-001'", 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount())
	assert.Equal(t, "SELECT 2", res.Rows[0][0])
	assert.Equal(t, "validated", res.Rows[0][1])
	assert.Equal(t, validatedBy, res.Rows[0][2])
	assert.EqualValues(t, 0, res.Rows[0][3])
}

func TestExecutor_UpsertToolFailure(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()

	err := x.UpsertTool(ctx, fraudflow.ToolRecord{ToolID: "t", TargetTable: "missing_tools"})
	assert.Error(t, err)

	err = x.UpsertTool(ctx, fraudflow.ToolRecord{ToolID: "t", TargetTable: "sql_tools; DROP TABLE claims"})
	assert.True(t, fraudflow.IsCode(err, fraudflow.ErrCodeValidation))
}

func TestExecutor_LinkPatternTool(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, x.LinkPatternTool(ctx, "FRAUD-001", "tool_FRAUD-001", "patterns"))

	res, err := x.Run(ctx, "SELECT tool_id, status FROM patterns WHERE pattern_id = 'FRAUD-001'", 1)
	require.NoError(t, err)
	assert.Equal(t, []any{"tool_FRAUD-001", "active"}, res.Rows[0])

	err = x.LinkPatternTool(ctx, "FRAUD-404", "tool_FRAUD-404", "patterns")
	assert.True(t, fraudflow.IsCode(err, fraudflow.ErrCodeNotFound))
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in     string
		want   Dialect
		driver string
	}{
		{"databricks", DialectDatabricks, "databricks"},
		{"Postgres", DialectPostgres, "pgx"},
		{"pgx", DialectPostgres, "pgx"},
		{"sqlite", DialectSQLite, "sqlite"},
	}
	for _, tt := range tests {
		d, err := ParseDialect(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, d)
		assert.Equal(t, tt.driver, d.DriverName())
	}

	_, err := ParseDialect("oracle")
	assert.True(t, fraudflow.IsCode(err, fraudflow.ErrCodeValidation))
}

func TestDialectPlaceholders(t *testing.T) {
	assert.Equal(t, "$2", DialectPostgres.placeholder(2))
	assert.Equal(t, "?", DialectSQLite.placeholder(2))
	assert.Equal(t, "?", DialectDatabricks.placeholder(1))
	assert.Equal(t, "CURRENT_TIMESTAMP()", DialectDatabricks.now())
	assert.Equal(t, "CURRENT_TIMESTAMP", DialectPostgres.now())
}

func TestValidateTableName(t *testing.T) {
	for _, ok := range []string{"claims", "policies.sql_tools", "fraud_detection.policies.sql_tools"} {
		assert.NoError(t, ValidateTableName(ok), ok)
	}
	for _, bad := range []string{"", "a.b.c.d", "1claims", "claims;", "claims tools", "a..b"} {
		assert.Error(t, ValidateTableName(bad), bad)
	}
}
