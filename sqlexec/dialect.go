package sqlexec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sicko7947/fraudflow"
)

// Dialect selects the database/sql driver and its SQL flavour
type Dialect string

const (
	DialectDatabricks Dialect = "databricks"
	DialectPostgres   Dialect = "postgres"
	DialectSQLite     Dialect = "sqlite"
)

// ParseDialect accepts the config spelling of a driver
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectDatabricks, DialectPostgres, DialectSQLite:
		return d, nil
	case "pgx", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fraudflow.NewWorkflowError(fraudflow.ErrCodeValidation, fmt.Sprintf("unsupported sql driver %q", s))
	}
}

// DriverName returns the registered database/sql driver name
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectSQLite:
		return "sqlite"
	default:
		return "databricks"
	}
}

// placeholder returns the n-th (1-based) bind parameter
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// now returns the dialect's current timestamp expression
func (d Dialect) now() string {
	if d == DialectDatabricks {
		return "CURRENT_TIMESTAMP()"
	}
	return "CURRENT_TIMESTAMP"
}

// catalog.schema.table, each part a plain identifier
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// ValidateTableName rejects names that cannot be safely interpolated
func ValidateTableName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fraudflow.NewWorkflowError(fraudflow.ErrCodeValidation, fmt.Sprintf("invalid table name %q", name))
	}
	return nil
}
