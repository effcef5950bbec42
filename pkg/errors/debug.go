package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres is the driver neutral part of a server error. The pgx and lib/pq
// drivers both surface here so callers need not care which one gorm used.
type Postgres struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// PostgresError finds a server error anywhere in err's chain.
func PostgresError(err error) (Postgres, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return Postgres{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return Postgres{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return Postgres{}, false
}

// PGCode is the SQLSTATE of err, or "" when no server error is wrapped.
func PGCode(err error) string {
	pg, _ := PostgresError(err)
	return pg.Code
}

// Chain lists every error in err's Unwrap chain, outermost first.
func Chain(err error) []string {
	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	return chain
}

// LogFields describes err for server logs. Nothing here reaches a client.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{
		"error":       err.Error(),
		"error_chain": Chain(err),
	}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
		if d := typed.Details(); d != nil {
			fields["error_details"] = d
		}
	}
	if pg, ok := PostgresError(err); ok {
		fields["pg_code"] = pg.Code
		fields["pg_constraint"] = pg.Constraint
		fields["pg_table"] = pg.Table
		fields["pg_column"] = pg.Column
		fields["pg_detail"] = pg.Detail
		fields["pg_message"] = pg.Message
	}
	return fields
}
