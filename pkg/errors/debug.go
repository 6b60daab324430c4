package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-only view of an error. It never reaches clients.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Details    any
	Chain      []string
	Postgres   PostgresDiagnostics
}

// PostgresDiagnostics carries the server fields of a pgx or lib/pq error.
type PostgresDiagnostics struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Details = te.Details()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.Postgres = postgresDiagnostics(err)
	return d
}

// Fields flattens the dump for structured logging, dropping empty values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	set := func(key string, value any) {
		switch v := value.(type) {
		case nil:
			return
		case string:
			if v == "" {
				return
			}
		case Code:
			if v == "" {
				return
			}
		case []string:
			if len(v) == 0 {
				return
			}
		}
		fields[key] = value
	}
	set("error_code", d.Code)
	set("error_details", d.Details)
	set("error_chain", d.Chain)
	set("pg_code", d.Postgres.Code)
	set("pg_constraint", d.Postgres.Constraint)
	set("pg_table", d.Postgres.Table)
	set("pg_column", d.Postgres.Column)
	set("pg_detail", d.Postgres.Detail)
	set("pg_message", d.Postgres.Message)
	return fields
}

func postgresDiagnostics(err error) PostgresDiagnostics {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PostgresDiagnostics{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PostgresDiagnostics{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return PostgresDiagnostics{}
}
