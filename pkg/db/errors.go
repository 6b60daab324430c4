package db

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes that mean "try again later".
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
)

// UniqueKey names a unique constraint the way each driver reports it. Postgres
// names the constraint; SQLite lists the table-qualified columns instead.
type UniqueKey struct {
	Constraint string
	Columns    []string
}

const sqliteUniqueFailed = "UNIQUE constraint failed: "

// IsUniqueViolation reports whether err is a unique violation on key. The zero
// key matches any unique violation.
func IsUniqueViolation(err error, key UniqueKey) bool {
	if err == nil {
		return false
	}
	if code := sqlState(err); code != "" {
		if code != pgUniqueViolation {
			return false
		}
		if key.Constraint == "" {
			return true
		}
		if name := constraintName(err); name != "" {
			return name == key.Constraint
		}
		return strings.Contains(err.Error(), key.Constraint)
	}

	msg := err.Error()
	if i := strings.Index(msg, sqliteUniqueFailed); i >= 0 {
		if len(key.Columns) == 0 {
			return key.Constraint == ""
		}
		return sameColumns(parseColumns(msg[i+len(sqliteUniqueFailed):]), key.Columns)
	}
	if strings.Contains(msg, "duplicate key value") {
		return key.Constraint == "" || strings.Contains(msg, `"`+key.Constraint+`"`)
	}
	return false
}

func parseColumns(list string) []string {
	parts := strings.Split(list, ",")
	cols := make([]string, 0, len(parts))
	for _, part := range parts {
		col := strings.TrimSpace(part)
		// sqlite3 may append the extended result code after the column list.
		if cut, _, ok := strings.Cut(col, " "); ok {
			col = cut
		}
		if col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

func sameColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[string]int, len(want))
	for _, c := range want {
		seen[c]++
	}
	for _, c := range got {
		if seen[c] == 0 {
			return false
		}
		seen[c]--
	}
	return true
}

// IsTransient reports whether err is a lock wait, deadlock, serialization
// failure or deadline that a caller may retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code() == pkgerrors.CodeBusy
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch sqlState(err) {
	case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// Classify maps raw store errors onto the typed taxonomy. Typed errors pass
// through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if IsTransient(err) {
		return pkgerrors.Wrap(pkgerrors.CodeBusy, err, "store busy")
	}
	if stdErrors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request canceled")
	}
	return err
}

// IsNotFound reports gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return stdErrors.Is(err, gorm.ErrRecordNotFound)
}

// RetryTransient runs an idempotent read up to attempts times, backing off
// between transient failures. Writes must not go through here.
func RetryTransient(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 50 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return Classify(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return Classify(err)
}

// WithSavepoint runs fn under a savepoint so a failed statement can be undone
// without aborting the surrounding transaction.
func WithSavepoint(tx *gorm.DB, name string, fn func(tx *gorm.DB) error) error {
	if err := tx.SavePoint(name).Error; err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return stdErrors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

func sqlState(err error) string {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func constraintName(err error) string {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgxErr.ConstraintName
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
