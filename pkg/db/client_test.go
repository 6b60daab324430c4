package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string  `gorm:"uniqueIndex"`
	Code *string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbclient_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db, time.Second, 0)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_DeadlineBecomesBusy(t *testing.T) {
	client := NewFromConn(newTestDB(t), 20*time.Millisecond, 0)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		<-tx.Statement.Context.Done()
		return tx.Statement.Context.Err()
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeBusy, pkgerrors.CodeOf(err))
}

func TestWithTx_TypedErrorsPassThrough(t *testing.T) {
	client := NewFromConn(newTestDB(t), time.Second, 0)
	want := pkgerrors.New(pkgerrors.CodeInsufficientStock, "nope")

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error { return want })
	require.ErrorIs(t, err, want)
}

func TestWithSavepoint_RecoversFromUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db, time.Second, 0)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "a"}).Error; err != nil {
			return err
		}
		dupErr := WithSavepoint(tx, "dup", func(tx *gorm.DB) error {
			return tx.Create(&testModel{Name: "a"}).Error
		})
		require.Error(t, dupErr)
		require.True(t, IsUniqueViolation(dupErr, UniqueKey{}))
		return tx.Create(&testModel{Name: "b"}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestClassify(t *testing.T) {
	lock := &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	assert.Equal(t, pkgerrors.CodeBusy, pkgerrors.CodeOf(Classify(lock)))

	deadlock := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"})
	assert.Equal(t, pkgerrors.CodeBusy, pkgerrors.CodeOf(Classify(deadlock)))

	assert.Equal(t, pkgerrors.CodeBusy, pkgerrors.CodeOf(Classify(context.DeadlineExceeded)))

	plain := errors.New("syntax error")
	assert.Same(t, plain, Classify(plain))
	assert.Nil(t, Classify(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key", Message: "duplicate key value violates unique constraint \"orders_order_number_key\""}
	assert.True(t, IsUniqueViolation(pgErr, UniqueKey{}))
	assert.True(t, IsUniqueViolation(pgErr, UniqueKey{Constraint: "orders_order_number_key"}))
	assert.False(t, IsUniqueViolation(pgErr, UniqueKey{Constraint: "orders_order"}))
	assert.False(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), UniqueKey{Constraint: "ux_return_requests_order"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "55P03"}, UniqueKey{}))
	assert.False(t, IsUniqueViolation(nil, UniqueKey{}))
}

func TestIsUniqueViolationMatchesSQLiteColumns(t *testing.T) {
	db := newTestDB(t)
	code := "c-1"
	require.NoError(t, db.Create(&testModel{Name: "a", Code: &code}).Error)

	nameKey := UniqueKey{Constraint: "idx_test_models_name", Columns: []string{"test_models.name"}}
	codeKey := UniqueKey{Constraint: "idx_test_models_code", Columns: []string{"test_models.code"}}

	dupName := db.Create(&testModel{Name: "a"}).Error
	require.Error(t, dupName)
	assert.True(t, IsUniqueViolation(dupName, nameKey))
	assert.False(t, IsUniqueViolation(dupName, codeKey))

	dupCode := db.Create(&testModel{Name: "b", Code: &code}).Error
	require.Error(t, dupCode)
	assert.True(t, IsUniqueViolation(dupCode, codeKey))
	assert.False(t, IsUniqueViolation(dupCode, nameKey))
	assert.True(t, IsUniqueViolation(dupCode, UniqueKey{}))

	assert.False(t, IsUniqueViolation(dupCode, UniqueKey{Constraint: "idx_test_models_code"}))
	assert.False(t, IsUniqueViolation(errors.New("NOT NULL constraint failed: test_models.name"), UniqueKey{}))
}

func TestRetryTransient(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryTransient(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = RetryTransient(context.Background(), 2, func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "55P03"}
	})
	assert.Equal(t, pkgerrors.CodeBusy, pkgerrors.CodeOf(err))
	assert.Equal(t, 2, calls)
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t), 0, 0)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
