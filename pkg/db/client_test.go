package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sku struct {
	ID   int
	Code string `gorm:"uniqueIndex"`
}

func openSQLite(t *testing.T) (*Client, *gorm.DB) {
	t.Helper()
	conn, err := Open(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&sku{}))
	return NewFromConn(conn), conn
}

func countSKUs(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&sku{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOnNilError(t *testing.T) {
	client, conn := openSQLite(t)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&sku{Code: "kept"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countSKUs(t, conn))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client, conn := openSQLite(t)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&sku{Code: "discarded"}).Error)
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")
	assert.Zero(t, countSKUs(t, conn))
}

func TestIsUniqueViolation(t *testing.T) {
	_, conn := openSQLite(t)
	require.NoError(t, conn.Create(&sku{Code: "dup"}).Error)
	sqliteErr := conn.Create(&sku{Code: "dup"}).Error

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_code_key"})

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"sqlite any", sqliteErr, "", true},
		{"sqlite column", sqliteErr, "skus.code", true},
		{"sqlite other column", sqliteErr, "skus.name", false},
		{"postgres constraint", pgErr, "orders_code_key", true},
		{"postgres other constraint", pgErr, "vouchers_pkey", false},
		{"postgres fk", &pgconn.PgError{Code: "23503"}, "", false},
		{"unrelated", errors.New("connection reset"), "", false},
		{"nil", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err, tc.constraint))
		})
	}
}

func TestPing(t *testing.T) {
	client, _ := openSQLite(t)
	assert.NoError(t, client.Ping(context.Background()))
}
