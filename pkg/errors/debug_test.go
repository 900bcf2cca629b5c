package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_code_key", TableName: "orders", Message: "duplicate key value"}
	err := Wrap(CodeConflict, fmt.Errorf("insert order: %w", pgErr), "create order")

	dump := Dump(err)
	assert.Equal(t, CodeConflict, dump.Code)
	require.NotNil(t, dump.PG)
	assert.Equal(t, "23505", dump.PG.Code)
	assert.Equal(t, "orders_code_key", dump.PG.Constraint)
	require.Len(t, dump.Chain, 3)
	assert.Equal(t, "orders", dump.Fields()["pg_table"])
}

func TestPostgresReadsLibPQErrors(t *testing.T) {
	detail, ok := Postgres(fmt.Errorf("exec: %w", &pq.Error{Code: "23503", Constraint: "order_items_order_id_fkey"}))
	require.True(t, ok)
	assert.Equal(t, "23503", detail.Code)
	assert.Equal(t, "order_items_order_id_fkey", detail.Constraint)

	_, ok = Postgres(stdErrors.New("dial tcp: refused"))
	assert.False(t, ok)
}

func TestDumpPlainError(t *testing.T) {
	dump := Dump(stdErrors.New("boom"))
	assert.Equal(t, "boom", dump.TopMessage)
	assert.Nil(t, dump.PG)
	_, hasPG := dump.Fields()["pg_code"]
	assert.False(t, hasPG)
	assert.Equal(t, ErrorDump{}, Dump(nil))
}
