package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnoseReadsPgxErrors(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23503",
		ConstraintName: "order_items_product_id_fkey",
		TableName:      "order_items",
		Message:        "insert or update on table violates foreign key constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("insert order item: %w", pgErr), "product no longer listed")

	d := Diagnose(err)
	assert.Equal(t, CodeConflict, d.Code)
	assert.Len(t, d.Chain, 3)
	require.NotNil(t, d.Postgres)
	assert.Equal(t, "23503", d.Postgres.SQLState)
	assert.Equal(t, "order_items", d.Postgres.Table)

	fields := d.Fields()
	assert.Equal(t, "order_items_product_id_fkey", fields["pg_constraint"])
	assert.Equal(t, CodeConflict, fields["error_code"])
	assert.NotContains(t, fields, "pg_column")
}

func TestDiagnoseReadsLibPQErrors(t *testing.T) {
	err := fmt.Errorf("insert payment: %w", &pq.Error{Code: "23505", Constraint: "ux_payments_order"})

	d := Diagnose(err)
	require.NotNil(t, d.Postgres)
	assert.Equal(t, "23505", d.Postgres.SQLState)
	assert.Equal(t, "ux_payments_order", d.Postgres.Constraint)
	assert.Empty(t, d.Code)
	assert.NotContains(t, d.Fields(), "error_code")
}

func TestDiagnosePlainError(t *testing.T) {
	d := Diagnose(New(CodeNotFound, "cart item not found"))

	assert.Nil(t, d.Postgres)
	assert.Equal(t, map[string]any{
		"error":      "NOT_FOUND: cart item not found",
		"error_code": CodeNotFound,
	}, d.Fields())
	assert.Equal(t, Diagnostics{}, Diagnose(nil))
}
