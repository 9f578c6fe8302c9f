package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx match", err: &pgconn.PgError{Code: "23505", ConstraintName: "payments_reference_key"}, constraint: "payments_reference_key", want: true},
		{name: "pgx other constraint", err: &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, constraint: "payments_reference_key", want: false},
		{name: "pgx any constraint", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "pgx fk is not unique", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "pq match", err: &pq.Error{Code: "23505", Constraint: "ux_ledger_events_credit"}, constraint: "ux_ledger_events_credit", want: true},
		{name: "sqlite text", err: errors.New("UNIQUE constraint failed: cart_lines.user_id, cart_lines.product_id"), want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503", ConstraintName: "order_items_product_id_fkey"}, "") {
		t.Fatal("expected pg foreign key violation to match")
	}
	if !IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed"), "") {
		t.Fatal("expected sqlite foreign key violation to match")
	}
	if IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}, "") {
		t.Fatal("unique violation is not a foreign key violation")
	}
}
