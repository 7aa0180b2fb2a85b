package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("scan order: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped ErrNoRows must be detected")
	}
	if IsNoRows(fmt.Errorf("connection refused")) {
		t.Fatal("unrelated error must not look like an empty result")
	}
}

func TestConstraintViolationHelpers(t *testing.T) {
	unique := fmt.Errorf("insert order: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "orders_request_id_key",
	})
	fk := fmt.Errorf("delete item: %w", &pgconn.PgError{
		Code:           "23503",
		ConstraintName: "order_items_item_id_fkey",
	})

	if !IsUniqueViolation(unique) {
		t.Fatal("23505 must be reported as a unique violation")
	}
	if IsUniqueViolation(fk) {
		t.Fatal("23503 must not be reported as a unique violation")
	}
	if !IsForeignKeyViolation(fk) {
		t.Fatal("23503 must be reported as a foreign key violation")
	}

	if got := ConstraintName(unique); got != "orders_request_id_key" {
		t.Fatalf("ConstraintName = %q, want orders_request_id_key", got)
	}
	if got := ConstraintName(fmt.Errorf("not a pg error")); got != "" {
		t.Fatalf("ConstraintName = %q, want empty for non-pg errors", got)
	}
}
