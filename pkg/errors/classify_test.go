package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

func TestLookupMapsMissingRow(t *testing.T) {
	err := Lookup(fmt.Errorf("query: %w", gorm.ErrRecordNotFound), "work order not found", "get work order")
	if !Is(err, CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if As(err).Message() != "work order not found" {
		t.Fatalf("unexpected message %q", As(err).Message())
	}
	if Lookup(nil, "x", "op") != nil {
		t.Fatalf("nil error should stay nil")
	}
}

func TestClassifyUsesSQLState(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"pgx unique", &pgconn.PgError{Code: "23505", ConstraintName: "work_orders_order_number_key"}, CodeConflict},
		{"pq fk", &pq.Error{Code: "23503"}, CodeValidation},
		{"pgx cancel", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "57014"}), CodeDependency},
		{"unknown state", &pgconn.PgError{Code: "XX000"}, CodeInternal},
		{"plain", stdErrors.New("boom"), CodeInternal},
		{"typed passthrough", New(CodeForbidden, "no"), CodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(Classify(tc.err, "op")); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeConflict, "collector busy"))
	if !stdErrors.Is(err, New(CodeConflict, "")) {
		t.Fatalf("expected code match")
	}
	if stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatalf("different codes must not match")
	}
}

func TestDumpIncludesPostgresFields(t *testing.T) {
	err := Wrap(CodeConflict, &pgconn.PgError{Code: "23505", TableName: "work_orders", Message: "duplicate"}, "create")
	fields := Dump(err).Fields()
	if fields["pg_code"] != "23505" || fields["pg_table"] != "work_orders" {
		t.Fatalf("missing pg fields: %v", fields)
	}
	if fields["error_code"] != CodeConflict {
		t.Fatalf("unexpected code %v", fields["error_code"])
	}

	plain := Dump(stdErrors.New("boom")).Fields()
	if _, ok := plain["pg_code"]; ok {
		t.Fatalf("plain errors should not carry pg fields")
	}
	if plain["error_code"] != Code("") {
		t.Fatalf("untyped error should have empty code, got %v", plain["error_code"])
	}
}
