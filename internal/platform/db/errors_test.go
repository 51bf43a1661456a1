package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}
	check := &pgconn.PgError{Code: "23514"}

	if !IsUniqueViolation(unique) {
		t.Error("expected wrapped unique violation to be detected")
	}
	if !IsForeignKeyViolation(fk) || IsForeignKeyViolation(unique) {
		t.Error("foreign key classification mismatch")
	}
	if !IsCheckViolation(check) {
		t.Error("expected check violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Error("plain error must not classify")
	}
}
