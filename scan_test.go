package xconn

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type scanBase struct {
	ID int64 `db:"id"`
}

type scanUser struct {
	scanBase
	Email   string          `db:"email"`
	Name    *string         `db:"name"`
	Age     int32           // matched by field name
	Balance decimal.Decimal `db:"balance"`
	Secret  string          `db:"-"`
	Meta    scanMeta        `db:",inline"`
	skipped string
}

type scanMeta struct {
	Active bool `db:"active"`
}

func scanRow(values []any, names ...string) *Row {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return NewRow(newTestCursor(false), cols(names...), values, m)
}

func TestRow_Scan(t *testing.T) {
	r := scanRow(
		[]any{int64(7), []byte("a@b.c"), "Ann", int64(41), decimal.RequireFromString("3.50"), "x", true, "unused"},
		"ID", "email", "name", "AGE", "balance", "secret", "active", "extra",
	)
	var u scanUser
	u.Secret = "keep"
	if err := r.Scan(&u); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if u.ID != 7 || u.Email != "a@b.c" || u.Age != 41 {
		t.Fatalf("got %+v", u)
	}
	if u.Name == nil || *u.Name != "Ann" {
		t.Fatalf("Name = %v", u.Name)
	}
	if u.Balance.String() != "3.5" || u.Balance.Exponent() != -2 {
		t.Fatalf("Balance = %v", u.Balance)
	}
	if u.Secret != "keep" {
		t.Fatalf("Secret overwritten: %q", u.Secret)
	}
	if !u.Meta.Active {
		t.Fatal("inline field not scanned")
	}
}

func TestRow_ScanNullZeroes(t *testing.T) {
	r := scanRow([]any{nil, nil}, "email", "name")
	name := "old"
	u := scanUser{Email: "old", Name: &name}
	if err := r.Scan(&u); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if u.Email != "" || u.Name != nil {
		t.Fatalf("got %+v", u)
	}
}

func TestRow_ScanUsesScanner(t *testing.T) {
	r := scanRow([]any{"12.30"}, "balance")
	var u scanUser
	if err := r.Scan(&u); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !u.Balance.Equal(decimal.RequireFromString("12.3")) {
		t.Fatalf("Balance = %v", u.Balance)
	}
}

type ScanAudit struct {
	By string `db:"created_by"`
}

func TestRow_ScanEmbeddedPointer(t *testing.T) {
	type wrapper struct {
		*ScanAudit
		Email string
	}
	r := scanRow([]any{"root", "e"}, "created_by", "email")
	var w wrapper
	if err := r.Scan(&w); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if w.ScanAudit == nil || w.By != "root" || w.Email != "e" {
		t.Fatalf("got %+v", w)
	}
}

func TestRow_ScanErrors(t *testing.T) {
	r := scanRow([]any{"not a number"}, "age")

	var u scanUser
	if err := r.Scan(u); !errors.Is(err, ErrScan) {
		t.Fatalf("non-pointer: err = %v", err)
	}
	var n int
	if err := r.Scan(&n); !errors.Is(err, ErrScan) {
		t.Fatalf("non-struct: err = %v", err)
	}
	if err := r.Scan((*scanUser)(nil)); !errors.Is(err, ErrScan) {
		t.Fatalf("nil pointer: err = %v", err)
	}
	if err := r.Scan(&u); !errors.Is(err, ErrScan) {
		t.Fatalf("string into int32: err = %v", err)
	}
}
