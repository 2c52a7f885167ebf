package xconn

import (
	"cmp"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"xorkevin.dev/kerrors"
)

// Row is one fetched record. It behaves like an ordered sequence of column
// values and can also be addressed by column name.
//
// A Row is owned by the goroutine that fetched it and is not safe for
// concurrent use. Its length never changes; slots are rewritten at most once,
// by output conversion while the row is built.
type Row struct {
	values    []any
	columnMap map[string]int
	names     []string // columnMap keys in declaration order
	desc      []ColumnDescriptor
	cursor    *Cursor
}

// NewRow wraps values fetched by cur. columnMap maps column names to positions
// and may be nil. No conversion happens here.
func NewRow(cur *Cursor, desc []ColumnDescriptor, values []any, columnMap map[string]int) *Row {
	r := &Row{
		values:    values,
		columnMap: columnMap,
		desc:      desc,
		cursor:    cur,
	}
	if len(columnMap) > 0 {
		r.names = make([]string, 0, len(columnMap))
		for name := range columnMap {
			r.names = append(r.names, name)
		}
		slices.SortFunc(r.names, func(a, b string) int {
			return cmp.Compare(columnMap[a], columnMap[b])
		})
	}
	return r
}

// applyOutputConverters rewrites values in place using the converters
// registered on the cursor's connection. Values without a descriptor and nil
// values are left alone. Text and binary values whose type has no converter
// fall back to the SQLWVarChar converter.
//
// A failing converter leaves its value unchanged and does not affect other
// columns. The number of failed conversions is returned.
func (r *Row) applyOutputConverters(cur *Cursor, desc []ColumnDescriptor) int {
	if cur == nil || len(desc) == 0 {
		return 0
	}
	conv := cur.converters()
	if conv == nil || conv.Len() == 0 {
		return 0
	}
	failed := 0
	n := min(len(r.values), len(desc))
	for i := 0; i < n; i++ {
		v := r.values[i]
		if v == nil {
			continue
		}
		fn := conv.Get(desc[i].SQLType)
		if fn == nil {
			switch v.(type) {
			case string, []byte:
				fn = conv.Get(SQLWVarChar)
			}
		}
		if fn == nil {
			continue
		}
		out, err := convertValue(fn, v)
		if err != nil {
			failed++
			continue
		}
		r.values[i] = out
	}
	return failed
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.values)
}

// Index returns the value at position i. It returns an [ErrIndex] kind error
// when i is out of range.
func (r *Row) Index(i int) (any, error) {
	if i < 0 || i >= len(r.values) {
		return nil, kerrors.WithKind(nil, ErrIndex, fmt.Sprintf("Row index %d out of range for %d columns", i, len(r.values)))
	}
	return r.values[i], nil
}

// Get returns the value of the named column.
//
// An exact match in the column map wins. Otherwise, if the owning cursor was
// opened with [Lowercase], names are compared case-insensitively in
// declaration order and the first match is returned. When neither finds the
// column, Get returns an [ErrAttribute] kind error naming it.
func (r *Row) Get(name string) (any, error) {
	if i, ok := r.columnMap[name]; ok {
		return r.Index(i)
	}
	if r.cursor != nil && r.cursor.lowercase {
		for _, col := range r.names {
			if strings.EqualFold(col, name) {
				return r.Index(r.columnMap[col])
			}
		}
	}
	return nil, kerrors.WithKind(nil, ErrAttribute, fmt.Sprintf("Row has no column %q", name))
}

// Values returns a copy of the column values.
func (r *Row) Values() []any {
	return slices.Clone(r.values)
}

// All iterates over positions and values.
func (r *Row) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, v := range r.values {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Map returns the row keyed by column name.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.names))
	for _, name := range r.names {
		if i := r.columnMap[name]; i >= 0 && i < len(r.values) {
			m[name] = r.values[i]
		}
	}
	return m
}

// Description returns the description of the result set the row came from.
func (r *Row) Description() []ColumnDescriptor {
	if r.desc == nil && r.cursor != nil {
		return r.cursor.Description()
	}
	return r.desc
}

// Equal compares the row with a []any or another row, value by value. Any
// other type compares unequal.
func (r *Row) Equal(other any) bool {
	switch o := other.(type) {
	case []any:
		return valuesEqual(r.values, o)
	case *Row:
		if o == nil {
			return false
		}
		return r == o || valuesEqual(r.values, o.values)
	}
	return false
}

func valuesEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if da, ok := a.(decimal.Decimal); ok {
		if db, ok := b.(decimal.Decimal); ok {
			return da.Equal(db)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// String renders the row as "(v1, v2, ...)". Decimal values use the
// process-wide decimal separator.
func (r *Row) String() string {
	sep := DecimalSeparator()
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range r.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatValue(v, sep))
	}
	b.WriteByte(')')
	return b.String()
}

func formatValue(v any, sep string) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case decimal.Decimal:
		return formatDecimal(x, sep)
	case *decimal.Decimal:
		if x == nil {
			return "NULL"
		}
		return formatDecimal(*x, sep)
	case string:
		return strconv.Quote(x)
	case []byte:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprint(v)
	}
}

// formatDecimal keeps the scale the value carries, so 3.00 stays 3.00.
func formatDecimal(d decimal.Decimal, sep string) string {
	s := d.String()
	if exp := d.Exponent(); exp < 0 {
		s = d.StringFixed(-exp)
	}
	if sep != "." {
		s = strings.Replace(s, ".", sep, 1)
	}
	return s
}
