package xconn

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"xorkevin.dev/kerrors"
)

// Scan copies the row into the struct dest points to.
//
// Columns map to exported fields by `db` tag, else by field name, compared
// case-insensitively. Embedded structs and fields tagged ",inline" are
// flattened; a tag of "-" skips the field. Columns without a field are
// ignored.
//
// A value is stored when it is assignable to the field, converted between
// numeric kinds, copied from []byte into a string, or passed to the field's
// [sql.Scanner]. A nil value zeroes the field. Pointer fields are allocated.
//
//	type User struct {
//	    ID    int64  `db:"id"`
//	    Email string `db:"email"`
//	}
//	var u User
//	err := row.Scan(&u)
func (r *Row) Scan(dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return kerrors.WithKind(nil, ErrScan, fmt.Sprintf("Scan destination must be a non-nil pointer to a struct, got %T", dest))
	}
	root := rv.Elem()
	idx := structIndex(root.Type())
	for _, name := range r.names {
		path, ok := idx[strings.ToLower(name)]
		if !ok {
			continue
		}
		field, ok := fieldByPath(root, path)
		if !ok {
			return kerrors.WithKind(nil, ErrScan, fmt.Sprintf("Cannot allocate embedded struct for column %q", name))
		}
		if err := assignValue(field, r.values[r.columnMap[name]]); err != nil {
			return kerrors.WithKind(err, ErrScan, fmt.Sprintf("Failed to scan column %q", name))
		}
	}
	return nil
}

// structIndexes caches lower-case column name to field index path per type.
var structIndexes sync.Map // reflect.Type -> map[string][]int

func structIndex(t reflect.Type) map[string][]int {
	if v, ok := structIndexes.Load(t); ok {
		return v.(map[string][]int)
	}
	idx := make(map[string][]int)
	indexFields(idx, t, nil)
	v, _ := structIndexes.LoadOrStore(t, idx)
	return v.(map[string][]int)
}

func indexFields(idx map[string][]int, t reflect.Type, base []int) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}
		name, opt, _ := strings.Cut(tag, ",")
		path := append(append([]int(nil), base...), i)

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && (opt == "inline" || (f.Anonymous && tag == "")) {
			indexFields(idx, ft, path)
			continue
		}
		if f.PkgPath != "" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		key := strings.ToLower(name)
		// Shallower fields win over promoted ones.
		if prev, ok := idx[key]; !ok || len(prev) > len(path) {
			idx[key] = path
		}
	}
}

// fieldByPath walks path from v, allocating nil embedded pointers. It
// reports false when a nil pointer is unexported and cannot be set.
func fieldByPath(v reflect.Value, path []int) (reflect.Value, bool) {
	for i, p := range path {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(p)
	}
	return v, true
}

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

func assignValue(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	sv := reflect.ValueOf(v)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	if dst.Addr().Type().Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(v)
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assignValue(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	switch {
	case dst.Kind() == reflect.String && sv.Kind() == reflect.String:
		dst.SetString(sv.String())
		return nil
	case dst.Kind() == reflect.String && sv.Kind() == reflect.Slice && sv.Type().Elem().Kind() == reflect.Uint8:
		dst.SetString(string(sv.Bytes()))
		return nil
	case isNumber(dst.Kind()) && isNumber(sv.Kind()):
		dst.Set(sv.Convert(dst.Type()))
		return nil
	case dst.Kind() == reflect.Bool && sv.Kind() == reflect.Bool:
		dst.SetBool(sv.Bool())
		return nil
	}
	return kerrors.WithMsg(nil, fmt.Sprintf("Cannot assign %T to %s", v, dst.Type()))
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
