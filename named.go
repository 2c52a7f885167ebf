package xconn

import (
	"context"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"xorkevin.dev/kerrors"
)

// BindNamed rewrites :name parameters in query to positional "?" markers and
// returns the matching argument list. Names resolve case-insensitively
// against params.
//
// Slice and array values expand to a comma separated list, so
// "id IN (:ids)" binds every element; an empty slice becomes NULL. []byte is
// bound as a single value. Quoted strings, quoted identifiers, comments and
// "::" casts are left untouched. Inside quotes a doubled quote character is an
// escaped quote; backslash escapes (MySQL's default) are only recognized with
// [BackslashEscapes].
//
//	q, args, err := xconn.BindNamed(
//	    `SELECT * FROM users WHERE status = :status AND id IN (:ids)`,
//	    map[string]any{"status": "active", "ids": []int{1, 2, 3}},
//	)
//	// q    => SELECT * FROM users WHERE status = ? AND id IN (?,?,?)
//	// args => ["active", 1, 2, 3]
func BindNamed(query string, params map[string]any, opts ...BindOption) (string, []any, error) {
	var o bindOptions
	for _, fn := range opts {
		fn(&o)
	}
	lut := make(map[string]any, len(params))
	for k, v := range params {
		lut[strings.ToLower(k)] = v
	}

	var b strings.Builder
	b.Grow(len(query))
	var args []any
	last := 0
	err := scanNamed(query, o.backslash, func(name string, start, end int) error {
		v, ok := lut[strings.ToLower(name)]
		if !ok {
			return kerrors.WithKind(nil, ErrBind, "Missing value for :"+name)
		}
		b.WriteString(query[last:start])
		last = end
		rv := reflect.ValueOf(v)
		if !isList(rv) {
			b.WriteByte('?')
			args = append(args, v)
			return nil
		}
		if rv.Len() == 0 {
			b.WriteString("NULL")
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('?')
			args = append(args, rv.Index(i).Interface())
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if last == 0 {
		return query, nil, nil
	}
	b.WriteString(query[last:])
	return b.String(), args, nil
}

type bindOptions struct {
	backslash bool
}

// BindOption configures BindNamed.
type BindOption func(o *bindOptions)

// BackslashEscapes makes a backslash inside a quoted string escape the next
// character, as MySQL does unless NO_BACKSLASH_ESCAPES is set.
func BackslashEscapes() BindOption {
	return func(o *bindOptions) {
		o.backslash = true
	}
}

// ExecuteNamed binds named params with [BindNamed] and executes the result.
func (c *Cursor) ExecuteNamed(ctx context.Context, query string, params map[string]any, opts ...BindOption) error {
	q, args, err := BindNamed(query, params, opts...)
	if err != nil {
		return err
	}
	return c.Execute(ctx, q, args...)
}

// scanNamed calls fn for every :name token outside quotes and comments, with
// the byte range the token occupies.
func scanNamed(query string, backslash bool, fn func(name string, start, end int) error) error {
	i := 0
	for i < len(query) {
		switch query[i] {
		case '\'', '"', '`':
			end, ok := skipQuoted(query, i, backslash)
			if !ok {
				return kerrors.WithKind(nil, ErrBind, "Unterminated quote in query")
			}
			i = end
			continue
		case '-':
			if strings.HasPrefix(query[i:], "--") {
				if j := strings.IndexByte(query[i:], '\n'); j >= 0 {
					i += j + 1
				} else {
					i = len(query)
				}
				continue
			}
		case '/':
			if strings.HasPrefix(query[i:], "/*") {
				j := strings.Index(query[i+2:], "*/")
				if j < 0 {
					return kerrors.WithKind(nil, ErrBind, "Unterminated comment in query")
				}
				i += j + 4
				continue
			}
		case ':':
			if strings.HasPrefix(query[i:], "::") {
				i += 2
				continue
			}
			if end := identEnd(query, i+1); end > i+1 {
				if err := fn(query[i+1:end], i, end); err != nil {
					return err
				}
				i = end
				continue
			}
		}
		i++
	}
	return nil
}

// skipQuoted returns the offset just past the quoted section opened at
// query[i].
func skipQuoted(query string, i int, backslash bool) (int, bool) {
	q := query[i]
	for j := i + 1; j < len(query); j++ {
		switch query[j] {
		case '\\':
			if backslash && q != '`' {
				j++
			}
		case q:
			if j+1 < len(query) && query[j+1] == q {
				j++
				continue
			}
			return j + 1, true
		}
	}
	return 0, false
}

func identEnd(s string, i int) int {
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		i += w
	}
	return i
}

func isList(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}
