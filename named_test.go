package xconn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBindNamed(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		Name   string
		Query  string
		Params    map[string]any
		Backslash bool
		Want      string
		Args      []any
		Err       bool
	}{
		{
			Name:   "scalars",
			Query:  `SELECT * FROM users WHERE status = :status AND id = :ID`,
			Params: map[string]any{"Status": "active", "id": 7},
			Want:   `SELECT * FROM users WHERE status = ? AND id = ?`,
			Args:   []any{"active", 7},
		},
		{
			Name:   "repeated name",
			Query:  `SELECT :a, :a`,
			Params: map[string]any{"a": 1},
			Want:   `SELECT ?, ?`,
			Args:   []any{1, 1},
		},
		{
			Name:   "slice expands",
			Query:  `DELETE FROM t WHERE id IN (:ids)`,
			Params: map[string]any{"ids": []int{1, 2, 3}},
			Want:   `DELETE FROM t WHERE id IN (?,?,?)`,
			Args:   []any{1, 2, 3},
		},
		{
			Name:   "empty slice is null",
			Query:  `SELECT 1 WHERE 2 IN (:ids)`,
			Params: map[string]any{"ids": []string{}},
			Want:   `SELECT 1 WHERE 2 IN (NULL)`,
		},
		{
			Name:   "bytes are scalar",
			Query:  `INSERT INTO b VALUES (:data)`,
			Params: map[string]any{"data": []byte{1, 2}},
			Want:   `INSERT INTO b VALUES (?)`,
			Args:   []any{[]byte{1, 2}},
		},
		{
			Name:   "quotes comments and casts are skipped",
			Query:  "SELECT ':x', \"a:b\", `c:d`, 'it''s :x', v::text -- :x\n/* :x */ FROM t WHERE v = :v",
			Params: map[string]any{"v": 1},
			Want:   "SELECT ':x', \"a:b\", `c:d`, 'it''s :x', v::text -- :x\n/* :x */ FROM t WHERE v = ?",
			Args:   []any{1},
		},
		{
			Name:  "no parameters",
			Query: `SELECT 1`,
			Want:  `SELECT 1`,
		},
		{
			Name:      "backslash escaped quote",
			Query:     `SELECT 'it\'s :x', "a\":b", :v`,
			Params:    map[string]any{"v": 1},
			Backslash: true,
			Want:      `SELECT 'it\'s :x', "a\":b", ?`,
			Args:      []any{1},
		},
		{
			Name:      "escaped backslash ends the literal",
			Query:     `SELECT 'a\\', :v`,
			Params:    map[string]any{"v": 1},
			Backslash: true,
			Want:      `SELECT 'a\\', ?`,
			Args:      []any{1},
		},
		{
			Name:   "backslash is literal by default",
			Query:  `SELECT 'C:\', :v`,
			Params: map[string]any{"v": 1},
			Want:   `SELECT 'C:\', ?`,
			Args:   []any{1},
		},
		{Name: "missing value", Query: `SELECT :nope`, Err: true},
		{Name: "unterminated quote", Query: `SELECT 'abc`, Err: true},
		{Name: "unterminated comment", Query: `SELECT /* :x`, Err: true},
	} {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			var opts []BindOption
			if tc.Backslash {
				opts = append(opts, BackslashEscapes())
			}
			q, args, err := BindNamed(tc.Query, tc.Params, opts...)
			if tc.Err {
				assert.ErrorIs(err, ErrBind)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.Want, q)
			assert.Equal(tc.Args, args)
		})
	}
}

func TestCursor_ExecuteNamed(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	var gotQuery string
	var gotArgs []any
	drv := &fakeDriver{h: func(query string, args []any) ([]ColumnDescriptor, [][]any, error) {
		gotQuery, gotArgs = query, args
		return cols("n"), [][]any{{int64(1)}}, nil
	}}
	ctx := context.Background()
	c, err := Connect(ctx, drv, "dsn", UsePool(NewPool()))
	assert.NoError(err)
	defer func() { _ = c.Close() }()

	cur, err := c.Cursor()
	assert.NoError(err)
	defer func() { _ = cur.Close() }()

	assert.NoError(cur.ExecuteNamed(ctx, `SELECT n FROM t WHERE k IN (:keys)`, map[string]any{"keys": []string{"a", "b"}}))
	assert.Equal(`SELECT n FROM t WHERE k IN (?,?)`, gotQuery)
	assert.Equal([]any{"a", "b"}, gotArgs)

	assert.ErrorIs(cur.ExecuteNamed(ctx, `SELECT :missing`, nil), ErrBind)
}
