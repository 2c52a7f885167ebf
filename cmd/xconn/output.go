package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/go-mizu/xconn"
	"gopkg.in/yaml.v3"
)

func writeRows(w io.Writer, format string, rows []*xconn.Row) error {
	switch format {
	case formatYAML:
		return writeYAML(w, rows)
	default:
		for _, r := range rows {
			if _, err := fmt.Fprintln(w, r.String()); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeYAML(w io.Writer, rows []*xconn.Row) error {
	docs := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := r.Map()
		for k, v := range m {
			m[k] = yamlValue(v)
		}
		docs = append(docs, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return err
	}
	return enc.Close()
}

// yamlValue keeps binary values readable: valid UTF-8 as text, anything else
// as hex.
func yamlValue(v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if utf8.Valid(b) {
		return string(b)
	}
	return hex.EncodeToString(b)
}
