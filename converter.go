package xconn

import (
	"fmt"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"xorkevin.dev/kerrors"
)

// OutputConverter transforms a raw fetched value before it reaches application
// code. Converters for character data receive the text encoded as UTF-16LE
// bytes, the same shape an ODBC converter callback would see.
type OutputConverter func(value any) (any, error)

// Converters maps SQL type codes to output converters. It is safe for
// concurrent use.
type Converters struct {
	mu   sync.RWMutex
	conv map[int]OutputConverter
}

// NewConverters returns an empty registry.
func NewConverters() *Converters {
	return &Converters{conv: make(map[int]OutputConverter)}
}

// Add registers fn for sqlType, replacing any previous converter.
func (c *Converters) Add(sqlType int, fn OutputConverter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.conv, sqlType)
		return
	}
	c.conv[sqlType] = fn
}

// Get returns the converter registered for sqlType, or nil.
func (c *Converters) Get(sqlType int) OutputConverter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conv[sqlType]
}

// Remove unregisters the converter for sqlType.
func (c *Converters) Remove(sqlType int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conv, sqlType)
}

// Clear unregisters every converter.
func (c *Converters) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.conv)
}

// Len returns the number of registered converters.
func (c *Converters) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conv)
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func encodeUTF16LE(s string) ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(s))
}

// convertValue runs fn on v. Text is re-encoded to UTF-16LE first. A panic in
// fn is reported as an error like any other failure.
func convertValue(fn OutputConverter, v any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, kerrors.WithMsg(nil, fmt.Sprintf("Output converter panicked: %v", r))
		}
	}()
	if s, ok := v.(string); ok {
		b, err := encodeUTF16LE(s)
		if err != nil {
			return nil, err
		}
		return fn(b)
	}
	return fn(v)
}
