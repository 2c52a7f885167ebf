package xconn

import (
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"xorkevin.dev/kerrors"
)

var decimalSeparator atomic.Value // string

func init() {
	decimalSeparator.Store(".")
}

// SetDecimalSeparator sets the process-wide character used in place of "." when
// rendering decimal values in [Row.String]. sep must be exactly one character.
func SetDecimalSeparator(sep string) error {
	if utf8.RuneCountInString(sep) != 1 {
		return kerrors.WithKind(nil, ErrInvalidConfig, fmt.Sprintf("Decimal separator must be a single character: %q", sep))
	}
	decimalSeparator.Store(sep)
	return nil
}

// DecimalSeparator returns the process-wide decimal separator.
func DecimalSeparator() string {
	return decimalSeparator.Load().(string)
}
