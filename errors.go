package xconn

var (
	// ErrAttribute is returned when a row has no column with the requested name
	ErrAttribute errAttribute
	// ErrIndex is returned when a row is indexed out of range
	ErrIndex errIndex
	// ErrInvalidConfig is returned for invalid pool limits or settings
	ErrInvalidConfig errInvalidConfig
	// ErrClosed is returned when using a closed connection or cursor
	ErrClosed errClosed
	// ErrNoResultSet is returned when fetching from a cursor that has not executed a query
	ErrNoResultSet errNoResultSet
)

type (
	errAttribute     struct{}
	errIndex         struct{}
	errInvalidConfig struct{}
	errClosed        struct{}
	errNoResultSet   struct{}
)

func (e errAttribute) Error() string {
	return "No such column"
}

func (e errIndex) Error() string {
	return "Index out of range"
}

func (e errInvalidConfig) Error() string {
	return "Invalid config"
}

func (e errClosed) Error() string {
	return "Closed"
}

func (e errNoResultSet) Error() string {
	return "No result set"
}

// ErrBind is returned when named parameters cannot be bound to a query
var ErrBind errBind

type errBind struct{}

func (e errBind) Error() string {
	return "Named bind failed"
}

// ErrNotSupported is returned when the native connection lacks a capability
var ErrNotSupported errNotSupported

type errNotSupported struct{}

func (e errNotSupported) Error() string {
	return "Not supported"
}

// ErrScan is returned when a row cannot be copied into a destination
var ErrScan errScan

type errScan struct{}

func (e errScan) Error() string {
	return "Scan failed"
}
