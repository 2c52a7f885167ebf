package xconn

// SQL type codes reported in ColumnDescriptor.SQLType. The values are the ODBC
// codes, so converters registered against them behave like ODBC converter
// callbacks.
const (
	SQLUnknownType   = 0
	SQLChar          = 1
	SQLNumeric       = 2
	SQLDecimal       = 3
	SQLInteger       = 4
	SQLSmallInt      = 5
	SQLFloat         = 6
	SQLReal          = 7
	SQLDouble        = 8
	SQLVarChar       = 12
	SQLTypeDate      = 91
	SQLTypeTime      = 92
	SQLTypeTimestamp = 93
	SQLLongVarChar   = -1
	SQLBinary        = -2
	SQLVarBinary     = -3
	SQLLongVarBinary = -4
	SQLBigInt        = -5
	SQLTinyInt       = -6
	SQLBit           = -7
	SQLWChar         = -8
	SQLWVarChar      = -9
	SQLWLongVarChar  = -10
	SQLGUID          = -11
	SQLSSVariant     = -150
	SQLSSXML         = -152
	SQLSSTimeOffset  = -155
)
