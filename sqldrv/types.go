package sqldrv

import (
	"strconv"
	"strings"

	"github.com/go-mizu/xconn"
)

type columnKind uint8

const (
	kindOther columnKind = iota
	kindText
	kindDecimal
)

type typeInfo struct {
	code int
	kind columnKind
}

// typeNames maps database type names, as reported by
// [database/sql.ColumnType.DatabaseTypeName] without length or precision, to
// SQL type codes.
var typeNames = map[string]typeInfo{
	"BIT":              {xconn.SQLBit, kindOther},
	"BOOL":             {xconn.SQLBit, kindOther},
	"BOOLEAN":          {xconn.SQLBit, kindOther},
	"TINYINT":          {xconn.SQLTinyInt, kindOther},
	"SMALLINT":         {xconn.SQLSmallInt, kindOther},
	"MEDIUMINT":        {xconn.SQLInteger, kindOther},
	"INT":              {xconn.SQLInteger, kindOther},
	"INTEGER":          {xconn.SQLInteger, kindOther},
	"BIGINT":           {xconn.SQLBigInt, kindOther},
	"REAL":             {xconn.SQLReal, kindOther},
	"FLOAT":            {xconn.SQLFloat, kindOther},
	"DOUBLE":           {xconn.SQLDouble, kindOther},
	"DOUBLE PRECISION": {xconn.SQLDouble, kindOther},
	"DECIMAL":          {xconn.SQLDecimal, kindDecimal},
	"NUMERIC":          {xconn.SQLNumeric, kindDecimal},
	"MONEY":            {xconn.SQLDecimal, kindDecimal},
	"CHAR":             {xconn.SQLChar, kindText},
	"VARCHAR":          {xconn.SQLVarChar, kindText},
	"TEXT":             {xconn.SQLLongVarChar, kindText},
	"TINYTEXT":         {xconn.SQLLongVarChar, kindText},
	"MEDIUMTEXT":       {xconn.SQLLongVarChar, kindText},
	"LONGTEXT":         {xconn.SQLLongVarChar, kindText},
	"CLOB":             {xconn.SQLLongVarChar, kindText},
	"ENUM":             {xconn.SQLVarChar, kindText},
	"SET":              {xconn.SQLVarChar, kindText},
	"JSON":             {xconn.SQLLongVarChar, kindText},
	"NCHAR":            {xconn.SQLWChar, kindText},
	"NVARCHAR":         {xconn.SQLWVarChar, kindText},
	"NTEXT":            {xconn.SQLWLongVarChar, kindText},
	"BINARY":           {xconn.SQLBinary, kindOther},
	"VARBINARY":        {xconn.SQLVarBinary, kindOther},
	"BLOB":             {xconn.SQLLongVarBinary, kindOther},
	"TINYBLOB":         {xconn.SQLLongVarBinary, kindOther},
	"MEDIUMBLOB":       {xconn.SQLLongVarBinary, kindOther},
	"LONGBLOB":         {xconn.SQLLongVarBinary, kindOther},
	"IMAGE":            {xconn.SQLLongVarBinary, kindOther},
	"DATE":             {xconn.SQLTypeDate, kindOther},
	"TIME":             {xconn.SQLTypeTime, kindOther},
	"DATETIME":         {xconn.SQLTypeTimestamp, kindOther},
	"DATETIME2":        {xconn.SQLTypeTimestamp, kindOther},
	"TIMESTAMP":        {xconn.SQLTypeTimestamp, kindOther},
	"DATETIMEOFFSET":   {xconn.SQLSSTimeOffset, kindOther},
	"UUID":             {xconn.SQLGUID, kindOther},
	"UNIQUEIDENTIFIER": {xconn.SQLGUID, kindOther},
	"XML":              {xconn.SQLSSXML, kindText},
	"SQL_VARIANT":      {xconn.SQLSSVariant, kindOther},
}

// lookupType resolves a database type name. Unknown and empty names (such as
// expression columns in SQLite) report VARCHAR without text normalization.
func lookupType(dbType string) typeInfo {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	t = strings.TrimSuffix(t, " UNSIGNED")
	if info, ok := typeNames[t]; ok {
		return info
	}
	return typeInfo{code: xconn.SQLVarChar, kind: kindOther}
}

// declaredSize parses the precision and scale out of a declared type such as
// "DECIMAL(10, 2)". A single argument is a precision with scale 0.
func declaredSize(dbType string) (precision, scale int64, ok bool) {
	open := strings.IndexByte(dbType, '(')
	end := strings.IndexByte(dbType, ')')
	if open < 0 || end < open {
		return 0, 0, false
	}
	args := strings.Split(dbType[open+1:end], ",")
	if len(args) > 2 {
		return 0, 0, false
	}
	precision, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if len(args) == 2 {
		scale, err = strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
		if err != nil {
			return 0, 0, false
		}
	}
	return precision, scale, true
}
