package codec

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// TargetType is the coarse SQL type of a destination column, resolved from
// the database's TYPE_NAME by the loader.
type TargetType int

const (
	TargetOther TargetType = iota
	TargetText
	TargetTinyInt
	TargetSmallInt
	TargetInteger
	TargetBigInt
	TargetDecimal
	TargetFloat
	TargetDouble
	TargetDate
	TargetTime
	TargetTimeTZ
	TargetTimestamp
	TargetTimestampTZ
	TargetBoolean
	TargetBinary
)

// TargetColumn is the destination of one CSV field: a database column plus
// the CSV slot it is fed from.
type TargetColumn struct {
	Name     string
	TypeName string
	Type     TargetType
	Size     int64
	CSVIndex int
}

// TargetTypeForName resolves a database TYPE_NAME to a TargetType.
func TargetTypeForName(typeName string) TargetType {
	name := strings.ToUpper(strings.TrimSpace(typeName))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	switch name {
	case "CHAR", "NCHAR", "VARCHAR", "VARCHAR2", "NVARCHAR", "NVARCHAR2",
		"CHARACTER VARYING", "TEXT", "CLOB", "NCLOB", "LONGTEXT", "MEDIUMTEXT",
		"TINYTEXT", "NTEXT", "LONG", "UUID", "ENUM", "XML", "JSON", "JSONB":
		return TargetText
	case "TINYINT":
		return TargetTinyInt
	case "SMALLINT", "INT2":
		return TargetSmallInt
	case "INT", "INT4", "INTEGER", "MEDIUMINT", "SERIAL":
		return TargetInteger
	case "BIGINT", "INT8", "BIGSERIAL":
		return TargetBigInt
	case "NUMBER", "NUMERIC", "DECIMAL", "DEC", "MONEY":
		return TargetDecimal
	case "FLOAT", "FLOAT4", "REAL", "BINARY_FLOAT":
		return TargetFloat
	case "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "BINARY_DOUBLE":
		return TargetDouble
	case "DATE":
		return TargetDate
	case "TIME", "TIME WITHOUT TIME ZONE":
		return TargetTime
	case "TIMETZ", "TIME WITH TIME ZONE":
		return TargetTimeTZ
	case "TIMESTAMP", "DATETIME", "TIMESTAMP WITHOUT TIME ZONE", "SMALLDATETIME":
		return TargetTimestamp
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITH LOCAL TIME ZONE", "DATETIMEOFFSET":
		return TargetTimestampTZ
	case "BOOL", "BOOLEAN", "BIT":
		return TargetBoolean
	case "RAW", "LONG RAW", "BLOB", "BYTEA", "BINARY", "VARBINARY",
		"LONGVARBINARY", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB", "IMAGE":
		return TargetBinary
	}
	return TargetOther
}

var newlineUnescaper = strings.NewReplacer(`\n`, "\n", `\r`, "\r")

// Decode parses a CSV field into a bind parameter for col. A nil return
// binds SQL NULL.
func (c *Codec) Decode(text string, col TargetColumn) (any, error) {
	switch col.Type {
	case TargetText, TargetOther:
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		if c.cfg.UnescapeNewline {
			text = newlineUnescaper.Replace(text)
		}
		return text, nil
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch col.Type {
	case TargetTinyInt, TargetSmallInt, TargetInteger, TargetBigInt:
		return c.decodeInteger(text, col)
	case TargetDecimal:
		v, err := ParseNumeric(text)
		if err != nil {
			return nil, err
		}
		return numericValue(v)
	case TargetFloat, TargetDouble:
		return c.decodeFloat(text, col)
	case TargetDate, TargetTimestamp, TargetTimestampTZ:
		t, ok := c.ParseDateTime(text)
		if !ok {
			return nil, fmt.Errorf("unrecognized date/time value: %s", text)
		}
		return t, nil
	case TargetTime, TargetTimeTZ:
		t, ok := c.ParseTimeOnly(text)
		if !ok {
			return nil, fmt.Errorf("unrecognized time value: %s", text)
		}
		if col.Type == TargetTimeTZ {
			return t.Format("15:04:05.999999999Z07:00"), nil
		}
		return t.Format("15:04:05.999999999"), nil
	case TargetBoolean:
		return decodeBool(text)
	case TargetBinary:
		return ParseBinary(text)
	}
	return text, nil
}

func (c *Codec) decodeInteger(text string, col TargetColumn) (any, error) {
	v, err := ParseNumeric(text)
	if err != nil {
		return nil, err
	}
	var n int64
	switch x := v.(type) {
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	default:
		return nil, fmt.Errorf("value %s does not fit column %s (%s)", text, col.Name, col.TypeName)
	}

	var lo, hi int64
	switch col.Type {
	case TargetTinyInt:
		lo, hi = math.MinInt8, math.MaxInt8
	case TargetSmallInt:
		lo, hi = math.MinInt16, math.MaxInt16
	case TargetInteger:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		lo, hi = math.MinInt64, math.MaxInt64
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("value %s overflows column %s (%s)", text, col.Name, col.TypeName)
	}
	return n, nil
}

func (c *Codec) decodeFloat(text string, col TargetColumn) (any, error) {
	v, err := ParseNumeric(text)
	if err != nil {
		return nil, err
	}
	bits := 64
	if col.Type == TargetFloat {
		bits = 32
	}
	canonical := NumericText(v)
	f, err := strconv.ParseFloat(canonical, bits)
	if err != nil {
		return nil, fmt.Errorf("value %s does not fit column %s (%s)", text, col.Name, col.TypeName)
	}
	if strconv.FormatFloat(f, 'f', -1, bits) != canonical {
		return nil, fmt.Errorf("value %s is not exact for column %s (%s)", text, col.Name, col.TypeName)
	}
	if bits == 32 {
		return float32(f), nil
	}
	return f, nil
}

func decodeBool(text string) (any, error) {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "TRUE", "1", "YES", "Y":
		return true, nil
	case "FALSE", "0", "NO", "N":
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("invalid boolean value: %s", text)
	}
	return b, nil
}

// numericValue widens any ParseNumeric result into a pgtype.Numeric so
// arbitrary-precision columns bind exactly.
func numericValue(v any) (pgtype.Numeric, error) {
	switch x := v.(type) {
	case pgtype.Numeric:
		return x, nil
	case *big.Int:
		return pgtype.Numeric{Int: x, Exp: 0, Valid: true}, nil
	case int8:
		return pgtype.Numeric{Int: big.NewInt(int64(x)), Valid: true}, nil
	case int16:
		return pgtype.Numeric{Int: big.NewInt(int64(x)), Valid: true}, nil
	case int32:
		return pgtype.Numeric{Int: big.NewInt(int64(x)), Valid: true}, nil
	case int64:
		return pgtype.Numeric{Int: big.NewInt(x), Valid: true}, nil
	case float64:
		mant, exp, err := decomposeDecimal(strconv.FormatFloat(x, 'f', -1, 64))
		if err != nil {
			return pgtype.Numeric{}, err
		}
		return pgtype.Numeric{Int: mant, Exp: int32(exp), Valid: true}, nil
	default:
		return pgtype.Numeric{}, fmt.Errorf("cannot convert %T to numeric", v)
	}
}
