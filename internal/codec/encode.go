package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// oracleDateClass marks descriptors whose driver reports DATE columns
// through the timestamp accessor. The fractional-seconds truncation below
// reproduces the upstream driver workaround byte for byte, including its
// off-by-one (the character before the dot is dropped too).
const oracleDateClass = "oracle.sql.DATE"

// Encode converts one raw cell to its emitted form: text for most tags,
// pass-through scalars (bool, integers) the sink can write directly. A nil
// cell always encodes to nil, whatever the accessor returned.
func (c *Codec) Encode(v any, d *Descriptor) (any, error) {
	if v == nil {
		return nil, nil
	}

	var out any
	switch d.Tag {
	case TagBoolean:
		b, err := toBool(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", d.Name, err)
		}
		return b, nil

	case TagInt:
		n, err := toInt32(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", d.Name, err)
		}
		return n, nil

	case TagLong, TagDouble:
		out = c.encodeNumeric(v)

	case TagDate:
		t, ok := v.(time.Time)
		if !ok {
			out = asString(v)
			break
		}
		out = t.Format(c.cfg.DateFormat)

	case TagTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			out = asString(v)
			break
		}
		s := stripZeroFraction(t.Format(c.cfg.TimestampFormat))
		if strings.HasPrefix(d.ClassName, oracleDateClass) || d.DatabaseType == "DATE" {
			if pos := strings.IndexByte(s, '.'); pos > 0 {
				s = s[:pos-1]
			}
		}
		out = s

	case TagTimestampTZ:
		t, ok := v.(time.Time)
		if !ok {
			out = asString(v)
			break
		}
		out = t.Format(c.cfg.TimestampTZFormat)

	case TagTime:
		switch t := v.(type) {
		case time.Time:
			out = t.Format("15:04:05")
		default:
			out = asString(v)
		}

	case TagRaw, TagBlob:
		switch b := v.(type) {
		case []byte:
			out = HexUpper(b)
		default:
			out = asString(v)
		}

	case TagClob, TagXML, TagJSON, TagString:
		out = asString(v)

	case TagArray, TagStruct:
		out = c.formatComposite(v, 0)

	case TagVector:
		switch vec := v.(type) {
		case []float64:
			out = formatVector(vec)
		case []float32:
			f64 := make([]float64, len(vec))
			for i, f := range vec {
				f64[i] = float64(f)
			}
			out = formatVector(f64)
		default:
			out = asString(v)
		}

	default:
		out = asString(v)
	}

	if s, ok := out.(string); ok && c.cfg.Trim {
		out = strings.TrimSpace(s)
	}
	return out, nil
}

// EncodeRow encodes every cell of a raw row in place and returns the row.
func (c *Codec) EncodeRow(raw []any, desc []Descriptor) ([]any, error) {
	for i := range raw {
		v, err := c.Encode(raw[i], &desc[i])
		if err != nil {
			return nil, err
		}
		raw[i] = v
	}
	return raw, nil
}

// encodeNumeric applies the decimal normalisation rules to whatever shape
// the driver handed back.
func (c *Codec) encodeNumeric(v any) any {
	switch n := v.(type) {
	case int64, int32, int16, int8, int:
		return n
	case float64:
		return NormalizeDecimalText(strconv.FormatFloat(n, 'f', -1, 64))
	case float32:
		return NormalizeDecimalText(strconv.FormatFloat(float64(n), 'f', -1, 32))
	case string:
		return NormalizeDecimalText(n)
	case []byte:
		return NormalizeDecimalText(string(n))
	default:
		return NormalizeDecimalText(fmt.Sprint(n))
	}
}

// stripZeroFraction removes an all-zero fractional-second suffix.
func stripZeroFraction(s string) string {
	pos := strings.LastIndexByte(s, '.')
	if pos < 0 {
		return s
	}
	frac := s[pos+1:]
	for i := 0; i < len(frac); i++ {
		if frac[i] != '0' {
			return s
		}
	}
	if len(frac) == 0 {
		return s
	}
	return s[:pos]
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(b)))
	default:
		return false, fmt.Errorf("cannot interpret %T as boolean", v)
	}
}

func toInt32(v any) (int32, error) {
	switch n := v.(type) {
	case int64:
		return int32(n), nil
	case int32:
		return n, nil
	case int:
		return int32(n), nil
	case float64:
		return int32(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return int32(i), err
	case []byte:
		i, err := strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
		return int32(i), err
	default:
		return 0, fmt.Errorf("cannot interpret %T as int", v)
	}
}
