package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Array is a driver-independent representation of an ARRAY/VARRAY cell.
type Array []any

// Struct is a driver-independent representation of an object-typed cell.
type Struct struct {
	TypeName string
	Fields   []any
}

// formatComposite pretty-prints arrays as {e1,e2,…} and structs as
// Typename(e1,e2,…). Numbers use the canonical decimal form, temporal
// values are quoted and formatted with the configured layouts, strings are
// single-quoted with embedded quotes doubled. Nested composites start on a
// fresh line indented two spaces per level.
func (c *Codec) formatComposite(v any, level int) string {
	switch x := v.(type) {
	case Array:
		return "{" + c.joinElements([]any(x), level) + "}"
	case Struct:
		return x.TypeName + "(" + c.joinElements(x.Fields, level) + ")"
	default:
		return c.compositeScalar(v)
	}
}

func (c *Codec) joinElements(elems []any, level int) string {
	var b strings.Builder
	indent := strings.Repeat("  ", level+1)
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		switch e.(type) {
		case Array, Struct:
			b.WriteByte('\n')
			b.WriteString(indent)
			b.WriteString(c.formatComposite(e, level+1))
		default:
			b.WriteString(c.compositeScalar(e))
		}
	}
	return b.String()
}

func (c *Codec) compositeScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(x), "'", "''") + "'"
	case time.Time:
		return "'" + x.Format(c.cfg.TimestampFormat) + "'"
	case float64, float32, int, int8, int16, int32, int64:
		return NumericText(x)
	default:
		return NormalizeDecimalText(fmt.Sprint(x))
	}
}

// formatVector renders a float vector as [v0,v1,…] with a line break after
// every fourth element.
func formatVector(vals []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(',')
			if i%4 == 0 {
				b.WriteByte('\n')
			}
		}
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
