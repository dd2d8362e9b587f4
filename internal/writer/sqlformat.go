package writer

import (
	"strings"

	"github.com/JonMunkholm/csvflow/internal/codec"
)

// SQLStatementFormatter renders each row as a literal INSERT statement.
// The INSERT INTO … VALUES ( prefix is built once from the visible
// columns and reused for every row.
type SQLStatementFormatter struct {
	Ctx   Context
	Table string

	prefix string
}

// NewSQLStatementFormatter caches the statement prefix for table over the
// non-excluded columns of desc.
func NewSQLStatementFormatter(wctx Context, table string, desc []codec.Descriptor) *SQLStatementFormatter {
	wctx.Dialect = wctx.Dialect.Normalize()
	f := &SQLStatementFormatter{Ctx: wctx, Table: table}
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteByte('(')
	first := true
	for i := range desc {
		if wctx.excluded(desc[i].Name) {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(desc[i].Name)
	}
	b.WriteString(") VALUES (")
	f.prefix = b.String()
	return f
}

// AppendRow emits prefix + literals + ");". String-family and temporal
// values are single-quoted with embedded quotes doubled; empty cells on
// numeric and boolean columns become null; a continuation break plus
// indent is inserted when the running width passes MaxLineWidth.
func (f *SQLStatementFormatter) AppendRow(dst *strings.Builder, cells []Cell) error {
	dst.WriteString(f.prefix)
	lineStart := 0
	for i, c := range cells {
		if i > 0 {
			dst.WriteByte(',')
		}
		if f.Ctx.MaxLineWidth > 0 && dst.Len()-lineStart > f.Ctx.MaxLineWidth {
			dst.WriteString(f.Ctx.Dialect.LineTerminator)
			dst.WriteString("  ")
			lineStart = dst.Len() - 2
		}
		dst.WriteString(f.literal(c))
	}
	dst.WriteString(");")
	dst.WriteString(f.Ctx.Dialect.LineTerminator)
	return nil
}

// literal renders one cell as a SQL literal.
func (f *SQLStatementFormatter) literal(c Cell) string {
	if c.Null {
		return "null"
	}
	switch c.Desc.Tag {
	case codec.TagInt, codec.TagLong, codec.TagDouble, codec.TagBoolean:
		if c.Text == "" {
			return "null"
		}
		return c.Text
	default:
		return "'" + strings.ReplaceAll(c.Text, "'", "''") + "'"
	}
}
