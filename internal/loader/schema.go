package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvflow/internal/codec"
	"github.com/JonMunkholm/csvflow/internal/config"
)

// DBTX is the database surface the loader needs. Satisfied by *sql.DB and
// *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// dbColumn is one destination column discovered from metadata.
type dbColumn struct {
	Name     string
	TypeName string
	Size     int64
}

// fetchColumns discovers the target table's columns: either through the
// caller-supplied COLUMN_INFO_SQL (projecting COLUMN_NAME, DATA_TYPE,
// TYPE_NAME, COLUMN_SIZE) or through the driver's result metadata on an
// empty select.
func fetchColumns(ctx context.Context, db DBTX, table, infoSQL string) ([]dbColumn, error) {
	if infoSQL != "" {
		return fetchColumnsSQL(ctx, db, infoSQL)
	}
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table+" WHERE 1=0")
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	cols := make([]dbColumn, len(types))
	for i, ct := range types {
		size, _ := ct.Length()
		if size <= 0 {
			if p, _, ok := ct.DecimalSize(); ok {
				size = p
			}
		}
		cols[i] = dbColumn{Name: ct.Name(), TypeName: ct.DatabaseTypeName(), Size: size}
	}
	return cols, nil
}

func fetchColumnsSQL(ctx context.Context, db DBTX, infoSQL string) ([]dbColumn, error) {
	rows, err := db.QueryContext(ctx, infoSQL)
	if err != nil {
		return nil, fmt.Errorf("column info query: %w", err)
	}
	defer rows.Close()
	var cols []dbColumn
	for rows.Next() {
		var name, typeName string
		var dataType any
		var size sql.NullInt64
		if err := rows.Scan(&name, &dataType, &typeName, &size); err != nil {
			return nil, fmt.Errorf("column info scan: %w", err)
		}
		cols = append(cols, dbColumn{Name: name, TypeName: typeName, Size: size.Int64})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}

// quoteIdent quotes an identifier per dialect: backticks for MySQL,
// brackets for SQL Server and Sybase, double quotes elsewhere.
func quoteIdent(p config.Platform, name string) string {
	switch p {
	case config.PlatformMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case config.PlatformMSSQL:
		return "[" + name + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// placeholder renders the n-th (1-based) bind marker. The ":" style yields
// :1, :2, …; the "?" style yields ? — except on PostgreSQL, whose drivers
// only accept $n, so "?" resolves to $n there.
func placeholder(style string, p config.Platform, n int) string {
	if style == ":" {
		return ":" + strconv.Itoa(n)
	}
	if p == config.PlatformPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// resolveSchema maps the CSV header onto the database columns. With no
// header the database column list is used positionally. Unmatched CSV
// columns are silently dropped in auto-skip mode and fatal otherwise.
func resolveSchema(header []string, dbCols []dbColumn, o *config.LoadOptions, table string) ([]codec.TargetColumn, error) {
	byName := make(map[string]dbColumn, len(dbCols))
	for _, c := range dbCols {
		byName[strings.ToLower(c.Name)] = c
	}
	skip := make(map[string]bool, len(o.SkipColumns))
	for _, s := range o.SkipColumns {
		skip[strings.ToLower(s)] = true
	}

	if len(header) == 0 {
		// Positional: CSV field i feeds DB column i.
		out := make([]codec.TargetColumn, len(dbCols))
		for i, c := range dbCols {
			out[i] = codec.TargetColumn{
				Name:     c.Name,
				TypeName: c.TypeName,
				Type:     codec.TargetTypeForName(c.TypeName),
				Size:     c.Size,
				CSVIndex: i,
			}
		}
		return out, nil
	}

	var out []codec.TargetColumn
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if mapped, ok := o.ColumnNameMap[strings.ToLower(name)]; ok {
			name = mapped
		}
		if skip[strings.ToLower(name)] || skip[strings.ToLower(strings.TrimSpace(raw))] {
			continue
		}
		c, ok := byName[strings.ToLower(name)]
		if !ok {
			if o.SkipColumnsAuto {
				continue
			}
			return nil, &SchemaMismatchError{Column: name, Table: table}
		}
		out = append(out, codec.TargetColumn{
			Name:     c.Name,
			TypeName: c.TypeName,
			Type:     codec.TargetTypeForName(c.TypeName),
			Size:     c.Size,
			CSVIndex: i,
		})
	}
	if len(out) == 0 {
		return nil, &SchemaMismatchError{Column: "(none matched)", Table: table}
	}
	return out, nil
}

// buildInsertSQL renders the parameterised statement for the projection.
func buildInsertSQL(table string, cols []codec.TargetColumn, o *config.LoadOptions) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(o.Platform, table))
	b.WriteByte('(')
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteIdent(o.Platform, c.Name))
	}
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(placeholder(o.VariableFormat, o.Platform, i+1))
	}
	b.WriteByte(')')
	return b.String()
}
