package loader

import (
	"errors"
	"testing"

	"github.com/JonMunkholm/csvflow/internal/codec"
	"github.com/JonMunkholm/csvflow/internal/config"
)

// ----------------------------------------------------------------------------
// Identifier quoting and placeholders
// ----------------------------------------------------------------------------

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		platform config.Platform
		name     string
		want     string
	}{
		{config.PlatformMySQL, "order", "`order`"},
		{config.PlatformMSSQL, "order", "[order]"},
		{config.PlatformPostgres, "order", `"order"`},
		{config.PlatformOracle, "order", `"order"`},
		{config.PlatformAuto, "order", `"order"`},
	}
	for _, tt := range tests {
		if got := quoteIdent(tt.platform, tt.name); got != tt.want {
			t.Errorf("quoteIdent(%s, %s) = %s, want %s", tt.platform, tt.name, got, tt.want)
		}
	}
}

func TestPlaceholder(t *testing.T) {
	if got := placeholder("?", config.PlatformOracle, 2); got != "?" {
		t.Errorf("placeholder = %q", got)
	}
	if got := placeholder(":", config.PlatformOracle, 2); got != ":2" {
		t.Errorf("placeholder = %q", got)
	}
	// PostgreSQL drivers only speak $n.
	if got := placeholder("?", config.PlatformPostgres, 3); got != "$3" {
		t.Errorf("placeholder = %q", got)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	opts := config.DefaultLoadOptions()
	opts.Platform = config.PlatformMySQL
	cols := resolveMust(t, []string{"id", "name"}, []dbColumn{
		{Name: "ID", TypeName: "INT"},
		{Name: "NAME", TypeName: "VARCHAR"},
	}, &opts)
	got := buildInsertSQL("people", cols, &opts)
	want := "INSERT INTO `people`(`ID`,`NAME`) VALUES (?,?)"
	if got != want {
		t.Errorf("insert = %q, want %q", got, want)
	}
}

func TestBuildInsertSQLOracleStyle(t *testing.T) {
	opts := config.DefaultLoadOptions()
	opts.Platform = config.PlatformOracle
	opts.VariableFormat = ":"
	cols := resolveMust(t, nil, []dbColumn{
		{Name: "A", TypeName: "NUMBER"},
		{Name: "B", TypeName: "VARCHAR2"},
	}, &opts)
	got := buildInsertSQL("t", cols, &opts)
	want := `INSERT INTO "t"("A","B") VALUES (:1,:2)`
	if got != want {
		t.Errorf("insert = %q, want %q", got, want)
	}
}

func resolveMust(t *testing.T, header []string, dbCols []dbColumn, o *config.LoadOptions) []codec.TargetColumn {
	t.Helper()
	cols, err := resolveSchema(header, dbCols, o, "t")
	if err != nil {
		t.Fatal(err)
	}
	return cols
}

// ----------------------------------------------------------------------------
// Header resolution
// ----------------------------------------------------------------------------

func TestResolveSchemaPositional(t *testing.T) {
	opts := config.DefaultLoadOptions()
	cols, err := resolveSchema(nil, []dbColumn{
		{Name: "A", TypeName: "INT"},
		{Name: "B", TypeName: "TEXT"},
	}, &opts, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 || cols[0].CSVIndex != 0 || cols[1].CSVIndex != 1 {
		t.Errorf("cols = %+v", cols)
	}
}

func TestResolveSchemaCaseInsensitive(t *testing.T) {
	opts := config.DefaultLoadOptions()
	cols, err := resolveSchema([]string{"Amount"}, []dbColumn{
		{Name: "AMOUNT", TypeName: "DECIMAL", Size: 10},
	}, &opts, "t")
	if err != nil {
		t.Fatal(err)
	}
	if cols[0].Name != "AMOUNT" || cols[0].CSVIndex != 0 {
		t.Errorf("cols = %+v", cols)
	}
}

func TestResolveSchemaExplicitSkip(t *testing.T) {
	opts := config.DefaultLoadOptions()
	opts.SkipColumnsAuto = false
	opts.SkipColumns = []string{"junk"}
	cols, err := resolveSchema([]string{"id", "junk"}, []dbColumn{
		{Name: "ID", TypeName: "INT"},
	}, &opts, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 1 || cols[0].Name != "ID" {
		t.Errorf("cols = %+v", cols)
	}
}

func TestResolveSchemaMismatch(t *testing.T) {
	opts := config.DefaultLoadOptions()
	opts.SkipColumnsAuto = false
	_, err := resolveSchema([]string{"id", "ghost"}, []dbColumn{
		{Name: "ID", TypeName: "INT"},
	}, &opts, "t")
	var sm *SchemaMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if sm.Column != "ghost" {
		t.Errorf("Column = %q", sm.Column)
	}
}

func TestResolveSchemaNothingMatches(t *testing.T) {
	opts := config.DefaultLoadOptions()
	_, err := resolveSchema([]string{"x", "y"}, []dbColumn{
		{Name: "ID", TypeName: "INT"},
	}, &opts, "t")
	if err == nil {
		t.Fatal("empty projection accepted")
	}
}
