package config

import (
	"testing"
)

// ----------------------------------------------------------------------------
// Environment loader
// ----------------------------------------------------------------------------

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Driver != "pgx" {
		t.Errorf("Driver = %q, want pgx", cfg.Database.Driver)
	}
	if cfg.Buffers.SinkBytes != 4194304 {
		t.Errorf("SinkBytes = %d", cfg.Buffers.SinkBytes)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CSVFLOW_DB_DRIVER", "godror")
	t.Setenv("CSVFLOW_FETCH_HINT", "256")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Driver != "godror" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if cfg.Buffers.FetchHint != 256 {
		t.Errorf("FetchHint = %d", cfg.Buffers.FetchHint)
	}
}

func TestLoadAltEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.URL != "postgres://x" {
		t.Errorf("URL = %q", cfg.Database.URL)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	t.Setenv("CSVFLOW_LOG_LEVEL", "loud")
	if _, err := Load(); err == nil {
		t.Error("invalid log level accepted")
	}
}

// ----------------------------------------------------------------------------
// Option table
// ----------------------------------------------------------------------------

func TestParseOptionsDefaults(t *testing.T) {
	o := DefaultLoadOptions()
	if o.BatchRows != 2048 || o.Errors != -1 || o.ReportMB != 10 {
		t.Errorf("defaults = %+v", o)
	}
	if !o.HasHeader || !o.UnescapeNewline || !o.SkipColumnsAuto {
		t.Errorf("boolean defaults = %+v", o)
	}
	if o.Delimiter != ',' || o.Enclosure != '"' || o.Escape != '\\' {
		t.Errorf("char defaults = %+v", o)
	}
}

func TestParseOptions(t *testing.T) {
	o := DefaultLoadOptions()
	err := o.ParseOptions([]string{
		"batch_rows=100",
		"errors=5",
		"Delimiter=;",
		"has_header=No",
		"platform=PostgreSQL",
		"show=ddl",
		"variable_format=:",
		"map_column_names=(Id:ID,full name:NAME)",
		"skip_columns=(extra1,extra2)",
		"timestamp_format=2006-01-02 15:04:05",
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.BatchRows != 100 || o.Errors != 5 {
		t.Errorf("numerics = %+v", o)
	}
	if o.Delimiter != ';' {
		t.Errorf("Delimiter = %q", o.Delimiter)
	}
	if o.HasHeader {
		t.Error("HAS_HEADER=No not applied")
	}
	if o.Platform != PlatformPostgres {
		t.Errorf("Platform = %q", o.Platform)
	}
	if o.Show != ShowDDL {
		t.Errorf("Show = %v", o.Show)
	}
	if o.VariableFormat != ":" {
		t.Errorf("VariableFormat = %q", o.VariableFormat)
	}
	if o.ColumnNameMap["id"] != "ID" || o.ColumnNameMap["full name"] != "NAME" {
		t.Errorf("ColumnNameMap = %v", o.ColumnNameMap)
	}
	if o.SkipColumnsAuto || len(o.SkipColumns) != 2 {
		t.Errorf("SkipColumns = %v auto=%v", o.SkipColumns, o.SkipColumnsAuto)
	}
	if o.TimestampFormat != "2006-01-02 15:04:05" {
		t.Errorf("TimestampFormat = %q", o.TimestampFormat)
	}
}

func TestParseOptionsTabDelimiter(t *testing.T) {
	o := DefaultLoadOptions()
	if err := o.ParseOptions([]string{`delimiter=\t`}); err != nil {
		t.Fatal(err)
	}
	if o.Delimiter != '\t' {
		t.Errorf("Delimiter = %q", o.Delimiter)
	}
}

func TestParseOptionsAutoFormats(t *testing.T) {
	o := DefaultLoadOptions()
	if err := o.ParseOptions([]string{"date_format=AUTO"}); err != nil {
		t.Fatal(err)
	}
	if o.DateFormat != "" {
		t.Errorf("DATE_FORMAT=AUTO should clear the pin, got %q", o.DateFormat)
	}
}

func TestParseOptionsRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown key", args: []string{"bogus=1"}},
		{name: "missing equals", args: []string{"batch_rows"}},
		{name: "bad integer", args: []string{"batch_rows=lots"}},
		{name: "bad boolean", args: []string{"create=maybe"}},
		{name: "multichar delimiter", args: []string{"delimiter=;;"}},
		{name: "bad variable format", args: []string{"variable_format=$"}},
		{name: "zero batch", args: []string{"batch_rows=0"}},
		{name: "bad map entry", args: []string{"map_column_names=(nope)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultLoadOptions()
			if err := o.ParseOptions(tt.args); err == nil {
				t.Errorf("ParseOptions(%v) succeeded, want error", tt.args)
			}
		})
	}
}

func TestParseShowBooleans(t *testing.T) {
	if s, err := ParseShow("on"); err != nil || s != ShowAll {
		t.Errorf("ParseShow(on) = %v, %v", s, err)
	}
	if s, err := ParseShow("off"); err != nil || s != ShowOff {
		t.Errorf("ParseShow(off) = %v, %v", s, err)
	}
	if !ShowAll.ShowsDDL() || !ShowAll.ShowsDML() || ShowDDL.ShowsDML() {
		t.Error("Show predicates wrong")
	}
}
