package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/csvflow/internal/codec"
	"github.com/JonMunkholm/csvflow/internal/csvio"
)

// ControlFileOptions shapes the SQL*Loader control sidecar emitted next to
// an Oracle-bound CSV.
type ControlFileOptions struct {
	Dialect   csvio.Dialect
	HasHeader bool
	Exclude   map[string]bool
}

// WriteControlFile writes <base>.ctl describing the CSV at basePath so
// SQL*Loader can ingest it. Excluded columns are omitted; columns with no
// type mapping are declared FILLER.
func WriteControlFile(basePath string, desc []codec.Descriptor, opts ControlFileOptions) error {
	d := opts.Dialect.Normalize()
	base := filepath.Base(basePath)

	skip := 0
	if opts.HasHeader {
		skip = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OPTIONS (SKIP=%d, ROWS=3000, BINDSIZE=16777216, STREAMSIZE=33554432,\n", skip)
	b.WriteString("         ERRORS=1000, READSIZE=16777216, DIRECT=FALSE)\n")
	b.WriteString("LOAD DATA\n")
	if d.LineTerminator != "\n" {
		fmt.Fprintf(&b, "INFILE      %s.csv \"STR '%s'\"\n", base, controlEscape(d.LineTerminator))
	} else {
		fmt.Fprintf(&b, "INFILE      %s.csv\n", base)
	}
	fmt.Fprintf(&b, "BADFILE     %s.bad\n", base)
	fmt.Fprintf(&b, "DISCARDFILE %s.dsc\n", base)
	fmt.Fprintf(&b, "APPEND INTO TABLE %s\n", base)
	fmt.Fprintf(&b, "FIELDS CSV TERMINATED BY %s OPTIONALLY ENCLOSED BY %s AND %s TRAILING NULLCOLS\n",
		controlChar(d.Comma), controlChar(d.Quote), controlChar(d.Quote))
	b.WriteString("(\n")

	first := true
	for i := range desc {
		name := desc[i].Name
		if opts.Exclude != nil && opts.Exclude[strings.ToLower(name)] {
			continue
		}
		if !first {
			b.WriteString(",\n")
		}
		first = false
		b.WriteString("    ")
		b.WriteString(controlColumn(&desc[i]))
	}
	b.WriteString("\n)\n")

	return os.WriteFile(basePath+".ctl", []byte(b.String()), 0o644)
}

// controlColumn renders one column clause.
func controlColumn(d *codec.Descriptor) string {
	quoted := `"` + d.Name + `"`
	pad := quoted
	if len(pad) < 26 {
		pad = pad + strings.Repeat(" ", 26-len(pad))
	}
	switch d.Tag {
	case codec.TagDate:
		return fmt.Sprintf(`%s DATE "YYYY-MM-DD HH24:MI:SS" NULLIF %s=BLANKS`, pad, quoted)
	case codec.TagTimestamp:
		return fmt.Sprintf(`%s TIMESTAMP "YYYY-MM-DD HH24:MI:SSXFF" NULLIF %s=BLANKS`, pad, quoted)
	case codec.TagTimestampTZ:
		return fmt.Sprintf(`%s TIMESTAMP WITH TIME ZONE "YYYY-MM-DD HH24:MI:SSXFF TZH:TZM" NULLIF %s=BLANKS`, pad, quoted)
	case codec.TagInt, codec.TagLong, codec.TagDouble, codec.TagBoolean:
		return fmt.Sprintf(`%s NULLIF %s=BLANKS`, pad, quoted)
	case codec.TagString, codec.TagClob, codec.TagXML, codec.TagJSON:
		return fmt.Sprintf(`%s CHAR(%d) NULLIF %s=BLANKS`, pad, charLength(d.Size), quoted)
	case codec.TagRaw, codec.TagBlob:
		return fmt.Sprintf(`%s CHAR(%d) NULLIF %s=BLANKS`, pad, charLength(d.Size*2), quoted)
	default:
		return pad + " FILLER"
	}
}

func charLength(n int64) int64 {
	if n <= 0 || n > 32767 {
		return 4000
	}
	return n
}

// controlChar renders a separator or quote for the control file: printable
// characters as 'c', anything else as X'hh'.
func controlChar(r rune) string {
	if r >= 0x20 && r < 0x7f {
		return "'" + string(r) + "'"
	}
	return fmt.Sprintf("X'%02x'", r)
}

func controlEscape(s string) string {
	return strings.NewReplacer("\r", "\\r", "\n", "\\n").Replace(s)
}
