// Package codec converts between database-typed values and their canonical
// text form. It is the shared middle of all three flows: the writer feeds
// raw cursor values through Encode, the loader feeds CSV fields through
// Decode.
//
// A Codec is built once per run from a Config and owns the temporal
// formatter caches for that run. It is not safe for concurrent use; the
// prefetch pipeline encodes on the consumer side only.
package codec

import (
	"reflect"
	"strings"
	"time"
)

// Tag is the semantic type of a column, derived once from the driver's
// reported type when the cursor is opened.
type Tag int

const (
	TagObject Tag = iota
	TagBoolean
	TagInt
	TagLong
	TagDouble
	TagDate
	TagTime
	TagTimestamp
	TagTimestampTZ
	TagRaw
	TagBlob
	TagClob
	TagXML
	TagArray
	TagStruct
	TagJSON
	TagVector
	TagString
)

var tagNames = map[Tag]string{
	TagObject:      "object",
	TagBoolean:     "boolean",
	TagInt:         "int",
	TagLong:        "long",
	TagDouble:      "double",
	TagDate:        "date",
	TagTime:        "time",
	TagTimestamp:   "timestamp",
	TagTimestampTZ: "timestamptz",
	TagRaw:         "raw",
	TagBlob:        "blob",
	TagClob:        "clob",
	TagXML:         "xml",
	TagArray:       "array",
	TagStruct:      "struct",
	TagJSON:        "json",
	TagVector:      "vector",
	TagString:      "string",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return "object"
}

// TagForDatabaseType maps a driver-reported type name (and, when the driver
// supplies one, the Go scan type) to a Tag. Unknown names fall back to
// TagObject so the generic accessor path handles them.
func TagForDatabaseType(typeName string, scanType reflect.Type) Tag {
	name := strings.ToUpper(strings.TrimSpace(typeName))

	// Parenthesised sizes ("VARCHAR2(30)") and modifiers are irrelevant here.
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	switch name {
	case "BOOL", "BOOLEAN", "BIT":
		return TagBoolean
	case "TINYINT", "SMALLINT", "INT2", "MEDIUMINT", "INT", "INT4", "INTEGER", "SERIAL":
		return TagInt
	case "BIGINT", "INT8", "BIGSERIAL":
		return TagLong
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION",
		"NUMBER", "NUMERIC", "DECIMAL", "DEC", "MONEY", "BINARY_FLOAT", "BINARY_DOUBLE":
		return TagDouble
	case "DATE":
		return TagDate
	case "TIME", "TIME WITHOUT TIME ZONE", "TIME WITH TIME ZONE", "TIMETZ":
		return TagTime
	case "TIMESTAMP", "DATETIME", "TIMESTAMP WITHOUT TIME ZONE", "SMALLDATETIME":
		return TagTimestamp
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITH LOCAL TIME ZONE", "DATETIMEOFFSET":
		return TagTimestampTZ
	case "RAW", "LONG RAW", "BINARY", "VARBINARY", "LONGVARBINARY":
		return TagRaw
	case "BLOB", "BYTEA", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB", "IMAGE":
		return TagBlob
	case "CLOB", "NCLOB", "TEXT", "LONGTEXT", "MEDIUMTEXT", "TINYTEXT", "LONG", "NTEXT":
		return TagClob
	case "XML", "XMLTYPE", "SYS.XMLTYPE":
		return TagXML
	case "JSON", "JSONB":
		return TagJSON
	case "VECTOR":
		return TagVector
	case "ARRAY", "VARRAY", "_TEXT", "_INT4", "_INT8", "_FLOAT8", "_NUMERIC":
		return TagArray
	case "STRUCT", "OBJECT":
		return TagStruct
	case "CHAR", "NCHAR", "VARCHAR", "VARCHAR2", "NVARCHAR", "NVARCHAR2", "CHARACTER VARYING", "UUID", "ENUM", "NAME":
		return TagString
	}

	if scanType != nil {
		switch scanType.Kind() {
		case reflect.Bool:
			return TagBoolean
		case reflect.Int8, reflect.Int16, reflect.Int32:
			return TagInt
		case reflect.Int, reflect.Int64:
			return TagLong
		case reflect.Float32, reflect.Float64:
			return TagDouble
		case reflect.String:
			return TagString
		}
		if scanType == reflect.TypeOf(time.Time{}) {
			return TagTimestamp
		}
		if scanType == reflect.TypeOf([]byte(nil)) {
			return TagRaw
		}
	}
	return TagObject
}

// Descriptor describes one column of an open cursor. Immutable after
// discovery, except ClassName which is learned from the first non-null cell.
type Descriptor struct {
	Index        int    // 0-based position
	Name         string
	Tag          Tag
	DatabaseType string // driver-reported type name, upper case
	ClassName    string // Go type name of the first non-null value seen
	Size         int64  // nominal length, 0 when the driver does not say
}

// Config carries the per-run conversion settings. A zero Config is not
// usable; call Normalize (or start from DefaultConfig) first. The value is
// threaded through construction and never re-read mid-run.
type Config struct {
	Trim              bool
	DateFormat        string // Go reference layout
	TimestampFormat   string
	TimestampTZFormat string
	UnescapeNewline   bool
	Location          *time.Location
}

// DefaultConfig returns the documented defaults: ISO dates, millisecond
// timestamps, numeric zone offsets, system zone.
func DefaultConfig() Config {
	return Config{
		DateFormat:        "2006-01-02",
		TimestampFormat:   "2006-01-02 15:04:05.000",
		TimestampTZFormat: "2006-01-02 15:04:05.000Z07:00",
		UnescapeNewline:   true,
		Location:          time.Local,
	}
}

// Normalize fills unset fields with their defaults.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.DateFormat == "" {
		c.DateFormat = def.DateFormat
	}
	if c.TimestampFormat == "" {
		c.TimestampFormat = def.TimestampFormat
	}
	if c.TimestampTZFormat == "" {
		c.TimestampTZFormat = def.TimestampTZFormat
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Codec is the per-run value converter. It owns the live temporal pattern
// lists and the runtime caches that replace them after warm-up.
type Codec struct {
	cfg Config

	dateTime *patternSet
	timeOnly *patternSet

	rows int // data rows completed, drives cache compaction
}

// New builds a Codec from cfg. When cfg pins an explicit date, timestamp or
// timestamptz format, that layout is tried first on the decode side.
func New(cfg Config) *Codec {
	cfg = cfg.Normalize()
	c := &Codec{
		cfg:      cfg,
		dateTime: newPatternSet(dateTimeLibrary()),
		timeOnly: newPatternSet(timeLibrary()),
	}
	for _, pinned := range []string{cfg.TimestampTZFormat, cfg.TimestampFormat, cfg.DateFormat} {
		c.dateTime.promote(pinned)
	}
	return c
}

// Config returns the codec's settings.
func (c *Codec) Config() Config { return c.cfg }

// EndRow marks the end of one decoded data row. After enough rows and
// enough recorded matches the live pattern lists are swapped for the
// runtime caches, so homogeneous data parses in O(1) amortized. The swap
// happens here, between rows, never mid-row.
func (c *Codec) EndRow() {
	c.rows++
	if c.rows < compactionMinRows {
		return
	}
	c.dateTime.maybeCompact()
	c.timeOnly.maybeCompact()
}
