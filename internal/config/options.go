package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseOptions applies KEY=VALUE pairs onto o. Keys are matched
// case-insensitively; string values are case-insensitive too. Unknown keys
// are an error so typos fail fast.
func (o *LoadOptions) ParseOptions(args []string) error {
	for _, arg := range args {
		eq := strings.IndexByte(arg, '=')
		if eq < 0 {
			return fmt.Errorf("option %q is not KEY=VALUE", arg)
		}
		key := strings.ToUpper(strings.TrimSpace(arg[:eq]))
		val := strings.TrimSpace(arg[eq+1:])
		if err := o.set(key, val); err != nil {
			return err
		}
	}
	return o.Validate()
}

func (o *LoadOptions) set(key, val string) error {
	var err error
	switch key {
	case "BATCH_ROWS":
		o.BatchRows, err = parseInt(key, val)
	case "ROW_LIMIT":
		o.RowLimit, err = parseInt(key, val)
	case "ERRORS":
		o.Errors, err = parseInt(key, val)
	case "REPORT_MB":
		o.ReportMB, err = parseInt(key, val)
	case "DELIMITER":
		o.Delimiter, err = parseChar(key, val)
	case "ENCLOSURE":
		o.Enclosure, err = parseChar(key, val)
	case "ESCAPE":
		o.Escape, err = parseChar(key, val)
	case "SKIP_ROWS":
		o.SkipRows, err = parseInt(key, val)
	case "HAS_HEADER":
		o.HasHeader, err = parseBool(key, val)
	case "ENCODING":
		o.Encoding = val
	case "VARIABLE_FORMAT":
		o.VariableFormat = val
	case "SHOW":
		o.Show, err = ParseShow(val)
	case "CREATE":
		o.Create, err = parseBool(key, val)
	case "TRUNCATE":
		o.Truncate, err = parseBool(key, val)
	case "PLATFORM":
		o.Platform, err = ParsePlatform(val)
	case "SCAN_ROWS":
		o.ScanRows, err = parseInt(key, val)
	case "COLUMN_SIZE":
		switch strings.ToUpper(val) {
		case "ACTUAL":
			o.ColumnSize = ColumnSizeActual
		case "MAXIMUM":
			o.ColumnSize = ColumnSizeMaximum
		default:
			err = fmt.Errorf("COLUMN_SIZE (%q) must be ACTUAL or MAXIMUM", val)
		}
	case "DATE_FORMAT":
		o.DateFormat = autoEmpty(val)
	case "TIMESTAMP_FORMAT":
		o.TimestampFormat = autoEmpty(val)
	case "TIMESTAMPTZ_FORMAT":
		o.TimestampTZFmt = autoEmpty(val)
	case "MAP_COLUMN_NAMES":
		o.ColumnNameMap, err = parseNameMap(val)
	case "UNESCAPE_NEWLINE":
		o.UnescapeNewline, err = parseBool(key, val)
	case "SKIP_COLUMNS":
		switch strings.ToUpper(val) {
		case "AUTO", "":
			o.SkipColumnsAuto = true
			o.SkipColumns = nil
		case "OFF":
			o.SkipColumnsAuto = false
			o.SkipColumns = nil
		default:
			o.SkipColumnsAuto = false
			o.SkipColumns = splitList(val)
		}
	case "COLUMN_INFO_SQL":
		o.ColumnInfoSQL = val
	case "LOGGER":
		o.Logger = val
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	return err
}

// autoEmpty maps the "auto" spelling to the empty (detect) value.
func autoEmpty(val string) string {
	if strings.EqualFold(val, "auto") {
		return ""
	}
	return val
}

func parseInt(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s (%q) must be an integer", key, val)
	}
	return n, nil
}

func parseBool(key, val string) (bool, error) {
	switch strings.ToUpper(val) {
	case "TRUE", "YES", "Y", "ON", "1":
		return true, nil
	case "FALSE", "NO", "N", "OFF", "0":
		return false, nil
	}
	return false, fmt.Errorf("%s (%q) must be a boolean", key, val)
}

// parseChar accepts a single character, the \t escape, or tab by name.
func parseChar(key, val string) (rune, error) {
	switch strings.ToUpper(val) {
	case `\T`, "TAB":
		return '\t', nil
	case "SPACE":
		return ' ', nil
	}
	if utf8.RuneCountInString(val) != 1 {
		return 0, fmt.Errorf("%s (%q) must be a single character", key, val)
	}
	r, _ := utf8.DecodeRuneInString(val)
	return r, nil
}

// parseNameMap reads "(csv1:db1,csv2:db2)" or the same without parentheses.
func parseNameMap(val string) (map[string]string, error) {
	val = strings.TrimSpace(val)
	val = strings.TrimPrefix(val, "(")
	val = strings.TrimSuffix(val, ")")
	if val == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(val, ",") {
		colon := strings.IndexByte(pair, ':')
		if colon < 0 {
			return nil, fmt.Errorf("MAP_COLUMN_NAMES entry %q is not csv:db", pair)
		}
		csvName := strings.ToLower(strings.TrimSpace(pair[:colon]))
		dbName := strings.TrimSpace(pair[colon+1:])
		if csvName == "" || dbName == "" {
			return nil, fmt.Errorf("MAP_COLUMN_NAMES entry %q is not csv:db", pair)
		}
		out[csvName] = dbName
	}
	return out, nil
}

// splitList reads "(a,b,c)" or "a,b,c" into trimmed entries.
func splitList(val string) []string {
	val = strings.TrimSpace(val)
	val = strings.TrimPrefix(val, "(")
	val = strings.TrimSuffix(val, ")")
	var out []string
	for _, p := range strings.Split(val, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
