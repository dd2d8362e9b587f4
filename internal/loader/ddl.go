package loader

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvflow/internal/codec"
	"github.com/JonMunkholm/csvflow/internal/config"
)

// electThreshold is the share of sampled non-empty values that must parse
// as a candidate type before it is elected.
const electThreshold = 0.8

// inferredKind is the candidate set the DDL generator votes over.
type inferredKind int

const (
	kindString inferredKind = iota
	kindBoolean
	kindInt
	kindBigInt
	kindDecimal
	kindDate
	kindTime
	kindTimestamp
	kindTimestampTZ
	kindBinary
)

// columnProfile accumulates per-column vote counts over the sample.
type columnProfile struct {
	name     string
	nonEmpty int
	votes    map[inferredKind]int
	maxLen   int
	maxInt   int // longest integer part seen for decimals
	maxFrac  int // longest fractional part
}

// inferColumns scans up to scanRows non-empty sample rows and elects a
// type per column.
func inferColumns(cd *codec.Codec, header []string, sample [][]string) []columnProfile {
	profiles := make([]columnProfile, len(header))
	for i, h := range header {
		profiles[i] = columnProfile{name: h, votes: make(map[inferredKind]int)}
	}

	for _, row := range sample {
		for i := range profiles {
			if i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			p := &profiles[i]
			p.nonEmpty++
			if len(v) > p.maxLen {
				p.maxLen = len(v)
			}
			profileValue(cd, p, v)
		}
	}
	return profiles
}

func profileValue(cd *codec.Codec, p *columnProfile, v string) {
	switch strings.ToUpper(v) {
	case "TRUE", "FALSE", "YES", "NO", "Y", "N":
		p.votes[kindBoolean]++
	}

	if n, err := codec.ParseNumeric(v); err == nil {
		switch n.(type) {
		case int8, int16, int32:
			p.votes[kindInt]++
			p.votes[kindBigInt]++
			p.votes[kindDecimal]++
			p.trackDecimal(v)
		case int64:
			p.votes[kindBigInt]++
			p.votes[kindDecimal]++
			p.trackDecimal(v)
		default:
			p.votes[kindDecimal]++
			p.trackDecimal(v)
		}
		return
	}

	if t, ok := cd.ParseDateTime(v); ok {
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 && !strings.ContainsAny(v, ":") {
			p.votes[kindDate]++
		}
		p.votes[kindTimestamp]++
		if strings.ContainsAny(v, "Z+") || strings.Contains(v, " -") {
			p.votes[kindTimestampTZ]++
		}
		return
	}
	if _, ok := cd.ParseTimeOnly(v); ok {
		p.votes[kindTime]++
		return
	}
	if b, err := codec.ParseBinary(v); err == nil && len(b) > 0 && len(v) >= 4 {
		p.votes[kindBinary]++
	}
}

// trackDecimal records the integer and fraction digit counts for
// precision/scale derivation.
func (p *columnProfile) trackDecimal(v string) {
	v = strings.TrimLeft(v, "+-")
	intPart := v
	fracPart := ""
	if i := strings.IndexByte(v, '.'); i >= 0 {
		intPart, fracPart = v[:i], v[i+1:]
	}
	if i := strings.IndexAny(fracPart, "eE"); i >= 0 {
		fracPart = fracPart[:i]
	}
	if len(intPart) > p.maxInt {
		p.maxInt = len(intPart)
	}
	if len(fracPart) > p.maxFrac {
		p.maxFrac = len(fracPart)
	}
}

// elect picks the narrowest candidate that clears the threshold, falling
// back to string.
func (p *columnProfile) elect() inferredKind {
	if p.nonEmpty == 0 {
		return kindString
	}
	need := int(float64(p.nonEmpty)*electThreshold + 0.5)
	if need < 1 {
		need = 1
	}
	order := []inferredKind{
		kindBoolean, kindInt, kindBigInt, kindDecimal,
		kindDate, kindTime, kindTimestampTZ, kindTimestamp, kindBinary,
	}
	for _, k := range order {
		if p.votes[k] >= need {
			return k
		}
	}
	return kindString
}

// GenerateDDL produces a dialect-appropriate CREATE TABLE for the sampled
// rows.
func GenerateDDL(cd *codec.Codec, table string, header []string, sample [][]string, o *config.LoadOptions) string {
	profiles := inferColumns(cd, header, sample)
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(o.Platform, table))
	b.WriteString(" (\n")
	for i := range profiles {
		if i > 0 {
			b.WriteString(",\n")
		}
		p := &profiles[i]
		b.WriteString("    ")
		b.WriteString(quoteIdent(o.Platform, p.name))
		b.WriteByte(' ')
		b.WriteString(columnDecl(p, o))
	}
	b.WriteString("\n)")
	return b.String()
}

// columnDecl renders the type clause for one elected column.
func columnDecl(p *columnProfile, o *config.LoadOptions) string {
	switch p.elect() {
	case kindBoolean:
		if o.Platform == config.PlatformOracle {
			return "NUMBER(1)"
		}
		return "BOOLEAN"
	case kindInt:
		if o.Platform == config.PlatformOracle {
			return "NUMBER(10)"
		}
		return "INTEGER"
	case kindBigInt:
		if o.Platform == config.PlatformOracle {
			return "NUMBER(19)"
		}
		return "BIGINT"
	case kindDecimal:
		prec := p.maxInt + p.maxFrac
		if prec < 1 {
			prec = 1
		}
		if prec > 38 {
			prec = 38
		}
		if o.Platform == config.PlatformOracle {
			return fmt.Sprintf("NUMBER(%d,%d)", prec, p.maxFrac)
		}
		return fmt.Sprintf("DECIMAL(%d,%d)", prec, p.maxFrac)
	case kindDate:
		return "DATE"
	case kindTime:
		return "TIME"
	case kindTimestampTZ:
		if o.Platform == config.PlatformOracle {
			return "TIMESTAMP WITH TIME ZONE"
		}
		return "TIMESTAMPTZ"
	case kindTimestamp:
		return "TIMESTAMP"
	case kindBinary:
		switch o.Platform {
		case config.PlatformOracle:
			return "BLOB"
		case config.PlatformPostgres:
			return "BYTEA"
		default:
			return "VARBINARY(" + fmt.Sprint(stringLength(p, o)) + ")"
		}
	default:
		return charDecl(p, o)
	}
}

func stringLength(p *columnProfile, o *config.LoadOptions) int {
	if o.ColumnSize == config.ColumnSizeActual && p.maxLen > 0 {
		return p.maxLen
	}
	switch o.Platform {
	case config.PlatformOracle:
		return 4000
	case config.PlatformMySQL:
		return 16383
	default:
		return 4000
	}
}

func charDecl(p *columnProfile, o *config.LoadOptions) string {
	n := stringLength(p, o)
	switch o.Platform {
	case config.PlatformOracle:
		return fmt.Sprintf("VARCHAR2(%d)", n)
	case config.PlatformPostgres:
		if o.ColumnSize == config.ColumnSizeMaximum {
			return "TEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", n)
	default:
		return fmt.Sprintf("VARCHAR(%d)", n)
	}
}
