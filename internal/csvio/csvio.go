// Package csvio carries the CSV wire-format contract shared by the writer
// and the loader: a line-oriented reader over encoding/csv, a per-field
// formatter for the write side, and charset detection for input files.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Dialect is the single-character CSV policy: separator, enclosure, escape
// and line terminator.
type Dialect struct {
	Comma          rune
	Quote          rune
	Escape         rune
	LineTerminator string
}

// DefaultDialect is comma-separated, double-quoted, LF-terminated, with the
// quote char doubling itself (RFC style).
func DefaultDialect() Dialect {
	return Dialect{Comma: ',', Quote: '"', Escape: '"', LineTerminator: "\n"}
}

// Normalize fills zero fields with the defaults.
func (d Dialect) Normalize() Dialect {
	def := DefaultDialect()
	if d.Comma == 0 {
		d.Comma = def.Comma
	}
	if d.Quote == 0 {
		d.Quote = def.Quote
	}
	if d.Escape == 0 {
		d.Escape = d.Quote
	}
	if d.LineTerminator == "" {
		d.LineTerminator = def.LineTerminator
	}
	return d
}

// NeedsQuote reports whether s must be enclosed: it contains the separator,
// the quote, the escape, or a line break.
func (d Dialect) NeedsQuote(s string) bool {
	return strings.ContainsRune(s, d.Comma) ||
		strings.ContainsRune(s, d.Quote) ||
		strings.ContainsRune(s, d.Escape) ||
		strings.ContainsAny(s, "\r\n")
}

// FormatField renders one field. Quoting is applied when forced or needed;
// embedded quote and escape characters are doubled by the escape char.
func (d Dialect) FormatField(s string, quoteAll bool) string {
	if !quoteAll && !d.NeedsQuote(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteRune(d.Quote)
	for _, r := range s {
		if r == d.Quote || r == d.Escape {
			b.WriteRune(d.Escape)
		}
		b.WriteRune(r)
	}
	b.WriteRune(d.Quote)
	return b.String()
}

// ReaderOptions configures an input Reader.
type ReaderOptions struct {
	Dialect   Dialect
	SkipLines int    // records dropped before the first Read returns
	Charset   string // empty or "UTF-8" reads bytes as-is
}

// Reader is the line-oriented read side of the contract: Read returns one
// record's fields, joining physical lines when a quoted field spans them
// (encoding/csv does the joining). Field counts may vary per record and
// quoting is lenient, which matches what real exports need.
type Reader struct {
	cr       *csv.Reader
	counting *CountingReader
	skip     int
}

// NewReader builds the read pipeline: counting → charset decode → BOM skip
// → CSV. Only the standard double-quote enclosure is supported on the read
// side; encoding/csv owns the lexing.
func NewReader(r io.Reader, opts ReaderOptions) (*Reader, error) {
	d := opts.Dialect.Normalize()
	if d.Quote != '"' {
		return nil, fmt.Errorf("unsupported enclosure %q: the reader only lexes double-quoted fields", d.Quote)
	}

	counting := NewCountingReader(r)
	decoded, err := DecodingReader(counting, opts.Charset)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(NewBOMSkippingReader(decoded))
	cr.Comma = d.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	return &Reader{cr: cr, counting: counting, skip: opts.SkipLines}, nil
}

// Read returns the next record, or io.EOF.
func (r *Reader) Read() ([]string, error) {
	for r.skip > 0 {
		r.skip--
		if _, err := r.cr.Read(); err != nil {
			return nil, err
		}
	}
	return r.cr.Read()
}

// BytesRead reports raw input bytes consumed so far.
func (r *Reader) BytesRead() int64 { return r.counting.BytesRead }

// Writer emits records through FormatField. The loader's .bad sidecar and
// tests use it; the flow writer formats fields itself so it can interleave
// SQL framing.
type Writer struct {
	w        io.Writer
	d        Dialect
	QuoteAll bool
}

// NewWriter returns a Writer over w with the given dialect.
func NewWriter(w io.Writer, d Dialect) *Writer {
	return &Writer{w: w, d: d.Normalize()}
}

// WriteRow writes one record and the line terminator.
func (w *Writer) WriteRow(fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteRune(w.d.Comma)
		}
		b.WriteString(w.d.FormatField(f, w.QuoteAll))
	}
	b.WriteString(w.d.LineTerminator)
	_, err := io.WriteString(w.w, b.String())
	return err
}
