// Package writer drives the cursor-to-file flows: rows come from a
// source.Source, cells go through the codec, and one of two row formatters
// renders them — CSV lines or INSERT statements — into a sink.
package writer

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvflow/internal/codec"
	"github.com/JonMunkholm/csvflow/internal/csvio"
	"github.com/JonMunkholm/csvflow/internal/sink"
	"github.com/JonMunkholm/csvflow/internal/source"
)

// Cell is one encoded cell handed to a row formatter.
type Cell struct {
	Text string
	Null bool
	Desc *codec.Descriptor
}

// RowFormatter renders one row into its on-wire form. Implementations are
// stateless between rows except for cached framing.
type RowFormatter interface {
	AppendRow(dst *strings.Builder, cells []Cell) error
}

// Context is the write-side policy shared by both formatters: dialect,
// quoting, column exclusion and value remapping.
type Context struct {
	Dialect  csvio.Dialect
	QuoteAll bool

	// Exclude drops columns from the output entirely (case-insensitive
	// names).
	Exclude map[string]bool

	// Remap substitutes a fixed text for every cell of a column, header
	// included; it takes priority over the encoded value.
	Remap map[string]string

	// MaxLineWidth wraps INSERT statements past this width; 0 keeps one
	// line per row.
	MaxLineWidth int
}

func (c Context) excluded(name string) bool {
	if len(c.Exclude) == 0 {
		return false
	}
	return c.Exclude[strings.ToLower(name)]
}

func (c Context) remapped(name string) (string, bool) {
	if len(c.Remap) == 0 {
		return "", false
	}
	v, ok := c.Remap[strings.ToLower(name)]
	return v, ok
}

// Options controls one WriteAll invocation.
type Options struct {
	IncludeHeader bool
	Async         bool // prefetch mode
	FetchLimit    int  // stop after this many rows when positive
	OnRow         func(written int64)
}

// Writer glues source → codec → formatter → sink.
type Writer struct {
	snk  *sink.Sink
	cd   *codec.Codec
	wctx Context
	fmtr RowFormatter
}

// New builds a Writer. The formatter decides the output shape; everything
// else is shared policy.
func New(s *sink.Sink, cd *codec.Codec, wctx Context, f RowFormatter) *Writer {
	wctx.Dialect = wctx.Dialect.Normalize()
	return &Writer{snk: s, cd: cd, wctx: wctx, fmtr: f}
}

// WriteAll streams every row of src into the sink and returns the number
// of rows written. With Async set a background producer prefetches raw
// rows; otherwise rows are pulled inline. Order is cursor order either
// way.
func (w *Writer) WriteAll(ctx context.Context, src *source.Source, opts Options) (int64, error) {
	desc := src.Descriptors()
	if opts.IncludeHeader {
		if err := w.writeHeader(desc); err != nil {
			return 0, err
		}
	}

	var written int64
	emit := func(row []any) error {
		if opts.FetchLimit > 0 && written >= int64(opts.FetchLimit) {
			return errRowLimit
		}
		if err := w.WriteNext(row, desc); err != nil {
			return err
		}
		written++
		if opts.OnRow != nil {
			opts.OnRow(written)
		}
		return nil
	}

	var err error
	if opts.Async {
		err = src.StartPrefetch(ctx, w.cd, emit, source.PrefetchOptions{FetchLimit: opts.FetchLimit})
	} else {
		err = w.pullAll(ctx, src, emit)
	}
	if err == errRowLimit {
		err = nil
	}
	if err != nil {
		return written, err
	}
	if _, err := w.snk.Flush(true); err != nil {
		return written, err
	}
	return written, nil
}

// errRowLimit stops the row loop without surfacing an error.
var errRowLimit = errors.New("row limit reached")

func (w *Writer) pullAll(ctx context.Context, src *source.Source, emit func([]any) error) error {
	for {
		if ctx.Err() != nil {
			_ = src.Close()
			return source.ErrAborted
		}
		row, err := src.NextRaw()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		encoded, err := w.cd.EncodeRow(row, src.Descriptors())
		if err != nil {
			return err
		}
		if err := emit(encoded); err != nil {
			return err
		}
	}
}

// writeHeader emits one row of column names, after exclusion and remap.
func (w *Writer) writeHeader(desc []codec.Descriptor) error {
	var b strings.Builder
	first := true
	for i := range desc {
		if w.wctx.excluded(desc[i].Name) {
			continue
		}
		name := desc[i].Name
		if v, ok := w.wctx.remapped(desc[i].Name); ok {
			name = v
		}
		if !first {
			b.WriteRune(w.wctx.Dialect.Comma)
		}
		first = false
		b.WriteString(w.wctx.Dialect.FormatField(name, w.wctx.QuoteAll))
	}
	b.WriteString(w.wctx.Dialect.LineTerminator)
	if _, err := w.snk.WriteString(b.String()); err != nil {
		return err
	}
	return nil
}

// WriteNext renders one encoded row through the formatter and stages it
// into the sink.
func (w *Writer) WriteNext(row []any, desc []codec.Descriptor) error {
	cells := make([]Cell, 0, len(row))
	for i := range row {
		if w.wctx.excluded(desc[i].Name) {
			continue
		}
		c := Cell{Desc: &desc[i]}
		if v, ok := w.wctx.remapped(desc[i].Name); ok {
			c.Text = v
		} else if row[i] == nil {
			c.Null = true
		} else {
			c.Text = cellText(row[i])
		}
		cells = append(cells, c)
	}

	var b strings.Builder
	if err := w.fmtr.AppendRow(&b, cells); err != nil {
		return err
	}
	if _, err := w.snk.WriteString(b.String()); err != nil {
		return err
	}
	_, err := w.snk.Flush(false)
	return err
}

// cellText renders the encoded cell forms the codec can produce.
func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return codec.NumericText(x)
	}
}

// CSVLineFormatter renders rows as delimited lines.
type CSVLineFormatter struct {
	Ctx Context
}

// AppendRow writes the separator before all but the first cell and quotes
// per the dialect policy. A null cell is an empty field.
func (f *CSVLineFormatter) AppendRow(dst *strings.Builder, cells []Cell) error {
	d := f.Ctx.Dialect.Normalize()
	for i, c := range cells {
		if i > 0 {
			dst.WriteRune(d.Comma)
		}
		if c.Null {
			continue
		}
		dst.WriteString(d.FormatField(c.Text, f.Ctx.QuoteAll))
	}
	dst.WriteString(d.LineTerminator)
	return nil
}
