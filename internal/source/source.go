// Package source presents a database row-cursor as a finite pull sequence
// of raw typed rows, with optional background prefetch into a bounded
// queue.
package source

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/csvflow/internal/codec"
)

// ErrAborted is returned when the caller's cancellation token fires while
// rows are still flowing.
var ErrAborted = errors.New("aborted")

// Error wraps an upstream cursor failure.
type Error struct {
	Err error
}

func (e *Error) Error() string { return "row source: " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Cursor is the vendor row-cursor surface the source consumes. Next
// returns io.EOF when the stream is exhausted.
type Cursor interface {
	Columns() ([]codec.Descriptor, error)
	Next() ([]any, error)
	Close() error
}

// Source pulls raw rows from a cursor. One row per NextRaw call, EOF is
// sticky, Close is idempotent.
type Source struct {
	cur       Cursor
	desc      []codec.Descriptor
	fetchHint int
	eof       bool
	closed    bool
}

// Open reads the cursor metadata once and builds the column descriptors.
// fetchHint is the preferred upstream fetch batch size; cursors that
// cannot apply it ignore it.
func Open(cur Cursor, fetchHint int) (*Source, error) {
	desc, err := cur.Columns()
	if err != nil {
		return nil, &Error{Err: err}
	}
	if fetchHint <= 0 {
		fetchHint = 1024
	}
	if h, ok := cur.(interface{ SetFetchHint(int) }); ok {
		h.SetFetchHint(fetchHint)
	}
	return &Source{cur: cur, desc: desc, fetchHint: fetchHint}, nil
}

// Descriptors returns the column descriptors built at open.
func (s *Source) Descriptors() []codec.Descriptor { return s.desc }

// NextRaw advances the cursor and returns one raw row. At end of stream it
// closes the cursor and returns io.EOF; further calls keep returning
// io.EOF.
func (s *Source) NextRaw() ([]any, error) {
	if s.eof {
		return nil, io.EOF
	}
	row, err := s.cur.Next()
	if err == io.EOF {
		s.eof = true
		if cerr := s.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, &Error{Err: err}
	}
	if len(row) != len(s.desc) {
		return nil, &Error{Err: fmt.Errorf("row has %d cells, descriptor has %d", len(row), len(s.desc))}
	}
	s.learnClassNames(row)
	return row, nil
}

// learnClassNames records the concrete value type of the first non-null
// cell seen per column.
func (s *Source) learnClassNames(row []any) {
	for i := range s.desc {
		if s.desc[i].ClassName == "" && row[i] != nil {
			s.desc[i].ClassName = fmt.Sprintf("%T", row[i])
		}
	}
}

// Close closes the cursor. Safe to call multiple times.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.cur.Close(); err != nil {
		return &Error{Err: err}
	}
	return nil
}

// CloneRow copies a raw row, byte slices included, so the copy shares no
// memory with the original.
func CloneRow(row []any) []any {
	out := make([]any, len(row))
	copy(out, row)
	for i, v := range row {
		if b, ok := v.([]byte); ok {
			c := make([]byte, len(b))
			copy(c, b)
			out[i] = c
		}
	}
	return out
}

// SQLCursor adapts *sql.Rows to the Cursor interface.
type SQLCursor struct {
	rows *sql.Rows
	desc []codec.Descriptor
}

// NewSQLCursor wraps rows, deriving descriptors from the driver's column
// type metadata.
func NewSQLCursor(rows *sql.Rows) (*SQLCursor, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	desc := make([]codec.Descriptor, len(cols))
	for i, ct := range cols {
		size, _ := ct.Length()
		desc[i] = codec.Descriptor{
			Index:        i,
			Name:         ct.Name(),
			Tag:          codec.TagForDatabaseType(ct.DatabaseTypeName(), ct.ScanType()),
			DatabaseType: ct.DatabaseTypeName(),
			Size:         size,
		}
	}
	return &SQLCursor{rows: rows, desc: desc}, nil
}

// Columns returns the descriptors discovered at construction.
func (c *SQLCursor) Columns() ([]codec.Descriptor, error) { return c.desc, nil }

// Next scans one row into generic cells. Byte slices are copied out of the
// driver's buffer; a NULL cell is nil whatever the column type.
func (c *SQLCursor) Next() ([]any, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	cells := make([]any, len(c.desc))
	ptrs := make([]any, len(c.desc))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range cells {
		if b, ok := v.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			cells[i] = cp
		}
	}
	return cells, nil
}

// Close releases the underlying rows.
func (c *SQLCursor) Close() error { return c.rows.Close() }
