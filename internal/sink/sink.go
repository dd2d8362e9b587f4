// Package sink writes flow output to disk through a bounded buffer, with
// transparent gzip, zstd or single-entry zip containers chosen from the
// target path's extension.
package sink

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// reserved is the size of the staging side buffer; the direct buffer gets
// the same amount of headroom on top of the configured soft size.
const reserved = 1 << 20

// DefaultBufferSize is the soft flush threshold when the caller does not
// pick one.
const DefaultBufferSize = 4 << 20

// Error wraps an I/O failure in the sink. After one is returned the sink
// is closed and refuses further writes.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "sink " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

type compression int

const (
	compressNone compression = iota
	compressGzip
	compressZstd
	compressZip
)

// Sink is a buffered writer over one output file. Not safe for concurrent
// use; the caller serialises writes.
type Sink struct {
	path      string // path as given
	base      string // path with compression (and default) extensions stripped
	entryName string // inner name for containers: base.defaultExt
	mode      compression

	file   *os.File
	zipW   *zip.Writer
	comp   io.Writer // gzip/zstd/zip entry writer, nil in plain mode
	closer func() error

	side     []byte // staging buffer, drained at reserved bytes
	direct   []byte // accumulation buffer for the plain path
	softSize int

	position int64
	closed   bool
}

// New opens path for writing. The trailing extension decides the
// container: .gz, .zst and .zip are stripped and compressed accordingly;
// if the remaining name still ends in defaultExt that is stripped too, and
// the container's inner entry is named base.defaultExt.
func New(path, defaultExt string, bufSize int) (*Sink, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	s := &Sink{path: path, softSize: bufSize}

	base := path
	switch strings.ToLower(filepath.Ext(base)) {
	case ".gz":
		s.mode = compressGzip
		base = base[:len(base)-len(filepath.Ext(base))]
	case ".zst":
		s.mode = compressZstd
		base = base[:len(base)-len(filepath.Ext(base))]
	case ".zip":
		s.mode = compressZip
		base = base[:len(base)-len(filepath.Ext(base))]
	}
	if ext := filepath.Ext(base); ext != "" && strings.EqualFold(ext, "."+strings.TrimPrefix(defaultExt, ".")) {
		base = base[:len(base)-len(ext)]
	}
	s.base = base
	s.entryName = filepath.Base(base) + "." + strings.TrimPrefix(defaultExt, ".")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	s.file = f

	switch s.mode {
	case compressGzip:
		gz := pgzip.NewWriter(f)
		s.comp = gz
		s.closer = gz.Close
	case compressZstd:
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, &Error{Op: "zstd", Err: err}
		}
		s.comp = zw
		s.closer = zw.Close
	case compressZip:
		s.zipW = zip.NewWriter(f)
		entry, err := s.zipW.CreateHeader(&zip.FileHeader{Name: s.entryName, Method: zip.Deflate})
		if err != nil {
			f.Close()
			return nil, &Error{Op: "zip entry", Err: err}
		}
		s.comp = entry
		s.closer = s.zipW.Close
	default:
		s.direct = make([]byte, 0, bufSize+reserved)
	}
	s.side = make([]byte, 0, reserved)
	return s, nil
}

// Path returns the output path as given.
func (s *Sink) Path() string { return s.path }

// BasePath returns the path with container and default extensions removed.
func (s *Sink) BasePath() string { return s.base }

// SidecarPath returns a sibling path next to the output: base + ext.
func (s *Sink) SidecarPath(ext string) string {
	return s.base + ext
}

// Position is the number of bytes handed to the file channel by successful
// flushes (compressed sizes in container modes).
func (s *Sink) Position() int64 { return s.position }

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, &Error{Op: "write", Err: os.ErrClosed}
	}
	written := 0
	for len(p) > 0 {
		room := cap(s.side) - len(s.side)
		if room == 0 {
			if _, err := s.Flush(false); err != nil {
				return written, err
			}
			room = cap(s.side) - len(s.side)
		}
		n := len(p)
		if n > room {
			n = room
		}
		s.side = append(s.side, p[:n]...)
		p = p[n:]
		written += n
	}
	return written, nil
}

// WriteString stages a string.
func (s *Sink) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// WriteByte stages a single byte.
func (s *Sink) WriteByte(b byte) error {
	_, err := s.Write([]byte{b})
	return err
}

// Flush drains the side buffer and, when the accumulated bytes reach the
// soft threshold or force is set, pushes them to the file. It reports
// whether a physical flush happened. Any failure closes the sink.
func (s *Sink) Flush(force bool) (bool, error) {
	if s.closed {
		return false, &Error{Op: "flush", Err: os.ErrClosed}
	}
	if err := s.drainSide(); err != nil {
		s.abandon()
		return false, err
	}
	if s.comp != nil {
		if !force {
			return false, nil
		}
		if f, ok := s.comp.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				s.abandon()
				return false, &Error{Op: "flush", Err: err}
			}
		}
		if st, err := s.file.Stat(); err == nil {
			s.position = st.Size()
		}
		return true, nil
	}
	if !force && len(s.direct) < s.softSize-1024 {
		return false, nil
	}
	if len(s.direct) == 0 {
		return force, nil
	}
	n, err := s.file.Write(s.direct)
	s.position += int64(n)
	if err != nil {
		s.abandon()
		return false, &Error{Op: "flush", Err: err}
	}
	s.direct = s.direct[:0]
	return true, nil
}

func (s *Sink) drainSide() error {
	if len(s.side) == 0 {
		return nil
	}
	if s.comp != nil {
		if _, err := s.comp.Write(s.side); err != nil {
			return &Error{Op: "write", Err: err}
		}
	} else {
		s.direct = append(s.direct, s.side...)
	}
	s.side = s.side[:0]
	return nil
}

// abandon marks the sink closed after a failed flush, releasing the file
// handle but keeping position at the last successful flush.
func (s *Sink) abandon() {
	s.closed = true
	if s.closer != nil {
		_ = s.closer()
	}
	_ = s.file.Close()
}

// Close flushes, finalises the container and releases the file. Safe to
// call more than once.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	if _, err := s.Flush(true); err != nil {
		return err
	}
	s.closed = true
	if s.closer != nil {
		if err := s.closer(); err != nil {
			_ = s.file.Close()
			return &Error{Op: "close", Err: err}
		}
	}
	if s.mode != compressNone {
		if st, err := s.file.Stat(); err == nil {
			s.position = st.Size()
		}
	}
	if err := s.file.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}

// String describes the sink for logs.
func (s *Sink) String() string {
	mode := "plain"
	switch s.mode {
	case compressGzip:
		mode = "gzip"
	case compressZstd:
		mode = "zstd"
	case compressZip:
		mode = "zip"
	}
	return fmt.Sprintf("%s (%s)", s.path, mode)
}
