package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/JonMunkholm/csvflow/internal/csvio"
)

// badFile is the .bad sidecar: a CSV file in the input's dialect holding
// every diverted row, each preceded by a single-field [ERROR] marker row.
type badFile struct {
	path string
	f    *os.File
	w    *csvio.Writer
	rows int64
}

// openBadFile truncates any previous sidecar and, when the input has a
// header, replays it so the sidecar loads with the same schema.
func openBadFile(inputPath string, d csvio.Dialect, header []string) (*badFile, error) {
	path := inputPath + ".bad"
	_ = os.Remove(path)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open bad file: %w", err)
	}
	b := &badFile{path: path, f: f, w: csvio.NewWriter(f, d)}
	if len(header) > 0 {
		if err := b.w.WriteRow(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return b, nil
}

// writeRow records one diverted row: the first line of the error as an
// [ERROR] marker, then the original fields.
func (b *badFile) writeRow(fields []string, cause string) error {
	if b == nil {
		return nil
	}
	if i := strings.IndexAny(cause, "\r\n"); i >= 0 {
		cause = cause[:i]
	}
	if err := b.w.WriteRow([]string{"[ERROR] " + cause}); err != nil {
		return err
	}
	if err := b.w.WriteRow(fields); err != nil {
		return err
	}
	b.rows++
	return nil
}

func (b *badFile) close() error {
	if b == nil {
		return nil
	}
	return b.f.Close()
}
