package sink

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// ----------------------------------------------------------------------------
// Path analysis
// ----------------------------------------------------------------------------

func TestPathAnalysis(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		file      string
		wantMode  compression
		wantEntry string
	}{
		{name: "plain csv", file: "out.csv", wantMode: compressNone, wantEntry: "out.csv"},
		{name: "gzip", file: "out.csv.gz", wantMode: compressGzip, wantEntry: "out.csv"},
		{name: "zstd", file: "out.csv.zst", wantMode: compressZstd, wantEntry: "out.csv"},
		{name: "zip", file: "out.csv.zip", wantMode: compressZip, wantEntry: "out.csv"},
		{name: "zip without inner ext", file: "out.zip", wantMode: compressZip, wantEntry: "out.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(filepath.Join(dir, tt.file), "csv", 0)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if s.mode != tt.wantMode {
				t.Errorf("mode = %v, want %v", s.mode, tt.wantMode)
			}
			if s.entryName != tt.wantEntry {
				t.Errorf("entryName = %q, want %q", s.entryName, tt.wantEntry)
			}
		})
	}
}

func TestSidecarPath(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "data.csv.gz"), "csv", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got := s.SidecarPath(".ctl"); got != filepath.Join(dir, "data.ctl") {
		t.Errorf("SidecarPath = %q", got)
	}
}

// ----------------------------------------------------------------------------
// Plain writes, flush thresholds, close semantics
// ----------------------------------------------------------------------------

func TestPlainWriteAndPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := New(path, "csv", 0)
	if err != nil {
		t.Fatal(err)
	}

	payload := strings.Repeat("abc,def\n", 100)
	if _, err := s.WriteString(payload); err != nil {
		t.Fatal(err)
	}

	// Below the soft threshold nothing is physically flushed.
	flushed, err := s.Flush(false)
	if err != nil {
		t.Fatal(err)
	}
	if flushed {
		t.Error("small buffer flushed without force")
	}
	if s.Position() != 0 {
		t.Errorf("position = %d before any physical flush", s.Position())
	}

	flushed, err = s.Flush(true)
	if err != nil {
		t.Fatal(err)
	}
	if !flushed {
		t.Error("forced flush reported no physical flush")
	}
	if s.Position() != int64(len(payload)) {
		t.Errorf("position = %d, want %d", s.Position(), len(payload))
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Errorf("file content mismatch: %d bytes vs %d", len(got), len(payload))
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "out.csv"), "csv", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteString("x"); err == nil {
		t.Error("write after close succeeded")
	}
}

func TestSoftThresholdTriggersFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := New(path, "csv", 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Write(bytes.Repeat([]byte{'x'}, 8192)); err != nil {
		t.Fatal(err)
	}
	flushed, err := s.Flush(false)
	if err != nil {
		t.Fatal(err)
	}
	if !flushed {
		t.Error("buffer past the soft threshold did not flush")
	}
	if s.Position() != 8192 {
		t.Errorf("position = %d, want 8192", s.Position())
	}
}

// ----------------------------------------------------------------------------
// Container round-trips
// ----------------------------------------------------------------------------

func TestGzipRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv.gz")
	s, err := New(path, "csv", 0)
	if err != nil {
		t.Fatal(err)
	}
	payload := "id,name\n1,a\n2,b\n"
	if _, err := s.WriteString(payload); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gr, err := pgzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(gr)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Errorf("gzip round trip = %q", got)
	}
}

func TestZstdRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv.zst")
	s, err := New(path, "csv", 0)
	if err != nil {
		t.Fatal(err)
	}
	payload := "a,b,c\n"
	if _, err := s.WriteString(payload); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Errorf("zstd round trip = %q", got)
	}
}

func TestZipSingleEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv.zip")
	s, err := New(path, "csv", 0)
	if err != nil {
		t.Fatal(err)
	}
	payload := "x,y\n1,2\n"
	if _, err := s.WriteString(payload); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 1 {
		t.Fatalf("zip has %d entries, want 1", len(zr.File))
	}
	if zr.File[0].Name != "report.csv" {
		t.Errorf("entry name = %q, want report.csv", zr.File[0].Name)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Errorf("zip round trip = %q", got)
	}
}
