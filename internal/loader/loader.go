// Package loader implements the CSV-to-table flow: schema resolution,
// batched parameterised inserts with per-row error isolation, a .bad
// sidecar for diverted rows, and byte-cadence progress reporting.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/JonMunkholm/csvflow/internal/codec"
	"github.com/JonMunkholm/csvflow/internal/config"
	"github.com/JonMunkholm/csvflow/internal/csvio"
)

// detectHeadSize is how much of the file feeds charset detection.
const detectHeadSize = 8192

// Loader drives one CSV file into one table.
type Loader struct {
	db    *sql.DB
	opts  config.LoadOptions
	log   *slog.Logger
	cd    *codec.Codec
	stats *Stats
}

// New builds a Loader. The codec inherits the option table's pinned
// temporal formats; unpinned formats are auto-detected per value.
func New(db *sql.DB, opts config.LoadOptions, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	cd := codec.New(codec.Config{
		DateFormat:        opts.DateFormat,
		TimestampFormat:   opts.TimestampFormat,
		TimestampTZFormat: opts.TimestampTZFmt,
		UnescapeNewline:   opts.UnescapeNewline,
	})
	return &Loader{
		db:   db,
		opts: opts,
		log:  log,
		cd:   cd,
		stats: &Stats{
			LoadID:    uuid.NewString(),
			StartedAt: time.Now(),
		},
	}
}

// Stats exposes the live counters (the status endpoint polls them).
func (l *Loader) Stats() *Stats { return l.stats }

// boundRow keeps the bind arguments together with the original fields so
// a failed execute can divert exactly those rows.
type boundRow struct {
	args   []any
	fields []string
}

// Run loads csvPath into table and returns the final counters. Per-row
// and per-batch failures are diverted to <csvPath>.bad and counted; all
// other failures abort after cleanup.
func (l *Loader) Run(ctx context.Context, csvPath, table string) (Snapshot, error) {
	l.stats.Table = table
	if err := l.opts.Validate(); err != nil {
		return l.stats.Snapshot(), err
	}
	if fi, err := os.Stat(csvPath); err != nil {
		return l.stats.Snapshot(), fmt.Errorf("input file: %w", err)
	} else if fi.IsDir() {
		return l.stats.Snapshot(), fmt.Errorf("input file %s is a directory", csvPath)
	}

	reader, closeInput, err := l.openInput(csvPath)
	if err != nil {
		return l.stats.Snapshot(), err
	}
	defer closeInput()

	// OPEN: header and .bad sidecar.
	var header []string
	if l.opts.HasHeader {
		header, err = reader.Read()
		if err == io.EOF {
			return l.stats.Snapshot(), fmt.Errorf("input file %s is empty", csvPath)
		}
		if err != nil {
			return l.stats.Snapshot(), fmt.Errorf("read header: %w", err)
		}
	}
	bad, err := openBadFile(csvPath, csvio.Dialect{
		Comma: l.opts.Delimiter, Quote: l.opts.Enclosure, Escape: l.opts.Escape,
	}.Normalize(), header)
	if err != nil {
		return l.stats.Snapshot(), err
	}
	defer bad.close()

	// CREATE: sample, infer, create (or show) before resolving the schema.
	var buffered [][]string
	if l.opts.Create {
		buffered, err = l.createTable(ctx, reader, table, header, csvPath)
		if err != nil {
			return l.stats.Snapshot(), err
		}
	}

	if l.opts.Truncate {
		stmt := "TRUNCATE TABLE " + quoteIdent(l.opts.Platform, table)
		if l.opts.Show.ShowsDDL() {
			l.log.Info("ddl", "stmt", stmt)
		} else if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return l.stats.Snapshot(), fmt.Errorf("truncate: %w", err)
		}
	}

	// SCHEMA_RESOLVED.
	cols, insertSQL, err := l.resolve(ctx, table, header)
	if err != nil {
		return l.stats.Snapshot(), err
	}
	if l.opts.Show.ShowsDML() {
		l.log.Info("dml", "stmt", insertSQL)
	}

	// LOAD_BATCH loop.
	err = l.loadRows(ctx, reader, buffered, cols, insertSQL, bad)

	snap := l.stats.Snapshot()
	if err == nil {
		mib := float64(snap.TotalBytes) / (1 << 20)
		secs := snap.Elapsed.Seconds()
		rate := 0.0
		if secs > 0 {
			rate = mib / secs
		}
		l.log.Info("load complete",
			"load_id", snap.LoadID,
			"table", table,
			"elapsed", snap.Elapsed.Round(time.Millisecond),
			"rows", snap.TotalRows,
			"succeeded", snap.Committed,
			"failed", snap.TotalErrors,
			"mib", fmt.Sprintf("%.2f", mib),
			"mib_per_sec", fmt.Sprintf("%.2f", rate),
		)
	}
	return snap, err
}

// openInput opens the file, unwraps compression by extension, resolves the
// charset and builds the CSV reader. Charset auto-detection reads the head
// of plain files only; compressed input is read as UTF-8 unless pinned.
func (l *Loader) openInput(path string) (*csvio.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	charset := l.opts.Encoding
	var raw io.Reader = f
	closeInput := f.Close

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gr, err := kgzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("gzip input: %w", err)
		}
		raw = gr
		if strings.EqualFold(charset, "auto") {
			charset = ""
		}
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("zstd input: %w", err)
		}
		raw = zr.IOReadCloser()
		if strings.EqualFold(charset, "auto") {
			charset = ""
		}
	default:
		if strings.EqualFold(charset, "auto") || charset == "" {
			head := make([]byte, detectHeadSize)
			n, _ := io.ReadFull(f, head)
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				f.Close()
				return nil, nil, err
			}
			charset = csvio.DetectCharset(head[:n])
			l.log.Debug("charset detected", "charset", charset)
		}
	}

	r, err := csvio.NewReader(raw, csvio.ReaderOptions{
		Dialect: csvio.Dialect{
			Comma: l.opts.Delimiter, Quote: l.opts.Enclosure, Escape: l.opts.Escape,
		},
		SkipLines: l.opts.SkipRows,
		Charset:   charset,
	})
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return r, closeInput, nil
}

// createTable samples the input, infers column types and creates the
// target table (or logs the DDL in show mode). The sampled rows are
// returned so the batch loop replays them.
func (l *Loader) createTable(ctx context.Context, reader *csvio.Reader, table string, header []string, csvPath string) ([][]string, error) {
	var sample [][]string
	for len(sample) < l.opts.ScanRows {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sample read: %w", err)
		}
		if emptyRow(row) {
			continue
		}
		sample = append(sample, row)
	}

	ddlHeader := header
	if len(ddlHeader) == 0 {
		width := 0
		for _, row := range sample {
			if len(row) > width {
				width = len(row)
			}
		}
		for i := 0; i < width; i++ {
			ddlHeader = append(ddlHeader, fmt.Sprintf("COL%d", i+1))
		}
	}

	ddl := GenerateDDL(l.cd, table, ddlHeader, sample, &l.opts)
	if l.opts.Show.ShowsDDL() {
		l.log.Info("ddl", "stmt", ddl)
		return sample, nil
	}
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	l.log.Info("created table", "table", table, "file", csvPath)
	return sample, nil
}

// resolve discovers target columns and builds the INSERT template.
func (l *Loader) resolve(ctx context.Context, table string, header []string) ([]codec.TargetColumn, string, error) {
	dbCols, err := fetchColumns(ctx, l.db, quoteIdent(l.opts.Platform, table), l.opts.ColumnInfoSQL)
	if err != nil {
		return nil, "", err
	}
	cols, err := resolveSchema(header, dbCols, &l.opts, table)
	if err != nil {
		return nil, "", err
	}
	return cols, buildInsertSQL(table, cols, &l.opts), nil
}

// loadRows is the LOAD_BATCH loop over buffered sample rows and the
// remaining stream.
func (l *Loader) loadRows(ctx context.Context, reader *csvio.Reader, buffered [][]string, cols []codec.TargetColumn, insertSQL string, bad *badFile) error {
	batch := make([]boundRow, 0, l.opts.BatchRows)
	limitReached := false

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := l.executeBatch(ctx, insertSQL, batch, bad)
		batch = batch[:0]
		return err
	}

	process := func(fields []string) error {
		if l.opts.RowLimit > 0 && l.stats.Snapshot().TotalRows >= int64(l.opts.RowLimit) {
			limitReached = true
			return nil
		}
		if emptyRow(fields) {
			return nil
		}
		l.stats.addRow(approxRowBytes(fields, l.opts.Delimiter))

		args := make([]any, len(cols))
		for i, col := range cols {
			var text string
			if col.CSVIndex < len(fields) {
				text = fields[col.CSVIndex]
			}
			v, err := l.cd.Decode(text, col)
			if err != nil {
				tm := &TypeMismatchError{Column: col.Name, Value: text, Err: err}
				if herr := l.divert(fields, tm.Error(), bad); herr != nil {
					return herr
				}
				return nil
			}
			args[i] = v
		}
		batch = append(batch, boundRow{args: args, fields: fields})
		l.cd.EndRow()

		if len(batch) >= l.opts.BatchRows {
			return flush()
		}
		return nil
	}

	for _, fields := range buffered {
		if limitReached {
			break
		}
		if err := process(fields); err != nil {
			return err
		}
	}
	for !limitReached {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A reader error here is an input failure (truncated
			// container, disk fault), not a row problem: it is sticky,
			// so diverting would loop forever. Abort the load.
			return fmt.Errorf("read input: %w", err)
		}
		if err := process(fields); err != nil {
			return err
		}
	}

	return flush()
}

// executeBatch commits one batch. All rows are tried inside a transaction
// first; when any fail, the batch rolls back to its savepoint and is
// replayed row by row so only the offending rows are diverted. The batch
// always ends committed (minus diverted rows) or the load aborts.
func (l *Loader) executeBatch(ctx context.Context, insertSQL string, batch []boundRow, bad *badFile) error {
	if l.opts.Show.ShowsDML() {
		l.stats.addCommitted(len(batch))
		return l.maybeProgress()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	_, spErr := tx.ExecContext(ctx, "SAVEPOINT csvflow_batch")
	var failed []int
	var firstErr error
	for i, row := range batch {
		if _, err := stmt.ExecContext(ctx, row.args...); err != nil {
			failed = []int{i}
			firstErr = err
			break
		}
	}

	if len(failed) > 0 {
		batchErr := &BatchError{Failed: failed, Err: firstErr}
		if spErr != nil {
			// No savepoint support: the transaction is gone, retry
			// row by row in fresh transactions.
			_ = tx.Rollback()
			return l.executeRowByRow(ctx, insertSQL, batch, bad, batchErr)
		}
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT csvflow_batch"); err != nil {
			_ = tx.Rollback()
			return l.executeRowByRow(ctx, insertSQL, batch, bad, batchErr)
		}
		return l.replayRowByRow(ctx, tx, insertSQL, batch, bad, batchErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	l.stats.addCommitted(len(batch))
	return l.maybeProgress()
}

// replayRowByRow re-executes a failed batch inside tx with a savepoint per
// row, diverting the rows the driver rejects.
func (l *Loader) replayRowByRow(ctx context.Context, tx *sql.Tx, insertSQL string, batch []boundRow, bad *badFile, cause *BatchError) error {
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	l.log.Warn("batch failed, replaying row by row",
		"rows", len(batch), "cause", firstLine(cause.Error()))

	committed := 0
	for _, row := range batch {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT csvflow_row"); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, row.args...); err != nil {
			if _, rerr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT csvflow_row"); rerr != nil {
				return fmt.Errorf("rollback to savepoint: %w", rerr)
			}
			if herr := l.divert(row.fields, err.Error(), bad); herr != nil {
				return herr
			}
			continue
		}
		committed++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	l.stats.addCommitted(committed)
	return l.maybeProgress()
}

// executeRowByRow is the no-savepoint fallback: one transaction per row.
func (l *Loader) executeRowByRow(ctx context.Context, insertSQL string, batch []boundRow, bad *badFile, cause *BatchError) error {
	l.log.Warn("batch failed, retrying each row in its own transaction",
		"rows", len(batch), "cause", firstLine(cause.Error()))
	committed := 0
	for _, row := range batch {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		_, err = tx.ExecContext(ctx, insertSQL, row.args...)
		if err != nil {
			_ = tx.Rollback()
			if herr := l.divert(row.fields, err.Error(), bad); herr != nil {
				return herr
			}
			continue
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		committed++
	}
	l.stats.addCommitted(committed)
	return l.maybeProgress()
}

// divert counts one row error, writes the row to the sidecar, and raises
// the hard stop when the error cap is passed.
func (l *Loader) divert(fields []string, cause string, bad *badFile) error {
	n := l.stats.addError()
	l.log.Warn("row diverted", "cause", firstLine(cause), "total_errors", n)
	if err := bad.writeRow(fields, cause); err != nil {
		return err
	}
	if l.opts.Errors >= 0 && n > int64(l.opts.Errors) {
		return fmt.Errorf("%w: %d errors (cap %d)", ErrTooManyErrors, n, l.opts.Errors)
	}
	return nil
}

// maybeProgress logs a progress line when REPORT_MB bytes accumulated.
func (l *Loader) maybeProgress() error {
	if l.opts.ReportMB <= 0 {
		return nil
	}
	if l.stats.progressDue(int64(l.opts.ReportMB) << 20) {
		snap := l.stats.Snapshot()
		l.log.Info("progress",
			"rows", snap.TotalRows,
			"succeeded", snap.Committed,
			"failed", snap.TotalErrors,
			"mib", fmt.Sprintf("%.1f", float64(snap.TotalBytes)/(1<<20)),
		)
	}
	return nil
}

// approxRowBytes estimates the on-disk size of one record: two bytes per
// character, one per delimiter, two for the line end, quote overhead for
// fields that need it, two nominal bytes for empty fields.
func approxRowBytes(fields []string, delim rune) int64 {
	d := csvio.Dialect{Comma: delim}.Normalize()
	var n int64
	for i, f := range fields {
		if i > 0 {
			n++
		}
		if f == "" {
			n += 2
			continue
		}
		n += int64(2 * len(f))
		if d.NeedsQuote(f) {
			n += 2 + int64(strings.Count(f, string(d.Quote)))
		}
	}
	return n + 2
}

func emptyRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
