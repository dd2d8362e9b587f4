// Command csvflow moves tabular rows between a query cursor, delimited
// files and database tables.
//
//	csvflow dump    [flags] 'SELECT ...'          stream a query to CSV
//	csvflow dumpsql [flags] 'SELECT ...'          stream a query to an INSERT script
//	csvflow load    [flags] TABLE FILE [KEY=VALUE ...]   load a CSV into a table
//
// Connection settings come from the environment (CSVFLOW_DB_URL /
// DATABASE_URL, .env supported); per-load behaviour from the option table
// arguments.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvflow/internal/codec"
	"github.com/JonMunkholm/csvflow/internal/config"
	"github.com/JonMunkholm/csvflow/internal/csvio"
	"github.com/JonMunkholm/csvflow/internal/loader"
	"github.com/JonMunkholm/csvflow/internal/logging"
	"github.com/JonMunkholm/csvflow/internal/sink"
	"github.com/JonMunkholm/csvflow/internal/source"
	"github.com/JonMunkholm/csvflow/internal/status"
	"github.com/JonMunkholm/csvflow/internal/writer"
)

func main() {
	if err := Main(os.Args[1:]); err != nil {
		if errors.Is(err, source.ErrAborted) {
			slog.Error("aborted")
			os.Exit(130)
		}
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// Main dispatches the subcommand. Split from main for testability.
func Main(args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if len(args) == 0 {
		usage()
		return errors.New("missing subcommand")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "dump":
		return runDump(ctx, cfg, args[1:], false)
	case "dumpsql":
		return runDump(ctx, cfg, args[1:], true)
	case "load":
		return runLoad(ctx, cfg, args[1:])
	case "help", "-h", "--help":
		usage()
		return nil
	}
	usage()
	return fmt.Errorf("unknown subcommand %q", args[0])
}

func usage() {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(`
Usage:
  csvflow dump    [flags] 'SELECT ...'
  csvflow dumpsql [flags] 'SELECT ...'
  csvflow load    [flags] TABLE FILE [KEY=VALUE ...]

Run "csvflow <subcommand> -h" for flags.
`))
}

func openDB(cfg *config.Config, driverOverride, urlOverride string) (*sql.DB, config.Platform, error) {
	driver := cfg.Database.Driver
	if driverOverride != "" {
		driver = driverOverride
	}
	url := cfg.Database.URL
	if urlOverride != "" {
		url = urlOverride
	}
	if url == "" {
		return nil, config.PlatformAuto, errors.New("no connection string: set CSVFLOW_DB_URL or pass -connect")
	}
	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, config.PlatformAuto, err
	}
	return db, config.PlatformForDriver(driver), nil
}

// runDump implements the cursor-to-file flows; sqlScript switches the
// formatter from CSV lines to INSERT statements.
func runDump(ctx context.Context, cfg *config.Config, args []string, sqlScript bool) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	out := fs.String("o", "-", "output file (.csv, .csv.gz, .csv.zst, .csv.zip); - for stdout")
	connect := fs.String("connect", "", "connection string override")
	driver := fs.String("driver", "", "database/sql driver override")
	header := fs.Bool("header", true, "emit a header row (csv mode)")
	async := fs.Bool("async", false, "prefetch rows on a background producer")
	limit := fs.Int("limit", 0, "stop after N rows (0 = all)")
	sep := fs.String("sep", ",", "field separator")
	quoteAll := fs.Bool("quote-all", false, "quote every field")
	trim := fs.Bool("trim", false, "trim encoded values")
	table := fs.String("table", "", "target table name for INSERT scripts")
	exclude := fs.String("exclude", "", "comma-separated columns to drop")
	ctl := fs.Bool("ctl", false, "write a SQL*Loader control sidecar (oracle)")
	dateFmt := fs.String("date", "2006-01-02", "date layout")
	tsFmt := fs.String("timestamp", "2006-01-02 15:04:05.000", "timestamp layout")
	bar := fs.Bool("bar", true, "show a progress bar on stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("dump needs exactly one SELECT argument")
	}
	query := fs.Arg(0)
	if sqlScript && *table == "" {
		return errors.New("dumpsql needs -table")
	}

	db, platform, err := openDB(cfg, *driver, *connect)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	cur, err := source.NewSQLCursor(rows)
	if err != nil {
		return err
	}
	src, err := source.Open(cur, cfg.Buffers.FetchHint)
	if err != nil {
		return err
	}
	defer src.Close()

	outPath := *out
	if outPath == "-" {
		outPath = "/dev/stdout"
		*bar = false
	}
	snk, err := sink.New(outPath, "csv", cfg.Buffers.SinkBytes)
	if err != nil {
		return err
	}
	defer snk.Close()

	cd := codec.New(codec.Config{
		Trim:            *trim,
		DateFormat:      *dateFmt,
		TimestampFormat: *tsFmt,
	})
	wctx := writer.Context{
		Dialect:  csvio.Dialect{Comma: firstRune(*sep)}.Normalize(),
		QuoteAll: *quoteAll,
		Exclude:  excludeSet(*exclude),
	}

	var fmtr writer.RowFormatter
	if sqlScript {
		wctx.MaxLineWidth = 120
		fmtr = writer.NewSQLStatementFormatter(wctx, *table, src.Descriptors())
	} else {
		fmtr = &writer.CSVLineFormatter{Ctx: wctx}
	}

	prog := newProgress(0, *bar)
	w := writer.New(snk, cd, wctx, fmtr)
	n, err := w.WriteAll(ctx, src, writer.Options{
		IncludeHeader: *header && !sqlScript,
		Async:         *async,
		FetchLimit:    *limit,
		OnRow:         func(int64) { prog.increment() },
	})
	prog.finish()
	if err != nil {
		return err
	}
	if err := snk.Close(); err != nil {
		return err
	}

	if *ctl && platform == config.PlatformOracle && !sqlScript {
		if err := writer.WriteControlFile(snk.BasePath(), src.Descriptors(), writer.ControlFileOptions{
			Dialect:   wctx.Dialect,
			HasHeader: *header,
			Exclude:   wctx.Exclude,
		}); err != nil {
			return err
		}
	}

	slog.Info("dump complete", "rows", n, "output", snk.String())
	return nil
}

// runLoad implements the file-to-table flow.
func runLoad(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	connect := fs.String("connect", "", "connection string override")
	driver := fs.String("driver", "", "database/sql driver override")
	statusAddr := fs.String("status-addr", cfg.Status.Addr, "serve JSON progress on this address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("load needs TABLE and FILE arguments")
	}
	table, file := fs.Arg(0), fs.Arg(1)

	opts := config.DefaultLoadOptions()
	if err := opts.ParseOptions(fs.Args()[2:]); err != nil {
		return err
	}

	db, platform, err := openDB(cfg, *driver, *connect)
	if err != nil {
		return err
	}
	defer db.Close()
	if opts.Platform == config.PlatformAuto {
		opts.Platform = platform
	}

	log, closeLog, err := logging.Open(opts.Logger, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer closeLog()

	l := loader.New(db, opts, logging.ForRun(log))

	if *statusAddr != "" {
		srv := status.NewServer(l.Stats())
		srv.Start(*statusAddr)
		defer srv.Shutdown(context.Background())
	}

	snap, err := l.Run(ctx, file, table)
	if err != nil {
		return err
	}
	slog.Info("load finished", "rows", snap.TotalRows, "succeeded", snap.Committed, "failed", snap.TotalErrors)
	return nil
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ','
}

func excludeSet(list string) map[string]bool {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, c := range strings.Split(list, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out[c] = true
		}
	}
	return out
}
