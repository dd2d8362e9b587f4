package loader

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
)

// A miniature in-memory database/sql driver: enough surface for the
// loader's describe query, savepoints, prepared inserts and per-batch
// transactions, with injectable per-row failures.

type fakeCol struct {
	name     string
	typeName string
}

type fakeDB struct {
	mu      sync.Mutex
	cols    []fakeCol
	rows    [][]driver.Value // committed rows
	ddl     []string         // CREATE/TRUNCATE statements seen
	commits int

	// failWhenFirstArg rejects any insert whose first argument renders to
	// this string (empty = never fail).
	failWhenFirstArg string
}

func (db *fakeDB) committedCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.rows)
}

func (db *fakeDB) commitCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

type fakeDriver struct {
	mu  sync.Mutex
	dbs map[string]*fakeDB
}

var theFakeDriver = &fakeDriver{dbs: make(map[string]*fakeDB)}

func init() {
	sql.Register("csvflowtest", theFakeDriver)
}

// fakeInstance returns (creating if needed) the shared state behind a DSN.
func fakeInstance(dsn string) *fakeDB {
	theFakeDriver.mu.Lock()
	defer theFakeDriver.mu.Unlock()
	db, ok := theFakeDriver.dbs[dsn]
	if !ok {
		db = &fakeDB{}
		theFakeDriver.dbs[dsn] = db
	}
	return db
}

func (d *fakeDriver) Open(dsn string) (driver.Conn, error) {
	return &fakeConn{db: fakeInstance(dsn)}, nil
}

type fakeConn struct {
	db      *fakeDB
	pending [][]driver.Value
	save    int
	inTx    bool
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{conn: c, query: query}, nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	c.inTx = true
	c.pending = nil
	c.save = 0
	return &fakeTx{conn: c}, nil
}

type fakeTx struct{ conn *fakeConn }

func (t *fakeTx) Commit() error {
	c := t.conn
	c.db.mu.Lock()
	c.db.rows = append(c.db.rows, c.pending...)
	c.db.commits++
	c.db.mu.Unlock()
	c.pending = nil
	c.inTx = false
	return nil
}

func (t *fakeTx) Rollback() error {
	t.conn.pending = nil
	t.conn.inTx = false
	return nil
}

type fakeStmt struct {
	conn  *fakeConn
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	q := strings.ToUpper(strings.TrimSpace(s.query))
	switch {
	case strings.HasPrefix(q, "SAVEPOINT"):
		s.conn.save = len(s.conn.pending)
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(q, "ROLLBACK TO"):
		s.conn.pending = s.conn.pending[:s.conn.save]
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(q, "RELEASE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(q, "CREATE"), strings.HasPrefix(q, "TRUNCATE"):
		s.conn.db.mu.Lock()
		s.conn.db.ddl = append(s.conn.db.ddl, s.query)
		s.conn.db.mu.Unlock()
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(q, "INSERT"):
		s.conn.db.mu.Lock()
		fail := s.conn.db.failWhenFirstArg
		s.conn.db.mu.Unlock()
		if fail != "" && len(args) > 0 && fmt.Sprint(args[0]) == fail {
			return nil, fmt.Errorf("constraint violation on value %s", fail)
		}
		row := make([]driver.Value, len(args))
		copy(row, args)
		if s.conn.inTx {
			s.conn.pending = append(s.conn.pending, row)
		} else {
			s.conn.db.mu.Lock()
			s.conn.db.rows = append(s.conn.db.rows, row)
			s.conn.db.mu.Unlock()
		}
		return driver.RowsAffected(1), nil
	}
	return driver.RowsAffected(0), nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	// The only query the loader issues is the empty describe select.
	return &fakeRows{cols: s.conn.db.cols}, nil
}

type fakeRows struct {
	cols []fakeCol
}

func (r *fakeRows) Columns() []string {
	out := make([]string, len(r.cols))
	for i, c := range r.cols {
		out[i] = c.name
	}
	return out
}

func (r *fakeRows) ColumnTypeDatabaseTypeName(index int) string {
	return r.cols[index].typeName
}

func (r *fakeRows) Close() error                   { return nil }
func (r *fakeRows) Next(dest []driver.Value) error { return io.EOF }
