// Package tracing records delivered pulses into a SQLite database.
package tracing

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/pulsenet/pulse"
)

// DefaultBatchSize is the number of rows buffered before they are written.
const DefaultBatchSize = 100000

const timeFormat = "2006-01-02 15:04:05.000000000"

type traceRow struct {
	trial uint64
	press uint64
	wave  uint64
	seq   uint64
	pulse pulse.Pulse
}

// SQLiteRecorder is a hook that writes one row per delivered pulse. Each
// scheduler it is attached to is recorded as a separate trial, numbered from
// 1 in the order the schedulers deliver their first pulse.
type SQLiteRecorder struct {
	*sql.DB
	statement *sql.Stmt

	lock      sync.Mutex
	dbName    string
	batchSize int
	rows      []traceRow
	trials    map[pulse.Hookable]uint64
	closed    bool
}

// NewSQLiteRecorder creates a recorder that writes to path.sqlite3. If path is
// empty, a unique name is generated.
func NewSQLiteRecorder(path string) *SQLiteRecorder {
	return &SQLiteRecorder{
		dbName:    path,
		batchSize: DefaultBatchSize,
		trials:    make(map[pulse.Hookable]uint64),
	}
}

// WithBatchSize sets how many rows are buffered between writes.
func (r *SQLiteRecorder) WithBatchSize(n int) *SQLiteRecorder {
	if n < 1 {
		n = 1
	}

	r.batchSize = n

	return r
}

// Filename returns the database file name.
func (r *SQLiteRecorder) Filename() string {
	return r.dbName + ".sqlite3"
}

// Init creates the database and its tables. Buffered rows are flushed when
// the process exits through atexit.
func (r *SQLiteRecorder) Init() error {
	if r.dbName == "" {
		r.dbName = "pulsenet_trace_" + xid.New().String()
	}

	filename := r.Filename()

	if _, err := os.Stat(filename); err == nil {
		return errors.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return errors.Wrapf(err, "opening %s", filename)
	}

	r.DB = db

	if err := r.createTables(); err != nil {
		return err
	}

	r.statement, err = r.Prepare(`INSERT INTO pulse_trace VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing trace statement")
	}

	if err := r.writeRunInfo("Start Time", time.Now().Format(timeFormat)); err != nil {
		return err
	}

	if err := r.writeRunInfo("Command", strings.Join(os.Args, " ")); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Pulse trace is collected in %s\n", filename)

	atexit.Register(func() {
		if err := r.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Closing trace database: %v\n", err)
		}
	})

	return nil
}

func (r *SQLiteRecorder) createTables() error {
	stmts := []string{
		`CREATE TABLE pulse_trace
		(
			trial       INTEGER NOT NULL,
			press       INTEGER NOT NULL,
			wave        INTEGER NOT NULL,
			seq         INTEGER NOT NULL,
			source      VARCHAR(200) NOT NULL,
			level       VARCHAR(10) NOT NULL,
			destination VARCHAR(200) NOT NULL
		);`,
		`CREATE INDEX pulse_trace_press_index ON pulse_trace (trial, press);`,
		`CREATE INDEX pulse_trace_destination_index ON pulse_trace (destination);`,
		`CREATE TABLE run_info
		(
			property VARCHAR(100) NOT NULL,
			value    TEXT NOT NULL
		);`,
	}

	for _, s := range stmts {
		if _, err := r.Exec(s); err != nil {
			return errors.Wrapf(err, "executing %q", s)
		}
	}

	return nil
}

func (r *SQLiteRecorder) writeRunInfo(property, value string) error {
	_, err := r.Exec(`INSERT INTO run_info VALUES (?, ?)`, property, value)
	return errors.Wrapf(err, "recording %s", property)
}

// Func records the pulse of a BeforePulse hook call.
func (r *SQLiteRecorder) Func(ctx pulse.HookCtx) {
	if ctx.Pos != pulse.HookPosBeforePulse {
		return
	}

	d, ok := ctx.Item.(pulse.Delivery)
	if !ok {
		return
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	trial, ok := r.trials[ctx.Domain]
	if !ok {
		trial = uint64(len(r.trials) + 1)
		r.trials[ctx.Domain] = trial
	}

	r.rows = append(r.rows, traceRow{
		trial: trial,
		press: d.Press,
		wave:  d.Wave,
		seq:   d.Seq,
		pulse: d.Pulse,
	})

	if len(r.rows) >= r.batchSize {
		if err := r.flush(); err != nil {
			panic(err)
		}
	}
}

// Flush writes all the buffered rows to the database.
func (r *SQLiteRecorder) Flush() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.flush()
}

func (r *SQLiteRecorder) flush() error {
	if len(r.rows) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return errors.Wrap(err, "starting trace transaction")
	}

	stmt := tx.Stmt(r.statement)

	for _, row := range r.rows {
		_, err := stmt.Exec(
			row.trial,
			row.press,
			row.wave,
			row.seq,
			sourceName(row.pulse.Source),
			row.pulse.Level.String(),
			row.pulse.Destination,
		)
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "inserting %s", row.pulse)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing trace rows")
	}

	r.rows = nil

	return nil
}

// Close flushes the buffered rows, records the end time and closes the
// database. Calling Close again has no effect.
func (r *SQLiteRecorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed || r.DB == nil {
		return nil
	}

	r.closed = true

	if err := r.flush(); err != nil {
		return err
	}

	if err := r.writeRunInfo("End Time", time.Now().Format(timeFormat)); err != nil {
		return err
	}

	return r.DB.Close()
}

func sourceName(s string) string {
	if s == pulse.Button {
		return "button"
	}

	return s
}

var _ pulse.Hook = (*SQLiteRecorder)(nil)
