// Package journal records process lifecycle events in a sqlite database.
//
// A Journal attaches to a vm.ProcessList and appends one row per state
// transition and one per finished process group. Each attachment is a
// run identified by a UUID so several executions can share a database.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/c2script/vm"
)

var log = commonlog.GetLogger("c2script.journal")

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	started TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transitions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	run TEXT NOT NULL REFERENCES runs(id),
	pid INTEGER NOT NULL,
	name TEXT NOT NULL,
	grp INTEGER NOT NULL,
	old_state TEXT NOT NULL,
	new_state TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS groups (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	run TEXT NOT NULL REFERENCES runs(id),
	grp INTEGER NOT NULL,
	at TEXT NOT NULL
);
`

// Run describes one recorded execution.
type Run struct {
	ID      string
	Label   string
	Started time.Time
}

// Transition is a single recorded state change.
type Transition struct {
	PID   uint32
	Name  string
	Group uint32
	Old   string
	New   string
	Error string
	At    time.Time
}

// Journal handles sqlite storage for process events.
type Journal struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	run    string
	detach []func()
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Journal{db: db, path: path}, nil
}

// Path returns the database file.
func (j *Journal) Path() string { return j.path }

// Close detaches from any process list and closes the database.
func (j *Journal) Close() error {
	j.Detach()
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// RunID returns the current run, or "" before BeginRun.
func (j *Journal) RunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.run
}

// BeginRun starts a new run and makes it current.
func (j *Journal) BeginRun(label string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := uuid.NewString()
	_, err := j.db.Exec(
		"INSERT INTO runs (id, label, started) VALUES (?, ?, ?)",
		id, label, timestamp(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}
	j.run = id
	return id, nil
}

// Attach starts a run and records every state change and group
// completion raised by pl until Detach.
func (j *Journal) Attach(pl *vm.ProcessList, label string) (string, error) {
	id, err := j.BeginRun(label)
	if err != nil {
		return "", err
	}
	j.detach = append(j.detach,
		pl.OnProcessStateChanged(func(p *vm.Process, old vm.State) {
			if err := j.RecordTransition(p, old); err != nil {
				log.Errorf("%s", err)
			}
		}),
		pl.OnProcessGroupFinished(func(g uint32) {
			if err := j.RecordGroupFinished(g); err != nil {
				log.Errorf("%s", err)
			}
		}),
	)
	log.Debugf("journal run %s attached (%s)", id, j.path)
	return id, nil
}

// Detach stops recording.
func (j *Journal) Detach() {
	for _, remove := range j.detach {
		remove()
	}
	j.detach = nil
}

// RecordTransition appends a state change of p to the current run.
func (j *Journal) RecordTransition(p *vm.Process, old vm.State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.run == "" {
		return fmt.Errorf("recording transition: no run started")
	}

	msg := ""
	if e := p.Error(); e != nil && p.State() == vm.Failed {
		msg = e.Error()
	}
	_, err := j.db.Exec(
		`INSERT INTO transitions (run, pid, name, grp, old_state, new_state, error, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.run, p.ID(), p.Name(), p.ProcessGroupID(), old.String(), p.State().String(), msg, timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("recording transition: %w", err)
	}
	return nil
}

// RecordGroupFinished appends a group completion to the current run.
func (j *Journal) RecordGroupFinished(group uint32) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.run == "" {
		return fmt.Errorf("recording group: no run started")
	}

	_, err := j.db.Exec(
		"INSERT INTO groups (run, grp, at) VALUES (?, ?, ?)",
		j.run, group, timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("recording group: %w", err)
	}
	return nil
}

// Runs lists recorded runs, oldest first.
func (j *Journal) Runs() ([]Run, error) {
	rows, err := j.db.Query("SELECT id, label, started FROM runs ORDER BY started, rowid")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.Label, &started); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Started = parseTimestamp(started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Transitions returns the state changes of a run in recording order.
func (j *Journal) Transitions(run string) ([]Transition, error) {
	if err := j.checkRun(run); err != nil {
		return nil, err
	}

	rows, err := j.db.Query(
		`SELECT pid, name, grp, old_state, new_state, error, at
		FROM transitions WHERE run = ? ORDER BY seq`, run)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var at string
		if err := rows.Scan(&t.PID, &t.Name, &t.Group, &t.Old, &t.New, &t.Error, &at); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		t.At = parseTimestamp(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// FinishedGroups returns the groups reported finished during a run, in
// order. A group appears once per finished-signal.
func (j *Journal) FinishedGroups(run string) ([]uint32, error) {
	if err := j.checkRun(run); err != nil {
		return nil, err
	}

	rows, err := j.db.Query("SELECT grp FROM groups WHERE run = ? ORDER BY seq", run)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var out []uint32
	for rows.Next() {
		var g uint32
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (j *Journal) checkRun(run string) error {
	var id string
	err := j.db.QueryRow("SELECT id FROM runs WHERE id = ?", run).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("querying run: %w", err)
	}
	return nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
