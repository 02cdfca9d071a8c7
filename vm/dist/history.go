package dist

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/nex/vm"
)

// ErrRunNotFound indicates the requested run is not in the history.
var ErrRunNotFound = errors.New("dist: run not found")

// Run outcomes recorded in the history.
const (
	OutcomeOK        = "ok"
	OutcomeExit      = "exit"
	OutcomeException = "exception"
	OutcomeFault     = "fault"
)

// Outcome classifies the error returned by Executor.Run.
func Outcome(err error) string {
	var exit *vm.ExitError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &exit):
		return OutcomeExit
	case vm.IsException(err):
		return OutcomeException
	default:
		return OutcomeFault
	}
}

// RunRecord summarizes one recorded run.
type RunRecord struct {
	RunID      string
	ObjectHash string
	Executor   string
	Outcome    string
	Steps      uint64
	Recorded   time.Time
}

// History stores final snapshots of runs in SQLite, keyed by run ID. The
// snapshot is kept in its CBOR wire form.
type History struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenHistory opens or creates a run history database.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	// Set busy timeout for concurrent runs sharing a database
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id      TEXT PRIMARY KEY,
		object_hash TEXT NOT NULL,
		executor    TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		steps       INTEGER NOT NULL,
		recorded    INTEGER NOT NULL,
		snapshot    BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// Record stores the final snapshot of a run of the object with the given
// source hash. Recording the same run ID again replaces the entry.
func (h *History) Record(objectHash [32]byte, outcome string, s *vm.Snapshot) error {
	data, err := MarshalSnapshot(s)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.db.Exec(
		"INSERT OR REPLACE INTO runs (run_id, object_hash, executor, outcome, steps, recorded, snapshot) VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.RunID, hex.EncodeToString(objectHash[:]), s.Executor, outcome, int64(s.Steps), time.Now().UnixNano(), data,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", s.RunID, err)
	}
	return nil
}

// Snapshot returns the stored snapshot of a run.
func (h *History) Snapshot(runID string) (*vm.Snapshot, error) {
	var data []byte
	err := h.db.QueryRow("SELECT snapshot FROM runs WHERE run_id = ?", runID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	return UnmarshalSnapshot(data)
}

// Runs lists the recorded runs of an object, most recent first. An empty
// hash string lists every run. limit <= 0 means no limit.
func (h *History) Runs(objectHash string, limit int) ([]RunRecord, error) {
	query := "SELECT run_id, object_hash, executor, outcome, steps, recorded FROM runs"
	var args []any
	if objectHash != "" {
		query += " WHERE object_hash = ?"
		args = append(args, objectHash)
	}
	query += " ORDER BY recorded DESC, run_id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var steps, recorded int64
		if err := rows.Scan(&r.RunID, &r.ObjectHash, &r.Executor, &r.Outcome, &steps, &recorded); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Steps = uint64(steps)
		r.Recorded = time.Unix(0, recorded)
		records = append(records, r)
	}
	return records, rows.Err()
}
