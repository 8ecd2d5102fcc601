// Package results persists RunRecords and their verdict log, exports them in
// the benchmark JSON layout and publishes them to Kafka.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/greenhouse-bench/internal/logging"
)

// ErrNotFound is returned for unknown run ids.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// #region schema
const runsTable = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	batch_id        TEXT NOT NULL,
	model           TEXT NOT NULL,
	format          TEXT NOT NULL,
	system_message  TEXT NOT NULL,
	prompt_id       TEXT NOT NULL,
	prompt_category TEXT NOT NULL,
	repetition      INTEGER NOT NULL,
	status          TEXT NOT NULL,
	started_at      TEXT NOT NULL,
	record_json     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(batch_id);
`

const verdictTable = `
CREATE TABLE IF NOT EXISTS verdict_log (
	id            %s,
	run_id        TEXT NOT NULL REFERENCES runs(run_id),
	seq           INTEGER NOT NULL,
	greenhouse_id TEXT,
	device        TEXT,
	action        TEXT,
	value         DOUBLE PRECISION,
	step          INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	reason        TEXT,
	before_value  DOUBLE PRECISION NOT NULL,
	after_value   DOUBLE PRECISION NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdict_run ON verdict_log(run_id);
`

// dialect carries what differs between the two supported drivers.
type dialect struct {
	driver string
	serial string
	pragma []string
	rebind logging.Rebind
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite",
		serial: "INTEGER PRIMARY KEY AUTOINCREMENT",
		pragma: []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"},
	},
	"postgres": {
		driver: "postgres",
		serial: "BIGSERIAL PRIMARY KEY",
		rebind: dollarParams,
	},
}

// dollarParams rewrites ? placeholders as $1, $2, ... for lib/pq.
func dollarParams(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// #endregion schema

// #region store-struct
// Store keeps RunRecords in SQLite or Postgres.
type Store struct {
	db *sql.DB
	d  dialect
}

// #endregion store-struct

// #region constructor
// Open connects with driver "sqlite" (dsn is a file path) or "postgres"
// (dsn is a lib/pq connection string) and runs migrations.
func Open(driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	for _, p := range d.pragma {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(runsTable + fmt.Sprintf(verdictTable, d.serial)); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, d: d}, nil
}

// OpenDSN accepts "postgres://..." URLs and treats anything else as a SQLite
// path.
func OpenDSN(dsn string) (*Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Open("postgres", dsn)
	}
	return Open("sqlite", dsn)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) q(query string) string {
	if s.d.rebind == nil {
		return query
	}
	return s.d.rebind(query)
}

// #endregion constructor

// #region save-run
// SaveRun inserts the record and its verdict log atomically.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", rec.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(
		`INSERT INTO runs (run_id, batch_id, model, format, system_message, prompt_id, prompt_category, repetition, status, started_at, record_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.BatchID, rec.Model, string(rec.Format), rec.SystemMessage, rec.Prompt, rec.Category,
		rec.Repetition, string(rec.Status), rec.StartedAt.UTC().Format(timeLayout), string(body),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	if err := logging.LogVerdicts(ctx, tx, s.d.rebind, rec.ID, rec.Verdicts); err != nil {
		return fmt.Errorf("run %s: %w", rec.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion save-run

// #region get-run
// GetRun reads one record by id.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT record_json FROM runs WHERE run_id = ?`), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	var rec RunRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal run %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-run

// #region list-runs
// ListRuns returns matching records in start order.
func (s *Store) ListRuns(ctx context.Context, f Filter) ([]RunRecord, error) {
	var where []string
	var args []any
	add := func(col, val string) {
		if val != "" {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	add("batch_id", f.BatchID)
	add("model", f.Model)
	add("format", f.Format)
	add("system_message", f.SystemMessage)
	add("prompt_id", f.Prompt)
	add("status", string(f.Status))

	query := `SELECT record_json FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at, run_id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var rec RunRecord
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal run: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListBatches summarizes every batch, newest first.
func (s *Store) ListBatches(ctx context.Context) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT batch_id, COUNT(*), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), MIN(started_at)
		 FROM runs GROUP BY batch_id ORDER BY MIN(started_at) DESC`), string(StatusError))
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		var started string
		if err := rows.Scan(&b.ID, &b.Runs, &b.Errors, &started); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		b.StartedAt, _ = time.Parse(timeLayout, started)
		out = append(out, b)
	}
	return out, rows.Err()
}

// #endregion list-runs

// #region verdicts
// Verdicts reads the verdict log of one run in command order.
func (s *Store) Verdicts(ctx context.Context, runID string) ([]logging.VerdictEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT seq, greenhouse_id, device, action, value, step, kind, reason, before_value, after_value, created_at
		 FROM verdict_log WHERE run_id = ? ORDER BY seq`), runID)
	if err != nil {
		return nil, fmt.Errorf("verdicts %s: %w", runID, err)
	}
	defer rows.Close()

	var out []logging.VerdictEntry
	for rows.Next() {
		e := logging.VerdictEntry{RunID: runID}
		var gh, dev, act, reason sql.NullString
		var value sql.NullFloat64
		var created string
		if err := rows.Scan(&e.Seq, &gh, &dev, &act, &value, &e.Step, &e.Kind, &reason, &e.Before, &e.After, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Greenhouse, e.Device, e.Action, e.Reason = gh.String, dev.String, act.String, reason.String
		if value.Valid {
			v := value.Float64
			e.Value = &v
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion verdicts
