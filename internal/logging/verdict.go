package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

const insertVerdict = `INSERT INTO verdict_log (run_id, seq, greenhouse_id, device, action, value, step, kind, reason, before_value, after_value, created_at)
	 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// #region log-verdict
// LogVerdict writes one entry to the verdict_log table.
func LogVerdict(ctx context.Context, db Execer, rebind Rebind, entry VerdictEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	q := insertVerdict
	if rebind != nil {
		q = rebind(q)
	}

	_, err := db.ExecContext(ctx, q,
		entry.RunID,
		entry.Seq,
		nullIfEmpty(entry.Greenhouse),
		nullIfEmpty(entry.Device),
		nullIfEmpty(entry.Action),
		entry.Value,
		entry.Step,
		entry.Kind,
		nullIfEmpty(entry.Reason),
		entry.Before,
		entry.After,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log verdict: %w", err)
	}
	return nil
}

// #endregion log-verdict

// #region entries
// Entries converts validator results into log rows, in command order.
func Entries(runID string, results []validate.Result, at time.Time) []VerdictEntry {
	out := make([]VerdictEntry, len(results))
	for i, r := range results {
		out[i] = VerdictEntry{
			RunID:      runID,
			Seq:        i,
			Greenhouse: r.Command.Greenhouse,
			Device:     r.Command.Device,
			Action:     r.Command.Action,
			Value:      r.Command.Value,
			Step:       r.Command.Step,
			Kind:       string(r.Verdict.Kind),
			Reason:     r.Verdict.Reason,
			Before:     r.Verdict.Before,
			After:      r.Verdict.After,
			CreatedAt:  at,
		}
	}
	return out
}

// LogVerdicts writes every result of a run.
func LogVerdicts(ctx context.Context, db Execer, rebind Rebind, runID string, results []validate.Result) error {
	at := time.Now().UTC()
	for _, e := range Entries(runID, results, at) {
		if err := LogVerdict(ctx, db, rebind, e); err != nil {
			return err
		}
	}
	return nil
}

// #endregion entries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
