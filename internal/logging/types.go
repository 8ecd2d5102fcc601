package logging

import (
	"context"
	"database/sql"
	"time"
)

// #region verdict-entry
// VerdictEntry is a single row in the verdict_log table.
type VerdictEntry struct {
	RunID      string
	Seq        int // position of the command in the response
	Greenhouse string
	Device     string
	Action     string
	Value      *float64
	Step       int
	Kind       string // "valid" | "constraint_violation" | "hallucinated" | "syntax_error"
	Reason     string
	Before     float64
	After      float64
	CreatedAt  time.Time
}

// #endregion verdict-entry

// #region execer
// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Rebind rewrites ? placeholders for the target driver. Nil leaves them.
type Rebind func(query string) string

// #endregion execer
