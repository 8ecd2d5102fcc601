package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/greenhouse-bench/internal/logging"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "result database: SQLite path or postgres:// DSN")
	last := flag.Int("last", 20, "show N most recent runs")
	batch := flag.String("batch", "", "only runs of this batch")
	model := flag.String("model", "", "only runs of this model key")
	runID := flag.String("run", "", "show single run detail with its verdict log")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db greenbench.db [--last N] [--batch id] [--model key] [--run id] [--json]")
		os.Exit(2)
	}

	store, err := results.OpenDSN(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *runID != "" {
		err = runDetailMode(ctx, store, *runID, *jsonOut)
	} else {
		err = runListMode(ctx, store, results.Filter{BatchID: *batch, Model: *model}, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID       string  `json:"run_id"`
	Model       string  `json:"model_key"`
	Cell        string  `json:"cell"`
	Status      string  `json:"status"`
	Correctness float64 `json:"correctness"`
	Issued      int     `json:"issued"`
	Valid       int     `json:"valid"`
	Syntax      float64 `json:"syntax_error"`
	StartedAt   string  `json:"started_at"`
}

func runListMode(ctx context.Context, store *results.Store, f results.Filter, last int, jsonOut bool) error {
	recs, err := store.ListRuns(ctx, f)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}
	// ListRuns is chronological, keep the tail.
	if last > 0 && len(recs) > last {
		recs = recs[len(recs)-last:]
	}

	rows := make([]listRow, len(recs))
	for i, r := range recs {
		rows[i] = listRow{
			RunID:       r.ID,
			Model:       r.Model,
			Cell:        fmt.Sprintf("%s/%s/%s", r.SystemMessage, r.Prompt, r.Format),
			Status:      string(r.Status),
			Correctness: r.Scores.Correctness,
			Issued:      r.Scores.Issued,
			Valid:       r.Scores.Valid,
			Syntax:      r.Scores.SyntaxErrorRate,
			StartedAt:   r.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-12s  %-16s  %-18s  %-7s  %6s  %7s  %6s  %s\n",
		"Run", "Model", "Cell", "Status", "Corr", "Valid", "Syntax", "Time")
	fmt.Printf("%-12s+-%-16s+-%-18s+-%-7s+-%6s+-%7s+-%6s+-%s\n",
		"------------", "----------------", "------------------", "-------", "------", "-------", "------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-16s  %-18s  %-7s  %6.3f  %3d/%-3d  %6.3f  %s\n",
			shortID(r.RunID), r.Model, r.Cell, r.Status, r.Correctness, r.Valid, r.Issued, r.Syntax, r.StartedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run        results.RunRecord      `json:"run"`
	VerdictLog []logging.VerdictEntry `json:"verdict_log"`
}

func runDetailMode(ctx context.Context, store *results.Store, id string, jsonOut bool) error {
	rec, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	entries, err := store.Verdicts(ctx, id)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(detailOutput{Run: rec, VerdictLog: entries})
	}

	fmt.Printf("Run:        %s\n", rec.ID)
	fmt.Printf("Batch:      %s\n", rec.BatchID)
	fmt.Printf("Model:      %s (%s)\n", rec.Model, rec.ModelID)
	fmt.Printf("Cell:       %s/%s/%s #%d\n", rec.SystemMessage, rec.Prompt, rec.Format, rec.Repetition)
	fmt.Printf("Status:     %s\n", rec.Status)
	if rec.Error != "" {
		fmt.Printf("Error:      %s\n", rec.Error)
	}
	fmt.Printf("Attempts:   %d\n", rec.Attempts)
	fmt.Printf("Tokens:     %d in / %d out\n", rec.Usage.InputTokens, rec.Usage.OutputTokens)

	s := rec.Scores
	fmt.Printf("\nScores:\n")
	fmt.Printf("  Correctness:    %.3f\n", s.Correctness)
	fmt.Printf("  Success:        %.3f\n", s.Success)
	fmt.Printf("  Violations:     %.3f\n", s.ViolationRate)
	fmt.Printf("  Hallucinations: %.3f\n", s.HallucinationRate)
	fmt.Printf("  Syntax errors:  %.3f\n", s.SyntaxErrorRate)
	fmt.Printf("  Cost:           %.6f\n", s.CostPerTask)
	fmt.Printf("  PEP / PVO:      %.4f / %.4f\n", s.PEP, s.PVO)

	if len(entries) > 0 {
		fmt.Printf("\nVerdict log:\n")
		for _, e := range entries {
			value := "-"
			if e.Value != nil {
				value = fmt.Sprintf("%g", *e.Value)
			}
			fmt.Printf("  %2d  %-6s %-22s %-14s %-6s %-22s %g -> %g  %s\n",
				e.Seq, e.Greenhouse, e.Device, e.Action, value, e.Kind, e.Before, e.After, e.Reason)
		}
	}

	if rec.Raw != "" {
		fmt.Printf("\nResponse:\n%s\n", rec.Raw)
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
