package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/replay"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
	"github.com/danielpatrickdp/greenhouse-bench/internal/scenario"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "result database: SQLite path or postgres:// DSN (DB mode)")
	batch := flag.String("batch", "", "only replay runs of this batch (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	suitePath := flag.String("suite", "", "scenario suite YAML (default: built-in suite)")
	catalogPath := flag.String("catalog", "", "comfort catalog YAML (default: built-in catalog)")
	verbose := flag.Bool("v", false, "print every differing score")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db greenbench.db [--batch id]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	suite, cat, err := loadScenario(*suitePath, *catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load scenario: %v\n", err)
		os.Exit(2)
	}

	var fx *replay.Fixture
	if *fixturePath != "" {
		fx, err = replay.LoadFixture(*fixturePath)
	} else {
		fx, err = fixtureFromDB(*dbPath, *batch)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	cases, expected := fx.Inputs()
	res := replay.Replay(suite, cat, cases, expected, fx.Config.ToReplayConfig())
	os.Exit(printComparison(res, expected, *verbose))
}

func loadScenario(suitePath, catalogPath string) (*scenario.Suite, *catalog.Catalog, error) {
	cat := catalog.Default()
	if catalogPath != "" {
		c, err := catalog.Load(catalogPath)
		if err != nil {
			return nil, nil, err
		}
		cat = c
	}
	if suitePath != "" {
		s, err := scenario.Load(suitePath)
		return s, cat, err
	}
	s, err := scenario.Default()
	return s, cat, err
}

// #endregion main

// #region db-extract

// fixtureFromDB reads stored runs and records their scores as the expected
// results, with the default pipeline settings.
func fixtureFromDB(dsn, batch string) (*replay.Fixture, error) {
	store, err := results.OpenDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	recs, err := store.ListRuns(context.Background(), results.Filter{BatchID: batch})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no runs found in %s", dsn)
	}
	return replay.FromRecords("db replay", replay.DefaultReplayConfig(), recs), nil
}

// #endregion db-extract

// #region output

// printComparison outputs a comparison table and returns the exit code: 1
// when any run drifted or failed to replay.
func printComparison(res []replay.ReplayResult, expected map[string]metrics.Scores, verbose bool) int {
	fmt.Printf("%-40s| %-9s| %-9s| %-8s| %s\n", "Run", "Recorded", "Replayed", "Action", "Reason")
	fmt.Printf("%-40s+%-10s+%-10s+%-9s+%s\n",
		"----------------------------------------", "----------", "----------", "---------", "--------")

	for _, r := range res {
		rec, rep := "-", "-"
		if want, ok := expected[r.RunID]; ok {
			rec = fmt.Sprintf("%.3f", want.Correctness)
		}
		if r.Action == replay.ActionMatch || r.Action == replay.ActionDrift {
			rep = fmt.Sprintf("%.3f", r.Outcome.Scores.Correctness)
		}
		fmt.Printf("%-40s| %-9s| %-9s| %-8s| %s\n", r.RunID, rec, rep, r.Action, r.Reason)
		if verbose {
			for _, d := range r.Diffs {
				fmt.Printf("    %-20s %.6f -> %.6f\n", d.Metric, d.Recorded, d.Replayed)
			}
		}
	}

	s := replay.Summarize(res)
	fmt.Printf("\nSummary: %d total, %d match, %d drift, %d skipped, %d error\n",
		s.TotalRuns, s.Matches, s.Drifts, s.Skipped, s.Errors)

	if s.Drifts > 0 || s.Errors > 0 {
		return 1
	}
	return 0
}

// #endregion output
