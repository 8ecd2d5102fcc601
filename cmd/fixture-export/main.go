package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/greenhouse-bench/internal/replay"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "result database: SQLite path or postgres:// DSN")
	batch := flag.String("batch", "", "only export runs of this batch")
	last := flag.Int("last", 4, "number of most recent runs to export (0 for all)")
	desc := flag.String("description", "", "fixture description")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db greenbench.db --out path/to/fixture.json [--batch id] [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *batch, *last, *desc, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, batch string, last int, desc, outPath string) error {
	store, err := results.OpenDSN(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	recs, err := store.ListRuns(context.Background(), results.Filter{BatchID: batch})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no runs found")
	}
	if last > 0 && len(recs) > last {
		recs = recs[len(recs)-last:]
	}
	if desc == "" {
		desc = fmt.Sprintf("%d runs exported from %s", len(recs), dbPath)
	}

	fx := replay.FromRecords(desc, replay.DefaultReplayConfig(), recs)

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if err := fx.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %d cases to %s\n", len(fx.Cases), outPath)
	return nil
}

// #endregion extract
