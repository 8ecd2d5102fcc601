package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/greenhouse-bench/internal/report"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
)

// #region analyze-cmd

type analyzeOptions struct {
	db         string
	input      string
	batch      string
	model      string
	format     string
	top        int
	out        string
	latex      string
	exportPath string
	jsonOut    bool
}

func newAnalyzeCmd(g *globals) *cobra.Command {
	o := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report on stored runs",
		Long: `Aggregate stored runs into the benchmark report.

Runs are read from the result database, or from a results export when
--input is given. The text report goes to stdout unless --out is set.`,
		Example: `  greenbench analyze --batch 7f0c...
  greenbench analyze --input results.json --latex tables.tex`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := loadRecords(cmd, o)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return fmt.Errorf("no runs found")
			}
			rep := report.Build(recs, o.top, time.Now())

			if o.latex != "" {
				if err := writeFile(o.latex, func(w io.Writer) error { return report.WriteLaTeX(w, rep) }); err != nil {
					return err
				}
			}
			if o.exportPath != "" {
				if err := writeExport(o.exportPath, recs); err != nil {
					return err
				}
			}
			render := func(w io.Writer) error { return report.WriteText(w, rep) }
			if o.jsonOut {
				render = func(w io.Writer) error {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
			}
			if o.out != "" {
				return writeFile(o.out, render)
			}
			return render(cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.db, "db", envOr("GREENBENCH_DB", "greenbench.db"), "result database: SQLite path or postgres:// DSN")
	f.StringVar(&o.input, "input", "", "read runs from a results export instead of the database")
	f.StringVar(&o.batch, "batch", "", "only runs of this batch")
	f.StringVar(&o.model, "model", "", "only runs of this model key")
	f.StringVar(&o.format, "format", "", "only runs in this format")
	f.IntVar(&o.top, "top", 10, "size of the best combination ranking")
	f.StringVar(&o.out, "out", "", "write the report to this path")
	f.StringVar(&o.latex, "latex", "", "write LaTeX tables to this path")
	f.StringVar(&o.exportPath, "export", "", "write the results export JSON to this path")
	f.BoolVar(&o.jsonOut, "json", false, "print the report as JSON")
	return cmd
}

func loadRecords(cmd *cobra.Command, o analyzeOptions) ([]results.RunRecord, error) {
	if o.input != "" {
		f, err := os.Open(o.input)
		if err != nil {
			return nil, fmt.Errorf("open export: %w", err)
		}
		defer f.Close()
		return results.LoadJSON(f)
	}
	store, err := results.OpenDSN(o.db)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ListRuns(cmd.Context(), results.Filter{BatchID: o.batch, Model: o.model, Format: o.format})
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// #endregion analyze-cmd
