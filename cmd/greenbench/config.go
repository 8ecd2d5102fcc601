package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/greenhouse-bench/internal/bench"
	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/scenario"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

// #region config-cmd

func newConfigCmd(g *globals) *cobra.Command {
	var render, stage string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved catalog and experiment suite",
		Example: `  greenbench config
  greenbench config --render SM3
  greenbench config --stage P05`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			suite, cat, err := g.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case render != "":
				sm, ok := suite.SystemMessage(render)
				if !ok {
					return fmt.Errorf("unknown system message %q", render)
				}
				text, err := scenario.Render(sm, cat)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, text)
				return err
			case stage != "":
				return printStage(out, suite, cat, stage)
			}
			printCatalog(out, cat)
			printSuite(out, suite)
			return nil
		},
	}
	cmd.Flags().StringVar(&render, "render", "", "print one rendered system message")
	cmd.Flags().StringVar(&stage, "stage", "", "print the staged greenhouse state of one prompt")
	return cmd
}

// #endregion config-cmd

// #region printers

func printCatalog(w io.Writer, cat *catalog.Catalog) {
	fmt.Fprintln(w, "Comfort ranges:")
	fmt.Fprintf(w, "  %-6s", "type")
	for _, p := range catalog.Parameters {
		fmt.Fprintf(w, "  %-16s", p)
	}
	fmt.Fprintln(w)
	for _, pt := range cat.PlantTypes() {
		fmt.Fprintf(w, "  %-6s", pt)
		c := cat.Intervals(pt)
		for _, p := range catalog.Parameters {
			iv := c.For(p)
			fmt.Fprintf(w, "  %-16s", fmt.Sprintf("%g-%g", iv.Low, iv.High))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "\nDevices:")
	for _, d := range cat.Devices() {
		fmt.Fprintf(w, "  %-22s %-9s %-14s [%g, %g] %s  actions: %s\n",
			d.Name, d.Kind, d.Parameter, d.Range.Low, d.Range.High, d.Unit, strings.Join(d.ActionNames(), ", "))
	}
}

func printSuite(w io.Writer, s *scenario.Suite) {
	fmt.Fprintf(w, "\nSuite: %d runs per cell, checkpoint every %d, timeout %ds\n", s.Runs, s.CheckpointEach, s.TimeoutSeconds)
	fmt.Fprintln(w, "\nModels:")
	for _, m := range s.Models {
		fmt.Fprintf(w, "  %-16s %-40s %6gB  $%g/$%g per 1K\n", m.Key, m.ID, m.Params/1e9, m.PricePer1KIn, m.PricePer1KOut)
	}
	fmt.Fprintln(w, "\nSystem messages:")
	for _, sm := range s.SystemMessages {
		fmt.Fprintf(w, "  %-4s %s\n", sm.ID, sm.Name)
	}
	fmt.Fprintln(w, "\nPrompts:")
	for _, p := range s.Prompts {
		fmt.Fprintf(w, "  %-4s %-14s %-6v %s\n", p.ID, p.Category, p.Valid, p.Name)
	}
	cells := len(s.Models) * len(s.SystemMessages) * len(s.Prompts)
	fmt.Fprintf(w, "\nMatrix: %d cells x 5 formats x %d runs = %d runs\n", cells, s.Runs, cells*5*s.Runs)
}

func printStage(w io.Writer, s *scenario.Suite, cat *catalog.Catalog, id string) error {
	p, ok := s.Prompt(id)
	if !ok {
		return fmt.Errorf("unknown prompt %q", id)
	}
	pipe := bench.NewPipeline(cat, s.ResponseSchema(), validate.DefaultConfig(), metrics.DefaultConfig(), 42)
	store, err := pipe.Stage(p)
	if err != nil {
		return err
	}
	snap := store.Snapshot()
	staged := map[string]any{"prompt": p.ID, "text": p.Text}
	units := map[string]any{}
	for _, gh := range p.Greenhouses() {
		if u, ok := snap.Unit(gh); ok {
			units[gh] = map[string]any{"plant_type": u.PlantType, "readings": u.Readings()}
		}
	}
	staged["units"] = units
	staged["critical"] = store.Critical()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(staged)
}

// #endregion printers
