// Command greenbench runs the greenhouse orchestration benchmark against
// hosted models, stores the scored runs and reports on them.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/logging"
	"github.com/danielpatrickdp/greenhouse-bench/internal/scenario"
)

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globals are the persistent flags every subcommand shares.
type globals struct {
	logLevel    string
	suitePath   string
	catalogPath string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "greenbench",
		Short:        "Benchmark LLMs as IoT greenhouse orchestrators",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", envOr("GREENBENCH_LOG_LEVEL", "info"), "debug, info, warn or error")
	pf.StringVar(&g.suitePath, "suite", os.Getenv("GREENBENCH_SUITE"), "scenario suite YAML (default: built-in suite)")
	pf.StringVar(&g.catalogPath, "catalog", os.Getenv("GREENBENCH_CATALOG"), "comfort catalog YAML (default: built-in catalog)")

	root.AddCommand(newConfigCmd(g), newRunCmd(g), newAnalyzeCmd(g), newServeCmd(g))
	return root
}

// #endregion main

// #region helpers

func (g *globals) logger() (*slog.Logger, error) {
	return logging.New(os.Stderr, g.logLevel)
}

// load resolves the suite and catalog, falling back to the built-in ones.
func (g *globals) load() (*scenario.Suite, *catalog.Catalog, error) {
	cat := catalog.Default()
	if g.catalogPath != "" {
		c, err := catalog.Load(g.catalogPath)
		if err != nil {
			return nil, nil, err
		}
		cat = c
	}
	if g.suitePath != "" {
		s, err := scenario.Load(g.suitePath)
		return s, cat, err
	}
	s, err := scenario.Default()
	return s, cat, err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList splits a comma separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// #endregion helpers
