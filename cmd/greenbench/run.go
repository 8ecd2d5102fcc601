package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/greenhouse-bench/internal/bench"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/inference"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/report"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
)

// #region run-cmd

type runOptions struct {
	db             string
	addr           string
	brokers        string
	topic          string
	models         string
	systemMessages string
	prompts        string
	formats        string
	workers        int
	runs           int
	limit          int
	seed           uint64
	timeout        time.Duration
	temperature    float64
	maxTokens      int
	checkpointDir  string
	checkpointEach int
	exportPath     string
	metricsAddr    string
}

func newRunCmd(g *globals) *cobra.Command {
	o := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark matrix against the inference gateway",
		Example: `  greenbench run --models gemma3_12b --formats json,toon --runs 2
  greenbench run --limit 50 --export results.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), g, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.db, "db", envOr("GREENBENCH_DB", "greenbench.db"), "result database: SQLite path or postgres:// DSN")
	f.StringVar(&o.addr, "addr", envOr("GREENBENCH_INFERENCE_ADDR", "localhost:50051"), "inference gateway address")
	f.StringVar(&o.brokers, "kafka-brokers", os.Getenv("GREENBENCH_KAFKA_BROKERS"), "comma separated Kafka brokers; empty disables publishing")
	f.StringVar(&o.topic, "kafka-topic", "greenbench.runs", "Kafka topic for run records")
	f.StringVar(&o.models, "models", "", "comma separated model keys (default: all)")
	f.StringVar(&o.systemMessages, "system-messages", "", "comma separated system message ids (default: all)")
	f.StringVar(&o.prompts, "prompts", "", "comma separated prompt ids (default: all)")
	f.StringVar(&o.formats, "formats", "", "comma separated formats (default: all)")
	f.IntVar(&o.workers, "workers", 4, "concurrent runs")
	f.IntVar(&o.runs, "runs", 0, "repetitions per cell (default: suite setting)")
	f.IntVar(&o.limit, "limit", 0, "stop after this many runs")
	f.Uint64Var(&o.seed, "seed", 42, "greenhouse seeding")
	f.DurationVar(&o.timeout, "timeout", 0, "per-run timeout (default: suite setting)")
	f.Float64Var(&o.temperature, "temperature", 0, "sampling temperature")
	f.IntVar(&o.maxTokens, "max-tokens", inference.DefaultConfig().MaxTokens, "reply token limit")
	f.StringVar(&o.checkpointDir, "checkpoint-dir", "checkpoints", "directory for checkpoint files")
	f.IntVar(&o.checkpointEach, "checkpoint-every", 0, "checkpoint every n runs (default: suite setting, negative disables)")
	f.StringVar(&o.exportPath, "export", "", "write the results export JSON to this path")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	return cmd
}

func runBenchmark(ctx context.Context, g *globals, o runOptions) error {
	logger, err := g.logger()
	if err != nil {
		return err
	}
	suite, cat, err := g.load()
	if err != nil {
		return err
	}
	suite, err = suite.Filter(splitList(o.models), splitList(o.systemMessages), splitList(o.prompts))
	if err != nil {
		return err
	}

	cfg := bench.DefaultConfig()
	cfg.Workers = o.workers
	cfg.Runs = o.runs
	cfg.Limit = o.limit
	cfg.Seed = o.seed
	cfg.Timeout = o.timeout
	cfg.Temperature = o.temperature
	cfg.MaxTokens = o.maxTokens
	cfg.CheckpointEach = o.checkpointEach
	if names := splitList(o.formats); len(names) > 0 {
		cfg.Formats = nil
		for _, n := range names {
			f, err := command.ParseFormat(n)
			if err != nil {
				return err
			}
			cfg.Formats = append(cfg.Formats, f)
		}
	}

	// 1. Collaborators
	store, err := results.OpenDSN(o.db)
	if err != nil {
		return err
	}
	defer store.Close()

	icfg := inference.DefaultConfig()
	icfg.MaxTokens = o.maxTokens
	client, err := inference.NewClient(o.addr, icfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	runner, err := bench.New(suite, cat, client, cfg, logger)
	if err != nil {
		return err
	}
	runner.AddSink(store.SaveRun)
	runner.WithMetrics(bench.NewMetrics(prometheus.DefaultRegisterer))

	if brokers := splitList(o.brokers); len(brokers) > 0 {
		pub := results.NewPublisher(results.NewKafkaWriter(brokers, o.topic), logger)
		defer pub.Close()
		runner.AddSink(pub.Publish)
	}
	runner.OnCheckpoint(func(done int, recs []results.RunRecord) error {
		path, err := results.WriteCheckpoint(o.checkpointDir, done, recs)
		if err != nil {
			return err
		}
		logger.Info("checkpoint_written", "path", path, "runs", done)
		return nil
	})
	runner.OnProgress(func(done, total int, rec results.RunRecord) {
		if done%25 == 0 || done == total {
			logger.Info("progress", "done", done, "total", total, "last", rec.ID)
		}
	})

	if o.metricsAddr != "" {
		r := mux.NewRouter()
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
		srv := &http.Server{Addr: o.metricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics_server", "err", err)
			}
		}()
		defer srv.Close()
	}

	// 2. Run
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	recs, runErr := runner.Run(ctx)

	// 3. Report whatever finished, even after an interruption.
	if o.exportPath != "" && len(recs) > 0 {
		if err := writeExport(o.exportPath, recs); err != nil {
			return errors.Join(runErr, err)
		}
		logger.Info("export_written", "path", o.exportPath, "runs", len(recs))
	}
	rep := report.Build(recs, 10, time.Now())
	fmt.Printf("batch %s: %d runs, %d failed, correctness %.2f%%, syntax errors %.2f%%\n",
		runner.BatchID(), rep.Totals.Runs, rep.Totals.Errors,
		rep.Overall.Metrics[metrics.MetricCorrectness].Mean*100, rep.Overall.Metrics[metrics.MetricSyntaxErrorRate].Mean*100)
	return runErr
}

func writeExport(path string, recs []results.RunRecord) error {
	return writeFile(path, func(w io.Writer) error { return results.ExportJSON(w, recs) })
}

// #endregion run-cmd
