// Package bench drives the benchmark matrix: it renders each run's input,
// invokes the model, scores the reply and hands the record to the sinks.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/greenhouse"
	"github.com/danielpatrickdp/greenhouse-bench/internal/inference"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
	"github.com/danielpatrickdp/greenhouse-bench/internal/scenario"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

// #region config

// Config controls a benchmark invocation.
type Config struct {
	Workers     int
	Seed        uint64
	Timeout     time.Duration // per run; zero uses the suite setting
	Runs        int           // repetitions per cell; zero uses the suite setting
	Limit       int           // stop after this many runs; zero runs the whole matrix
	Formats     []command.Format
	Temperature float64
	MaxTokens   int
	// CheckpointEach calls the checkpoint hook every n completed runs; zero
	// uses the suite setting, negative disables checkpoints.
	CheckpointEach int
	Validate       validate.Config
	Metrics        metrics.Config
}

// DefaultConfig runs the full matrix with four workers.
func DefaultConfig() Config {
	return Config{
		Workers:  4,
		Seed:     42,
		Formats:  command.Formats,
		Validate: validate.DefaultConfig(),
		Metrics:  metrics.DefaultConfig(),
	}
}

// Sink receives every finished record. A sink error aborts the benchmark.
type Sink func(ctx context.Context, rec results.RunRecord) error

// CheckpointFunc receives the records completed so far.
type CheckpointFunc func(done int, recs []results.RunRecord) error

// #endregion config

// #region job

// Job is one cell repetition of the matrix.
type Job struct {
	Index         int
	Model         scenario.Model
	SystemMessage scenario.SystemMessage
	Prompt        scenario.Prompt
	Format        command.Format
	Repetition    int
}

// #endregion job

// #region runner

// Runner executes the matrix of a suite against an Invoker.
type Runner struct {
	suite    *scenario.Suite
	inv      inference.Invoker
	cfg      Config
	pipe     *Pipeline
	systems  map[string]string
	logger   *slog.Logger
	metrics  *Metrics
	sinks    []Sink
	onCheck  CheckpointFunc
	batchID  string
	progress func(done, total int, rec results.RunRecord)
}

// New validates the configuration and pre-renders the system messages.
func New(suite *scenario.Suite, cat *catalog.Catalog, inv inference.Invoker, cfg Config, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Runs == 0 {
		cfg.Runs = suite.Runs
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Duration(suite.TimeoutSeconds) * time.Second
	}
	if cfg.CheckpointEach == 0 {
		cfg.CheckpointEach = suite.CheckpointEach
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = command.Formats
	}
	cfg.Metrics = SuiteMetrics(suite, cfg.Metrics)

	systems := make(map[string]string, len(suite.SystemMessages))
	for _, sm := range suite.SystemMessages {
		text, err := scenario.Render(sm, cat)
		if err != nil {
			return nil, fmt.Errorf("new runner: %w", err)
		}
		systems[sm.ID] = text
	}
	return &Runner{
		suite:   suite,
		inv:     inv,
		cfg:     cfg,
		pipe:    NewPipeline(cat, suite.ResponseSchema(), cfg.Validate, cfg.Metrics, cfg.Seed),
		systems: systems,
		logger:  logger,
		batchID: uuid.NewString(),
	}, nil
}

// SuiteMetrics replaces the PEP and PVO formulas of cfg with the suite's
// formulas labelled pep or pvo.
func SuiteMetrics(suite *scenario.Suite, cfg metrics.Config) metrics.Config {
	for _, f := range suite.Formulas {
		switch strings.ToLower(f.Label) {
		case "pep":
			cfg.PEP = f
		case "pvo":
			cfg.PVO = f
		}
	}
	return cfg
}

// BatchID identifies this invocation in stored records.
func (r *Runner) BatchID() string { return r.batchID }

// AddSink registers a record consumer.
func (r *Runner) AddSink(s Sink) { r.sinks = append(r.sinks, s) }

// OnCheckpoint sets the checkpoint hook.
func (r *Runner) OnCheckpoint(fn CheckpointFunc) { r.onCheck = fn }

// OnProgress sets a callback invoked after every run.
func (r *Runner) OnProgress(fn func(done, total int, rec results.RunRecord)) { r.progress = fn }

// WithMetrics attaches prometheus collectors.
func (r *Runner) WithMetrics(m *Metrics) { r.metrics = m }

// Plan enumerates the matrix in model, system message, prompt, format,
// repetition order, truncated to Limit.
func (r *Runner) Plan() []Job {
	var jobs []Job
	for _, m := range r.suite.Models {
		for _, sm := range r.suite.SystemMessages {
			for _, p := range r.suite.Prompts {
				for _, f := range r.cfg.Formats {
					for rep := 1; rep <= r.cfg.Runs; rep++ {
						if r.cfg.Limit > 0 && len(jobs) >= r.cfg.Limit {
							return jobs
						}
						jobs = append(jobs, Job{Index: len(jobs), Model: m, SystemMessage: sm, Prompt: p, Format: f, Repetition: rep})
					}
				}
			}
		}
	}
	return jobs
}

// Run executes the plan with a bounded worker pool and returns the records in
// plan order. Records are returned even when a sink fails.
func (r *Runner) Run(ctx context.Context) ([]results.RunRecord, error) {
	jobs := r.Plan()
	recs := make([]results.RunRecord, len(jobs))
	r.logger.Info("benchmark_start", "batch_id", r.batchID, "runs", len(jobs), "workers", r.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	var mu sync.Mutex
	var finished []results.RunRecord

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec := r.Execute(gctx, job)
			recs[job.Index] = rec
			for _, s := range r.sinks {
				if err := s(gctx, rec); err != nil {
					return fmt.Errorf("sink run %s: %w", rec.ID, err)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			finished = append(finished, rec)
			done := len(finished)
			if r.progress != nil {
				r.progress(done, len(jobs), rec)
			}
			if r.onCheck != nil && r.cfg.CheckpointEach > 0 && done%r.cfg.CheckpointEach == 0 {
				snapshot := append([]results.RunRecord(nil), finished...)
				if err := r.onCheck(done, snapshot); err != nil {
					return fmt.Errorf("checkpoint %d: %w", done, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	out := make([]results.RunRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.ID != "" {
			out = append(out, rec)
		}
	}
	r.logger.Info("benchmark_done", "batch_id", r.batchID, "runs", len(out), "planned", len(jobs))
	if err != nil {
		return out, err
	}
	if len(out) < len(jobs) {
		return out, fmt.Errorf("benchmark stopped after %d of %d runs: %w", len(out), len(jobs), ctx.Err())
	}
	return out, nil
}

// #endregion runner

// #region execute

// Execute performs one run. It always returns a record: failures are recorded
// with status error and a syntax rate of 1.
func (r *Runner) Execute(ctx context.Context, job Job) results.RunRecord {
	r.metrics.start()
	defer r.metrics.done()

	rec := results.RunRecord{
		ID:            runID(job),
		BatchID:       r.batchID,
		Model:         job.Model.Key,
		ModelName:     job.Model.Name,
		ModelID:       job.Model.ID,
		ModelInfo:     job.Model.Metrics(),
		SystemMessage: job.SystemMessage.ID,
		Prompt:        job.Prompt.ID,
		Category:      job.Prompt.Category,
		Refusal:       !job.Prompt.Valid,
		Format:        job.Format,
		Repetition:    job.Repetition,
		Status:        results.StatusSuccess,
		StartedAt:     time.Now().UTC(),
	}
	log := r.logger.With("run_id", rec.ID, "model", rec.Model, "format", rec.Format)

	store, err := r.pipe.Stage(job.Prompt)
	if err != nil {
		return r.fail(log, rec, err)
	}
	input, err := RenderInput(job.Format, job.Prompt.Text, contextUnits(store, job.Prompt), r.pipe.schema)
	if err != nil {
		return r.fail(log, rec, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	start := time.Now()
	reply, err := r.inv.Converse(callCtx, inference.Request{
		Model:       job.Model.ID,
		System:      r.systems[job.SystemMessage.ID],
		Prompt:      input,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	cancel()
	rec.Attempts = reply.Attempts
	rec.Usage = usageOf(reply, time.Since(start))
	if err != nil {
		return r.fail(log, rec, err)
	}
	rec.Raw = reply.Text

	out, err := r.pipe.Evaluate(store, job.Format, reply.Text, job.Prompt.GroundTruth(), rec.ModelInfo, rec.Usage)
	if err != nil {
		return r.fail(log, rec, err)
	}
	rec.Parsed = out.Response
	rec.Verdicts = out.Results
	rec.Scores = out.Scores
	if out.Syntax != nil {
		rec.Error = out.Syntax.Error()
	}
	r.metrics.observe(rec)
	log.Info("run_scored",
		"prompt", rec.Prompt,
		"system_message", rec.SystemMessage,
		"correctness", rec.Scores.Correctness,
		"success", rec.Scores.Success,
		"syntax_error", rec.Scores.SyntaxErrorRate,
		"issued", rec.Scores.Issued,
	)
	return rec
}

func (r *Runner) fail(log *slog.Logger, rec results.RunRecord, err error) results.RunRecord {
	rec.Status = results.StatusError
	rec.Error = err.Error()
	rec.Scores = metrics.Scores{SyntaxErrorRate: 1}
	if errors.Is(err, greenhouse.ErrNotFound) {
		// staged context names a unit outside the facility
		log.Error("run_misconfigured", "err", err)
	} else {
		log.Warn("run_failed", "err", err)
	}
	r.metrics.observe(rec)
	return rec
}

// runID follows model_system_prompt_format_runN_suffix.
func runID(job Job) string {
	return fmt.Sprintf("%s_%s_%s_%s_run%d_%s",
		job.Model.Key, job.SystemMessage.ID, job.Prompt.ID, job.Format, job.Repetition, uuid.NewString()[:8])
}

func contextUnits(store *greenhouse.Store, p scenario.Prompt) []greenhouse.Unit {
	snap := store.Snapshot()
	units := make([]greenhouse.Unit, 0, len(p.Context))
	for _, id := range p.Greenhouses() {
		if u, ok := snap.Unit(id); ok {
			units = append(units, u)
		}
	}
	return units
}

func usageOf(reply inference.Reply, wall time.Duration) metrics.Usage {
	e2e := float64(wall.Microseconds()) / 1000
	u := metrics.Usage{
		InputTokens:  reply.InputTokens,
		OutputTokens: reply.OutputTokens,
		InferenceMS:  reply.LatencyMS,
		EndToEndMS:   e2e,
	}
	if u.InferenceMS == 0 {
		u.InferenceMS = e2e
	}
	return u
}

// #endregion execute
