package results

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeRecord(id, model string, f command.Format, correctness float64, at time.Time) RunRecord {
	return RunRecord{
		ID:            id,
		BatchID:       "batch-1",
		Model:         model,
		ModelInfo:     metrics.Model{Params: 12e9},
		SystemMessage: "SM1",
		Prompt:        "P01",
		Category:      "simple",
		Format:        f,
		Repetition:    1,
		Status:        StatusSuccess,
		Raw:           `{"error": false}`,
		Verdicts: []validate.Result{
			{Command: command.Command{Greenhouse: "GH005", Device: "temperature_control", Action: "cool"},
				Parameter: "temperature", Verdict: validate.Verdict{Kind: validate.KindValid, Before: 32, After: 30}},
			{Command: command.Command{Greenhouse: "GH045", Device: "irrigation", Action: "irrigate"},
				Verdict: validate.Verdict{Kind: validate.KindHallucinated, Reason: validate.ReasonUnknownGreenhouse}},
		},
		Scores:    metrics.Scores{Correctness: correctness, Success: 1},
		Usage:     metrics.Usage{InputTokens: 100, OutputTokens: 20, InferenceMS: 400, EndToEndMS: 450},
		StartedAt: at,
	}
}

// #region store-tests
func TestSaveAndGetRun(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := makeRecord("r1", "gemma3_12b", command.FormatJSON, 0.5, at)
	if err := s.SaveRun(ctx, rec); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Model != "gemma3_12b" || got.Scores.Correctness != 0.5 || len(got.Verdicts) != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.StartedAt.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got.StartedAt)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Duplicate ids are rejected and leave no extra verdict rows.
	if err := s.SaveRun(ctx, rec); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	entries, err := s.Verdicts(ctx, "r1")
	if err != nil {
		t.Fatalf("Verdicts: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 verdict rows, got %d", len(entries))
	}
	if entries[0].Kind != "valid" || entries[1].Reason != validate.ReasonUnknownGreenhouse {
		t.Fatalf("unexpected verdict log: %+v", entries)
	}
}

func TestListRunsFilters(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, f := range command.Formats {
		model := "gemma3_12b"
		if i%2 == 1 {
			model = "qwen3_32b"
		}
		rec := makeRecord(fmt.Sprintf("r%d", i), model, f, 1, base.Add(time.Duration(i)*time.Millisecond))
		if err := s.SaveRun(ctx, rec); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	all, err := s.ListRuns(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 5 || all[0].ID != "r0" || all[4].ID != "r4" {
		t.Fatalf("expected r0..r4 in start order, got %d records", len(all))
	}

	qwen, _ := s.ListRuns(ctx, Filter{Model: "qwen3_32b"})
	if len(qwen) != 2 {
		t.Fatalf("expected 2 qwen runs, got %d", len(qwen))
	}

	toon, _ := s.ListRuns(ctx, Filter{Format: "toon", Model: "gemma3_12b"})
	if len(toon) != 1 || toon[0].Format != command.FormatTOON {
		t.Fatalf("unexpected toon runs: %+v", toon)
	}

	limited, _ := s.ListRuns(ctx, Filter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}

	batches, err := s.ListBatches(ctx)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 1 || batches[0].Runs != 5 || batches[0].Errors != 0 {
		t.Fatalf("unexpected batches: %+v", batches)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDollarParams(t *testing.T) {
	got := dollarParams("SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?")
	if got != "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3" {
		t.Fatalf("unexpected rebind: %s", got)
	}
}

// #endregion store-tests

// #region export-tests
func TestExportLayout(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []RunRecord{
		makeRecord("a", "gemma3_12b", command.FormatJSON, 1, at),
		makeRecord("b", "gemma3_12b", command.FormatXML, 0, at),
		makeRecord("c", "qwen3_32b", command.FormatJSON, 0.5, at),
	}
	recs[2].Status = StatusError

	ex := NewExport(recs, at)
	if ex.Metadata.TotalExperiments != 3 || ex.Metadata.Errors != 1 {
		t.Fatalf("unexpected metadata: %+v", ex.Metadata)
	}
	if ex.Aggregate.Count != 3 || ex.Aggregate.Metrics[metrics.MetricCorrectness].Mean != 0.5 {
		t.Fatalf("unexpected aggregate: %+v", ex.Aggregate)
	}
	if g := ex.ByModel["gemma3_12b"]; g.Count != 2 || g.Metrics[metrics.MetricCorrectness].Mean != 0.5 {
		t.Fatalf("unexpected by_model: %+v", g)
	}
	if len(ex.ByFormat) != 2 || len(ex.BySystemMessage) != 1 || len(ex.ByPromptCategory) != 1 {
		t.Fatalf("unexpected grouping sizes")
	}

	var buf bytes.Buffer
	if err := ExportJSON(&buf, recs); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	for _, key := range []string{"metadata", "aggregate_metrics", "by_model", "by_format", "by_system_message", "by_prompt_category", "detailed_results"} {
		if !bytes.Contains(buf.Bytes(), []byte(`"`+key+`"`)) {
			t.Fatalf("export missing %s", key)
		}
	}

	back, err := LoadJSON(&buf)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(back) != 3 || back[2].Status != StatusError || back[0].Verdicts[0].Verdict.After != 30 {
		t.Fatalf("unexpected reload: %+v", back)
	}
}

func TestWriteCheckpoint(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteCheckpoint(dir, 100, []RunRecord{makeRecord("a", "m", command.FormatYAML, 1, time.Now())})
	if err != nil {
		t.Fatalf("WriteCheckpoint: %v", err)
	}
	if filepath.Base(path) != "checkpoint_100.json" {
		t.Fatalf("unexpected path %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	recs, err := LoadJSON(f)
	if err != nil || len(recs) != 1 {
		t.Fatalf("reload checkpoint: %v (%d records)", err, len(recs))
	}
}

// #endregion export-tests

// #region publish-tests
type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { w.closed = true; return nil }

func TestPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, nil)
	rec := makeRecord("run-7", "qwen3_32b", command.FormatTOON, 1, time.Now())

	if err := p.Publish(context.Background(), rec); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "run-7" {
		t.Fatalf("unexpected messages: %+v", w.msgs)
	}
	if !bytes.Contains(w.msgs[0].Value, []byte(`"input_format":"toon"`)) {
		t.Fatalf("unexpected payload: %s", w.msgs[0].Value)
	}

	w.err = errors.New("broker down")
	if err := p.Publish(context.Background(), rec); err == nil {
		t.Fatal("expected error")
	}
	p.Close()
	if !w.closed {
		t.Fatal("expected writer closed")
	}
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "greenbench.runs")
	if w.Topic != "greenbench.runs" {
		t.Fatalf("unexpected topic %s", w.Topic)
	}
	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("expected hash balancer")
	}
}

// #endregion publish-tests
