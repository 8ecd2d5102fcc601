package results

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
)

// #region export
// Metadata heads an export file.
type Metadata struct {
	TotalExperiments int       `json:"total_experiments"`
	Errors           int       `json:"errors"`
	ExportTimestamp  time.Time `json:"export_timestamp"`
}

// Export is the benchmark results file layout.
type Export struct {
	Metadata         Metadata                 `json:"metadata"`
	Aggregate        metrics.Group            `json:"aggregate_metrics"`
	ByModel          map[string]metrics.Group `json:"by_model"`
	ByFormat         map[string]metrics.Group `json:"by_format"`
	BySystemMessage  map[string]metrics.Group `json:"by_system_message"`
	ByPromptCategory map[string]metrics.Group `json:"by_prompt_category"`
	DetailedResults  []RunRecord              `json:"detailed_results"`
}

// NewExport aggregates records into the export layout.
func NewExport(recs []RunRecord, now time.Time) Export {
	samples := Samples(recs)
	ex := Export{
		Metadata:         Metadata{TotalExperiments: len(recs), ExportTimestamp: now.UTC()},
		ByModel:          byLabel(samples, metrics.KeyModel),
		ByFormat:         byLabel(samples, metrics.KeyFormat),
		BySystemMessage:  byLabel(samples, metrics.KeySystemMessage),
		ByPromptCategory: byLabel(samples, metrics.KeyCategory),
		DetailedResults:  recs,
	}
	if all := metrics.Aggregate(samples); len(all) == 1 {
		ex.Aggregate = all[0]
	}
	for _, r := range recs {
		if r.Status == StatusError {
			ex.Metadata.Errors++
		}
	}
	if ex.DetailedResults == nil {
		ex.DetailedResults = []RunRecord{}
	}
	return ex
}

func byLabel(samples []metrics.Sample, key metrics.Key) map[string]metrics.Group {
	out := map[string]metrics.Group{}
	for _, g := range metrics.Aggregate(samples, key) {
		out[g.Labels[key]] = g
	}
	return out
}

// ExportJSON writes the records in the export layout.
func ExportJSON(w io.Writer, recs []RunRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewExport(recs, time.Now())); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// LoadJSON reads the detailed results back from an export file.
func LoadJSON(r io.Reader) ([]RunRecord, error) {
	var ex struct {
		DetailedResults []RunRecord `json:"detailed_results"`
	}
	if err := json.NewDecoder(r).Decode(&ex); err != nil {
		return nil, fmt.Errorf("load json: %w", err)
	}
	return ex.DetailedResults, nil
}

// #endregion export

// #region checkpoint
// WriteCheckpoint exports the records completed so far to
// dir/checkpoint_<done>.json and returns the path.
func WriteCheckpoint(dir string, done int, recs []RunRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("checkpoint dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("checkpoint_%d.json", done))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	if err := ExportJSON(f, recs); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	return path, nil
}

// #endregion checkpoint
