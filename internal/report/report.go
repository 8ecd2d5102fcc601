// Package report turns stored run records into the human-readable benchmark
// report and the LaTeX tables used in write-ups.
package report

import (
	"sort"
	"time"

	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
)

// #region types

// Entry is one ranked group.
type Entry struct {
	Label  string        `json:"label"`
	Name   string        `json:"name,omitempty"`
	Params float64       `json:"params,omitempty"`
	Group  metrics.Group `json:"group"`
}

// Mean returns the group mean of metric, zero when absent.
func (e Entry) Mean(metric string) float64 {
	return e.Group.Metrics[metric].Mean
}

// Totals are summed over every run.
type Totals struct {
	Runs         int     `json:"runs"`
	Errors       int     `json:"errors"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Report is the analysed form of one benchmark.
type Report struct {
	Generated      time.Time               `json:"generated"`
	Totals         Totals                  `json:"totals"`
	Overall        metrics.Group           `json:"overall"`
	Models         []Entry                 `json:"models"`
	Formats        []Entry                 `json:"formats"`
	SystemMessages []Entry                 `json:"system_messages"`
	Categories     []Entry                 `json:"prompt_categories"`
	Combinations   []Entry                 `json:"best_combinations"`
	Efficiency     []Entry                 `json:"pep_ranking"`
	Spread         map[string]metrics.Stat `json:"between_models"`
}

// SpreadMetrics are summarized across model means.
var SpreadMetrics = []string{
	metrics.MetricPEP, metrics.MetricCorrectness, metrics.MetricSuccess, metrics.MetricInferenceLatency,
	metrics.MetricCostPerTask, metrics.MetricViolationRate, metrics.MetricSyntaxErrorRate,
}

// #endregion types

// #region build

// Build analyses recs. top bounds the combination ranking.
func Build(recs []results.RunRecord, top int, now time.Time) Report {
	samples := results.Samples(recs)
	rep := Report{Generated: now.UTC(), Spread: map[string]metrics.Stat{}}

	names := map[string]results.RunRecord{}
	for _, r := range recs {
		rep.Totals.Runs++
		if r.Status == results.StatusError {
			rep.Totals.Errors++
		}
		rep.Totals.InputTokens += r.Usage.InputTokens
		rep.Totals.OutputTokens += r.Usage.OutputTokens
		rep.Totals.Cost += r.Scores.CostPerTask
		if _, ok := names[r.Model]; !ok {
			names[r.Model] = r
		}
	}
	if all := metrics.Aggregate(samples); len(all) == 1 {
		rep.Overall = all[0]
	}

	models := metrics.Aggregate(samples, metrics.KeyModel)
	for _, g := range models {
		key := g.Labels[metrics.KeyModel]
		rep.Models = append(rep.Models, Entry{
			Label:  key,
			Name:   names[key].ModelName,
			Params: names[key].ModelInfo.Params,
			Group:  g,
		})
	}
	rep.Efficiency = append([]Entry(nil), rep.Models...)
	rank(rep.Models, metrics.MetricCorrectness)
	rank(rep.Efficiency, metrics.MetricPEP)

	rep.Formats = ranked(samples, metrics.MetricCorrectness, metrics.KeyFormat)
	rep.SystemMessages = ranked(samples, metrics.MetricCorrectness, metrics.KeySystemMessage)
	rep.Categories = ranked(samples, "", metrics.KeyCategory)

	rep.Combinations = ranked(samples, metrics.MetricCorrectness, metrics.KeyModel, metrics.KeySystemMessage, metrics.KeyFormat)
	for i := range rep.Combinations {
		rep.Combinations[i].Name = names[rep.Combinations[i].Group.Labels[metrics.KeyModel]].ModelName
	}
	if top > 0 && len(rep.Combinations) > top {
		rep.Combinations = rep.Combinations[:top]
	}

	for _, m := range SpreadMetrics {
		rep.Spread[m] = metrics.Between(models, m)
	}
	return rep
}

// ranked aggregates by keys and orders by metric; an empty metric keeps
// label order.
func ranked(samples []metrics.Sample, metric string, keys ...metrics.Key) []Entry {
	var out []Entry
	for _, g := range metrics.Aggregate(samples, keys...) {
		out = append(out, Entry{Label: g.Label(), Group: g})
	}
	if metric != "" {
		rank(out, metric)
	}
	return out
}

// rank sorts descending by metric mean, ties by label.
func rank(entries []Entry, metric string) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Mean(metric), entries[j].Mean(metric)
		if a != b {
			return a > b
		}
		return entries[i].Label < entries[j].Label
	})
}

// #endregion build
