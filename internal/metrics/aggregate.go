package metrics

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// #region keys

// Key names a dimension runs can be grouped by.
type Key string

const (
	KeyModel         Key = "model"
	KeyFormat        Key = "format"
	KeySystemMessage Key = "system_message"
	KeyCategory      Key = "prompt_category"
	KeyPrompt        Key = "prompt"
)

// Metric names reported per group.
const (
	MetricCorrectness       = "correctness"
	MetricSuccess           = "success"
	MetricViolationRate     = "constraint_violation_rate"
	MetricHallucinationRate = "hallucination_rate"
	MetricSyntaxErrorRate   = "syntax_error_rate"
	MetricCostPerTask       = "cost_per_task"
	MetricPEP               = "pep"
	MetricPVO               = "pvo"
	MetricInferenceLatency  = "inference_latency_ms"
	MetricEndToEndLatency   = "end_to_end_latency_ms"
	MetricInputTokens       = "input_tokens"
	MetricOutputTokens      = "output_tokens"
	MetricDetection         = "hallucination_detection_rate"
)

// MetricNames lists per-run metrics in report order.
var MetricNames = []string{
	MetricPEP, MetricCorrectness, MetricSuccess, MetricInferenceLatency, MetricEndToEndLatency,
	MetricInputTokens, MetricOutputTokens, MetricViolationRate, MetricHallucinationRate,
	MetricSyntaxErrorRate, MetricCostPerTask, MetricPVO,
}

// #endregion keys

// #region sample

// Sample is one scored run as seen by aggregation.
type Sample struct {
	Labels  map[Key]string
	Refusal bool
	Scores  Scores
	Usage   Usage
}

func (s Sample) value(metric string) float64 {
	switch metric {
	case MetricCorrectness:
		return s.Scores.Correctness
	case MetricSuccess:
		return s.Scores.Success
	case MetricViolationRate:
		return s.Scores.ViolationRate
	case MetricHallucinationRate:
		return s.Scores.HallucinationRate
	case MetricSyntaxErrorRate:
		return s.Scores.SyntaxErrorRate
	case MetricCostPerTask:
		return s.Scores.CostPerTask
	case MetricPEP:
		return s.Scores.PEP
	case MetricPVO:
		return s.Scores.PVO
	case MetricInferenceLatency:
		return s.Usage.InferenceMS
	case MetricEndToEndLatency:
		return s.Usage.EndToEndMS
	case MetricInputTokens:
		return float64(s.Usage.InputTokens)
	case MetricOutputTokens:
		return float64(s.Usage.OutputTokens)
	}
	return math.NaN()
}

// detected counts a refusal run as caught when it parsed cleanly and scored
// above one half.
func (s Sample) detected() bool {
	return s.Scores.SyntaxErrorRate == 0 && s.Scores.Correctness > 0.5
}

// #endregion sample

// #region stats

// Stat summarizes one metric over a group.
type Stat struct {
	N        int     `json:"n"`
	Sum      float64 `json:"sum"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
	StdErr   float64 `json:"std_err"`
	CILow    float64 `json:"ci95_low"`
	CIHigh   float64 `json:"ci95_high"`
}

// Describe computes sample statistics with a two-sided 95% Student-t
// interval. Fewer than two values give a zero-width interval.
func Describe(values []float64) Stat {
	st := Stat{N: len(values)}
	if st.N == 0 {
		return st
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	for _, v := range sorted {
		st.Sum += v
	}
	st.Mean = stat.Mean(sorted, nil)
	if mid := st.N / 2; st.N%2 == 1 {
		st.Median = sorted[mid]
	} else {
		st.Median = (sorted[mid-1] + sorted[mid]) / 2
	}
	st.CILow, st.CIHigh = st.Mean, st.Mean
	if st.N < 2 {
		return st
	}
	st.Variance = stat.Variance(sorted, nil)
	st.StdDev = math.Sqrt(st.Variance)
	st.StdErr = st.StdDev / math.Sqrt(float64(st.N))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(st.N - 1)}.Quantile(0.975)
	st.CILow = st.Mean - t*st.StdErr
	st.CIHigh = st.Mean + t*st.StdErr
	return st
}

// #endregion stats

// #region aggregate

// Group is the aggregate of the samples sharing the same labels.
type Group struct {
	Labels  map[Key]string  `json:"labels"`
	Count   int             `json:"count"`
	Metrics map[string]Stat `json:"metrics"`
	keys    []Key
}

// Label returns the label values joined in grouping order, e.g.
// "gemma3_12b/json" for Aggregate(samples, KeyModel, KeyFormat).
func (g Group) Label() string {
	if len(g.keys) == 0 {
		return labelOf(g.Labels, sortedKeys(g.Labels))
	}
	return labelOf(g.Labels, g.keys)
}

// Aggregate groups samples by keys and summarizes every metric. No keys
// yields a single group over all samples. Groups are sorted by their label values.
func Aggregate(samples []Sample, keys ...Key) []Group {
	buckets := map[string][]Sample{}
	var order []string
	for _, s := range samples {
		k := bucketOf(s.Labels, keys)
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], s)
	}
	sort.Strings(order)

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		members := buckets[k]
		g := Group{Labels: map[Key]string{}, Count: len(members), Metrics: map[string]Stat{}, keys: keys}
		for _, key := range keys {
			g.Labels[key] = members[0].Labels[key]
		}
		for _, m := range MetricNames {
			vals := make([]float64, len(members))
			for i, s := range members {
				vals[i] = s.value(m)
			}
			g.Metrics[m] = Describe(vals)
		}
		var detect []float64
		for _, s := range members {
			if !s.Refusal {
				continue
			}
			if s.detected() {
				detect = append(detect, 1)
			} else {
				detect = append(detect, 0)
			}
		}
		if len(detect) > 0 {
			g.Metrics[MetricDetection] = Describe(detect)
		}
		groups = append(groups, g)
	}
	return groups
}

// Between summarizes one metric across group means, e.g. the spread between
// models rather than within them.
func Between(groups []Group, metric string) Stat {
	means := make([]float64, 0, len(groups))
	for _, g := range groups {
		if st, ok := g.Metrics[metric]; ok {
			means = append(means, st.Mean)
		}
	}
	return Describe(means)
}

// bucketOf joins label values with a separator ids never contain, so
// ("a/b", "c") and ("a", "b/c") stay apart.
func bucketOf(labels map[Key]string, keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = labels[k]
	}
	return strings.Join(parts, "\x00")
}

func labelOf(labels map[Key]string, keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = labels[k]
	}
	return strings.Join(parts, "/")
}

func sortedKeys(m map[Key]string) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// #endregion aggregate
