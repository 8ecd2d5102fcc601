package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
)

// #region text

const rule = 80

// textWriter keeps the first write error so the layout code stays linear.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) section(title string) {
	t.printf("\n%s\n%s\n%s\n", strings.Repeat("-", rule), title, strings.Repeat("-", rule))
}

// WriteText renders rep as the plain-text benchmark report.
func WriteText(w io.Writer, rep Report) error {
	t := &textWriter{w: w}
	t.printf("%s\nGREENHOUSE IoT ORCHESTRATION BENCHMARK REPORT\n%s\n", strings.Repeat("=", rule), strings.Repeat("=", rule))
	t.printf("Generated:        %s\n", rep.Generated.Format("2006-01-02 15:04:05 MST"))
	t.printf("Total runs:       %d\n", rep.Totals.Runs)
	t.printf("Failed runs:      %d\n", rep.Totals.Errors)

	t.section("AGGREGATE METRICS")
	m := rep.Overall.Metrics
	t.printf(" 1. PEP:                     %.4f\n", m[metrics.MetricPEP].Mean)
	t.printf(" 2. Correctness:             %s\n", pct(m[metrics.MetricCorrectness].Mean))
	t.printf(" 3. Success rate:            %s\n", pct(m[metrics.MetricSuccess].Mean))
	t.printf(" 4. End-to-end latency:      %.2f ms\n", m[metrics.MetricEndToEndLatency].Mean)
	t.printf(" 5. Inference latency:       %.2f ms\n", m[metrics.MetricInferenceLatency].Mean)
	t.printf(" 6. Tokens:                  %d in / %d out (mean %.0f / %.0f)\n",
		rep.Totals.InputTokens, rep.Totals.OutputTokens, m[metrics.MetricInputTokens].Mean, m[metrics.MetricOutputTokens].Mean)
	t.printf(" 7. Constraint violations:   %s\n", pct(m[metrics.MetricViolationRate].Mean))
	t.printf(" 8. Syntax errors:           %s\n", pct(m[metrics.MetricSyntaxErrorRate].Mean))
	t.printf(" 9. Cost per task:           $%.6f\n", m[metrics.MetricCostPerTask].Mean)
	t.printf("10. PVO:                     %.4f\n", m[metrics.MetricPVO].Mean)
	t.printf("\nTotal cost: $%.4f\n", rep.Totals.Cost)

	t.section("MODEL RANKING (by correctness)")
	for i, e := range rep.Models {
		t.printf("\n%d. %s (%s)\n", i+1, e.Name, e.Label)
		t.printf("   Parameters:   %s\n", params(e.Params))
		t.printf("   PEP:          %.4f\n", e.Mean(metrics.MetricPEP))
		t.printf("   Correctness:  %s  [%s]\n", pct(e.Mean(metrics.MetricCorrectness)), interval(e.Group.Metrics[metrics.MetricCorrectness]))
		t.printf("   Success:      %s\n", pct(e.Mean(metrics.MetricSuccess)))
		t.printf("   Latency:      %.2f ms\n", e.Mean(metrics.MetricInferenceLatency))
		t.printf("   Violations:   %s\n", pct(e.Mean(metrics.MetricViolationRate)))
		t.printf("   Syntax:       %s\n", pct(e.Mean(metrics.MetricSyntaxErrorRate)))
		t.printf("   Total cost:   $%.4f\n", e.Group.Metrics[metrics.MetricCostPerTask].Sum)
		t.printf("   PVO:          %.4f\n", e.Mean(metrics.MetricPVO))
	}

	t.section("FORMAT RANKING")
	for i, e := range rep.Formats {
		t.printf("\n%d. %s\n", i+1, strings.ToUpper(e.Label))
		t.printf("   Correctness:  %s\n", pct(e.Mean(metrics.MetricCorrectness)))
		t.printf("   Success:      %s\n", pct(e.Mean(metrics.MetricSuccess)))
		t.printf("   Syntax:       %s\n", pct(e.Mean(metrics.MetricSyntaxErrorRate)))
	}

	t.section("SYSTEM MESSAGE RANKING")
	for i, e := range rep.SystemMessages {
		t.printf("\n%d. %s\n", i+1, e.Label)
		t.printf("   Correctness:  %s\n", pct(e.Mean(metrics.MetricCorrectness)))
		t.printf("   Success:      %s\n", pct(e.Mean(metrics.MetricSuccess)))
		t.printf("   Violations:   %s\n", pct(e.Mean(metrics.MetricViolationRate)))
	}

	t.section("PROMPT CATEGORIES")
	for _, e := range rep.Categories {
		t.printf("\n%s:\n", strings.ToUpper(e.Label))
		t.printf("   Runs:         %d\n", e.Group.Count)
		t.printf("   Correctness:  %s\n", pct(e.Mean(metrics.MetricCorrectness)))
		t.printf("   Success:      %s\n", pct(e.Mean(metrics.MetricSuccess)))
		if st, ok := e.Group.Metrics[metrics.MetricDetection]; ok {
			t.printf("   Detection:    %s\n", pct(st.Mean))
		}
	}

	t.section(fmt.Sprintf("TOP %d COMBINATIONS", len(rep.Combinations)))
	for i, e := range rep.Combinations {
		l := e.Group.Labels
		t.printf("\n%d. %s + %s + %s\n", i+1, e.Name, l[metrics.KeySystemMessage], strings.ToUpper(l[metrics.KeyFormat]))
		t.printf("   Correctness:  %s\n", pct(e.Mean(metrics.MetricCorrectness)))
		t.printf("   PEP:          %.4f\n", e.Mean(metrics.MetricPEP))
		t.printf("   Success:      %s\n", pct(e.Mean(metrics.MetricSuccess)))
	}

	t.section("PARAMETER EFFICIENCY (PEP)")
	t.printf("\nPEP = correctness / log10(parameters). Higher is better.\n\n")
	for i, e := range rep.Efficiency {
		t.printf("  %d. %s: PEP=%.4f (params=%s)\n", i+1, e.Name, e.Mean(metrics.MetricPEP), params(e.Params))
	}

	t.section("SPREAD BETWEEN MODELS (95% CI over model means)")
	for _, name := range SpreadMetrics {
		st := rep.Spread[name]
		t.printf("  %-24s mean %-12.6g sd %-12.6g [%s]\n", name, st.Mean, st.StdDev, interval(st))
	}

	t.printf("\n%s\nEND OF REPORT\n%s\n", strings.Repeat("=", rule), strings.Repeat("=", rule))
	return t.err
}

func pct(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }

func interval(st metrics.Stat) string {
	return fmt.Sprintf("%.4g, %.4g", st.CILow, st.CIHigh)
}

// params prints a parameter count in billions.
func params(p float64) string {
	if p <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%gB", p/1e9)
}

// #endregion text
