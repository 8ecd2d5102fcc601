package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
)

// #region latex

var texEscaper = strings.NewReplacer(`\`, `\textbackslash{}`, "_", `\_`, "%", `\%`, "&", `\&`, "#", `\#`, "$", `\$`)

func tex(s string) string { return texEscaper.Replace(s) }

func texPct(v float64) string { return fmt.Sprintf(`%.1f\%%`, v*100) }

type table struct {
	comment string
	caption string
	label   string
	columns string
	header  []string
	rows    [][]string
}

func (t table) write(w *textWriter) {
	w.printf("%% %s\n", t.comment)
	w.printf("\\begin{table}[htbp]\n\\centering\n\\caption{%s}\n\\begin{tabular}{%s}\n\\hline\n", t.caption, t.columns)
	head := make([]string, len(t.header))
	for i, h := range t.header {
		head[i] = `\textbf{` + h + `}`
	}
	w.printf("%s \\\\\n\\hline\n", strings.Join(head, " & "))
	for _, r := range t.rows {
		w.printf("%s \\\\\n", strings.Join(r, " & "))
	}
	w.printf("\\hline\n\\end{tabular}\n\\label{%s}\n\\end{table}\n\n", t.label)
}

// WriteLaTeX renders the model, format, prompt category and spread tables.
func WriteLaTeX(w io.Writer, rep Report) error {
	out := &textWriter{w: w}

	models := table{
		comment: "Table 1: model comparison",
		caption: "Performance of LLMs as IoT greenhouse orchestrators",
		label:   "tab:model-comparison",
		columns: "lrrrrrr",
		header:  []string{"Model", "Params", "PEP", "Correctness", "Success", "Violation", "Syntax"},
	}
	for _, e := range rep.Models {
		models.rows = append(models.rows, []string{
			tex(e.Label),
			fmt.Sprintf("%.0fB", e.Params/1e9),
			fmt.Sprintf("%.3f", e.Mean(metrics.MetricPEP)),
			texPct(e.Mean(metrics.MetricCorrectness)),
			texPct(e.Mean(metrics.MetricSuccess)),
			texPct(e.Mean(metrics.MetricViolationRate)),
			texPct(e.Mean(metrics.MetricSyntaxErrorRate)),
		})
	}
	models.write(out)

	formats := table{
		comment: "Table 2: I/O format comparison",
		caption: "Performance by input/output format",
		label:   "tab:format-comparison",
		columns: "lccc",
		header:  []string{"Format", "Correctness", "Success", "Syntax error"},
	}
	for _, e := range rep.Formats {
		formats.rows = append(formats.rows, []string{
			strings.ToUpper(e.Label),
			texPct(e.Mean(metrics.MetricCorrectness)),
			texPct(e.Mean(metrics.MetricSuccess)),
			texPct(e.Mean(metrics.MetricSyntaxErrorRate)),
		})
	}
	formats.write(out)

	categories := table{
		comment: "Table 3: prompt categories",
		caption: "Performance by prompt category",
		label:   "tab:category-comparison",
		columns: "lccc",
		header:  []string{"Category", "Correctness", "Success", "Note"},
	}
	for _, e := range rep.Categories {
		note := ""
		if st, ok := e.Group.Metrics[metrics.MetricDetection]; ok {
			note = "Detection: " + texPct(st.Mean)
		}
		categories.rows = append(categories.rows, []string{
			tex(capitalize(e.Label)),
			texPct(e.Mean(metrics.MetricCorrectness)),
			texPct(e.Mean(metrics.MetricSuccess)),
			note,
		})
	}
	categories.write(out)

	spread := table{
		comment: "Table 4: spread between models",
		caption: "Mean, standard deviation and 95\\% confidence interval across models",
		label:   "tab:model-spread",
		columns: "lrrr",
		header:  []string{"Metric", "Mean", "SD", "95\\% CI"},
	}
	for _, name := range SpreadMetrics {
		st := rep.Spread[name]
		spread.rows = append(spread.rows, []string{
			tex(name),
			fmt.Sprintf("%.4g", st.Mean),
			fmt.Sprintf("%.4g", st.StdDev),
			fmt.Sprintf("[%.4g, %.4g]", st.CILow, st.CIHigh),
		})
	}
	spread.write(out)
	return out.err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// #endregion latex
