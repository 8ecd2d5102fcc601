package results

import (
	"time"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/metrics"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

// #region status
// Status is the outcome of the invocation step of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// #endregion status

// #region run-record
// RunRecord is everything measured for one matrix cell repetition. Every run
// produces one, including runs whose inference failed.
type RunRecord struct {
	ID            string            `json:"run_id"`
	BatchID       string            `json:"batch_id"`
	Model         string            `json:"model_key"`
	ModelName     string            `json:"model_name"`
	ModelID       string            `json:"model_id"`
	ModelInfo     metrics.Model     `json:"model"`
	SystemMessage string            `json:"system_message_id"`
	Prompt        string            `json:"prompt_id"`
	Category      string            `json:"prompt_category"`
	Refusal       bool              `json:"expect_refusal"`
	Format        command.Format    `json:"input_format"`
	Repetition    int               `json:"run_number"`
	Status        Status            `json:"status"`
	Error         string            `json:"error_details,omitempty"`
	Raw           string            `json:"actual_response,omitempty"`
	Parsed        *command.Response `json:"parsed_response,omitempty"`
	Verdicts      []validate.Result `json:"verdicts,omitempty"`
	Usage         metrics.Usage     `json:"usage"`
	Scores        metrics.Scores    `json:"scores"`
	Attempts      int               `json:"attempts"`
	StartedAt     time.Time         `json:"started_at"`
}

// Sample projects the record for aggregation.
func (r RunRecord) Sample() metrics.Sample {
	return metrics.Sample{
		Labels: map[metrics.Key]string{
			metrics.KeyModel:         r.Model,
			metrics.KeyFormat:        string(r.Format),
			metrics.KeySystemMessage: r.SystemMessage,
			metrics.KeyCategory:      r.Category,
			metrics.KeyPrompt:        r.Prompt,
		},
		Refusal: r.Refusal,
		Scores:  r.Scores,
		Usage:   r.Usage,
	}
}

// Samples projects a record list.
func Samples(recs []RunRecord) []metrics.Sample {
	out := make([]metrics.Sample, len(recs))
	for i, r := range recs {
		out[i] = r.Sample()
	}
	return out
}

// #endregion run-record

// #region filter
// Filter narrows ListRuns. Empty fields match everything.
type Filter struct {
	BatchID       string
	Model         string
	Format        string
	SystemMessage string
	Prompt        string
	Status        Status
	Limit         int
}

// Batch summarizes one benchmark invocation.
type Batch struct {
	ID        string    `json:"batch_id"`
	Runs      int       `json:"runs"`
	Errors    int       `json:"errors"`
	StartedAt time.Time `json:"started_at"`
}

// #endregion filter
