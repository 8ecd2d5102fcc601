package validate

import (
	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

// #region verdict

// Kind classifies a command or a whole response.
type Kind string

const (
	KindValid               Kind = "valid"
	KindConstraintViolation Kind = "constraint_violation"
	KindHallucinated        Kind = "hallucinated"
	KindSyntaxError         Kind = "syntax_error"
)

// Reasons attached to non-valid verdicts.
const (
	ReasonUnknownGreenhouse = "unknown greenhouse"
	ReasonUnknownDevice     = "unknown device"
	ReasonUnknownAction     = "unknown action"
	ReasonMissingSetpoint   = "missing setpoint"
	ReasonDeviceRange       = "out of device range"
	ReasonComfortRange      = "out of comfort range"
)

// Verdict is the outcome for one command. Before and After hold the parameter
// value the command starts from and would produce; both are zero for
// hallucinated commands.
type Verdict struct {
	Kind   Kind    `json:"kind"`
	Reason string  `json:"reason,omitempty"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// Valid reports whether the verdict accepts the command.
func (v Verdict) Valid() bool { return v.Kind == KindValid }

// SyntaxVerdict records a whole-response parse failure.
func SyntaxVerdict(detail string) Verdict {
	return Verdict{Kind: KindSyntaxError, Reason: detail}
}

// #endregion verdict

// #region result

// Result pairs a command with its verdict.
type Result struct {
	Command   command.Command   `json:"command"`
	Parameter catalog.Parameter `json:"parameter,omitempty"`
	Verdict   Verdict           `json:"verdict"`
}

// Counts tallies verdict kinds over a result list.
type Counts struct {
	Issued       int `json:"issued"`
	Valid        int `json:"valid"`
	Violations   int `json:"violations"`
	Hallucinated int `json:"hallucinated"`
}

// Tally counts verdict kinds.
func Tally(results []Result) Counts {
	c := Counts{Issued: len(results)}
	for _, r := range results {
		switch r.Verdict.Kind {
		case KindValid:
			c.Valid++
		case KindConstraintViolation:
			c.Violations++
		case KindHallucinated:
			c.Hallucinated++
		}
	}
	return c
}

// #endregion result

// #region config

// Config tunes the physical checks.
type Config struct {
	// TowardComfort accepts a result outside comfort when it is strictly
	// closer to the interval than the starting value.
	TowardComfort bool
	// Sequential lets later commands see the projected effect of earlier
	// valid commands on the same unit.
	Sequential bool
}

// DefaultConfig enables both relaxations.
func DefaultConfig() Config {
	return Config{TowardComfort: true, Sequential: true}
}

// #endregion config
