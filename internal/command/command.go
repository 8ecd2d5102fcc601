// Package command defines the normalized, format-independent shape of a
// model's actuator instructions.
package command

import (
	"fmt"
	"strings"
)

// #region format

// Format tags the wire encoding a response is expected to use.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatXML      Format = "xml"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatTOON     Format = "toon"
)

// Formats lists every supported format in matrix order.
var Formats = []Format{FormatMarkdown, FormatXML, FormatYAML, FormatJSON, FormatTOON}

// ParseFormat resolves a format tag case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// #endregion format

// #region command

// Command is one normalized device instruction.
type Command struct {
	Greenhouse string   `json:"greenhouse_id"`
	Device     string   `json:"device"`
	Action     string   `json:"action"`
	Value      *float64 `json:"value,omitempty"`
	Step       int      `json:"step,omitempty"` // position in an action_sequence, 0 otherwise
	RawText    string   `json:"raw,omitempty"`
}

// Equal compares the semantic fields, ignoring RawText.
func (c Command) Equal(o Command) bool {
	if c.Greenhouse != o.Greenhouse || c.Device != o.Device || c.Action != o.Action || c.Step != o.Step {
		return false
	}
	if (c.Value == nil) != (o.Value == nil) {
		return false
	}
	return c.Value == nil || *c.Value == *o.Value
}

// String renders the command for logs.
func (c Command) String() string {
	if c.Value != nil {
		return fmt.Sprintf("%s/%s:%s=%g", c.Greenhouse, c.Device, c.Action, *c.Value)
	}
	return fmt.Sprintf("%s/%s:%s", c.Greenhouse, c.Device, c.Action)
}

// Float returns a pointer to v, for building commands with values.
func Float(v float64) *float64 { return &v }

// #endregion command

// #region response

// RowError records a single malformed row of a row-oriented format.
type RowError struct {
	Row    int    `json:"row"`
	Detail string `json:"detail"`
}

// Response is the parsed envelope of a model reply.
type Response struct {
	Error      bool       `json:"error"`
	Reason     string     `json:"reason,omitempty"`
	Message    string     `json:"message,omitempty"`
	Greenhouse string     `json:"greenhouse_id,omitempty"` // default target for commands without one
	Commands   []Command  `json:"commands"`
	Rows       int        `json:"rows"` // rows seen, including malformed ones
	RowErrors  []RowError `json:"row_errors,omitempty"`
}

// #endregion response
