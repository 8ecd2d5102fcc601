// Package parser turns raw model replies in one of five wire formats into the
// normalized command.Response, and encodes responses back into each format.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

// #region errors

// SyntaxError is a whole-response parse failure. No commands survive it.
type SyntaxError struct {
	Format command.Format
	Detail string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s syntax error: %s", e.Format, e.Detail)
}

func syntaxErr(f command.Format, format string, args ...any) *SyntaxError {
	return &SyntaxError{Format: f, Detail: fmt.Sprintf(format, args...)}
}

// #endregion errors

// #region dispatch

// Strategy parses and encodes one wire format.
type Strategy interface {
	Parse(raw string, s command.Schema) (command.Response, error)
	Encode(resp command.Response, s command.Schema) (string, error)
}

var strategies = map[command.Format]Strategy{
	command.FormatMarkdown: markdownStrategy{},
	command.FormatXML:      xmlStrategy{},
	command.FormatYAML:     yamlStrategy{},
	command.FormatJSON:     jsonStrategy{},
	command.FormatTOON:     toonStrategy{},
}

// For returns the strategy registered for f.
func For(f command.Format) (Strategy, error) {
	st, ok := strategies[f]
	if !ok {
		return nil, fmt.Errorf("parser: unsupported format %q", f)
	}
	return st, nil
}

// Parse extracts the response envelope and commands from raw. A failure that
// invalidates the whole response is returned as *SyntaxError; malformed rows of
// row-oriented formats are reported in Response.RowErrors instead.
//
// Commands come back in normalized order whatever the format: plain actions
// first, then sequence steps, each group in reply order.
func Parse(f command.Format, raw string, s command.Schema) (command.Response, error) {
	st, err := For(f)
	if err != nil {
		return command.Response{}, err
	}
	body := stripFences(raw)
	if body == "" {
		return command.Response{}, syntaxErr(f, "empty response")
	}
	resp, err := st.Parse(body, s)
	if err != nil {
		return resp, err
	}
	resp.Commands = Normalize(resp.Commands)
	return resp, nil
}

// Normalize returns cmds with plain actions before sequence steps. Document
// formats carry the two groups under separate keys, so this is the only order
// every format can express.
func Normalize(cmds []command.Command) []command.Command {
	if cmds == nil {
		return nil
	}
	actions, sequence := split(cmds)
	return append(actions, sequence...)
}

// Encode renders resp in format f. Parse(f, Encode(f, r)) yields r's envelope
// and commands.
func Encode(f command.Format, resp command.Response, s command.Schema) (string, error) {
	st, err := For(f)
	if err != nil {
		return "", err
	}
	return st.Encode(resp, s)
}

// #endregion dispatch

// #region helpers

// stripFences returns the body of the first fenced code block, or the trimmed
// input when there is none.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "```")
	if start < 0 {
		return raw
	}
	rest := raw[start+3:]
	// Drop the info string (```json).
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		return raw
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// trimProse drops the lines before the first line head accepts and after the
// last line tail accepts. Without a head line raw is returned unchanged.
func trimProse(raw string, head, tail func(line string) bool) string {
	lines := strings.Split(raw, "\n")
	start := -1
	for i, l := range lines {
		if head(l) {
			start = i
			break
		}
	}
	if start < 0 {
		return raw
	}
	end := start
	for i := len(lines) - 1; i > start; i-- {
		if tail(lines[i]) {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end+1], "\n")
}

func indented(line string) bool {
	return strings.TrimSpace(line) != "" && (line[0] == ' ' || line[0] == '\t')
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// parseValue reads an optional numeric cell. Empty and null cells yield nil.
func parseValue(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none", "-":
		return nil, nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return finite(v)
}

// finite rejects NaN and the infinities.
func finite(v float64) (*float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("not a finite number: %v", v)
	}
	return &v, nil
}

func parseStep(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("not a step number: %q", s)
	}
	return n, nil
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatStep(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// split partitions commands into plain actions and sequence steps.
func split(cmds []command.Command) (actions, sequence []command.Command) {
	for _, c := range cmds {
		if c.Step > 0 {
			sequence = append(sequence, c)
		} else {
			actions = append(actions, c)
		}
	}
	return actions, sequence
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// #endregion helpers
