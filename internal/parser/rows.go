package parser

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

// table maps header names to column positions for row-oriented formats.
type table struct {
	format     command.Format
	cols       map[string]int
	width      int
	defaultGH  string
	sequential bool
}

// newTable checks the header for required columns. A missing column is a
// whole-response failure.
func newTable(f command.Format, header []string, s command.Schema, defaultGH string) (*table, error) {
	t := &table{format: f, cols: make(map[string]int, len(header)), width: len(header), defaultGH: defaultGH}
	for i, h := range header {
		name := strings.ToLower(strings.Trim(strings.TrimSpace(h), "`*"))
		if name == "" {
			return nil, syntaxErr(f, "empty column name at position %d", i+1)
		}
		t.cols[name] = i
	}
	required := s.Required()
	if defaultGH == "" {
		required = append([]string{s.Greenhouse}, required...)
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, syntaxErr(f, "missing required column %q", col)
		}
	}
	return t, nil
}

func (t *table) cell(cells []string, name string) string {
	i, ok := t.cols[name]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

// row converts one data row; n is its 1-based position used for RowError and
// the implicit sequence step.
func (t *table) row(n int, cells []string, raw string, s command.Schema) (command.Command, error) {
	var cmd command.Command
	if len(cells) != t.width {
		return cmd, fmt.Errorf("%d cells, header has %d", len(cells), t.width)
	}
	cmd.RawText = raw
	cmd.Greenhouse = t.cell(cells, s.Greenhouse)
	if cmd.Greenhouse == "" {
		cmd.Greenhouse = t.defaultGH
	}
	cmd.Device = t.cell(cells, s.Device)
	cmd.Action = t.cell(cells, s.Action)
	switch {
	case cmd.Greenhouse == "":
		return cmd, fmt.Errorf("empty %s", s.Greenhouse)
	case cmd.Device == "":
		return cmd, fmt.Errorf("empty %s", s.Device)
	case cmd.Action == "":
		return cmd, fmt.Errorf("empty %s", s.Action)
	}
	v, err := parseValue(t.cell(cells, s.Value))
	if err != nil {
		return cmd, err
	}
	cmd.Value = v
	step, err := parseStep(t.cell(cells, s.Step))
	if err != nil {
		return cmd, err
	}
	cmd.Step = step
	if t.sequential && cmd.Step == 0 {
		cmd.Step = n
	}
	return cmd, nil
}

// collect appends a parsed row or its error to resp.
func (t *table) collect(resp *command.Response, n int, cells []string, raw string, s command.Schema) {
	resp.Rows++
	cmd, err := t.row(n, cells, raw, s)
	if err != nil {
		resp.RowErrors = append(resp.RowErrors, command.RowError{Row: resp.Rows, Detail: err.Error()})
		return
	}
	resp.Commands = append(resp.Commands, cmd)
}

// envelope applies a "key: value" line to the response header. It returns the
// recognized schema key, or "" for lines that are not part of the envelope.
func envelope(resp *command.Response, key, val string, s command.Schema) (string, error) {
	key = normalizeKey(key)
	val = strings.TrimSpace(val)
	switch key {
	case s.Error:
		b, err := parseBool(val)
		if err != nil {
			return key, err
		}
		resp.Error = b
	case s.Message:
		resp.Message = val
	case s.Reason:
		resp.Reason = val
	case s.Greenhouse:
		resp.Greenhouse = val
	default:
		return "", nil
	}
	return key, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(key), "`*_-# "))
}

// topLevelKey reports whether line starts an unindented "key:" entry for one
// of the response's own keys.
func topLevelKey(line string, s command.Schema) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	key, _, ok := strings.Cut(line, ":")
	if !ok {
		return false
	}
	switch normalizeKey(key) {
	case s.Error, s.Message, s.Reason, s.Greenhouse, s.Actions, s.Sequence:
		return true
	}
	return false
}
