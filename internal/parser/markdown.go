package parser

import (
	"strings"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

// markdownStrategy reads "key: value" envelope lines followed by a pipe table
// with one command per row.
type markdownStrategy struct{}

func (markdownStrategy) Parse(raw string, s command.Schema) (command.Response, error) {
	var (
		resp     command.Response
		tbl      *table
		sawTable bool
		sawError bool
	)
	lines := strings.Split(raw, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if strings.HasPrefix(line, "|") {
			if !sawTable {
				if i+1 >= len(lines) || !isSeparator(lines[i+1]) {
					return command.Response{}, syntaxErr(command.FormatMarkdown, "table header without separator row")
				}
				t, err := newTable(command.FormatMarkdown, splitRow(line), s, resp.Greenhouse)
				if err != nil {
					return command.Response{}, err
				}
				tbl, sawTable = t, true
				i++
				continue
			}
			if tbl != nil {
				tbl.collect(&resp, resp.Rows+1, splitRow(line), line, s)
			}
			continue
		}
		if line != "" {
			// Only the first table is read.
			tbl = nil
		}

		line = strings.TrimLeft(line, "-*> ")
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		matched, err := envelope(&resp, key, strings.Trim(strings.TrimSpace(val), "`*"), s)
		if err != nil {
			return command.Response{}, syntaxErr(command.FormatMarkdown, "%s: %v", matched, err)
		}
		if matched == s.Error {
			sawError = true
		}
	}
	if !sawTable && !sawError {
		return command.Response{}, syntaxErr(command.FormatMarkdown, "no command table and no %s line", s.Error)
	}
	return resp, nil
}

// splitRow splits a pipe-table row, honoring \| escapes.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}
	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparator(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") {
		return false
	}
	for _, cell := range splitRow(line) {
		c := strings.Trim(cell, ":")
		if c == "" || strings.Trim(c, "-") != "" {
			return false
		}
	}
	return true
}

func (markdownStrategy) Encode(resp command.Response, s command.Schema) (string, error) {
	var b strings.Builder
	b.WriteString(s.Error + ": ")
	if resp.Error {
		b.WriteString("true\n")
	} else {
		b.WriteString("false\n")
	}
	for _, kv := range [][2]string{{s.Message, resp.Message}, {s.Reason, resp.Reason}, {s.Greenhouse, resp.Greenhouse}} {
		if kv[1] != "" {
			b.WriteString(kv[0] + ": " + oneLine(kv[1]) + "\n")
		}
	}
	if len(resp.Commands) == 0 {
		return b.String(), nil
	}

	cols := []string{s.Greenhouse, s.Device, s.Action, s.Value}
	actions, sequence := split(resp.Commands)
	if len(sequence) > 0 {
		cols = append(cols, s.Step)
	}
	b.WriteString("\n")
	writeRow(&b, cols)
	sep := make([]string, len(cols))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep)
	for _, c := range append(actions, sequence...) {
		cells := []string{c.Greenhouse, c.Device, c.Action, formatValue(c.Value)}
		if len(sequence) > 0 {
			cells = append(cells, formatStep(c.Step))
		}
		writeRow(&b, cells)
	}
	return b.String(), nil
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" " + strings.ReplaceAll(c, "|", `\|`) + " |")
	}
	b.WriteString("\n")
}
