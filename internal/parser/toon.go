package parser

import (
	"encoding/csv"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

// toonStrategy reads the compact tabular notation:
//
//	error: false
//	message: Cooling GH005
//	actions[1]{greenhouse_id,actuator,action,value}:
//	  GH005,temperature_control,cool,
//
// Each array header declares its row count and field list; rows are indented
// comma-separated values with CSV quoting.
type toonStrategy struct{}

var toonHeader = regexp.MustCompile(`^([A-Za-z_][\w-]*)\[(\d+)\](?:\{([^}]*)\})?:\s*$`)

type toonBlock struct {
	name     string
	declared int
	seen     int
	tbl      *table // nil for blocks that carry no commands
}

func (toonStrategy) Parse(raw string, s command.Schema) (command.Response, error) {
	var (
		resp     command.Response
		cur      *toonBlock
		sawBlock bool
		sawError bool
	)
	closeBlock := func() error {
		if cur != nil && cur.seen != cur.declared {
			return syntaxErr(command.FormatTOON, "%s declares %d rows, found %d", cur.name, cur.declared, cur.seen)
		}
		cur = nil
		return nil
	}

	isHead := func(line string) bool {
		return topLevelKey(line, s) || (!indented(line) && toonHeader.MatchString(strings.TrimSpace(line)))
	}
	raw = trimProse(raw, isHead, func(line string) bool { return isHead(line) || indented(line) })

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indented := line[0] == ' ' || line[0] == '\t'
		trimmed := strings.TrimSpace(line)

		if indented && cur != nil {
			cur.seen++
			if cur.tbl == nil {
				continue
			}
			cells, err := csvCells(trimmed)
			if err != nil {
				resp.Rows++
				resp.RowErrors = append(resp.RowErrors, command.RowError{Row: resp.Rows, Detail: err.Error()})
				continue
			}
			cur.tbl.collect(&resp, cur.seen, cells, trimmed, s)
			continue
		}
		if err := closeBlock(); err != nil {
			return command.Response{}, err
		}

		if m := toonHeader.FindStringSubmatch(trimmed); m != nil {
			n, _ := strconv.Atoi(m[2])
			cur = &toonBlock{name: m[1], declared: n}
			if m[1] != s.Actions && m[1] != s.Sequence {
				continue
			}
			sawBlock = true
			if m[3] == "" {
				if n > 0 {
					return command.Response{}, syntaxErr(command.FormatTOON, "%s has rows but no field list", m[1])
				}
				continue
			}
			t, err := newTable(command.FormatTOON, strings.Split(m[3], ","), s, resp.Greenhouse)
			if err != nil {
				return command.Response{}, err
			}
			t.sequential = m[1] == s.Sequence
			cur.tbl = t
			continue
		}

		key, val, ok := strings.Cut(trimmed, ":")
		if !ok {
			return command.Response{}, syntaxErr(command.FormatTOON, "unexpected line %q", trimmed)
		}
		val = strings.TrimSpace(val)
		if strings.HasPrefix(val, `"`) {
			if uq, err := strconv.Unquote(val); err == nil {
				val = uq
			}
		}
		matched, err := envelope(&resp, key, val, s)
		if err != nil {
			return command.Response{}, syntaxErr(command.FormatTOON, "%s: %v", matched, err)
		}
		if matched == s.Error {
			sawError = true
		}
	}
	if err := closeBlock(); err != nil {
		return command.Response{}, err
	}
	if !sawBlock && !sawError {
		return command.Response{}, syntaxErr(command.FormatTOON, "no %s block and no %s field", s.Actions, s.Error)
	}
	return resp, nil
}

func csvCells(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	return r.Read()
}

func (toonStrategy) Encode(resp command.Response, s command.Schema) (string, error) {
	var b strings.Builder
	b.WriteString(s.Error + ": " + strconv.FormatBool(resp.Error) + "\n")
	for _, kv := range [][2]string{{s.Message, resp.Message}, {s.Reason, resp.Reason}, {s.Greenhouse, resp.Greenhouse}} {
		if kv[1] != "" {
			b.WriteString(kv[0] + ": " + toonString(kv[1]) + "\n")
		}
	}

	actions, sequence := split(resp.Commands)
	blocks := []struct {
		name   string
		fields []string
		cmds   []command.Command
	}{
		{s.Actions, []string{s.Greenhouse, s.Device, s.Action, s.Value}, actions},
		{s.Sequence, []string{s.Step, s.Greenhouse, s.Device, s.Action, s.Value}, sequence},
	}
	for _, blk := range blocks {
		if len(blk.cmds) == 0 {
			continue
		}
		b.WriteString(blk.name + "[" + strconv.Itoa(len(blk.cmds)) + "]{" + strings.Join(blk.fields, ",") + "}:\n")
		for _, c := range blk.cmds {
			rec := []string{c.Greenhouse, c.Device, c.Action, formatValue(c.Value)}
			if blk.name == s.Sequence {
				rec = append([]string{strconv.Itoa(c.Step)}, rec...)
			}
			var row strings.Builder
			w := csv.NewWriter(&row)
			if err := w.Write(rec); err != nil {
				return "", err
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return "", err
			}
			b.WriteString("  " + strings.TrimRight(row.String(), "\r\n") + "\n")
		}
	}
	return b.String(), nil
}

// toonString quotes values that would not survive an unquoted round trip.
func toonString(v string) string {
	v = oneLine(v)
	if v == "" || strings.HasPrefix(v, `"`) {
		return strconv.Quote(v)
	}
	return v
}
