package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

// #region decode

// fromDocument maps a decoded JSON, YAML or XML document onto a Response.
// Document formats are atomic: any malformed element fails the whole response.
func fromDocument(f command.Format, doc map[string]any, s command.Schema) (command.Response, error) {
	var resp command.Response

	rawErr, ok := doc[s.Error]
	if !ok {
		return resp, syntaxErr(f, "missing %q field", s.Error)
	}
	isErr, err := asBool(rawErr)
	if err != nil {
		return resp, syntaxErr(f, "%s: %v", s.Error, err)
	}
	resp.Error = isErr
	resp.Message = asString(doc[s.Message])
	resp.Reason = asString(doc[s.Reason])

	// Some replies list several targets; the first one is the default.
	switch gh := doc[s.Greenhouse].(type) {
	case string:
		resp.Greenhouse = strings.TrimSpace(gh)
	case []any:
		if len(gh) > 0 {
			resp.Greenhouse = asString(gh[0])
		}
	}

	for _, block := range []struct {
		key        string
		sequential bool
	}{{s.Actions, false}, {s.Sequence, true}} {
		items, err := asList(doc[block.key])
		if err != nil {
			return resp, syntaxErr(f, "%s: %v", block.key, err)
		}
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return resp, syntaxErr(f, "%s[%d]: not an object", block.key, i)
			}
			cmd, err := commandFrom(m, resp.Greenhouse, s)
			if err != nil {
				return resp, syntaxErr(f, "%s[%d]: %v", block.key, i, err)
			}
			if block.sequential && cmd.Step == 0 {
				cmd.Step = i + 1
			}
			resp.Commands = append(resp.Commands, cmd)
		}
	}
	resp.Rows = len(resp.Commands)
	return resp, nil
}

func commandFrom(m map[string]any, defaultGH string, s command.Schema) (command.Command, error) {
	var cmd command.Command
	for _, key := range s.Required() {
		if asString(m[key]) == "" {
			return cmd, fmt.Errorf("missing %q", key)
		}
	}
	cmd.Device = asString(m[s.Device])
	cmd.Action = asString(m[s.Action])
	cmd.Greenhouse = asString(m[s.Greenhouse])
	if cmd.Greenhouse == "" {
		cmd.Greenhouse = defaultGH
	}
	if cmd.Greenhouse == "" {
		return cmd, fmt.Errorf("missing %q", s.Greenhouse)
	}
	v, err := asFloat(m[s.Value])
	if err != nil {
		return cmd, fmt.Errorf("%s: %v", s.Value, err)
	}
	cmd.Value = v
	if raw, ok := m[s.Step]; ok && raw != nil {
		step, err := asStep(raw)
		if err != nil {
			return cmd, fmt.Errorf("%s: %v", s.Step, err)
		}
		cmd.Step = step
	}
	return cmd, nil
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return parseBool(b)
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %v", v)
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func asFloat(v any) (*float64, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return finite(n)
	case int:
		f := float64(n)
		return &f, nil
	case int64:
		f := float64(n)
		return &f, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return finite(f)
	case string:
		return parseValue(n)
	}
	return nil, fmt.Errorf("not a number: %v", v)
}

func asStep(v any) (int, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, nil
	}
	if *f < 0 || *f != float64(int(*f)) {
		return 0, fmt.Errorf("not a step number: %v", v)
	}
	return int(*f), nil
}

// asList accepts a list, a single object or nothing.
func asList(v any) ([]any, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return l, nil
	case map[string]any:
		return []any{l}, nil
	}
	return nil, fmt.Errorf("not a list")
}

// #endregion decode

// #region encode

type field struct {
	key string
	val any
}

// object is a key-ordered mapping so encoded documents are stable.
type object []field

func (o object) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.val)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (o object) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range o {
		var v yaml.Node
		if err := v.Encode(f.val); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f.key}, &v)
	}
	return node, nil
}

// toDocument builds the ordered document JSON and YAML encode.
func toDocument(resp command.Response, s command.Schema) object {
	doc := object{{s.Error, resp.Error}}
	if resp.Message != "" {
		doc = append(doc, field{s.Message, resp.Message})
	}
	if resp.Reason != "" {
		doc = append(doc, field{s.Reason, resp.Reason})
	}
	if resp.Greenhouse != "" {
		doc = append(doc, field{s.Greenhouse, resp.Greenhouse})
	}
	actions, sequence := split(resp.Commands)
	if len(actions) > 0 {
		doc = append(doc, field{s.Actions, commandObjects(actions, s)})
	}
	if len(sequence) > 0 {
		doc = append(doc, field{s.Sequence, commandObjects(sequence, s)})
	}
	return doc
}

func commandObjects(cmds []command.Command, s command.Schema) []object {
	out := make([]object, 0, len(cmds))
	for _, c := range cmds {
		o := object{}
		if c.Step > 0 {
			o = append(o, field{s.Step, c.Step})
		}
		o = append(o, field{s.Greenhouse, c.Greenhouse}, field{s.Device, c.Device}, field{s.Action, c.Action})
		if c.Value != nil {
			o = append(o, field{s.Value, *c.Value})
		}
		out = append(out, o)
	}
	return out
}

// #endregion encode
