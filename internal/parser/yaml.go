package parser

import (
	"errors"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

type yamlStrategy struct{}

func (yamlStrategy) Parse(raw string, s command.Schema) (command.Response, error) {
	doc, err := yamlMapping(raw)
	if err != nil {
		// Retry without the prose a model may put around an unfenced reply.
		head := func(line string) bool { return topLevelKey(line, s) }
		tail := func(line string) bool {
			return head(line) || indented(line) || strings.HasPrefix(line, "- ")
		}
		if body := trimProse(raw, head, tail); body != raw {
			if d, e := yamlMapping(body); e == nil {
				doc, err = d, nil
			}
		}
	}
	if err != nil {
		return command.Response{}, syntaxErr(command.FormatYAML, "%s", err)
	}
	return fromDocument(command.FormatYAML, doc, s)
}

func yamlMapping(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errors.New(firstLine(err.Error()))
	}
	if doc == nil {
		return nil, errors.New("not a mapping")
	}
	return doc, nil
}

func (yamlStrategy) Encode(resp command.Response, s command.Schema) (string, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(toDocument(resp, s)); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
