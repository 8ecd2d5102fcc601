package parser

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

type jsonStrategy struct{}

func (jsonStrategy) Parse(raw string, s command.Schema) (command.Response, error) {
	// Tolerate prose around the object.
	if start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}'); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return command.Response{}, syntaxErr(command.FormatJSON, "%v", err)
	}
	if doc == nil {
		return command.Response{}, syntaxErr(command.FormatJSON, "not an object")
	}
	return fromDocument(command.FormatJSON, doc, s)
}

func (jsonStrategy) Encode(resp command.Response, s command.Schema) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toDocument(resp, s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
