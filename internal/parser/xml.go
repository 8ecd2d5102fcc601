package parser

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

type xmlStrategy struct{}

// element is a generic XML tree node. Tag names are configurable, so the
// reply is walked token by token instead of unmarshalled into fixed structs.
type element struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*element
}

func (xmlStrategy) Parse(raw string, s command.Schema) (command.Response, error) {
	if start, end := strings.IndexByte(raw, '<'), strings.LastIndexByte(raw, '>'); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	root, err := readTree(raw)
	if err != nil {
		return command.Response{}, syntaxErr(command.FormatXML, "%v", err)
	}
	if root.name != s.XMLRoot {
		return command.Response{}, syntaxErr(command.FormatXML, "root element <%s>, want <%s>", root.name, s.XMLRoot)
	}
	doc, err := root.document(s)
	if err != nil {
		return command.Response{}, syntaxErr(command.FormatXML, "%v", err)
	}
	return fromDocument(command.FormatXML, doc, s)
}

func readTree(raw string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	var (
		stack []*element
		root  *element
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: map[string]string{}}
			for _, a := range t.Attr {
				el.attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	if len(stack) != 0 {
		return nil, errors.New("unclosed element")
	}
	return root, nil
}

// document converts the root into the map shape fromDocument expects.
func (e *element) document(s command.Schema) (map[string]any, error) {
	doc := e.fields()
	for _, c := range e.children {
		if c.name != s.Actions && c.name != s.Sequence {
			continue
		}
		items := make([]any, 0, len(c.children))
		for _, item := range c.children {
			if item.name != s.XMLItem {
				return nil, errors.New("unexpected <" + item.name + "> in <" + c.name + ">")
			}
			items = append(items, item.fields())
		}
		doc[c.name] = items
	}
	return doc, nil
}

// fields flattens attributes and leaf children into a map.
func (e *element) fields() map[string]any {
	m := make(map[string]any, len(e.attrs)+len(e.children))
	for k, v := range e.attrs {
		m[k] = v
	}
	for _, c := range e.children {
		if len(c.children) == 0 {
			m[c.name] = strings.TrimSpace(c.text.String())
		}
	}
	return m
}

func (xmlStrategy) Encode(resp command.Response, s command.Schema) (string, error) {
	var b strings.Builder
	enc := xml.NewEncoder(&b)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: s.XMLRoot}}
	if err := enc.EncodeToken(root); err != nil {
		return "", err
	}
	leaf := func(name, text string) error {
		return enc.EncodeElement(text, xml.StartElement{Name: xml.Name{Local: name}})
	}
	if err := leaf(s.Error, strconv.FormatBool(resp.Error)); err != nil {
		return "", err
	}
	for _, kv := range [][2]string{{s.Message, resp.Message}, {s.Reason, resp.Reason}, {s.Greenhouse, resp.Greenhouse}} {
		if kv[1] == "" {
			continue
		}
		if err := leaf(kv[0], kv[1]); err != nil {
			return "", err
		}
	}

	actions, sequence := split(resp.Commands)
	for _, block := range []struct {
		name string
		cmds []command.Command
	}{{s.Actions, actions}, {s.Sequence, sequence}} {
		if len(block.cmds) == 0 {
			continue
		}
		start := xml.StartElement{Name: xml.Name{Local: block.name}}
		if err := enc.EncodeToken(start); err != nil {
			return "", err
		}
		for _, c := range block.cmds {
			item := xml.StartElement{Name: xml.Name{Local: s.XMLItem}}
			if err := enc.EncodeToken(item); err != nil {
				return "", err
			}
			pairs := [][2]string{
				{s.Step, formatStep(c.Step)},
				{s.Greenhouse, c.Greenhouse},
				{s.Device, c.Device},
				{s.Action, c.Action},
				{s.Value, formatValue(c.Value)},
			}
			for _, kv := range pairs {
				if kv[1] == "" {
					continue
				}
				if err := leaf(kv[0], kv[1]); err != nil {
					return "", err
				}
			}
			if err := enc.EncodeToken(item.End()); err != nil {
				return "", err
			}
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return "", err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return b.String() + "\n", nil
}
