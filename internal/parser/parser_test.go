package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
)

func sampleResponse() command.Response {
	return command.Response{
		Message:    "Cooling GH005: then correcting GH015",
		Greenhouse: "GH005",
		Commands: []command.Command{
			{Greenhouse: "GH005", Device: "temperature_control", Action: "cool"},
			{Greenhouse: "GH012", Device: "irrigation", Action: "set", Value: command.Float(65)},
			{Greenhouse: "GH015", Device: "temperature_control", Action: "cool", Step: 1},
			{Greenhouse: "GH015", Device: "ph_control", Action: "set", Value: command.Float(6.25), Step: 2},
		},
	}
}

func assertSameResponse(t *testing.T, f command.Format, want, got command.Response) {
	t.Helper()
	if got.Error != want.Error || got.Message != want.Message || got.Reason != want.Reason || got.Greenhouse != want.Greenhouse {
		t.Fatalf("%s: envelope mismatch\nwant %+v\ngot  %+v", f, want, got)
	}
	if len(got.Commands) != len(want.Commands) {
		t.Fatalf("%s: expected %d commands, got %d: %+v", f, len(want.Commands), len(got.Commands), got.Commands)
	}
	for i := range want.Commands {
		if !got.Commands[i].Equal(want.Commands[i]) {
			t.Fatalf("%s: command %d: want %s (step %d), got %s (step %d)", f, i, want.Commands[i], want.Commands[i].Step, got.Commands[i], got.Commands[i].Step)
		}
	}
	if len(got.RowErrors) != 0 {
		t.Fatalf("%s: unexpected row errors %+v", f, got.RowErrors)
	}
}

func TestRoundTripAllFormats(t *testing.T) {
	s := command.DefaultSchema()
	cases := []command.Response{
		sampleResponse(),
		{Error: true, Reason: "sensor co2 does not exist", Message: "Cannot read CO2"},
		{Message: "GH001 status", Greenhouse: "GH001", Commands: []command.Command{
			{Greenhouse: "GH001", Device: "temperature", Action: "read"},
		}},
		// Sequence step listed before a plain action.
		{Commands: []command.Command{
			{Greenhouse: "GH001", Device: "fan", Action: "on", Step: 1},
			{Greenhouse: "GH002", Device: "irrigation", Action: "irrigate"},
			{Greenhouse: "GH001", Device: "fan", Action: "off", Step: 2},
		}},
	}
	for _, want := range cases {
		want.Commands = Normalize(want.Commands)
		for _, f := range command.Formats {
			raw, err := Encode(f, want, s)
			if err != nil {
				t.Fatalf("%s: Encode: %v", f, err)
			}
			got, err := Parse(f, raw, s)
			if err != nil {
				t.Fatalf("%s: Parse: %v\n%s", f, err, raw)
			}
			assertSameResponse(t, f, want, got)
		}
	}
}

func TestMixedOrderIsSameInEveryFormat(t *testing.T) {
	s := command.DefaultSchema()
	raw := map[command.Format]string{
		command.FormatMarkdown: "error: false\n\n| greenhouse_id | actuator | action | value | step |\n|---|---|---|---|---|\n" +
			"| GH001 | fan | on | | 1 |\n| GH002 | irrigation | irrigate | | |\n",
		command.FormatJSON: `{"error": false, "action_sequence": [{"step": 1, "greenhouse_id": "GH001", "actuator": "fan", "action": "on"}],
			"actions": [{"greenhouse_id": "GH002", "actuator": "irrigation", "action": "irrigate"}]}`,
		command.FormatTOON: "error: false\naction_sequence[1]{step,greenhouse_id,actuator,action}:\n  1,GH001,fan,on\n" +
			"actions[1]{greenhouse_id,actuator,action}:\n  GH002,irrigation,irrigate\n",
	}
	for f, body := range raw {
		resp, err := Parse(f, body, s)
		if err != nil {
			t.Fatalf("%s: Parse: %v", f, err)
		}
		if len(resp.Commands) != 2 || resp.Commands[0].Greenhouse != "GH002" || resp.Commands[1].Step != 1 {
			t.Fatalf("%s: expected plain action first, got %+v", f, resp.Commands)
		}
	}
}

func TestNonFiniteValues(t *testing.T) {
	s := command.DefaultSchema()

	// 1. Row formats drop the row and keep its siblings.
	rows := map[command.Format]string{
		command.FormatMarkdown: "error: false\n\n| greenhouse_id | actuator | action | value |\n|---|---|---|---|\n" +
			"| GH005 | temperature_control | set | NaN |\n| GH005 | fan | on | |\n",
		command.FormatTOON: "error: false\nactions[2]{greenhouse_id,actuator,action,value}:\n" +
			"  GH005,temperature_control,set,+Inf\n  GH005,fan,on,\n",
	}
	for f, raw := range rows {
		resp, err := Parse(f, raw, s)
		if err != nil {
			t.Fatalf("%s: Parse: %v", f, err)
		}
		if len(resp.Commands) != 1 || len(resp.RowErrors) != 1 || resp.Rows != 2 {
			t.Fatalf("%s: expected one command and one row error, got %+v", f, resp)
		}
	}

	// 2. Document formats fail as a whole.
	docs := map[command.Format]string{
		command.FormatYAML: "error: false\nactions:\n  - greenhouse_id: GH005\n    actuator: temperature_control\n    action: set\n    value: .nan\n",
		command.FormatJSON: `{"error": false, "actions": [{"greenhouse_id": "GH005", "actuator": "temperature_control", "action": "set", "value": "-Infinity"}]}`,
		command.FormatXML:  `<response><error>false</error><actions><command><greenhouse_id>GH005</greenhouse_id><actuator>temperature_control</actuator><action>set</action><value>NaN</value></command></actions></response>`,
	}
	for f, raw := range docs {
		resp, err := Parse(f, raw, s)
		var se *SyntaxError
		if !errors.As(err, &se) || len(resp.Commands) != 0 {
			t.Fatalf("%s: expected SyntaxError, got %v %+v", f, err, resp.Commands)
		}
	}
}

func TestUnfencedProseAroundRowAndYAMLReplies(t *testing.T) {
	s := command.DefaultSchema()
	cases := map[command.Format]string{
		command.FormatTOON: "Here is the plan for the facility\n" +
			"error: false\nactions[1]{greenhouse_id,actuator,action}:\n  GH005,temperature_control,cool\n" +
			"Let me know if anything else is needed",
		command.FormatYAML: "Here is the plan. Note: GH005 runs hot\n" +
			"error: false\nactions:\n  - greenhouse_id: GH005\n    actuator: temperature_control\n    action: cool\n" +
			"Hope this helps!",
	}
	for f, raw := range cases {
		resp, err := Parse(f, raw, s)
		if err != nil {
			t.Fatalf("%s: Parse: %v", f, err)
		}
		if len(resp.Commands) != 1 || resp.Commands[0].Greenhouse != "GH005" {
			t.Fatalf("%s: unexpected commands %+v", f, resp.Commands)
		}
	}

	// Prose alone is still a syntax error.
	for _, f := range []command.Format{command.FormatTOON, command.FormatYAML} {
		if _, err := Parse(f, "I cannot help with that.\nSorry.", s); err == nil {
			t.Fatalf("%s: expected error for prose-only reply", f)
		}
	}
}

func TestMarkdownMissingColumnIsSyntaxError(t *testing.T) {
	raw := `error: false
message: irrigating

| greenhouse_id | actuator | value |
|---|---|---|
| GH001 | irrigation | 65 |
`
	_, err := Parse(command.FormatMarkdown, raw, command.DefaultSchema())
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
	if se.Format != command.FormatMarkdown || !strings.Contains(se.Detail, "action") {
		t.Fatalf("unexpected detail %+v", se)
	}
}

func TestMarkdownMalformedRowKeepsSiblings(t *testing.T) {
	raw := "```markdown\n" + `**error**: false

| greenhouse_id | actuator | action | value |
|:---|---|---|---:|
| GH001 | irrigation | set | 65 |
| GH002 | irrigation |
| GH003 | temperature_control | cool | |
| GH004 | irrigation | set | lots |
` + "```"
	resp, err := Parse(command.FormatMarkdown, raw, command.DefaultSchema())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if resp.Rows != 4 || len(resp.Commands) != 2 || len(resp.RowErrors) != 2 {
		t.Fatalf("expected 4 rows, 2 commands, 2 row errors; got %d, %d, %+v", resp.Rows, len(resp.Commands), resp.RowErrors)
	}
	if resp.RowErrors[0].Row != 2 || resp.RowErrors[1].Row != 4 {
		t.Fatalf("unexpected row numbers %+v", resp.RowErrors)
	}
	if resp.Commands[0].RawText == "" {
		t.Fatal("expected raw row text")
	}
}

func TestMarkdownDefaultGreenhouseFillsColumn(t *testing.T) {
	raw := `error: false
greenhouse_id: GH009

| actuator | action |
|---|---|
| fan | high |
`
	resp, err := Parse(command.FormatMarkdown, raw, command.DefaultSchema())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(resp.Commands) != 1 || resp.Commands[0].Greenhouse != "GH009" {
		t.Fatalf("expected GH009 command, got %+v", resp.Commands)
	}
}

func TestMarkdownWithoutTableOrEnvelope(t *testing.T) {
	_, err := Parse(command.FormatMarkdown, "Sure! I have cooled the greenhouse.", command.DefaultSchema())
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
}

func TestTOONCountMismatch(t *testing.T) {
	raw := `error: false
actions[3]{greenhouse_id,actuator,action,value}:
  GH001,irrigation,irrigate,
  GH002,fan,on,
`
	_, err := Parse(command.FormatTOON, raw, command.DefaultSchema())
	var se *SyntaxError
	if !errors.As(err, &se) || !strings.Contains(se.Detail, "declares 3") {
		t.Fatalf("expected count mismatch, got %v", err)
	}
}

func TestTOONQuotedFieldsAndRowErrors(t *testing.T) {
	raw := `error: false
message: "two, actually"
sensor_status[1]{id,ok}:
  GH001,true
actions[3]{greenhouse_id,actuator,action,value}:
  "GH001",irrigation,set,"65"
  GH002,irrigation,set,"bad
  GH003,,on,
`
	resp, err := Parse(command.FormatTOON, raw, command.DefaultSchema())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if resp.Message != "two, actually" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if len(resp.Commands) != 1 || *resp.Commands[0].Value != 65 {
		t.Fatalf("expected one command with value 65, got %+v", resp.Commands)
	}
	if resp.Rows != 3 || len(resp.RowErrors) != 2 {
		t.Fatalf("expected 3 rows and 2 row errors, got %d and %+v", resp.Rows, resp.RowErrors)
	}
}

func TestTOONSequenceStepsDefaultToRowOrder(t *testing.T) {
	raw := `error: false
action_sequence[2]{greenhouse_id,actuator,action}:
  GH015,temperature_control,cool
  GH015,ph_control,increase_ph
`
	resp, err := Parse(command.FormatTOON, raw, command.DefaultSchema())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(resp.Commands) != 2 || resp.Commands[0].Step != 1 || resp.Commands[1].Step != 2 {
		t.Fatalf("unexpected steps %+v", resp.Commands)
	}
}

func TestJSONWithProseAndFence(t *testing.T) {
	raw := "Here is my answer:\n```json\n" +
		`{"error": false, "greenhouse_id": ["GH001", "GH007"], "actions": {"actuator": "irrigation", "action": "irrigate"}}` +
		"\n```\nLet me know if you need more."
	resp, err := Parse(command.FormatJSON, raw, command.DefaultSchema())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(resp.Commands) != 1 || resp.Commands[0].Greenhouse != "GH001" {
		t.Fatalf("expected single command on GH001, got %+v", resp.Commands)
	}
}

func TestDocumentFormatsFailAtomically(t *testing.T) {
	s := command.DefaultSchema()
	cases := []struct {
		format command.Format
		raw    string
	}{
		{command.FormatJSON, `{"error": false, "actions": [{"greenhouse_id": "GH001", "actuator": "fan", "action": "on"}, {"greenhouse_id": "GH002", "action": "on"}]}`},
		{command.FormatJSON, `{"error": false, "actions": [`},
		{command.FormatJSON, `{"message": "no error flag"}`},
		{command.FormatYAML, "error: false\nactions:\n  - greenhouse_id: GH001\n    actuator: fan\n    action: on\n    value: high\n"},
		{command.FormatYAML, "error: [unclosed\n"},
		{command.FormatXML, `<response><error>false</error><actions><command><actuator>fan</actuator></command></actions></response>`},
		{command.FormatXML, `<reply><error>false</error></reply>`},
		{command.FormatXML, `<response><error>false</error><actions><item><greenhouse_id>GH001</greenhouse_id></item></actions></response>`},
		{command.FormatXML, `<response><error>false</error>`},
	}
	for i, tc := range cases {
		resp, err := Parse(tc.format, tc.raw, s)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("case %d (%s): expected SyntaxError, got %v", i, tc.format, err)
		}
		if len(resp.Commands) != 0 {
			t.Fatalf("case %d: commands survived a syntax error", i)
		}
	}
}

func TestXMLAttributesAndSequence(t *testing.T) {
	raw := `<?xml version="1.0"?>
<response>
  <error>false</error>
  <action_sequence>
    <command greenhouse_id="GH015" actuator="temperature_control" action="cool"/>
    <command greenhouse_id="GH015" actuator="ph_control" action="increase_ph"/>
  </action_sequence>
</response>`
	resp, err := Parse(command.FormatXML, raw, command.DefaultSchema())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(resp.Commands) != 2 || resp.Commands[1].Step != 2 || resp.Commands[1].Action != "increase_ph" {
		t.Fatalf("unexpected commands %+v", resp.Commands)
	}
}

func TestCustomSchemaNames(t *testing.T) {
	s := command.DefaultSchema()
	s.Device = "device"
	s.Greenhouse = "unit"
	raw := `error: false

| unit | device | action |
|---|---|---|
| GH003 | lighting | dim |
`
	resp, err := Parse(command.FormatMarkdown, raw, s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(resp.Commands) != 1 || resp.Commands[0].Device != "lighting" {
		t.Fatalf("unexpected commands %+v", resp.Commands)
	}
	if _, err := Parse(command.FormatMarkdown, raw, command.DefaultSchema()); err == nil {
		t.Fatal("default schema should reject the renamed columns")
	}
}

func TestEmptyAndUnknownFormat(t *testing.T) {
	var se *SyntaxError
	if _, err := Parse(command.FormatJSON, "   ", command.DefaultSchema()); !errors.As(err, &se) {
		t.Fatalf("expected SyntaxError for empty reply, got %v", err)
	}
	if _, err := Parse("csv", "a,b", command.DefaultSchema()); err == nil || errors.As(err, &se) {
		t.Fatalf("expected plain error for unknown format, got %v", err)
	}
}
