package bench

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/greenhouse-bench/internal/catalog"
	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/greenhouse"
	"github.com/danielpatrickdp/greenhouse-bench/internal/parser"
)

// #region context
// unitView is one greenhouse as shown to the model.
type unitView struct {
	ID           string  `json:"id" yaml:"id"`
	PlantType    string  `json:"crop_type" yaml:"crop_type"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
	SoilHumidity float64 `json:"soil_humidity" yaml:"soil_humidity"`
	SoilPH       float64 `json:"soil_ph" yaml:"soil_ph"`
	Luminosity   float64 `json:"luminosity" yaml:"luminosity"`
	Ventilation  float64 `json:"ventilation" yaml:"ventilation"`
}

func viewOf(u greenhouse.Unit) unitView {
	return unitView{
		ID:           u.ID,
		PlantType:    string(u.PlantType),
		Temperature:  u.Reading(catalog.ParamTemperature),
		SoilHumidity: u.Reading(catalog.ParamSoilMoisture),
		SoilPH:       u.Reading(catalog.ParamSoilPH),
		Luminosity:   u.Reading(catalog.ParamIlluminance),
		Ventilation:  u.Reading(catalog.ParamVentilation),
	}
}

// examples returns an acting reply and a refusal, encoded in f, so the model
// sees the exact layout the parser accepts.
func examples(f command.Format, s command.Schema, gh string) (string, string, error) {
	act := command.Response{
		Message:    "Cooling and irrigating " + gh,
		Greenhouse: gh,
		Commands: []command.Command{
			{Greenhouse: gh, Device: "temperature_control", Action: "cool"},
			{Greenhouse: gh, Device: "irrigation", Action: "irrigate"},
		},
	}
	refuse := command.Response{Error: true, Reason: "unknown device", Message: "The request cannot be executed"}
	a, err := parser.Encode(f, act, s)
	if err != nil {
		return "", "", err
	}
	r, err := parser.Encode(f, refuse, s)
	if err != nil {
		return "", "", err
	}
	return a, r, nil
}

// #endregion context

// #region render
// RenderInput builds the user message for one run: the staged greenhouse
// state and the request, written in format f, plus reply instructions in the
// same format.
func RenderInput(f command.Format, prompt string, units []greenhouse.Unit, s command.Schema) (string, error) {
	views := make([]unitView, len(units))
	for i, u := range units {
		views[i] = viewOf(u)
	}
	exampleGH := greenhouse.UnitID(1)
	if len(units) > 0 {
		exampleGH = units[0].ID
	}
	act, refuse, err := examples(f, s, exampleGH)
	if err != nil {
		return "", fmt.Errorf("render %s examples: %w", f, err)
	}

	var body string
	switch f {
	case command.FormatMarkdown:
		body = renderMarkdown(views, prompt)
	case command.FormatXML:
		body, err = renderXML(views, prompt)
	case command.FormatYAML:
		body, err = renderYAML(views, prompt)
	case command.FormatJSON:
		body, err = renderJSON(views, prompt)
	case command.FormatTOON:
		body = renderTOON(views, prompt)
	default:
		return "", fmt.Errorf("render: unsupported format %q", f)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", f, err)
	}

	var b strings.Builder
	b.WriteString(body)
	fmt.Fprintf(&b, "\n\nReply in %s only, using this layout when acting:\n\n%s\n", strings.ToUpper(string(f)), act)
	fmt.Fprintf(&b, "\nand this layout when the request is invalid or impossible:\n\n%s\n", refuse)
	fmt.Fprintf(&b, "\nSet %q to false when no action is needed and list no commands.\n", s.Error)
	return b.String(), nil
}

func renderMarkdown(views []unitView, prompt string) string {
	var b strings.Builder
	b.WriteString("# IoT Greenhouse Control System\n\n## System context\n")
	if len(views) == 0 {
		b.WriteString("\nNo greenhouse state attached.\n")
	}
	for _, v := range views {
		fmt.Fprintf(&b, "\n### Greenhouse %s (type %s)\n", v.ID, v.PlantType)
		fmt.Fprintf(&b, "- Temperature: %g °C\n", v.Temperature)
		fmt.Fprintf(&b, "- Soil humidity: %g %%\n", v.SoilHumidity)
		fmt.Fprintf(&b, "- Soil pH: %g\n", v.SoilPH)
		fmt.Fprintf(&b, "- Luminosity: %g lux\n", v.Luminosity)
		fmt.Fprintf(&b, "- Ventilation: %g m/s\n", v.Ventilation)
	}
	fmt.Fprintf(&b, "\n---\n\n## User command\n> %s\n\n---\n\n## Response instructions", prompt)
	return b.String()
}

type xmlReading struct {
	XMLName xml.Name
	Unit    string  `xml:"unit,attr"`
	Value   float64 `xml:",chardata"`
}

type xmlGreenhouse struct {
	ID       string       `xml:"id,attr"`
	CropType string       `xml:"crop_type,attr"`
	Sensors  []xmlReading `xml:"sensors>reading"`
}

type xmlInput struct {
	XMLName     xml.Name        `xml:"greenhouse_control_system"`
	Greenhouses []xmlGreenhouse `xml:"current_state>greenhouses>greenhouse"`
	Command     struct {
		Text string `xml:",cdata"`
	} `xml:"user_command"`
}

func renderXML(views []unitView, prompt string) (string, error) {
	in := xmlInput{}
	for _, v := range views {
		in.Greenhouses = append(in.Greenhouses, xmlGreenhouse{
			ID:       v.ID,
			CropType: v.PlantType,
			Sensors: []xmlReading{
				{XMLName: xml.Name{Local: "temperature"}, Unit: "celsius", Value: v.Temperature},
				{XMLName: xml.Name{Local: "soil_humidity"}, Unit: "percent", Value: v.SoilHumidity},
				{XMLName: xml.Name{Local: "soil_ph"}, Unit: "pH", Value: v.SoilPH},
				{XMLName: xml.Name{Local: "luminosity"}, Unit: "lux", Value: v.Luminosity},
				{XMLName: xml.Name{Local: "ventilation"}, Unit: "m/s", Value: v.Ventilation},
			},
		})
	}
	in.Command.Text = prompt
	b, err := xml.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(b), nil
}

type documentInput struct {
	System struct {
		State struct {
			Greenhouses []unitView `json:"greenhouses" yaml:"greenhouses"`
		} `json:"current_state" yaml:"current_state"`
		Command string `json:"user_command" yaml:"user_command"`
	} `json:"greenhouse_control_system" yaml:"greenhouse_control_system"`
}

func newDocument(views []unitView, prompt string) documentInput {
	var d documentInput
	d.System.State.Greenhouses = views
	if d.System.State.Greenhouses == nil {
		d.System.State.Greenhouses = []unitView{}
	}
	d.System.Command = prompt
	return d
}

func renderYAML(views []unitView, prompt string) (string, error) {
	b, err := yaml.Marshal(newDocument(views, prompt))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func renderJSON(views []unitView, prompt string) (string, error) {
	b, err := json.MarshalIndent(newDocument(views, prompt), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func renderTOON(views []unitView, prompt string) string {
	var b strings.Builder
	b.WriteString("greenhouse_control_system\n  current_state\n")
	fmt.Fprintf(&b, "    greenhouses[%d]{id,crop_type,temperature,soil_humidity,soil_ph,luminosity,ventilation}:\n", len(views))
	for _, v := range views {
		fmt.Fprintf(&b, "      %s,%s,%g,%g,%g,%g,%g\n", v.ID, v.PlantType, v.Temperature, v.SoilHumidity, v.SoilPH, v.Luminosity, v.Ventilation)
	}
	fmt.Fprintf(&b, "  user_command: %s", prompt)
	return b.String()
}

// #endregion render
