package command

import "errors"

// Schema names the keys, columns and tags a response format uses. The names
// ship with the prompt catalog and are never hardcoded in the parsers.
type Schema struct {
	Error      string `yaml:"error" json:"error"`
	Message    string `yaml:"message" json:"message"`
	Reason     string `yaml:"reason" json:"reason"`
	Greenhouse string `yaml:"greenhouse" json:"greenhouse"`
	Device     string `yaml:"device" json:"device"`
	Action     string `yaml:"action" json:"action"`
	Value      string `yaml:"value" json:"value"`
	Step       string `yaml:"step" json:"step"`
	Actions    string `yaml:"actions" json:"actions"`
	Sequence   string `yaml:"sequence" json:"sequence"`
	XMLRoot    string `yaml:"xml_root" json:"xml_root"`
	XMLItem    string `yaml:"xml_item" json:"xml_item"`
}

// DefaultSchema mirrors the names the benchmark prompts ask models to use.
func DefaultSchema() Schema {
	return Schema{
		Error:      "error",
		Message:    "message",
		Reason:     "reason",
		Greenhouse: "greenhouse_id",
		Device:     "actuator",
		Action:     "action",
		Value:      "value",
		Step:       "step",
		Actions:    "actions",
		Sequence:   "action_sequence",
		XMLRoot:    "response",
		XMLItem:    "command",
	}
}

// Validate checks that every name is set.
func (s Schema) Validate() error {
	for _, v := range []string{s.Error, s.Message, s.Reason, s.Greenhouse, s.Device, s.Action, s.Value, s.Step, s.Actions, s.Sequence, s.XMLRoot, s.XMLItem} {
		if v == "" {
			return errors.New("schema: every key name must be set")
		}
	}
	return nil
}

// Required lists the per-command fields a row or element must carry.
func (s Schema) Required() []string {
	return []string{s.Device, s.Action}
}
