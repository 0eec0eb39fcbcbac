package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override selects how computed CORS headers interact with headers a handler
// already set. In YAML it is written as true (replace), false (preserve) or
// "merge".
type Override string

const (
	OverrideReplace  Override = "replace"
	OverridePreserve Override = "preserve"
	OverrideMerge    Override = "merge"
)

// UnmarshalYAML accepts booleans as well as the three mode names
func (o *Override) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: override must be true, false or \"merge\"", value.Line)
	}
	if value.Tag == "!!bool" {
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		if b {
			*o = OverrideReplace
		} else {
			*o = OverridePreserve
		}
		return nil
	}
	switch mode := Override(strings.ToLower(value.Value)); mode {
	case OverrideReplace, OverridePreserve, OverrideMerge:
		*o = mode
		return nil
	}
	return fmt.Errorf("line %d: unknown override mode %q", value.Line, value.Value)
}

// CorsConfig is a possibly partial CORS configuration. Nil fields are
// inherited from the level above; an explicitly empty list is not.
type CorsConfig struct {
	Origin                   []string  `yaml:"origin" validate:"omitempty,dive,origin_pattern"`
	IsOriginExposed          *bool     `yaml:"is_origin_exposed"`
	MatchOrigin              *bool     `yaml:"match_origin"`
	Credentials              *bool     `yaml:"credentials"`
	Headers                  []string  `yaml:"headers" validate:"omitempty,dive,required"`
	AdditionalHeaders        []string  `yaml:"additional_headers" validate:"omitempty,dive,required"`
	Methods                  []string  `yaml:"methods" validate:"omitempty,dive,required"`
	AdditionalMethods        []string  `yaml:"additional_methods" validate:"omitempty,dive,required"`
	ExposedHeaders           []string  `yaml:"exposed_headers" validate:"omitempty,dive,required"`
	AdditionalExposedHeaders []string  `yaml:"additional_exposed_headers" validate:"omitempty,dive,required"`
	MaxAge                   *int      `yaml:"max_age" validate:"omitempty,min=0"`
	Override                 *Override `yaml:"override" validate:"omitempty,oneof=replace preserve merge"`
}

// CorsSetting is the value of a "cors" key: absent, true, false or a
// partial CorsConfig. The zero value means absent.
type CorsSetting struct {
	Set     bool
	Enabled bool
	Options *CorsConfig
}

// CorsEnabled returns a setting equivalent to "cors: true"
func CorsEnabled() CorsSetting {
	return CorsSetting{Set: true, Enabled: true}
}

// CorsDisabled returns a setting equivalent to "cors: false"
func CorsDisabled() CorsSetting {
	return CorsSetting{Set: true}
}

// CorsPartial returns a setting carrying partial options
func CorsPartial(c CorsConfig) CorsSetting {
	return CorsSetting{Set: true, Enabled: true, Options: &c}
}

// OptionError reports a structurally invalid CORS option. Field is the YAML
// name of the option, possibly with an index.
type OptionError struct {
	Field  string
	Value  string
	Reason string
}

func (err *OptionError) Error() string {
	const tmpl = "cors: invalid %s %q: %s"
	return fmt.Sprintf(tmpl, err.Field, err.Value, err.Reason)
}

// optionKinds maps the non-scalar and typed CORS options to the YAML kind
// they must have
var optionKinds = map[string]string{
	"origin":                     "a list",
	"headers":                    "a list",
	"additional_headers":         "a list",
	"methods":                    "a list",
	"additional_methods":         "a list",
	"exposed_headers":            "a list",
	"additional_exposed_headers": "a list",
	"is_origin_exposed":          "a boolean",
	"match_origin":               "a boolean",
	"credentials":                "a boolean",
	"max_age":                    "an integer",
}

// checkOptionKinds rejects options whose YAML node has the wrong shape
func checkOptionKinds(mapping *yaml.Node) error {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, node := mapping.Content[i].Value, mapping.Content[i+1]
		kind, ok := optionKinds[key]
		if !ok || node.Tag == "!!null" {
			continue
		}
		var valid bool
		switch kind {
		case "a list":
			valid = node.Kind == yaml.SequenceNode
		case "a boolean":
			valid = node.Kind == yaml.ScalarNode && node.Tag == "!!bool"
		case "an integer":
			valid = node.Kind == yaml.ScalarNode && node.Tag == "!!int"
		}
		if !valid {
			return &OptionError{Field: key, Value: node.Value, Reason: "must be " + kind}
		}
	}
	return nil
}

// UnmarshalYAML decodes a boolean or a mapping
func (s *CorsSetting) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*s = CorsSetting{}
			return nil
		}
		var b bool
		if err := value.Decode(&b); err != nil {
			return fmt.Errorf("line %d: cors must be a boolean or a mapping, got %q", value.Line, value.Value)
		}
		*s = CorsSetting{Set: true, Enabled: b}
		return nil
	case yaml.MappingNode:
		if err := checkOptionKinds(value); err != nil {
			return err
		}
		var c CorsConfig
		if err := value.Decode(&c); err != nil {
			return fmt.Errorf("invalid cors options: %w", err)
		}
		*s = CorsPartial(c)
		return nil
	default:
		return fmt.Errorf("line %d: cors must be a boolean or a mapping", value.Line)
	}
}

// String renders the setting the way it would appear in YAML
func (s CorsSetting) String() string {
	switch {
	case !s.Set:
		return "default"
	case s.Options != nil:
		return "custom"
	case s.Enabled:
		return "true"
	default:
		return "false"
	}
}
