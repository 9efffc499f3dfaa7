package fraudflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// PatternFormat is the encoding of a patterns file
type PatternFormat string

const (
	FormatJSON PatternFormat = "json"
	FormatYAML PatternFormat = "yaml"
)

const patternSchemaID = "inmemory://patterns.schema.json"

const patternSchema = `{
  "type": "object",
  "required": ["patterns"],
  "properties": {
    "patterns": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["pattern_id", "pattern_name"],
        "properties": {
          "pattern_id": {"type": "string", "minLength": 1},
          "pattern_name": {"type": "string", "minLength": 1},
          "severity": {"type": "string"},
          "description": {"type": "string"},
          "nlp_description": {"type": "string"},
          "detection_logic": {"type": ["object", "array", "null"]}
        }
      }
    }
  }
}`

// DetectionLogic is the ordered list of detection steps. It decodes from an
// ordered mapping of step keys to text, from {"steps": [...]}, or from a
// plain list. Non-string and empty values are dropped.
type DetectionLogic []string

// UnmarshalJSON walks the object token by token to keep document order
func (d *DetectionLogic) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("detection_logic: %w", err)
	}

	switch tok {
	case nil:
		*d = nil
		return nil
	case json.Delim('['):
		var list []any
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("detection_logic: %w", err)
		}
		*d = stringsOnly(list)
		return nil
	case json.Delim('{'):
	default:
		return fmt.Errorf("detection_logic: expected object, got %v", tok)
	}

	var ordered []string
	var explicit []any
	hasExplicit := false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("detection_logic: %w", err)
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("detection_logic %q: %w", key, err)
		}
		if key == "steps" {
			if list, ok := value.([]any); ok {
				explicit = list
				hasExplicit = true
				continue
			}
		}
		if text, ok := value.(string); ok && strings.TrimSpace(text) != "" {
			ordered = append(ordered, strings.TrimSpace(text))
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("detection_logic: %w", err)
	}

	if hasExplicit {
		*d = stringsOnly(explicit)
		return nil
	}
	*d = ordered
	return nil
}

// UnmarshalYAML reads mapping nodes pairwise to keep document order
func (d *DetectionLogic) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		*d = scalarStrings(node.Content)
		return nil
	case yaml.MappingNode:
	default:
		if node.Tag == "!!null" {
			*d = nil
			return nil
		}
		return fmt.Errorf("detection_logic: expected mapping at line %d", node.Line)
	}

	var ordered []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Value == "steps" && value.Kind == yaml.SequenceNode {
			*d = scalarStrings(value.Content)
			return nil
		}
		if value.Kind == yaml.ScalarNode && value.Tag == "!!str" {
			if text := strings.TrimSpace(value.Value); text != "" {
				ordered = append(ordered, text)
			}
		}
	}
	*d = ordered
	return nil
}

func stringsOnly(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if text, ok := v.(string); ok && strings.TrimSpace(text) != "" {
			out = append(out, strings.TrimSpace(text))
		}
	}
	return out
}

func scalarStrings(nodes []*yaml.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
			if text := strings.TrimSpace(n.Value); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

type patternEntry struct {
	PatternID      string         `json:"pattern_id" yaml:"pattern_id"`
	PatternName    string         `json:"pattern_name" yaml:"pattern_name"`
	Severity       string         `json:"severity" yaml:"severity"`
	Description    string         `json:"description" yaml:"description"`
	NLPDescription string         `json:"nlp_description" yaml:"nlp_description"`
	DetectionLogic DetectionLogic `json:"detection_logic" yaml:"detection_logic"`
}

type patternDocument struct {
	Patterns []patternEntry `json:"patterns" yaml:"patterns"`
}

// LoadPatterns reads a JSON or YAML patterns file, chosen by extension
func LoadPatterns(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns file: %w", err)
	}

	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return ParsePatterns(data, format)
}

// ParsePatterns validates and decodes a patterns document
func ParsePatterns(data []byte, format PatternFormat) ([]Pattern, error) {
	var generic any
	var doc patternDocument

	switch format {
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, NewWorkflowError(ErrCodeValidation, "invalid YAML patterns document").WithCause(err)
		}
		normalized, err := normalizeYAML(raw)
		if err != nil {
			return nil, NewWorkflowError(ErrCodeValidation, "invalid YAML patterns document").WithCause(err)
		}
		generic = normalized
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, NewWorkflowError(ErrCodeValidation, "invalid YAML patterns document").WithCause(err)
		}
	default:
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, NewWorkflowError(ErrCodeValidation, "invalid JSON patterns document").WithCause(err)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, NewWorkflowError(ErrCodeValidation, "invalid JSON patterns document").WithCause(err)
		}
	}

	if err := validatePatternDocument(generic); err != nil {
		return nil, err
	}

	patterns := make([]Pattern, 0, len(doc.Patterns))
	for _, entry := range doc.Patterns {
		description := entry.Description
		if description == "" {
			description = entry.NLPDescription
		}
		p := Pattern{
			ID:          entry.PatternID,
			Name:        entry.PatternName,
			Severity:    entry.Severity,
			Description: description,
			Steps:       []string(entry.DetectionLogic),
		}
		if p.Steps == nil {
			p.Steps = []string{}
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// FindPattern returns the pattern with the given id
func FindPattern(patterns []Pattern, id string) (Pattern, error) {
	for _, p := range patterns {
		if p.ID == id {
			return p, nil
		}
	}
	return Pattern{}, NewWorkflowError(ErrCodeNotFound, fmt.Sprintf("pattern %s not found", id))
}

func validatePatternDocument(value any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(patternSchemaID, strings.NewReader(patternSchema)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(patternSchemaID)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return NewWorkflowError(ErrCodeValidation, "patterns document failed schema validation").WithCause(err)
	}
	return nil
}

// normalizeYAML round-trips a decoded YAML value through JSON so the schema
// validator sees the same types it would for a JSON document
func normalizeYAML(value any) (any, error) {
	data, err := json.Marshal(stringKeys(value))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// stringKeys converts maps with non-string keys, which YAML allows
func stringKeys(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = stringKeys(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = stringKeys(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = stringKeys(item)
		}
		return out
	default:
		return value
	}
}
