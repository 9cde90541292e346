package omnibus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema describes one payload kind: the channel prefix that selects it, the
// JSON Schema its internal-case form must satisfy, and how to decode a
// validated value into the kind's Go type.
type Schema struct {
	kind   string
	prefix string
	schema *gojsonschema.Schema
	decode func(v any) (Payload, error)
}

// NewSchema compiles a schema for payload type T. The prefix is taken from
// T's ChannelPrefix; document is a JSON Schema written against the internal
// (camelCase) keys.
func NewSchema[T Payload](kind, document string) (*Schema, error) {
	var zero T
	prefix := zero.ChannelPrefix()
	if prefix == "" {
		return nil, fmt.Errorf("schema %s: empty channel prefix", kind)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", kind, err)
	}

	return &Schema{
		kind:   kind,
		prefix: prefix,
		schema: compiled,
		decode: decodeAs[T],
	}, nil
}

// MustSchema is like NewSchema but panics on error. Use it for package-level
// schema variables.
func MustSchema[T Payload](kind, document string) *Schema {
	s, err := NewSchema[T](kind, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Kind returns the schema's short name, used in diagnostics and metrics.
func (s *Schema) Kind() string { return s.kind }

// Prefix returns the channel prefix governed by the schema.
func (s *Schema) Prefix() string { return s.prefix }

// Validate checks an internal-case value against the schema. It returns a
// *ValidationError listing every violation, or nil.
func (s *Schema) Validate(channel string, v any) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return &ValidationError{Channel: channel, Kind: s.kind, Err: err}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return &ValidationError{Channel: channel, Kind: s.kind, Problems: problems}
}

// Parse validates an internal-case value and decodes it into the schema's
// payload type.
func (s *Schema) Parse(channel string, v any) (Payload, error) {
	if err := s.Validate(channel, v); err != nil {
		return nil, err
	}
	p, err := s.decode(v)
	if err != nil {
		return nil, &ValidationError{Channel: channel, Kind: s.kind, Err: err}
	}
	return p, nil
}

func decodeAs[T Payload](v any) (Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return data, nil
}

// Catalogue is an immutable table of schemas resolved by channel prefix.
// It is safe for concurrent use.
type Catalogue struct {
	// sorted longest prefix first
	schemas []*Schema
}

// NewCatalogue builds a catalogue from the given schemas. Prefixes may
// overlap (the longest match wins) but must not repeat.
func NewCatalogue(schemas ...*Schema) (*Catalogue, error) {
	seen := make(map[string]string, len(schemas))
	sorted := make([]*Schema, 0, len(schemas))
	for _, s := range schemas {
		if s == nil {
			continue
		}
		if other, ok := seen[s.prefix]; ok {
			return nil, fmt.Errorf("%w: %q claimed by %s and %s", ErrDuplicatePrefix, s.prefix, other, s.kind)
		}
		seen[s.prefix] = s.kind
		sorted = append(sorted, s)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].prefix) > len(sorted[j].prefix)
	})

	return &Catalogue{schemas: sorted}, nil
}

// Resolve returns the schema governing channel: the one with the longest
// prefix that channel starts with. Matching is case-sensitive.
func (c *Catalogue) Resolve(channel string) (*Schema, bool) {
	for _, s := range c.schemas {
		if strings.HasPrefix(channel, s.prefix) {
			return s, true
		}
	}
	return nil, false
}

// Schemas returns the catalogue entries, longest prefix first.
func (c *Catalogue) Schemas() []*Schema {
	return append([]*Schema(nil), c.schemas...)
}

const daqDocument = `{
	"type": "object",
	"required": ["timestamp", "data", "relativeTimestamps", "sampleRate", "messageFormatVersion"],
	"properties": {
		"timestamp": {"type": "number"},
		"data": {
			"type": "object",
			"additionalProperties": {"type": "array", "items": {"type": "number"}}
		},
		"relativeTimestamps": {"type": "array", "items": {"type": "number"}},
		"sampleRate": {"type": "integer"},
		"messageFormatVersion": {"enum": [3]}
	}
}`

const parsleyDocument = `{
	"type": "object",
	"required": ["boardTypeId", "boardInstId", "msgPrio", "msgType", "parsley", "messageFormatVersion"],
	"properties": {
		"boardTypeId": {"type": "string"},
		"boardInstId": {"type": "string"},
		"msgPrio": {"enum": ["LOW", "MEDIUM", "HIGH", "HIGHEST"]},
		"msgType": {"type": "string"},
		"data": {},
		"parsley": {"type": "string"},
		"messageFormatVersion": {"enum": [2]}
	}
}`

const canCommandDocument = `{
	"type": "object",
	"required": ["boardTypeId", "boardInstId", "msgPrio", "msgType", "parsley", "messageFormatVersion"],
	"properties": {
		"boardTypeId": {"type": "string"},
		"boardInstId": {"type": "string"},
		"msgPrio": {"enum": ["LOW", "MEDIUM", "HIGH", "HIGHEST"]},
		"msgType": {"type": "string"},
		"canMsg": {},
		"parsley": {"type": "string"},
		"messageFormatVersion": {"enum": [2]}
	}
}`

const parsleyHealthDocument = `{
	"type": "object",
	"required": ["id", "health"],
	"properties": {
		"id": {"type": "string"},
		"health": {"type": "string"}
	}
}`

const rlcsDocument = `{
	"type": "object",
	"additionalProperties": {"type": ["number", "string"]}
}`

// Built-in schemas.
var (
	DAQSchema           = MustSchema[DAQMessage]("daq", daqDocument)
	ParsleySchema       = MustSchema[ParsleyMessage]("parsley", parsleyDocument)
	CANCommandSchema    = MustSchema[CANCommandMessage]("can-command", canCommandDocument)
	ParsleyHealthSchema = MustSchema[ParsleyHealthMessage]("parsley-health", parsleyHealthDocument)
	RLCSSchema          = MustSchema[RLCSMessage]("rlcs", rlcsDocument)
)

var defaultCatalogue = func() *Catalogue {
	c, err := NewCatalogue(DAQSchema, ParsleySchema, CANCommandSchema, ParsleyHealthSchema, RLCSSchema)
	if err != nil {
		panic(err)
	}
	return c
}()

// DefaultCatalogue returns the catalogue of built-in payload kinds.
func DefaultCatalogue() *Catalogue {
	return defaultCatalogue
}
