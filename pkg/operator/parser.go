package operator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Parser converts a raw model reply into the declared return type.
type Parser[T any] interface {
	Parse(raw string) (T, error)
}

// textParser returns the reply unchanged.
type textParser struct{}

func (textParser) Parse(raw string) (string, error) { return raw, nil }

// schemaParser validates a JSON reply against the schema derived from T and
// decodes it. Validation is strict: a missing required field or a type
// mismatch fails the whole parse, never a partial result.
type schemaParser[T any] struct {
	resolved *jsonschema.Resolved
}

func newSchemaParser[T any]() (*schemaParser[T], error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("operator: derive schema: %w", err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("operator: resolve schema: %w", err)
	}

	return &schemaParser[T]{resolved: resolved}, nil
}

func (p *schemaParser[T]) Parse(raw string) (T, error) {
	var zero T

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return zero, &ParseError{Raw: raw, Err: err}
	}

	if err := p.resolved.Validate(generic); err != nil {
		return zero, &ParseError{Raw: raw, Err: err}
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return zero, &ParseError{Raw: raw, Err: err}
	}

	return out, nil
}

// parserFor picks the parser implied by T: identity for string, schema-backed
// JSON for everything else.
func parserFor[T any]() (Parser[T], error) {
	var zero T
	if _, ok := any(zero).(string); ok {
		p, ok := any(textParser{}).(Parser[T])
		if !ok {
			return nil, errors.New("operator: text parser type mismatch")
		}
		return p, nil
	}

	return newSchemaParser[T]()
}
