package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// RawSource is what a Reader hands back: one of Text, Parsed or Structured.
type RawSource interface {
	rawSource()
}

// Text is an SDL string that still needs parsing.
type Text string

// Parsed is an already parsed document.
type Parsed struct {
	Document *ast.SchemaDocument
}

// Structured is a decoded JSON value claiming to be a document.
// It must be an object with kind "Document" and a definitions list in the
// JSON rendering of the gqlparser AST.
type Structured struct {
	Value any
}

func (Text) rawSource()       {}
func (Parsed) rawSource()     {}
func (Structured) rawSource() {}

// normalize turns any RawSource into a document or a typed error naming locator.
func normalize(locator string, src RawSource) (*ast.SchemaDocument, error) {
	switch s := src.(type) {
	case Text:
		return parseText(locator, string(s))
	case Parsed:
		if s.Document == nil {
			return nil, &SourceTypeError{Locator: locator, Rendering: "<nil document>"}
		}
		return s.Document, nil
	case Structured:
		return decodeStructured(locator, s.Value)
	case nil:
		return nil, &SourceTypeError{Locator: locator, Rendering: "<nil>"}
	default:
		return nil, &SourceTypeError{Locator: locator, Rendering: fmt.Sprintf("%T", src)}
	}
}

func parseText(locator, text string) (*ast.SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: locator, Input: text})
	if err != nil {
		return nil, &SourceParseError{Locator: locator, Payload: text, Err: err}
	}
	return doc, nil
}

func decodeStructured(locator string, v any) (*ast.SchemaDocument, error) {
	if s, ok := v.(string); ok {
		return parseText(locator, s)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &SourceTypeError{Locator: locator, Rendering: render(v)}
	}

	kind, _ := obj["kind"].(string)
	if _, ok := obj["definitions"].([]any); !ok || kind != "Document" {
		return nil, &SourceTypeError{Locator: locator, Rendering: render(v)}
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return nil, &SourceTypeError{Locator: locator, Rendering: render(v), Err: err}
	}

	var doc ast.SchemaDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, &SourceTypeError{Locator: locator, Rendering: render(v), Err: err}
	}

	for i, def := range doc.Definitions {
		if err := checkDefinition(def); err != nil {
			return nil, &SourceTypeError{Locator: locator, Rendering: render(v), Err: fmt.Errorf("definition %d: %w", i, err)}
		}
	}
	for i, def := range doc.Extensions {
		if err := checkDefinition(def); err != nil {
			return nil, &SourceTypeError{Locator: locator, Rendering: render(v), Err: fmt.Errorf("extension %d: %w", i, err)}
		}
	}

	return &doc, nil
}

func checkDefinition(def *ast.Definition) error {
	switch {
	case def == nil:
		return errors.New("null definition")
	case def.Kind == "":
		return errors.New("missing kind")
	case def.Name == "":
		return errors.New("missing name")
	}
	return nil
}

func render(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return excerpt(fmt.Sprintf("%#v", v))
	}
	return excerpt(string(b))
}

// decodePayload classifies raw bytes. JSON strings become Text, other JSON values Structured.
func decodePayload(body []byte, isJSON bool) (RawSource, error) {
	if !isJSON {
		return Text(body), nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON payload: %w", err)
	}

	if s, ok := v.(string); ok {
		return Text(s), nil
	}
	return Structured{Value: v}, nil
}

func isJSONContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.HasPrefix(ct, "application/json") || strings.Contains(ct, "+json")
}
