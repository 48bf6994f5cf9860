package graph

import "github.com/vektah/gqlparser/v2/ast"

const (
	// JoinGraphEnum is the enum whose values name the subgraphs of a supergraph.
	JoinGraphEnum = "join__Graph"
	// JoinGraphDirective annotates each JoinGraphEnum value with the subgraph's name and url.
	JoinGraphDirective = "join__graph"
	// JoinTypeDirective marks the subgraphs contributing a type.
	JoinTypeDirective = "join__type"
	// JoinFieldDirective marks the subgraphs resolving a field.
	JoinFieldDirective = "join__field"
)

// NameMap maps a join__Graph enum value to the subgraph name it was composed from.
type NameMap map[string]string

// BuildNameMap extracts the identifier → real name mapping from doc.
//
// For each join__Graph value the first @join__graph directive carrying a string `name`
// argument wins. Values without such a directive are omitted. A document without the
// enum yields an empty map.
func BuildNameMap(doc *ast.SchemaDocument) NameMap {
	names := make(NameMap)

	def := joinGraphEnum(doc)
	if def == nil {
		return names
	}

	for _, v := range def.EnumValues {
		if name, ok := stringArgument(v.Directives, JoinGraphDirective, "name"); ok {
			names[v.Name] = name
		}
	}

	return names
}

// Lookup returns the real name of id, or id itself when it is unknown.
func (m NameMap) Lookup(id string) string {
	if name, ok := m[id]; ok {
		return name
	}
	return id
}

func joinGraphEnum(doc *ast.SchemaDocument) *ast.Definition {
	if doc == nil {
		return nil
	}

	for _, def := range doc.Definitions {
		if def != nil && def.Kind == ast.Enum && def.Name == JoinGraphEnum {
			return def
		}
	}

	return nil
}

// stringArgument returns the first string literal argument arg of a directive named
// directive.
func stringArgument(directives ast.DirectiveList, directive, arg string) (string, bool) {
	for _, d := range directives {
		if d == nil || d.Name != directive {
			continue
		}
		if v, ok := stringValue(d, arg); ok {
			return v, true
		}
	}

	return "", false
}

func stringValue(d *ast.Directive, arg string) (string, bool) {
	a := d.Arguments.ForName(arg)
	if a == nil || a.Value == nil {
		return "", false
	}

	switch a.Value.Kind {
	case ast.StringValue, ast.BlockValue:
		return a.Value.Raw, true
	}
	return "", false
}
