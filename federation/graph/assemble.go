package graph

import "github.com/vektah/gqlparser/v2/ast"

// Assemble builds the composed schema of doc and returns one SubgraphRequest per
// join__Graph value. The requests are shared with the schema, so populating their
// Executor field configures the schema.
func Assemble(doc *ast.SchemaDocument, opts AssembleOptions) (*ComposedSchema, []*SubgraphRequest) {
	s := &ComposedSchema{
		Document: doc,
		Batch:    opts.Batch,
		byName:   make(map[string]*SubgraphRequest),
		types:    make(map[string]*TypeOwnership),
	}

	if def := joinGraphEnum(doc); def != nil {
		for _, v := range def.EnumValues {
			url, _ := stringArgument(v.Directives, JoinGraphDirective, "url")
			req := &SubgraphRequest{Name: v.Name, Endpoint: url}
			s.subgraphs = append(s.subgraphs, req)
			s.byName[v.Name] = req
		}
	}

	if doc != nil {
		for _, def := range doc.Definitions {
			if def == nil || def.BuiltIn {
				continue
			}
			if t := buildTypeOwnership(def); t != nil {
				s.types[def.Name] = t
			}
		}
	}

	return s, s.subgraphs
}

func buildTypeOwnership(def *ast.Definition) *TypeOwnership {
	t := &TypeOwnership{
		Name:   def.Name,
		Kind:   def.Kind,
		fields: make(map[string][]string),
	}

	for _, d := range def.Directives.ForNames(JoinTypeDirective) {
		graph, ok := enumArgument(d, "graph")
		if !ok {
			continue
		}
		t.Graphs = appendUnique(t.Graphs, graph)

		if fieldSet, ok := stringValue(d, "key"); ok {
			t.Keys = append(t.Keys, EntityKey{
				Graph:      graph,
				FieldSet:   fieldSet,
				Resolvable: boolArgument(d, "resolvable", true),
			})
		}
	}

	if len(t.Graphs) == 0 {
		return nil
	}

	for _, f := range def.Fields {
		t.fields[f.Name] = fieldOwners(f, t.Graphs)
	}

	return t
}

// fieldOwners returns the graphs named by the field's @join__field directives, or
// typeGraphs when none is given. External declarations do not own the field.
func fieldOwners(f *ast.FieldDefinition, typeGraphs []string) []string {
	var owners []string
	var declared bool
	for _, d := range f.Directives.ForNames(JoinFieldDirective) {
		graph, ok := enumArgument(d, "graph")
		if !ok {
			continue
		}
		declared = true
		if boolArgument(d, "external", false) {
			continue
		}
		owners = appendUnique(owners, graph)
	}

	if !declared {
		return typeGraphs
	}
	return owners
}

func enumArgument(d *ast.Directive, name string) (string, bool) {
	a := d.Arguments.ForName(name)
	if a == nil || a.Value == nil || a.Value.Kind != ast.EnumValue {
		return "", false
	}
	return a.Value.Raw, true
}

func boolArgument(d *ast.Directive, name string, def bool) bool {
	a := d.Arguments.ForName(name)
	if a == nil || a.Value == nil || a.Value.Kind != ast.BooleanValue {
		return def
	}
	return a.Value.Raw == "true"
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
