package graph

import (
	"fmt"

	"github.com/n9te9/go-graphql-supergraph-mesh/federation/executor"
	"github.com/vektah/gqlparser/v2/ast"
)

// SubgraphRequest is handed out by Assemble for every join__Graph value. The caller
// fills in Executor before the composed schema is used.
type SubgraphRequest struct {
	Name     string // join__Graph enum value
	Endpoint string // url declared by @join__graph
	Executor executor.Executor
}

// EntityKey is one @join__type(key:) declaration.
type EntityKey struct {
	Graph      string
	FieldSet   string
	Resolvable bool
}

// TypeOwnership records which subgraphs contribute a type and its fields.
type TypeOwnership struct {
	Name   string
	Kind   ast.DefinitionKind
	Graphs []string
	Keys   []EntityKey
	fields map[string][]string
}

// FieldOwners returns the subgraphs able to resolve field.
func (t *TypeOwnership) FieldOwners(field string) []string {
	if owners, ok := t.fields[field]; ok {
		return owners
	}
	return nil
}

// IsEntity reports whether at least one subgraph declares a resolvable key for the type.
func (t *TypeOwnership) IsEntity() bool {
	for _, k := range t.Keys {
		if k.Resolvable {
			return true
		}
	}
	return false
}

// AssembleOptions configure Assemble.
type AssembleOptions struct {
	Batch bool
}

// ComposedSchema is the supergraph document together with its subgraphs and the
// ownership derived from the join directives. It is read-only once every
// SubgraphRequest has an executor.
type ComposedSchema struct {
	Document *ast.SchemaDocument
	Batch    bool

	subgraphs []*SubgraphRequest
	byName    map[string]*SubgraphRequest
	types     map[string]*TypeOwnership
}

// Subgraphs returns the subgraphs in declaration order.
func (s *ComposedSchema) Subgraphs() []*SubgraphRequest {
	return s.subgraphs
}

// Subgraph returns the subgraph declared under the join__Graph value id.
func (s *ComposedSchema) Subgraph(id string) (*SubgraphRequest, bool) {
	sg, ok := s.byName[id]
	return sg, ok
}

// Executor returns the configured executor of subgraph id.
func (s *ComposedSchema) Executor(id string) (executor.Executor, error) {
	sg, ok := s.byName[id]
	if !ok {
		return nil, fmt.Errorf("unknown subgraph %q", id)
	}
	if sg.Executor == nil {
		return nil, fmt.Errorf("subgraph %q has no executor", id)
	}
	return sg.Executor, nil
}

// Type returns the ownership information of the named type.
func (s *ComposedSchema) Type(name string) (*TypeOwnership, bool) {
	t, ok := s.types[name]
	return t, ok
}

// FieldOwners returns the subgraphs able to resolve typeName.field.
func (s *ComposedSchema) FieldOwners(typeName, field string) []string {
	t, ok := s.types[typeName]
	if !ok {
		return nil
	}
	return t.FieldOwners(field)
}
