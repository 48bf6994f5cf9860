package graph_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/executor"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/graph"
	"github.com/vektah/gqlparser/v2/ast"
)

const supergraphSDL = `
enum join__Graph {
  ACCOUNTS @join__graph(name: "accounts", url: "http://accounts:4001/graphql")
  REVIEWS @join__graph(name: "reviews", url: "http://reviews:4002/graphql")
}

type Query @join__type(graph: ACCOUNTS) @join__type(graph: REVIEWS) {
  me: User @join__field(graph: ACCOUNTS)
  reviews: [Review] @join__field(graph: REVIEWS)
}

type User
  @join__type(graph: ACCOUNTS, key: "id")
  @join__type(graph: REVIEWS, key: "id", resolvable: false)
{
  id: ID!
  name: String @join__field(graph: ACCOUNTS) @join__field(graph: REVIEWS, external: true)
}

type Review @join__type(graph: REVIEWS) {
  body: String
}

scalar Plain
`

func TestAssemble(t *testing.T) {
	doc := parseSDL(t, supergraphSDL)
	schema, reqs := graph.Assemble(doc, graph.AssembleOptions{Batch: true})

	if schema.Document != doc {
		t.Error("expected the schema to keep the document")
	}
	if !schema.Batch {
		t.Error("expected batch to be passed through")
	}

	gotReqs := make(map[string]string)
	for _, r := range reqs {
		gotReqs[r.Name] = r.Endpoint
	}
	wantReqs := map[string]string{
		"ACCOUNTS": "http://accounts:4001/graphql",
		"REVIEWS":  "http://reviews:4002/graphql",
	}
	if diff := cmp.Diff(wantReqs, gotReqs); diff != "" {
		t.Errorf("subgraph requests mismatch (-want +got):\n%s", diff)
	}

	ownerTests := []struct {
		typeName string
		field    string
		want     []string
	}{
		{typeName: "Query", field: "me", want: []string{"ACCOUNTS"}},
		{typeName: "Query", field: "reviews", want: []string{"REVIEWS"}},
		{typeName: "User", field: "id", want: []string{"ACCOUNTS", "REVIEWS"}},
		{typeName: "User", field: "name", want: []string{"ACCOUNTS"}},
		{typeName: "Review", field: "body", want: []string{"REVIEWS"}},
		{typeName: "Plain", field: "x", want: nil},
		{typeName: "Missing", field: "x", want: nil},
	}
	for _, tt := range ownerTests {
		if diff := cmp.Diff(tt.want, schema.FieldOwners(tt.typeName, tt.field)); diff != "" {
			t.Errorf("FieldOwners(%s.%s) mismatch (-want +got):\n%s", tt.typeName, tt.field, diff)
		}
	}

	user, ok := schema.Type("User")
	if !ok {
		t.Fatal("expected User ownership")
	}
	wantKeys := []graph.EntityKey{
		{Graph: "ACCOUNTS", FieldSet: "id", Resolvable: true},
		{Graph: "REVIEWS", FieldSet: "id", Resolvable: false},
	}
	if diff := cmp.Diff(wantKeys, user.Keys); diff != "" {
		t.Errorf("User keys mismatch (-want +got):\n%s", diff)
	}
	if !user.IsEntity() {
		t.Error("expected User to be an entity")
	}
	if user.Kind != ast.Object {
		t.Errorf("User kind = %s", user.Kind)
	}

	review, _ := schema.Type("Review")
	if review.IsEntity() {
		t.Error("expected Review not to be an entity")
	}
}

func TestAssemble_ExecutorsAreShared(t *testing.T) {
	schema, reqs := graph.Assemble(parseSDL(t, supergraphSDL), graph.AssembleOptions{})

	if _, err := schema.Executor("ACCOUNTS"); err == nil {
		t.Error("expected error before the executor is configured")
	}

	want := &executor.Response{}
	for _, r := range reqs {
		r.Executor = executor.ExecutorFunc(func(context.Context, *executor.Request) (*executor.Response, error) {
			return want, nil
		})
	}

	exec, err := schema.Executor("ACCOUNTS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := exec.Execute(context.Background(), &executor.Request{})
	if err != nil || got != want {
		t.Errorf("Execute() = %v, %v", got, err)
	}

	if _, err := schema.Executor("UNKNOWN"); err == nil {
		t.Error("expected error for unknown subgraph")
	}
}

func TestAssemble_NoJoinGraph(t *testing.T) {
	schema, reqs := graph.Assemble(parseSDL(t, `type Query { a: String }`), graph.AssembleOptions{})
	if len(reqs) != 0 || len(schema.Subgraphs()) != 0 {
		t.Errorf("expected no subgraphs, got %d", len(reqs))
	}

	schema, reqs = graph.Assemble(nil, graph.AssembleOptions{})
	if len(reqs) != 0 || schema == nil {
		t.Error("expected an empty schema for a nil document")
	}
}
