package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/executor"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/graph"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/loader"
	"github.com/n9te9/go-graphql-supergraph-mesh/gateway"
	"github.com/n9te9/go-graphql-supergraph-mesh/interpolation"
)

func newAccountsServer(t *testing.T, gotHeader *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotHeader = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"me":{"id":"1","name":"Ada"}}}`)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetMeshSource_File(t *testing.T) {
	var gotHeader http.Header
	srv := newAccountsServer(t, &gotHeader)

	option, err := gateway.LoadOption("testdata/mesh.yaml")
	if err != nil {
		t.Fatal(err)
	}
	env := interpolation.Environment{
		"SUPERGRAPH":   "supergraph.graphql",
		"ACCOUNTS_URL": srv.URL,
	}

	h, err := gateway.NewHandler(*option, env)
	if err != nil {
		t.Fatal(err)
	}

	src, err := h.GetMeshSource(context.Background(), gateway.MeshSourceOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantNames := graph.NameMap{"ACCOUNTS": "accounts", "INVENTORY": "inventory"}
	if diff := cmp.Diff(wantNames, src.Names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if !src.Schema.Batch {
		t.Error("expected batching to default to enabled")
	}

	accounts, ok := src.Subgraph("accounts")
	if !ok || accounts.Name != "ACCOUNTS" {
		t.Fatalf("Subgraph(accounts) = %v, %v", accounts, ok)
	}

	resp, err := accounts.Executor.Execute(context.Background(), &executor.Request{
		Query: "{ me { id name } }",
		Context: map[string]any{
			"requestId": "req-1",
			"headers":   map[string]string{"authorization": "Bearer user"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Data) != `{"me":{"id":"1","name":"Ada"}}` {
		t.Errorf("Data = %s", resp.Data)
	}
	if gotHeader.Get("Authorization") != "Bearer user" || gotHeader.Get("X-Request-Id") != "req-1" {
		t.Errorf("unexpected headers %v", gotHeader)
	}

	// inventory has no configuration entry and keeps its declared endpoint
	if _, ok := src.Subgraph("INVENTORY"); !ok {
		t.Error("expected INVENTORY to be configured")
	}
	if _, ok := src.Subgraph("reviews"); ok {
		t.Error("reviews is configured but absent from the supergraph")
	}
}

func TestGetMeshSource_FileIsReadOnce(t *testing.T) {
	sdl, err := os.ReadFile("testdata/supergraph.graphql")
	if err != nil {
		t.Fatal(err)
	}

	var reads int32
	reader := loader.ReaderFunc(func(context.Context, string, loader.ReadOptions) (loader.RawSource, error) {
		atomic.AddInt32(&reads, 1)
		return loader.Text(sdl), nil
	})

	h, err := gateway.NewHandler(gateway.MeshOption{Source: "supergraph.graphql"}, nil, gateway.WithFileReader(reader))
	if err != nil {
		t.Fatal(err)
	}

	first, err := h.GetMeshSource(context.Background(), gateway.MeshSourceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.GetMeshSource(context.Background(), gateway.MeshSourceOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if first.Schema.Document != second.Schema.Document {
		t.Error("expected the cached document to be reused")
	}
	if reads != 1 {
		t.Errorf("expected 1 read, got %d", reads)
	}
}

func TestGetMeshSource_URLIsFetchedEveryTime(t *testing.T) {
	sdl, err := os.ReadFile("testdata/supergraph.graphql")
	if err != nil {
		t.Fatal(err)
	}

	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write(sdl) //nolint:errcheck
	}))
	defer srv.Close()

	option := gateway.MeshOption{
		Source:        "{env.SUPERGRAPH_URL}",
		SchemaHeaders: map[string]string{"Authorization": "Bearer {env.TOKEN}"},
	}
	env := interpolation.Environment{"SUPERGRAPH_URL": srv.URL, "TOKEN": "secret"}

	h, err := gateway.NewHandler(option, env)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := h.GetMeshSource(context.Background(), gateway.MeshSourceOptions{HTTPClient: srv.Client()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if fetches != 2 {
		t.Errorf("expected 2 fetches, got %d", fetches)
	}
}

func TestGetMeshSource_InvalidPayloadIsFatal(t *testing.T) {
	reader := loader.ReaderFunc(func(context.Context, string, loader.ReadOptions) (loader.RawSource, error) {
		return loader.Structured{Value: map[string]any{"kind": "Object"}}, nil
	})

	h, err := gateway.NewHandler(gateway.MeshOption{Source: "supergraph.json"}, nil, gateway.WithFileReader(reader))
	if err != nil {
		t.Fatal(err)
	}

	src, err := h.GetMeshSource(context.Background(), gateway.MeshSourceOptions{})
	if src != nil {
		t.Error("expected no mesh source")
	}
	var typeErr *loader.SourceTypeError
	if !errors.As(err, &typeErr) || typeErr.Locator != "supergraph.json" {
		t.Fatalf("expected SourceTypeError for supergraph.json, got %v", err)
	}
}

func TestNewHandler_InvalidOption(t *testing.T) {
	if _, err := gateway.NewHandler(gateway.MeshOption{}, nil); err == nil {
		t.Fatal("expected error for missing source")
	}
}
