package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/n9te9/go-graphql-supergraph-mesh/federation/cache"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/graph"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/loader"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/subgraph"
	"github.com/n9te9/go-graphql-supergraph-mesh/interpolation"
	"go.uber.org/zap"
)

// MeshSourceOptions are supplied each time a mesh source is built.
type MeshSourceOptions struct {
	// HTTPClient is used to fetch URL sources and to call subgraphs. Nil selects
	// per-subgraph clients built from the configuration.
	HTTPClient *http.Client
}

// MeshSource is the result of GetMeshSource.
type MeshSource struct {
	Schema *graph.ComposedSchema
	Names  graph.NameMap
}

// Subgraph finds a subgraph by its join__Graph value or by its real name.
func (m *MeshSource) Subgraph(name string) (*graph.SubgraphRequest, bool) {
	if sg, ok := m.Schema.Subgraph(name); ok {
		return sg, true
	}
	for id, realName := range m.Names {
		if realName == name {
			return m.Schema.Subgraph(id)
		}
	}
	return nil, false
}

// Handler builds mesh sources from a supergraph and the subgraph configuration.
// File sources are cached for the lifetime of the Handler.
type Handler struct {
	option     MeshOption
	env        interpolation.Environment
	cache      *cache.Cache
	fileReader loader.Reader
	logger     *zap.Logger
}

// HandlerOpt configures a Handler.
type HandlerOpt func(*Handler)

func WithLogger(logger *zap.Logger) HandlerOpt {
	return func(h *Handler) { h.logger = logger }
}

// WithFileReader replaces the reader used for local sources.
func WithFileReader(r loader.Reader) HandlerOpt {
	return func(h *Handler) { h.fileReader = r }
}

// NewHandler creates a Handler. env is the only environment templates can see.
func NewHandler(option MeshOption, env interpolation.Environment, opts ...HandlerOpt) (*Handler, error) {
	option.applyDefaults()
	if err := option.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mesh option: %w", err)
	}

	c, err := cache.New(cache.DefaultSize)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		option: option,
		env:    env,
		cache:  c,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}

	return h, nil
}

// Option returns the configuration the handler was built with.
func (h *Handler) Option() MeshOption {
	return h.option
}

// GetMeshSource loads the supergraph, recovers the subgraph names and configures an
// executor for every subgraph. Any loading error aborts the call.
func (h *Handler) GetMeshSource(ctx context.Context, opts MeshSourceOptions) (*MeshSource, error) {
	tracing := h.option.Opentelemetry.TracingSetting.Enable

	loaderOpts := []loader.Option{
		loader.WithCache(h.cache),
		loader.WithLogger(h.logger),
		loader.WithURLReader(loader.NewURLReader(opts.HTTPClient, tracing)),
	}
	if h.fileReader != nil {
		loaderOpts = append(loaderOpts, loader.WithFileReader(h.fileReader))
	}

	l, err := loader.New(h.env, loaderOpts...)
	if err != nil {
		return nil, err
	}

	doc, err := l.Load(ctx, h.option.Source, h.option.BaseDir, h.option.SchemaHeaders)
	if err != nil {
		return nil, err
	}

	names := graph.BuildNameMap(doc)
	schema, reqs := graph.Assemble(doc, graph.AssembleOptions{Batch: h.option.BatchEnabled()})

	factory := subgraph.NewFactory(
		h.env,
		names,
		h.option.subgraphConfigs(opts.HTTPClient, tracing),
		subgraph.WithOperationHeaders(h.option.OperationHeaders),
		subgraph.WithLogger(h.logger),
	)
	factory.ConfigureAll(reqs)

	h.logger.Info("mesh source ready",
		zap.Int("subgraphs", len(reqs)),
		zap.Any("names", names),
		zap.Bool("batch", schema.Batch),
	)

	return &MeshSource{Schema: schema, Names: names}, nil
}
