// Package subgraph turns supergraph subgraph declarations into executors whose endpoint
// and headers are evaluated for every request.
package subgraph

import (
	"context"
	"net/http"
	"strings"

	"github.com/n9te9/go-graphql-supergraph-mesh/federation/executor"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/graph"
	"github.com/n9te9/go-graphql-supergraph-mesh/interpolation"
	"go.uber.org/zap"
)

// Config is the static configuration of one subgraph, looked up by its real name.
type Config struct {
	Name             string
	Endpoint         string // template, overrides the url declared in the supergraph
	OperationHeaders map[string]string
	Transport        executor.Options // forwarded to the transport; Endpoint is ignored
}

// TransportFunc builds the transport executor of a subgraph.
type TransportFunc func(opts executor.Options) executor.Executor

// Factory configures SubgraphRequests. It is read-only after NewFactory.
type Factory struct {
	env              interpolation.Environment
	names            graph.NameMap
	configs          map[string]Config
	operationHeaders map[string]string
	transport        TransportFunc
	logger           *zap.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithOperationHeaders sets headers applied to every subgraph after its own.
func WithOperationHeaders(headers map[string]string) Option {
	return func(f *Factory) { f.operationHeaders = headers }
}

// WithTransport replaces the HTTP transport.
func WithTransport(fn TransportFunc) Option {
	return func(f *Factory) { f.transport = fn }
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory creates a Factory. names maps join__Graph values to the real names
// configs are registered under.
func NewFactory(env interpolation.Environment, names graph.NameMap, configs []Config, opts ...Option) *Factory {
	f := &Factory{
		env:     env,
		names:   names,
		configs: make(map[string]Config, len(configs)),
	}
	for _, c := range configs {
		f.configs[c.Name] = c
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.transport == nil {
		f.transport = func(opts executor.Options) executor.Executor {
			return executor.NewHTTPExecutor(opts)
		}
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}

	return f
}

// ConfigFor returns the configuration applied to the join__Graph value id.
// Unknown subgraphs get a configuration carrying only id.
func (f *Factory) ConfigFor(id string) Config {
	realName, ok := f.names[id]
	if ok {
		if c, ok := f.configs[realName]; ok {
			return c
		}
	}
	return Config{Name: id}
}

// Configure sets req.Executor.
func (f *Factory) Configure(req *graph.SubgraphRequest) {
	cfg := f.ConfigFor(req.Name)

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = req.Endpoint
	}

	transportOpts := cfg.Transport
	transportOpts.Endpoint = req.Endpoint
	if transportOpts.Logger == nil {
		transportOpts.Logger = f.logger
	}

	f.logger.Debug("configured subgraph",
		zap.String("subgraph", req.Name),
		zap.String("name", cfg.Name),
		zap.String("endpoint", endpoint),
	)

	req.Executor = &dynamicExecutor{
		env:              f.env,
		staticEndpoint:   req.Endpoint,
		endpoint:         endpoint,
		headers:          cfg.OperationHeaders,
		operationHeaders: f.operationHeaders,
		next:             f.transport(transportOpts),
	}
}

// ConfigureAll configures every request.
func (f *Factory) ConfigureAll(reqs []*graph.SubgraphRequest) {
	for _, req := range reqs {
		f.Configure(req)
	}
}

// dynamicExecutor rewrites endpoint and headers of every request before handing it to
// the transport.
type dynamicExecutor struct {
	env              interpolation.Environment
	staticEndpoint   string
	endpoint         string
	headers          map[string]string
	operationHeaders map[string]string
	next             executor.Executor
}

var _ executor.BatchExecutor = (*dynamicExecutor)(nil)

func (e *dynamicExecutor) Execute(ctx context.Context, req *executor.Request) (*executor.Response, error) {
	return e.next.Execute(ctx, e.prepare(req))
}

// ExecuteBatch evaluates endpoint and headers with the first request. Transports without
// batch support receive the requests one by one.
func (e *dynamicExecutor) ExecuteBatch(ctx context.Context, reqs []*executor.Request) ([]*executor.Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	if batch, ok := e.next.(executor.BatchExecutor); ok {
		first := e.prepare(reqs[0])
		out := make([]*executor.Request, len(reqs))
		for i, r := range reqs {
			c := r.Clone()
			c.URL = first.URL
			c.Header = first.Header
			out[i] = c
		}
		return batch.ExecuteBatch(ctx, out)
	}

	resps := make([]*executor.Response, len(reqs))
	for i, r := range reqs {
		resp, err := e.Execute(ctx, r)
		if err != nil {
			return nil, err
		}
		resps[i] = resp
	}
	return resps, nil
}

func (e *dynamicExecutor) prepare(req *executor.Request) *executor.Request {
	out := req.Clone()
	out.URL = e.resolveURL(req)
	out.Header = e.resolveHeaders(req)
	return out
}

// resolveURL replaces the declared endpoint inside the outgoing URL with the evaluated
// endpoint template, so anything appended to the URL survives.
func (e *dynamicExecutor) resolveURL(req *executor.Request) string {
	u := req.URL
	if u == "" {
		u = e.staticEndpoint
	}

	resolved := interpolation.String(e.endpoint, interpolation.Data{
		Env:     e.env,
		Context: req.Context,
		Info:    req.Info,
	})
	if e.staticEndpoint == "" {
		return resolved
	}

	return strings.ReplaceAll(u, e.staticEndpoint, resolved)
}

func (e *dynamicExecutor) resolveHeaders(req *executor.Request) http.Header {
	h := make(http.Header)
	if e.headers == nil && e.operationHeaders == nil {
		return h
	}

	data := interpolation.Data{
		Env:       e.env,
		Context:   req.Context,
		Info:      req.Info,
		Root:      req.Root,
		Variables: req.Variables,
	}
	for _, tpl := range []map[string]string{e.headers, e.operationHeaders} {
		for k, vs := range interpolation.Headers(tpl, data) {
			h[k] = vs
		}
	}

	return h
}
