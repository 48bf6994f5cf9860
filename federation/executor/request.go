package executor

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
)

// GraphQLError represents a GraphQL error with path information.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Request is one outgoing GraphQL operation to a subgraph.
//
// Context and Info are request-scoped values owned by the caller. They are only used as
// template inputs and are never sent over the wire.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	Extensions    map[string]interface{} `json:"extensions,omitempty"`

	URL     string      `json:"-"` // empty means the executor's endpoint
	Header  http.Header `json:"-"`
	Context any         `json:"-"`
	Info    any         `json:"-"`
	Root    any         `json:"-"`
}

// Response is the decoded subgraph answer.
type Response struct {
	Data       json.RawMessage        `json:"data,omitempty"`
	Errors     []GraphQLError         `json:"errors,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Executor performs one request against a subgraph.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// BatchExecutor sends several requests in a single round trip.
type BatchExecutor interface {
	Executor
	ExecuteBatch(ctx context.Context, reqs []*Request) ([]*Response, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Clone returns a shallow copy of r with its own header set.
func (r *Request) Clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	return &out
}
