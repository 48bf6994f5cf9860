package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// RetryOption defines how often a failed subgraph request is attempted.
// Mutations are always sent once.
type RetryOption struct {
	Attempts int    `yaml:"attempts"`
	Backoff  string `yaml:"backoff"`
}

// Options configure an HTTPExecutor.
type Options struct {
	Endpoint              string
	Headers               http.Header // sent with every request, overridden by Request.Header
	Timeout               time.Duration
	Retry                 RetryOption
	UseGETForQueries      bool
	TLSInsecureSkipVerify bool
	EnableTracing         bool

	// Client replaces the client built from the options above when set.
	Client *http.Client
	Logger *zap.Logger
}

// HTTPExecutor sends GraphQL requests over HTTP. It is safe for concurrent use.
type HTTPExecutor struct {
	endpoint string
	headers  http.Header
	useGET   bool
	attempts int
	backoff  time.Duration
	client   *http.Client
	logger   *zap.Logger
}

var _ BatchExecutor = (*HTTPExecutor)(nil)

// NewHTTPExecutor creates an HTTPExecutor from opts.
func NewHTTPExecutor(opts Options) *HTTPExecutor {
	attempts := opts.Retry.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var backoff time.Duration
	if opts.Retry.Backoff != "" {
		if d, err := time.ParseDuration(opts.Retry.Backoff); err == nil {
			backoff = d
		}
	}

	client := opts.Client
	if client == nil {
		client = newClient(opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPExecutor{
		endpoint: opts.Endpoint,
		headers:  opts.Headers.Clone(),
		useGET:   opts.UseGETForQueries,
		attempts: attempts,
		backoff:  backoff,
		client:   client,
		logger:   logger,
	}
}

func newClient(opts Options) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if opts.TLSInsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		transport = t
	}
	if opts.EnableTracing {
		transport = otelhttp.NewTransport(transport)
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
}

// Endpoint returns the URL requests are sent to when Request.URL is empty.
func (e *HTTPExecutor) Endpoint() string {
	return e.endpoint
}

// Execute sends req and decodes the GraphQL response.
func (e *HTTPExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	target := req.URL
	if target == "" {
		target = e.endpoint
	}

	attempts := e.attempts
	if isMutation(req) {
		attempts = 1
	}

	var resp Response
	err := e.do(ctx, attempts, func() (*http.Request, error) {
		if e.useGET && !isMutation(req) {
			return e.newGETRequest(ctx, target, req)
		}

		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		return e.newRequest(ctx, http.MethodPost, target, bytes.NewReader(body), req.Header)
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// ExecuteBatch sends reqs as one JSON array. All requests go to the URL and headers of
// the first one.
func (e *HTTPExecutor) ExecuteBatch(ctx context.Context, reqs []*Request) ([]*Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	target := reqs[0].URL
	if target == "" {
		target = e.endpoint
	}

	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	attempts := e.attempts
	for _, r := range reqs {
		if isMutation(r) {
			attempts = 1
			break
		}
	}

	var resps []*Response
	err = e.do(ctx, attempts, func() (*http.Request, error) {
		return e.newRequest(ctx, http.MethodPost, target, bytes.NewReader(body), reqs[0].Header)
	}, &resps)
	if err != nil {
		return nil, err
	}

	if len(resps) != len(reqs) {
		return nil, fmt.Errorf("batch response has %d entries, want %d", len(resps), len(reqs))
	}

	return resps, nil
}

func (e *HTTPExecutor) newRequest(ctx context.Context, method, target string, body io.Reader, header http.Header) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range e.headers {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return httpReq, nil
}

func (e *HTTPExecutor) newGETRequest(ctx context.Context, target string, req *Request) (*http.Request, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint %q: %w", target, err)
	}

	q := u.Query()
	q.Set("query", req.Query)
	if req.OperationName != "" {
		q.Set("operationName", req.OperationName)
	}
	if len(req.Variables) > 0 {
		b, err := json.Marshal(req.Variables)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal variables: %w", err)
		}
		q.Set("variables", string(b))
	}
	u.RawQuery = q.Encode()

	return e.newRequest(ctx, http.MethodGet, u.String(), nil, req.Header)
}

// do runs the request built by build up to attempts times, retrying transport errors
// and 5xx answers. Mutations are never repeated, so callers pass 1 for them.
func (e *HTTPExecutor) do(ctx context.Context, attempts int, build func() (*http.Request, error), out any) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && e.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.backoff):
			}
		}

		httpReq, err := build()
		if err != nil {
			return err
		}

		retry, err := e.roundTrip(httpReq, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}

		e.logger.Debug("retrying subgraph request",
			zap.String("url", httpReq.URL.String()),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
	}

	return lastErr
}

func (e *HTTPExecutor) roundTrip(httpReq *http.Request, out any) (bool, error) {
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, httpReq.URL.Redacted())
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	return false, nil
}

func isMutation(req *Request) bool {
	return strings.HasPrefix(strings.TrimLeft(req.Query, " \t\r\n,"), "mutation")
}
