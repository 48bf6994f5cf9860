package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ReadOptions are passed to every Reader call.
type ReadOptions struct {
	Headers http.Header
	Cwd     string
}

// Reader retrieves the raw supergraph from a location.
type Reader interface {
	Read(ctx context.Context, location string, opts ReadOptions) (RawSource, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, location string, opts ReadOptions) (RawSource, error)

func (f ReaderFunc) Read(ctx context.Context, location string, opts ReadOptions) (RawSource, error) {
	return f(ctx, location, opts)
}

// URLReader fetches the supergraph over HTTP(S).
type URLReader struct {
	client *http.Client
}

// NewURLReader returns a URLReader. A nil client gets a default one with a 10s timeout,
// instrumented with otelhttp when tracing is set.
func NewURLReader(client *http.Client, tracing bool) *URLReader {
	if client == nil {
		var transport http.RoundTripper = http.DefaultTransport
		if tracing {
			transport = otelhttp.NewTransport(transport)
		}
		client = &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		}
	}
	return &URLReader{client: client}
}

func (r *URLReader) Read(ctx context.Context, location string, opts ReadOptions) (RawSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range opts.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, location)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return decodePayload(body, isJSONContentType(resp.Header.Get("Content-Type")))
}

// FileReader reads the supergraph from the local filesystem.
// Relative paths are resolved against ReadOptions.Cwd. Headers are ignored.
type FileReader struct{}

func (FileReader) Read(_ context.Context, location string, opts ReadOptions) (RawSource, error) {
	path := resolvePath(location, opts.Cwd)

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return decodePayload(body, strings.EqualFold(filepath.Ext(path), ".json"))
}

func resolvePath(location, cwd string) string {
	path := strings.TrimPrefix(location, "file://")
	if filepath.IsAbs(path) || cwd == "" {
		return path
	}
	return filepath.Join(cwd, path)
}

func isURL(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
