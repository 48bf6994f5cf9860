package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/executor"
	"github.com/n9te9/go-graphql-supergraph-mesh/registry"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

type server struct {
	registry *registry.Registry
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewHandler returns the HTTP handler serving the registry's mesh source.
func NewHandler(reg *registry.Registry, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &server{
		registry: reg,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /subgraphs/{name}", s.proxySubgraph)
	s.mux.HandleFunc("POST /schema/reload", s.reload)
	s.mux.HandleFunc("GET /healthz", s.health)

	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	id := req.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
		req.Header.Set(requestIDHeader, id)
	}
	w.Header().Set(requestIDHeader, id)

	s.mux.ServeHTTP(w, req)
}

type graphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	Extensions    map[string]interface{} `json:"extensions"`
}

// proxySubgraph forwards a GraphQL request to one subgraph. The incoming headers are
// exposed to templates as context.headers, never forwarded as is.
func (s *server) proxySubgraph(w http.ResponseWriter, req *http.Request) {
	src, err := s.registry.Current()
	if err != nil {
		writeErrors(w, http.StatusServiceUnavailable, err)
		return
	}

	name := req.PathValue("name")
	sg, ok := src.Subgraph(name)
	if !ok || sg.Executor == nil {
		writeErrors(w, http.StatusNotFound, fmt.Errorf("unknown subgraph %q", name))
		return
	}

	var body graphQLRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	requestID := req.Header.Get(requestIDHeader)
	resp, err := sg.Executor.Execute(req.Context(), &executor.Request{
		Query:         body.Query,
		OperationName: body.OperationName,
		Variables:     body.Variables,
		Extensions:    body.Extensions,
		Context: map[string]any{
			"requestId": requestID,
			"headers":   flattenHeaders(req.Header),
		},
		Info: map[string]any{
			"operationName": body.OperationName,
			"subgraph":      sg.Name,
			"subgraphName":  src.Names.Lookup(sg.Name),
		},
	})
	if err != nil {
		s.logger.Warn("subgraph request failed",
			zap.String("subgraph", sg.Name),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		writeErrors(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) reload(w http.ResponseWriter, req *http.Request) {
	if err := s.registry.Reload(req.Context()); err != nil {
		writeErrors(w, http.StatusInternalServerError, err)
		return
	}

	src, _ := s.registry.Current()
	writeJSON(w, http.StatusOK, map[string]any{"subgraphs": src.Names})
}

func (s *server) health(w http.ResponseWriter, req *http.Request) {
	if _, err := s.registry.Current(); err != nil {
		writeErrors(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// flattenHeaders lower-cases header names and keeps the first value of each.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[strings.ToLower(k)] = vs[0]
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeErrors(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"errors": []executor.GraphQLError{{Message: err.Error()}},
	})
}

// Run serves handler on port until SIGTERM or SIGINT, then shuts down gracefully.
func Run(ctx context.Context, handler http.Handler, port int, shutdownTimeout time.Duration, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")

	return nil
}
