package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/n9te9/go-graphql-supergraph-mesh/gateway"
	"go.uber.org/zap"
)

// ErrNotLoaded is returned while no mesh source has been loaded yet.
var ErrNotLoaded = errors.New("mesh source not loaded")

// MeshSourceProvider builds mesh sources.
type MeshSourceProvider interface {
	GetMeshSource(ctx context.Context, opts gateway.MeshSourceOptions) (*gateway.MeshSource, error)
}

// Registry holds the mesh source currently served. A failed reload keeps the previous one.
type Registry struct {
	provider MeshSourceProvider
	opts     gateway.MeshSourceOptions
	current  atomic.Pointer[gateway.MeshSource]
	reloadMu sync.Mutex
	logger   *zap.Logger
}

func NewRegistry(provider MeshSourceProvider, opts gateway.MeshSourceOptions, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		provider: provider,
		opts:     opts,
		logger:   logger,
	}
}

// Current returns the active mesh source.
func (r *Registry) Current() (*gateway.MeshSource, error) {
	src := r.current.Load()
	if src == nil {
		return nil, ErrNotLoaded
	}
	return src, nil
}

// Reload builds a new mesh source and makes it current. Concurrent reloads are serialized.
func (r *Registry) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	src, err := r.provider.GetMeshSource(ctx, r.opts)
	if err != nil {
		r.logger.Error("failed to load mesh source", zap.Error(err))
		return err
	}

	r.current.Store(src)
	r.logger.Info("mesh source applied", zap.Int("subgraphs", len(src.Schema.Subgraphs())))
	return nil
}

// Poll reloads every interval until ctx is done. Reload errors are logged and the
// previous mesh source stays active.
func (r *Registry) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Reload(ctx)
		}
	}
}
