// Package loader resolves, retrieves and parses the supergraph document.
//
// URL sources are fetched on every Load. File sources are read once per Loader and
// served from its cache afterwards.
package loader

import (
	"context"
	"fmt"

	"github.com/n9te9/go-graphql-supergraph-mesh/federation/cache"
	"github.com/n9te9/go-graphql-supergraph-mesh/interpolation"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
)

// CacheKey is the key under which a file-based supergraph is cached.
const CacheKey = "supergraph"

// Loader loads supergraph documents.
type Loader struct {
	env        interpolation.Environment
	urlReader  Reader
	fileReader Reader
	cache      *cache.Cache
	logger     *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithURLReader replaces the reader used for http(s) locators.
func WithURLReader(r Reader) Option {
	return func(l *Loader) { l.urlReader = r }
}

// WithFileReader replaces the reader used for local locators.
func WithFileReader(r Reader) Option {
	return func(l *Loader) { l.fileReader = r }
}

// WithCache makes the Loader share c for file sources.
func WithCache(c *cache.Cache) Option {
	return func(l *Loader) { l.cache = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a Loader. env is the only variable source available to locators and
// schema headers.
func New(env interpolation.Environment, opts ...Option) (*Loader, error) {
	l := &Loader{env: env}
	for _, opt := range opts {
		opt(l)
	}

	if l.urlReader == nil {
		l.urlReader = NewURLReader(nil, false)
	}
	if l.fileReader == nil {
		l.fileReader = FileReader{}
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.cache == nil {
		c, err := cache.New(cache.DefaultSize)
		if err != nil {
			return nil, err
		}
		l.cache = c
	}

	return l, nil
}

// Load resolves locator, retrieves the supergraph and returns it as a document.
// headers is evaluated against the environment and sent along with the retrieval.
func (l *Loader) Load(ctx context.Context, locator, baseDir string, headers map[string]string) (*ast.SchemaDocument, error) {
	data := interpolation.Data{Env: l.env}
	resolved := interpolation.String(locator, data)
	opts := ReadOptions{
		Headers: interpolation.Headers(headers, data),
		Cwd:     baseDir,
	}

	if isURL(resolved) {
		l.logger.Debug("fetching supergraph", zap.String("source", resolved))
		return l.read(ctx, l.urlReader, resolved, opts)
	}

	v, err := l.cache.GetWithSet(ctx, CacheKey, func(ctx context.Context) (any, error) {
		l.logger.Debug("reading supergraph", zap.String("source", resolved))
		return l.read(ctx, l.fileReader, resolved, opts)
	})
	if err != nil {
		return nil, err
	}

	doc, ok := v.(*ast.SchemaDocument)
	if !ok {
		return nil, &SourceTypeError{Locator: resolved, Rendering: fmt.Sprintf("cached %T", v)}
	}
	return doc, nil
}

func (l *Loader) read(ctx context.Context, r Reader, location string, opts ReadOptions) (*ast.SchemaDocument, error) {
	src, err := r.Read(ctx, location, opts)
	if err != nil {
		return nil, &SourceLoadError{Locator: location, Err: err}
	}

	return normalize(location, src)
}
