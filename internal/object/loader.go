package object

import (
	"context"
	"time"

	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"go.uber.org/zap"
)

// Key identifies "the object at URL" in the fragment cache.
type Key struct {
	URL string
}

func (k Key) String() string { return k.URL }

// Loader fetches, decodes and resolves fragments, sharing results through a
// single-flight cache keyed by URL.
type Loader struct {
	fetcher   asset.Fetcher
	resolvers *Resolvers
	catalog   *ecs.Catalog // nil keeps every component kind
	cache     *asset.Cache[Key, *Fragment]
	log       *zap.Logger
}

func NewLoader(fetcher asset.Fetcher, resolvers *Resolvers, catalog *ecs.Catalog, log *zap.Logger) *Loader {
	return &Loader{
		fetcher:   fetcher,
		resolvers: resolvers,
		catalog:   catalog,
		cache:     asset.NewCache[Key, *Fragment](),
		log:       log.Named("loader"),
	}
}

// Load returns the fragment at u, loading it at most once no matter how
// many callers ask concurrently. Failed loads are not cached.
func (l *Loader) Load(ctx context.Context, u asset.URL) (*Fragment, error) {
	return l.cache.GetOrLoad(ctx, Key{URL: u.String()}, func(ctx context.Context) (*Fragment, error) {
		return l.load(ctx, u)
	})
}

// Peek returns the fragment at u if it is already cached.
func (l *Loader) Peek(u asset.URL) (*Fragment, bool) {
	return l.cache.Peek(Key{URL: u.String()})
}

// Loads reports how many times u was actually loaded.
func (l *Loader) Loads(u asset.URL) int {
	return l.cache.Loads(Key{URL: u.String()})
}

// Evict drops u from the cache.
func (l *Loader) Evict(u asset.URL) {
	l.cache.Evict(Key{URL: u.String()})
}

// Cached returns the number of fragments held.
func (l *Loader) Cached() int { return l.cache.Len() }

func (l *Loader) load(ctx context.Context, u asset.URL) (*Fragment, error) {
	start := time.Now()
	data, err := l.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, &LoadError{Stage: StageFetch, URL: u.String(), Err: err}
	}

	var keep KindFilter
	if l.catalog != nil {
		keep = l.catalog.Known
	}
	frag, err := Decode(data, u.Ext(), keep)
	if err != nil {
		return nil, &LoadError{Stage: StageDecode, URL: u.String(), Err: err}
	}
	frag.URL = u.String()
	for _, w := range frag.Warnings {
		l.log.Warn("fragment warning", zap.String("url", frag.URL), zap.String("warning", w))
	}

	if err := l.resolvers.ResolveFragment(frag, u); err != nil {
		return nil, err
	}

	l.log.Debug("object loaded",
		zap.String("url", frag.URL),
		zap.Int("entities", frag.Len()),
		zap.String("digest", frag.Digest),
		zap.Duration("took", time.Since(start)),
	)
	return frag, nil
}
