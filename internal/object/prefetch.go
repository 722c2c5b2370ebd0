package object

import (
	"context"

	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/core/async"
	"go.uber.org/zap"
)

// Prefetcher warms the fragment cache ahead of a spawn. Results are dropped
// and errors only logged; callers get no answer.
type Prefetcher struct {
	loader *Loader
	exec   *async.Executor
	log    *zap.Logger
}

func NewPrefetcher(loader *Loader, exec *async.Executor, log *zap.Logger) *Prefetcher {
	return &Prefetcher{loader: loader, exec: exec, log: log.Named("prefetch")}
}

// Prefetch resolves raw against base and loads it in the background.
func (p *Prefetcher) Prefetch(base asset.URL, raw string) {
	var (
		u   asset.URL
		err error
	)
	if base.IsZero() {
		u, err = asset.ParseURL(raw)
	} else {
		u, err = base.Resolve(raw)
	}
	if err != nil {
		p.log.Warn("prefetch url rejected", zap.String("url", raw), zap.Error(err))
		return
	}
	p.exec.Go(context.Background(), func(ctx context.Context) {
		frag, err := p.loader.Load(ctx, u)
		if err != nil {
			p.log.Error("failed to load object", zap.String("url", u.String()), zap.Error(err))
			return
		}
		p.log.Debug("object prefetched", zap.String("url", frag.URL), zap.Int("entities", frag.Len()))
	}, nil)
}
