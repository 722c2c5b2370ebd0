package asset

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFetcher keeps fetched bytes in redis so restarts and sibling processes
// skip the network. Redis trouble never fails a fetch; it only costs a miss.
type RedisFetcher struct {
	rdb    redis.UniversalClient
	inner  Fetcher
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

func NewRedisFetcher(rdb redis.UniversalClient, inner Fetcher, ttl time.Duration, prefix string, log *zap.Logger) *RedisFetcher {
	return &RedisFetcher{
		rdb:    rdb,
		inner:  inner,
		ttl:    ttl,
		prefix: prefix,
		log:    log.Named("redis"),
	}
}

func (f *RedisFetcher) key(u URL) string {
	return f.prefix + u.String()
}

func (f *RedisFetcher) Fetch(ctx context.Context, u URL) ([]byte, error) {
	key := f.key(u)
	data, err := f.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		f.log.Debug("byte cache hit", zap.String("url", u.String()))
		return data, nil
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		f.log.Warn("byte cache read failed", zap.String("url", u.String()), zap.Error(err))
	}

	data, err = f.inner.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := f.rdb.Set(ctx, key, data, f.ttl).Err(); err != nil {
		f.log.Warn("byte cache write failed", zap.String("url", u.String()), zap.Error(err))
	}
	return data, nil
}
