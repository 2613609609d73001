package repository

import (
	"context"
	"errors"
	"time"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
	"TickChart/pkg/cache"
	applogger "TickChart/pkg/logger"
)

const tickCachePrefix = "ticks"

// CachedRequester serves repeated requests for the same identifier from cache
// for ttl. Cache failures fall through to the wrapped requester.
type CachedRequester struct {
	next  domrepo.DataRequester
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedRequester(next domrepo.DataRequester, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedRequester {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CachedRequester{next: next, cache: c, ttl: ttl, l: l}
}

func (r *CachedRequester) RequestData(ctx context.Context, args domrepo.RequestArgs) (*models.RawPayload, error) {
	if r.cache == nil || r.ttl <= 0 {
		return r.next.RequestData(ctx, args)
	}

	key := cache.GenerateKeyWithParams(tickCachePrefix, args.Identifier)
	var cached models.RawPayload
	err := r.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		r.l.Debug("tick cache hit", applogger.String("key", key))
		return &cached, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		r.l.Warn("tick cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	payload, err := r.next.RequestData(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, payload, r.ttl); err != nil {
		r.l.Warn("tick cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return payload, nil
}
