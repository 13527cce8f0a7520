package matrix

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"hazelinvoice/backend/internal/cache"
	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/pricing"
)

const keyPrefix = "hazel:matrix:"

// Loader reads the snapshot for one day.
type Loader func(ctx context.Context) (Snapshot, error)

// Builder assembles matrix views behind a short-lived cache.
type Builder struct {
	cache    cache.MatrixCache
	cacheTTL time.Duration
}

func NewBuilder(cacheStore cache.MatrixCache, cacheTTL time.Duration) *Builder {
	if cacheStore == nil {
		cacheStore = cache.NoopMatrixCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 20 * time.Second
	}

	return &Builder{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

// Build returns the cached view for (day, q) or loads and assembles it.
func (b *Builder) Build(ctx context.Context, day time.Time, q domain.MatrixQuery, load Loader) (domain.MatrixView, error) {
	key := buildCacheKey(day, q)
	if cached, ok, err := b.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	}

	snap, err := load(ctx)
	if err != nil {
		return domain.MatrixView{}, err
	}
	snap.Day = pricing.Day(day)

	view := Assemble(snap, q)
	_ = b.cache.Set(ctx, key, &view, b.cacheTTL)
	return view, nil
}

// Invalidate drops every cached page of day.
func (b *Builder) Invalidate(ctx context.Context, day time.Time) error {
	return b.cache.DeletePrefix(ctx, dayPrefix(day))
}

func dayPrefix(day time.Time) string {
	return keyPrefix + pricing.Day(day).Format(pricing.DateLayout) + ":"
}

func buildCacheKey(day time.Time, q domain.MatrixQuery) string {
	parts := []string{
		fmt.Sprintf("p:%d", q.Page),
		fmt.Sprintf("pp:%d", q.ProductPage),
		fmt.Sprintf("print:%t", q.Print),
	}
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return dayPrefix(day) + hex.EncodeToString(hash[:])
}
