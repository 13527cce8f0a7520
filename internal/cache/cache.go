package cache

import (
	"context"
	"time"

	"hazelinvoice/backend/internal/domain"
)

// MatrixCache stores assembled matrix views. Keys for one day share a prefix
// so a save can drop every cached page of that day.
type MatrixCache interface {
	Get(ctx context.Context, key string) (*domain.MatrixView, bool, error)
	Set(ctx context.Context, key string, value *domain.MatrixView, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type NoopMatrixCache struct{}

func (NoopMatrixCache) Get(_ context.Context, _ string) (*domain.MatrixView, bool, error) {
	return nil, false, nil
}

func (NoopMatrixCache) Set(_ context.Context, _ string, _ *domain.MatrixView, _ time.Duration) error {
	return nil
}

func (NoopMatrixCache) DeletePrefix(_ context.Context, _ string) error {
	return nil
}
