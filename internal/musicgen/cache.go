package musicgen

import (
	"context"
	"fmt"
	"sync"

	"github.com/book-expert/musicgen-service/internal/core"
)

// ModelLoader loads the model handle for a variant, fetching its weights
// first if needed.
type ModelLoader func(ctx context.Context, variant core.Variant) (core.MusicModel, error)

// ModelCache is a process-wide mapping of loaded models keyed by variant.
// The load-if-absent step runs under a mutex so concurrent requests never
// load the same variant twice.
type ModelCache struct {
	mu     sync.Mutex
	loader ModelLoader
	models map[core.Variant]core.MusicModel
}

// NewModelCache creates an empty cache with the given loader.
func NewModelCache(loader ModelLoader) *ModelCache {
	return &ModelCache{
		mu:     sync.Mutex{},
		loader: loader,
		models: make(map[core.Variant]core.MusicModel),
	}
}

// GetOrLoad returns the cached model for the variant, loading it on first
// use. A failed load is not cached.
func (c *ModelCache) GetOrLoad(
	ctx context.Context,
	variant core.Variant,
) (core.MusicModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	model, ok := c.models[variant]
	if ok {
		return model, nil
	}

	model, err := c.loader(ctx, variant)
	if err != nil {
		return nil, fmt.Errorf("failed to load model '%s': %w", variant, err)
	}

	c.models[variant] = model

	return model, nil
}
