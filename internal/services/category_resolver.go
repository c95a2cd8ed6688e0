package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"budgettracker/internal/cache"
	"budgettracker/internal/core"
	"budgettracker/internal/log"
	"budgettracker/internal/storage"
)

type CategoryStore interface {
	GetCategoryByName(ctx context.Context, name string) (core.Category, error)
	CreateCategory(ctx context.Context, name string) (core.Category, error)
}

// CategoryResolver maps a label to a category, creating it on first use.
// Concurrent resolves of one label in this process share a single lookup;
// across processes the unique index decides and the loser re-reads.
// Categories are never renamed or deleted, so resolved ones are memoized.
type CategoryResolver struct {
	store  CategoryStore
	group  singleflight.Group
	known  *cache.LRU[core.Category]
	logger *log.Logger
}

const (
	categoryCacheSize = 512
	categoryCacheTTL  = 10 * time.Minute
)

func NewCategoryResolver(store CategoryStore, logger *log.Logger) *CategoryResolver {
	if logger == nil {
		logger = log.Discard()
	}
	return &CategoryResolver{
		store:  store,
		known:  cache.NewLRU[core.Category](categoryCacheSize, categoryCacheTTL),
		logger: logger.WithComponent(log.ComponentCategory),
	}
}

func (r *CategoryResolver) Resolve(ctx context.Context, label string) (core.Category, error) {
	name := strings.TrimSpace(label)
	if name == "" {
		return core.Category{}, core.ErrInvalidCategory
	}
	if c, ok := r.known.Get(name); ok {
		return c, nil
	}

	// Waiters share this call, so one caller's cancellation must not fail the rest.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		return r.getOrCreate(shared, name)
	})
	if err != nil {
		return core.Category{}, err
	}
	c := v.(core.Category)
	r.known.Set(name, c)
	return c, nil
}

func (r *CategoryResolver) getOrCreate(ctx context.Context, name string) (core.Category, error) {
	c, err := r.store.GetCategoryByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return core.Category{}, fmt.Errorf("resolve category: %w", err)
	}

	c, err = r.store.CreateCategory(ctx, name)
	if err == nil {
		r.logger.InfoContext(ctx, "Category created", log.FieldCategoryID, c.ID, log.FieldCategory, c.Name)
		return c, nil
	}
	if !errors.Is(err, storage.ErrConflict) {
		return core.Category{}, fmt.Errorf("resolve category: %w", err)
	}

	r.logger.DebugContext(ctx, "Category created concurrently, re-reading", log.FieldCategory, name)
	c, err = r.store.GetCategoryByName(ctx, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("re-read category after conflict: %w", err)
	}
	return c, nil
}
