package service

import (
	"context"
	"sort"
	"sync"

	"github.com/kursadbilgin/item-processor/internal/domain"
	"github.com/kursadbilgin/item-processor/internal/ratelimit"
	"github.com/kursadbilgin/item-processor/internal/repository"
)

type fakeItemRepo struct {
	createFn  func(ctx context.Context, item *domain.Item) error
	getByIDFn func(ctx context.Context, id int64) (*domain.Item, error)
	listFn    func(ctx context.Context) ([]domain.Item, error)
	listIDsFn func(ctx context.Context) ([]int64, error)
	saveFn    func(ctx context.Context, item *domain.Item) error
	deleteFn  func(ctx context.Context, id int64) error
}

var _ repository.ItemRepository = (*fakeItemRepo)(nil)

func (f *fakeItemRepo) Create(ctx context.Context, item *domain.Item) error {
	if f.createFn != nil {
		return f.createFn(ctx, item)
	}
	return nil
}

func (f *fakeItemRepo) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeItemRepo) List(ctx context.Context) ([]domain.Item, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeItemRepo) ListIDs(ctx context.Context) ([]int64, error) {
	if f.listIDsFn != nil {
		return f.listIDsFn(ctx)
	}
	return nil, nil
}

func (f *fakeItemRepo) Save(ctx context.Context, item *domain.Item) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, item)
	}
	return nil
}

func (f *fakeItemRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

// memoryItems is a goroutine-safe in-memory item table that fakeItemRepo
// functions can be pointed at.
type memoryItems struct {
	mu    sync.Mutex
	items map[int64]domain.Item
}

func newMemoryItems(items ...domain.Item) *memoryItems {
	m := &memoryItems{items: make(map[int64]domain.Item, len(items))}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *memoryItems) repo() *fakeItemRepo {
	return &fakeItemRepo{
		getByIDFn: m.get,
		listIDsFn: m.ids,
		saveFn:    m.save,
	}
}

func (m *memoryItems) get(_ context.Context, id int64) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (m *memoryItems) ids(context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryItems) save(_ context.Context, item *domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[item.ID]; !ok {
		return domain.ErrNotFound
	}
	m.items[item.ID] = *item
	return nil
}

func (m *memoryItems) delete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
}

func (m *memoryItems) snapshot(id int64) (domain.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	return item, ok
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, scope string) (bool, error)
	waitFn  func(ctx context.Context, scope string) error
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, scope)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, scope)
	}
	return nil
}
