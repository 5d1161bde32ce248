package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
)

// Record is anything keyed by a server assigned id.
type Record interface {
	Key() string
}

type FetchFunc[T Record] func(ctx context.Context) ([]T, error)

// Collection mirrors one server side list. Reads return copies; writers are serialized by mu.
type Collection[T Record] struct {
	resource string
	message  string

	mu        sync.RWMutex
	items     []T
	loaded    bool
	err       error
	started   uint64
	committed uint64
}

// NewCollection creates an empty collection. resource names the list in errors and
// message is the text shown to the user when a load fails.
func NewCollection[T Record](resource, message string) *Collection[T] {
	return &Collection[T]{
		resource: resource,
		message:  message,
	}
}

// Load replaces the snapshot with the result of fetch. On failure the previous snapshot is kept
// and a *entity.FetchError is returned. If ctx is done by the time fetch returns, or a newer
// load has already been committed, the result is dropped.
func (c *Collection[T]) Load(ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	c.mu.Lock()
	c.started++
	seq := c.started
	c.mu.Unlock()

	items, err := fetch(ctx)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq < c.committed {
		return slices.Clone(c.items), c.err
	}

	c.committed = seq

	if err != nil {
		c.err = &entity.FetchError{Resource: c.resource, Message: c.message, Err: err}
		return slices.Clone(c.items), c.err
	}

	c.items = slices.Clone(items)
	c.loaded = true
	c.err = nil

	return slices.Clone(c.items), nil
}

// Err returns the error of the last committed load, nil after a successful one.
func (c *Collection[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.err
}

// Loaded reports whether any load has succeeded.
func (c *Collection[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.loaded
}

func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.items)
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.index(id)
	if i < 0 {
		var zero T
		return zero, false
	}

	return c.items[i], true
}

// ApplyOptimisticUpdate replaces the record with id by patch(record) without waiting for
// the server. It reports false, and does nothing, when id is absent.
func (c *Collection[T]) ApplyOptimisticUpdate(id string, patch func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return false
	}

	c.items[i] = patch(c.items[i])

	return true
}

// Remove drops the record with id. It reports false when id is absent.
func (c *Collection[T]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return false
	}

	c.items = slices.Delete(c.items, i, i+1)

	return true
}

// Append adds r at the end, or replaces in place a record with the same id.
func (c *Collection[T]) Append(r T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(r.Key())
	if i >= 0 {
		c.items[i] = r
		return
	}

	c.items = append(c.items, r)
}

func (c *Collection[T]) index(id string) int {
	if id == "" {
		return -1
	}

	return slices.IndexFunc(c.items, func(r T) bool { return r.Key() == id })
}
