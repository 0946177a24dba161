package repository

import (
	"sync"

	"github.com/sumire/cronboard/internal/domain"
)

// Collection is a mutex-guarded in-memory table of records keyed by int64 ids.
type Collection[T any] struct {
	mu     sync.RWMutex
	items  []T
	nextID int64
	idOf   func(T) int64
	withID func(T, int64) T
}

// NewCollection creates a Collection holding seed. New records get ids after
// the largest seeded id.
func NewCollection[T any](idOf func(T) int64, withID func(T, int64) T, seed ...T) *Collection[T] {
	c := &Collection[T]{idOf: idOf, withID: withID, nextID: 1}
	for _, item := range seed {
		if id := idOf(item); id >= c.nextID {
			c.nextID = id + 1
		}
		c.items = append(c.items, item)
	}
	return c
}

// List returns a snapshot of all records in insertion order.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the record with id.
func (c *Collection[T]) Get(id int64) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.index(id); i >= 0 {
		return c.items[i], nil
	}
	var zero T
	return zero, domain.ErrNotFound
}

// Insert assigns the next id to item and appends it. When conflicts reports
// true for any stored record the insert is refused with domain.ErrConflict.
func (c *Collection[T]) Insert(item T, conflicts func(T) bool) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conflicts != nil {
		for _, existing := range c.items {
			if conflicts(existing) {
				var zero T
				return zero, domain.ErrConflict
			}
		}
	}

	item = c.withID(item, c.nextID)
	c.nextID++
	c.items = append(c.items, item)
	return item, nil
}

// Update replaces the record with id by the result of fn. conflicts is
// checked against every other record.
func (c *Collection[T]) Update(id int64, fn func(T) (T, error), conflicts func(T) bool) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	i := c.index(id)
	if i < 0 {
		return zero, domain.ErrNotFound
	}

	updated, err := fn(c.items[i])
	if err != nil {
		return zero, err
	}
	updated = c.withID(updated, id)

	if conflicts != nil {
		for j, existing := range c.items {
			if j != i && conflicts(existing) {
				return zero, domain.ErrConflict
			}
		}
	}

	c.items[i] = updated
	return updated, nil
}

// Delete removes the record with id.
func (c *Collection[T]) Delete(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return domain.ErrNotFound
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return nil
}

func (c *Collection[T]) index(id int64) int {
	for i, item := range c.items {
		if c.idOf(item) == id {
			return i
		}
	}
	return -1
}
