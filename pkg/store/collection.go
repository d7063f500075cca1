package store

import (
	"slices"
	"sync"

	"github.com/getmockd/odatad/pkg/entity"
)

// indexer observes every change to a collection while its write lock is held.
// prev is nil for inserts, next is nil for removals.
type indexer[T entity.Entity] interface {
	update(prev, next *T)
}

// Collection is an insertion-ordered, keyed set of entities of one type.
// All exported methods are safe for concurrent use; writes are serialized by
// the collection's own lock.
type Collection[T entity.Entity] struct {
	mu    sync.RWMutex
	name  string
	items map[int64]T
	order []int64
	index indexer[T]
}

// NewCollection creates an empty collection for the named entity set.
func NewCollection[T entity.Entity](name string) *Collection[T] {
	return &Collection[T]{
		name:  name,
		items: make(map[int64]T),
	}
}

// Name returns the entity set name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Insert adds e. It fails with a ConflictError if the key is already present.
func (c *Collection[T]) Insert(e T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(e)
}

// Get returns the entity stored under id.
func (c *Collection[T]) Get(id int64) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.get(id)
}

// All returns a copy of every entity in insertion order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.all()
}

// Remove deletes the entity stored under id and reports whether it existed.
func (c *Collection[T]) Remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(id)
}

// Replace overwrites the entity stored under id, keeping its position.
// It fails with a NotFoundError if id is absent.
func (c *Collection[T]) Replace(id int64, e T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replace(id, e)
}

// Merge applies fn to the entity stored under id and stores the result.
// It fails with a NotFoundError if id is absent; an error from fn leaves the
// collection untouched.
func (c *Collection[T]) Merge(id int64, fn func(T) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.merge(id, fn)
}

// Len returns the number of entities.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// The unexported methods below assume the caller holds the lock.

func (c *Collection[T]) insert(e T) error {
	id := e.Key()
	if _, exists := c.items[id]; exists {
		return &entity.ConflictError{Set: c.name, Key: id}
	}
	c.items[id] = e
	c.order = append(c.order, id)
	if c.index != nil {
		c.index.update(nil, &e)
	}
	return nil
}

func (c *Collection[T]) get(id int64) (T, bool) {
	e, ok := c.items[id]
	return e, ok
}

func (c *Collection[T]) all() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

func (c *Collection[T]) remove(id int64) bool {
	old, ok := c.items[id]
	if !ok {
		return false
	}
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.index != nil {
		c.index.update(&old, nil)
	}
	return true
}

// moveTo moves id to position pos in the insertion order.
func (c *Collection[T]) moveTo(id int64, pos int) {
	from := slices.Index(c.order, id)
	if from < 0 || pos < 0 || pos >= len(c.order) || from == pos {
		return
	}
	c.order = slices.Delete(c.order, from, from+1)
	c.order = slices.Insert(c.order, pos, id)
}

func (c *Collection[T]) replace(id int64, e T) error {
	old, ok := c.items[id]
	if !ok {
		return &entity.NotFoundError{Set: c.name, Key: id}
	}
	if e.Key() != id {
		return entity.Invalidf(entity.KeyProperty, "cannot change key %d to %d", id, e.Key())
	}
	c.items[id] = e
	if c.index != nil {
		c.index.update(&old, &e)
	}
	return nil
}

func (c *Collection[T]) merge(id int64, fn func(T) (T, error)) (T, error) {
	var zero T
	old, ok := c.items[id]
	if !ok {
		return zero, &entity.NotFoundError{Set: c.name, Key: id}
	}
	merged, err := fn(old)
	if err != nil {
		return zero, err
	}
	if err := c.replace(id, merged); err != nil {
		return zero, err
	}
	return merged, nil
}
