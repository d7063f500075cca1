package store

import (
	"slices"

	"github.com/getmockd/odatad/pkg/entity"
)

// Tx gives unlocked access to both collections inside Store.Update.
// A Tx must not be retained after the callback returns.
type Tx struct {
	s         *Store
	customers *View[entity.Customer]
	orders    *View[entity.Order]
}

func newTx(s *Store) *Tx {
	return &Tx{
		s:         s,
		customers: &View[entity.Customer]{c: s.Customers},
		orders:    &View[entity.Order]{c: s.Orders},
	}
}

// Customers returns the Customers collection view.
func (tx *Tx) Customers() *View[entity.Customer] { return tx.customers }

// Orders returns the Orders collection view.
func (tx *Tx) Orders() *View[entity.Order] { return tx.orders }

// OrdersOf returns the keys of the orders referencing customerID, in the
// order the references were made.
func (tx *Tx) OrdersOf(customerID int64) []int64 {
	return tx.s.refs.orders(customerID)
}

func (tx *Tx) rollback() {
	// Entries touch disjoint collections, so the two journals can be undone
	// independently.
	tx.orders.undo()
	tx.customers.undo()
}

// View exposes collection operations without locking. Every change is
// journaled so a failed Update can be undone.
type View[T entity.Entity] struct {
	c       *Collection[T]
	journal []journalEntry[T]
}

type journalEntry[T entity.Entity] struct {
	id int64
	// before is nil when the entity did not exist before the change.
	before *T
	pos    int
}

func (v *View[T]) record(id int64) {
	for _, e := range v.journal {
		if e.id == id {
			return
		}
	}
	entry := journalEntry[T]{id: id, pos: slices.Index(v.c.order, id)}
	if old, ok := v.c.items[id]; ok {
		entry.before = &old
	}
	v.journal = append(v.journal, entry)
}

func (v *View[T]) undo() {
	for i := len(v.journal) - 1; i >= 0; i-- {
		e := v.journal[i]
		_, exists := v.c.items[e.id]
		switch {
		case e.before == nil && exists:
			v.c.remove(e.id)
		case e.before != nil && exists:
			_ = v.c.replace(e.id, *e.before)
		case e.before != nil:
			_ = v.c.insert(*e.before)
			v.c.moveTo(e.id, e.pos)
		}
	}
	v.journal = nil
}

// Insert adds e; see Collection.Insert.
func (v *View[T]) Insert(e T) error {
	v.record(e.Key())
	return v.c.insert(e)
}

// Get returns the entity stored under id.
func (v *View[T]) Get(id int64) (T, bool) {
	return v.c.get(id)
}

// All returns every entity in insertion order.
func (v *View[T]) All() []T {
	return v.c.all()
}

// Remove deletes id; see Collection.Remove.
func (v *View[T]) Remove(id int64) bool {
	v.record(id)
	return v.c.remove(id)
}

// Replace overwrites id; see Collection.Replace.
func (v *View[T]) Replace(id int64, e T) error {
	v.record(id)
	return v.c.replace(id, e)
}

// Merge applies fn to id; see Collection.Merge.
func (v *View[T]) Merge(id int64, fn func(T) (T, error)) (T, error) {
	v.record(id)
	return v.c.merge(id, fn)
}
