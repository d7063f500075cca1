package store

import (
	"github.com/getmockd/odatad/pkg/entity"
)

// Store owns the Customers and Orders collections and the foreign-key index
// between them. It is the only shared mutable state in the process.
//
// Lock order: whenever both collections are locked, Customers is locked
// before Orders.
type Store struct {
	Customers *Collection[entity.Customer]
	Orders    *Collection[entity.Order]
	refs      *refIndex
}

// New creates an empty store.
func New() *Store {
	s := &Store{
		Customers: NewCollection[entity.Customer](entity.SetCustomers),
		Orders:    NewCollection[entity.Order](entity.SetOrders),
		refs:      newRefIndex(),
	}
	s.Orders.index = s.refs
	return s
}

// Update runs fn with both collections write-locked, Customers first. If fn
// returns an error, every change made through tx is rolled back.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.Customers.mu.Lock()
	defer s.Customers.mu.Unlock()
	s.Orders.mu.Lock()
	defer s.Orders.mu.Unlock()

	tx := newTx(s)
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Snapshot returns an immutable point-in-time copy of both collections.
func (s *Store) Snapshot() *Snapshot {
	s.Customers.mu.RLock()
	defer s.Customers.mu.RUnlock()
	s.Orders.mu.RLock()
	defer s.Orders.mu.RUnlock()

	return newSnapshot(s.Customers.all(), s.Orders.all(), s.refs.clone())
}

// Empty reports whether both collections are empty.
func (s *Store) Empty() bool {
	return s.Customers.Len() == 0 && s.Orders.Len() == 0
}

// Counts returns the number of entities per set.
func (s *Store) Counts() map[string]int {
	return map[string]int{
		entity.SetCustomers: s.Customers.Len(),
		entity.SetOrders:    s.Orders.Len(),
	}
}
