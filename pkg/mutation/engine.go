// Package mutation implements the write side of odatad: create, replace,
// merge-patch, delete and link, with identity and reference checks.
package mutation

import (
	"log/slog"

	"github.com/getmockd/odatad/pkg/entity"
	"github.com/getmockd/odatad/pkg/logging"
	"github.com/getmockd/odatad/pkg/store"
)

// Engine applies mutations to a store. It is safe for concurrent use.
type Engine struct {
	store *store.Store
	log   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for mutation debug output.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates an engine over s. It panics if s is nil.
func New(s *store.Store, opts ...Option) *Engine {
	if s == nil {
		panic("mutation: nil store")
	}
	e := &Engine{store: s, log: logging.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create inserts e and returns the stored entity. The key must be set, and an
// order's customer reference must resolve.
func (m *Engine) Create(e entity.Entity) (entity.Entity, error) {
	if e == nil {
		return nil, &entity.ValidationError{Message: "entity is required"}
	}
	if e.Key() <= 0 {
		return nil, entity.Invalidf(entity.KeyProperty, "must be a positive integer")
	}

	switch x := e.(type) {
	case entity.Customer:
		if err := m.store.Customers.Insert(x); err != nil {
			return nil, err
		}
	case entity.Order:
		if _, linked := x.Customer(); !linked {
			if err := m.store.Orders.Insert(x); err != nil {
				return nil, err
			}
			break
		}
		err := m.store.Update(func(tx *store.Tx) error {
			if _, ok := tx.Orders().Get(x.ID); ok {
				return &entity.ConflictError{Set: entity.SetOrders, Key: x.ID}
			}
			if err := checkCustomer(tx, x.CustomerID); err != nil {
				return err
			}
			return tx.Orders().Insert(x)
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, &entity.NotFoundError{Set: e.EntitySet()}
	}

	m.log.Debug("entity created", "set", e.EntitySet(), "id", e.Key())
	return e, nil
}

// Replace overwrites every mutable field of set(id) with e. Fields absent
// from e are reset, including an order's customer reference.
func (m *Engine) Replace(set string, id int64, e entity.Entity) (entity.Entity, error) {
	if e == nil {
		return nil, &entity.ValidationError{Message: "entity is required"}
	}
	if e.EntitySet() != set {
		return nil, entity.Invalidf("", "payload of type %s cannot replace an entity of %s", e.EntitySet(), set)
	}
	if k := e.Key(); k != 0 && k != id {
		return nil, entity.Invalidf(entity.KeyProperty, "payload key %d does not match %d", k, id)
	}

	var stored entity.Entity
	switch x := e.(type) {
	case entity.Customer:
		x.ID = id
		if err := m.store.Customers.Replace(id, x); err != nil {
			return nil, err
		}
		stored = x
	case entity.Order:
		x.ID = id
		err := m.store.Update(func(tx *store.Tx) error {
			if _, ok := tx.Orders().Get(id); !ok {
				return &entity.NotFoundError{Set: entity.SetOrders, Key: id}
			}
			if err := checkCustomer(tx, x.CustomerID); err != nil {
				return err
			}
			return tx.Orders().Replace(id, x)
		})
		if err != nil {
			return nil, err
		}
		stored = x
	default:
		return nil, &entity.NotFoundError{Set: set}
	}

	m.log.Debug("entity replaced", "set", set, "id", id)
	return stored, nil
}

// Patch applies the fields present in p to set(id) and returns the result.
func (m *Engine) Patch(set string, id int64, p entity.Patch) (entity.Entity, error) {
	if p == nil || p.IsEmpty() {
		return nil, &entity.ValidationError{Message: "patch must contain at least one property"}
	}
	if p.EntitySet() != set {
		return nil, entity.Invalidf("", "patch for %s cannot apply to %s", p.EntitySet(), set)
	}
	if k, ok := p.KeyValue(); ok && k != id {
		return nil, entity.Invalidf(entity.KeyProperty, "cannot change key %d to %d", id, k)
	}

	var stored entity.Entity
	switch x := p.(type) {
	case entity.CustomerPatch:
		c, err := m.store.Customers.Merge(id, func(c entity.Customer) (entity.Customer, error) {
			return x.Apply(c), nil
		})
		if err != nil {
			return nil, err
		}
		stored = c
	case entity.OrderPatch:
		apply := func(o entity.Order) (entity.Order, error) { return x.Apply(o), nil }
		ref, _ := x.Customer.Get()
		if ref == nil {
			o, err := m.store.Orders.Merge(id, apply)
			if err != nil {
				return nil, err
			}
			stored = o
			break
		}
		err := m.store.Update(func(tx *store.Tx) error {
			if _, ok := tx.Orders().Get(id); !ok {
				return &entity.NotFoundError{Set: entity.SetOrders, Key: id}
			}
			if err := checkCustomer(tx, ref); err != nil {
				return err
			}
			o, err := tx.Orders().Merge(id, apply)
			stored = o
			return err
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, &entity.NotFoundError{Set: set}
	}

	m.log.Debug("entity patched", "set", set, "id", id)
	return stored, nil
}

// Delete removes set(id) and reports whether it existed. Deleting an absent
// key succeeds. Deleting a customer clears the reference on its orders.
func (m *Engine) Delete(set string, id int64) (bool, error) {
	var removed bool
	switch set {
	case entity.SetCustomers:
		var unlinked int
		err := m.store.Update(func(tx *store.Tx) error {
			if _, ok := tx.Customers().Get(id); !ok {
				return nil
			}
			for _, oid := range tx.OrdersOf(id) {
				if _, err := tx.Orders().Merge(oid, func(o entity.Order) (entity.Order, error) {
					return o.WithCustomer(nil), nil
				}); err != nil {
					return err
				}
				unlinked++
			}
			removed = tx.Customers().Remove(id)
			return nil
		})
		if err != nil {
			return false, err
		}
		if unlinked > 0 {
			m.log.Debug("cleared order references", "customer", id, "orders", unlinked)
		}
	case entity.SetOrders:
		removed = m.store.Orders.Remove(id)
	default:
		return false, &entity.NotFoundError{Set: set}
	}

	if removed {
		m.log.Debug("entity deleted", "set", set, "id", id)
	}
	return removed, nil
}

// Link points the navigation nav of set(id) at relatedID. Orders(id)/Customer
// sets the order's customer; Customers(id)/Orders sets the customer of order
// relatedID. Unresolved keys are invalid input and leave the store unchanged.
func (m *Engine) Link(set string, id int64, nav string, relatedID int64) error {
	var orderID, customerID int64
	switch {
	case set == entity.SetOrders && nav == entity.NavCustomer:
		orderID, customerID = id, relatedID
	case set == entity.SetCustomers && nav == entity.NavOrders:
		orderID, customerID = relatedID, id
	case set != entity.SetOrders && set != entity.SetCustomers:
		return &entity.NotFoundError{Set: set}
	default:
		return entity.Invalidf(nav, "unknown navigation on %s", set)
	}

	err := m.store.Update(func(tx *store.Tx) error {
		if _, ok := tx.Orders().Get(orderID); !ok {
			return entity.Invalidf(entity.SetOrders, "order %d does not exist", orderID)
		}
		if _, ok := tx.Customers().Get(customerID); !ok {
			return entity.Invalidf(entity.SetCustomers, "customer %d does not exist", customerID)
		}
		_, err := tx.Orders().Merge(orderID, func(o entity.Order) (entity.Order, error) {
			return o.WithCustomer(entity.Ref(customerID)), nil
		})
		return err
	})
	if err != nil {
		return err
	}

	m.log.Debug("entities linked", "order", orderID, "customer", customerID)
	return nil
}

// checkCustomer verifies that a customer reference resolves. Callers hold
// the Customers lock, so the customer cannot be deleted concurrently.
func checkCustomer(tx *store.Tx, ref *int64) error {
	if ref == nil {
		return nil
	}
	if _, ok := tx.Customers().Get(*ref); !ok {
		return entity.Invalidf(entity.NavCustomer+entity.BindAnnotation, "customer %d does not exist", *ref)
	}
	return nil
}
