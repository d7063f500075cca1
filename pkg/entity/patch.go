package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Optional holds a value that may be absent. Set is true when the field was
// present in the payload, even if its value is the zero value or null.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// Patch is a partial update for one entity type.
type Patch interface {
	EntitySet() string
	// IsEmpty reports whether no field is present.
	IsEmpty() bool
	// KeyValue returns the Id carried by the patch, if any.
	KeyValue() (int64, bool)
}

// CustomerPatch is a merge-patch for a Customer.
type CustomerPatch struct {
	ID   Optional[int64]
	Name Optional[string]
	City Optional[string]
}

// EntitySet implements Patch.
func (CustomerPatch) EntitySet() string { return SetCustomers }

// IsEmpty implements Patch.
func (p CustomerPatch) IsEmpty() bool {
	return !p.ID.Set && !p.Name.Set && !p.City.Set
}

// KeyValue implements Patch.
func (p CustomerPatch) KeyValue() (int64, bool) { return p.ID.Get() }

// Apply returns c with the present fields overwritten. Id is never changed.
func (p CustomerPatch) Apply(c Customer) Customer {
	if v, ok := p.Name.Get(); ok {
		c.Name = v
	}
	if v, ok := p.City.Get(); ok {
		c.City = v
	}
	return c
}

// OrderPatch is a merge-patch for an Order. A present Customer holding nil
// unlinks the order.
type OrderPatch struct {
	ID        Optional[int64]
	OrderDate Optional[time.Time]
	Amount    Optional[decimal.Decimal]
	Customer  Optional[*int64]
}

// EntitySet implements Patch.
func (OrderPatch) EntitySet() string { return SetOrders }

// IsEmpty implements Patch.
func (p OrderPatch) IsEmpty() bool {
	return !p.ID.Set && !p.OrderDate.Set && !p.Amount.Set && !p.Customer.Set
}

// KeyValue implements Patch.
func (p OrderPatch) KeyValue() (int64, bool) { return p.ID.Get() }

// Apply returns o with the present fields overwritten. Id is never changed.
func (p OrderPatch) Apply(o Order) Order {
	if v, ok := p.OrderDate.Get(); ok {
		o.OrderDate = v
	}
	if v, ok := p.Amount.Get(); ok {
		o.Amount = v
	}
	if v, ok := p.Customer.Get(); ok {
		o = o.WithCustomer(v)
	}
	return o
}
