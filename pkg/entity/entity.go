package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity is a uniquely identified record of a given type.
//
// Implementations are value types; a copy of an Entity never observes later
// writes to the store.
type Entity interface {
	// Key returns the entity's identity.
	Key() int64
	// EntitySet returns the name of the set the entity belongs to.
	EntitySet() string
	// Value returns a scalar property by name. Navigations are not values.
	Value(name string) (any, bool)
}

// Customer is a customer record. Its Orders navigation is computed, not stored.
type Customer struct {
	ID   int64
	Name string
	City string
}

// Key implements Entity.
func (c Customer) Key() int64 { return c.ID }

// EntitySet implements Entity.
func (Customer) EntitySet() string { return SetCustomers }

// Value implements Entity.
func (c Customer) Value(name string) (any, bool) {
	switch name {
	case KeyProperty:
		return c.ID, true
	case "Name":
		return c.Name, true
	case "City":
		return c.City, true
	}
	return nil, false
}

// Order is an order record with an optional reference to its customer.
type Order struct {
	ID        int64
	OrderDate time.Time
	Amount    decimal.Decimal
	// CustomerID is nil when the order is not linked to a customer.
	CustomerID *int64
}

// Key implements Entity.
func (o Order) Key() int64 { return o.ID }

// EntitySet implements Entity.
func (Order) EntitySet() string { return SetOrders }

// Value implements Entity.
func (o Order) Value(name string) (any, bool) {
	switch name {
	case KeyProperty:
		return o.ID, true
	case "OrderDate":
		return o.OrderDate, true
	case "Amount":
		return o.Amount, true
	}
	return nil, false
}

// Customer returns the referenced customer key, if any.
func (o Order) Customer() (int64, bool) {
	if o.CustomerID == nil {
		return 0, false
	}
	return *o.CustomerID, true
}

// WithCustomer returns a copy of o referencing the given customer.
// A nil id unlinks the order.
func (o Order) WithCustomer(id *int64) Order {
	o.CustomerID = copyRef(id)
	return o
}

// Ref returns a pointer to a fresh copy of id.
func Ref(id int64) *int64 {
	return &id
}

func copyRef(id *int64) *int64 {
	if id == nil {
		return nil
	}
	return Ref(*id)
}

// Equal reports whether two orders carry the same values.
func (o Order) Equal(other Order) bool {
	if o.ID != other.ID || !o.OrderDate.Equal(other.OrderDate) || !o.Amount.Equal(other.Amount) {
		return false
	}
	a, aok := o.Customer()
	b, bok := other.Customer()
	return aok == bok && a == b
}
