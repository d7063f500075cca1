// Package seed fills an empty store with a deterministic dataset, either the
// built-in one or one read from seed files.
package seed

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getmockd/odatad/pkg/entity"
	"github.com/getmockd/odatad/pkg/store"
)

// Dataset is a set of entities to load into an empty store.
type Dataset struct {
	Customers []entity.Customer
	Orders    []entity.Order
}

// Default returns the built-in dataset: three customers and five orders.
// Orders 1 and 4 belong to customer 2; orders 2, 3 and 5 to customer 1.
func Default() Dataset {
	return Dataset{
		Customers: []entity.Customer{
			{ID: 1, Name: "Sue", City: "EKO"},
			{ID: 2, Name: "Joe", City: "JED"},
			{ID: 3, Name: "Kim", City: "NBI"},
		},
		Orders: []entity.Order{
			{ID: 1, OrderDate: mustTime("2024-01-05T09:00:00Z"), Amount: decimal.NewFromInt(190), CustomerID: entity.Ref(2)},
			{ID: 2, OrderDate: mustTime("2024-01-10T00:00:00Z"), Amount: decimal.NewFromInt(130), CustomerID: entity.Ref(1)},
			{ID: 3, OrderDate: mustTime("2024-02-01T12:30:00+03:00"), Amount: decimal.NewFromInt(50), CustomerID: entity.Ref(1)},
			{ID: 4, OrderDate: mustTime("2024-02-14T18:00:00Z"), Amount: decimal.NewFromInt(110), CustomerID: entity.Ref(2)},
			{ID: 5, OrderDate: mustTime("2024-03-03T08:15:00Z"), Amount: decimal.NewFromInt(70), CustomerID: entity.Ref(1)},
		},
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the total number of entities in the dataset.
func (d Dataset) Len() int {
	return len(d.Customers) + len(d.Orders)
}

// Records returns the dataset in wire form, keyed by entity set. Order
// references are written as bind annotations so the result can be saved as
// a seed file and loaded again.
func (d Dataset) Records() map[string][]entity.Record {
	out := map[string][]entity.Record{
		entity.SetCustomers: make([]entity.Record, 0, len(d.Customers)),
		entity.SetOrders:    make([]entity.Record, 0, len(d.Orders)),
	}
	for _, c := range d.Customers {
		out[entity.SetCustomers] = append(out[entity.SetCustomers], entity.Encode(c))
	}
	for _, o := range d.Orders {
		rec := entity.Encode(o)
		if id, ok := o.Customer(); ok {
			rec[entity.NavCustomer+entity.BindAnnotation] = fmt.Sprintf("%s(%d)", entity.SetCustomers, id)
		}
		out[entity.SetOrders] = append(out[entity.SetOrders], rec)
	}
	return out
}

// Apply loads d into s if, and only if, s is empty. It reports whether the
// dataset was applied. Loading is atomic: a duplicate key or a reference to
// a customer outside the dataset leaves the store empty.
func Apply(s *store.Store, d Dataset) (bool, error) {
	applied := false
	err := s.Update(func(tx *store.Tx) error {
		if len(tx.Customers().All()) > 0 || len(tx.Orders().All()) > 0 {
			return nil
		}
		if err := load(tx, d); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Reset replaces the contents of s with d in one transaction. If d does not
// load, s keeps its previous contents.
func Reset(s *store.Store, d Dataset) error {
	return s.Update(func(tx *store.Tx) error {
		for _, o := range tx.Orders().All() {
			tx.Orders().Remove(o.ID)
		}
		for _, c := range tx.Customers().All() {
			tx.Customers().Remove(c.ID)
		}
		return load(tx, d)
	})
}

func load(tx *store.Tx, d Dataset) error {
	for _, c := range d.Customers {
		if err := tx.Customers().Insert(c); err != nil {
			return fmt.Errorf("seeding customer %d: %w", c.ID, err)
		}
	}
	for _, o := range d.Orders {
		if id, ok := o.Customer(); ok {
			if _, found := tx.Customers().Get(id); !found {
				return fmt.Errorf("seeding order %d: %w", o.ID,
					entity.Invalidf(entity.NavCustomer+entity.BindAnnotation, "customer %d is not in the dataset", id))
			}
		}
		if err := tx.Orders().Insert(o); err != nil {
			return fmt.Errorf("seeding order %d: %w", o.ID, err)
		}
	}
	return nil
}
