package mutation

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/odatad/pkg/entity"
	"github.com/getmockd/odatad/pkg/store"
)

var orderDate = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s := store.New()
	for _, c := range []entity.Customer{
		{ID: 1, Name: "Sue", City: "EKO"},
		{ID: 2, Name: "Joe", City: "JED"},
		{ID: 3, Name: "Kim", City: "NBI"},
	} {
		require.NoError(t, s.Customers.Insert(c))
	}
	for i, amount := range []int64{190, 130, 50, 110, 70} {
		cust := int64(1)
		if i == 0 || i == 3 {
			cust = 2
		}
		require.NoError(t, s.Orders.Insert(entity.Order{
			ID:         int64(i + 1),
			OrderDate:  orderDate.AddDate(0, 0, i),
			Amount:     decimal.NewFromInt(amount),
			CustomerID: entity.Ref(cust),
		}))
	}
	return New(s), s
}

func customerOf(t *testing.T, s *store.Store, orderID int64) (int64, bool) {
	t.Helper()
	o, ok := s.Orders.Get(orderID)
	require.True(t, ok)
	return o.Customer()
}

// =============================================================================
// Create
// =============================================================================

func TestEngine_CreateThenGet(t *testing.T) {
	m, s := newEngine(t)

	created, err := m.Create(entity.Customer{ID: 4, Name: "Ada", City: "LDN"})
	require.NoError(t, err)

	got, ok := s.Customers.Get(4)
	require.True(t, ok)
	assert.Equal(t, created, got)
}

func TestEngine_CreateOrderWithCustomer(t *testing.T) {
	m, s := newEngine(t)

	o := entity.Order{ID: 6, OrderDate: orderDate, Amount: decimal.RequireFromString("9.99"), CustomerID: entity.Ref(3)}
	_, err := m.Create(o)
	require.NoError(t, err)

	got, _ := s.Orders.Get(6)
	assert.True(t, got.Equal(o))
	assert.Equal(t, []int64{6}, keysOf(s.Snapshot().Related(entity.Customer{ID: 3}, entity.NavOrders)))
}

func keysOf(es []entity.Entity) []int64 {
	var out []int64
	for _, e := range es {
		out = append(out, e.Key())
	}
	return out
}

func TestEngine_CreateErrors(t *testing.T) {
	tests := []struct {
		name string
		e    entity.Entity
		code entity.ErrorCode
	}{
		{"nil", nil, entity.CodeInvalidInput},
		{"unset key", entity.Customer{Name: "x"}, entity.CodeInvalidInput},
		{"negative key", entity.Order{ID: -1}, entity.CodeInvalidInput},
		{"duplicate customer", entity.Customer{ID: 1, Name: "Other"}, entity.CodeConflict},
		{"duplicate order", entity.Order{ID: 2}, entity.CodeConflict},
		{"duplicate linked order", entity.Order{ID: 2, CustomerID: entity.Ref(1)}, entity.CodeConflict},
		{"missing customer", entity.Order{ID: 9, CustomerID: entity.Ref(42)}, entity.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s := newEngine(t)
			before := s.Counts()

			_, err := m.Create(tt.e)
			assert.Equal(t, tt.code, entity.CodeOf(err))
			assert.Equal(t, before, s.Counts())
		})
	}
}

func TestEngine_DuplicateCreateKeepsOriginal(t *testing.T) {
	m, s := newEngine(t)
	_, err := m.Create(entity.Customer{ID: 3, Name: "Imposter"})
	require.Error(t, err)

	c, _ := s.Customers.Get(3)
	assert.Equal(t, "Kim", c.Name)
}

// =============================================================================
// Replace
// =============================================================================

func TestEngine_ReplaceOverwrites(t *testing.T) {
	m, s := newEngine(t)

	replacement := entity.Order{OrderDate: orderDate.Add(time.Hour), Amount: decimal.NewFromInt(1)}
	stored, err := m.Replace(entity.SetOrders, 1, replacement)
	require.NoError(t, err)

	got, _ := s.Orders.Get(1)
	assert.Equal(t, int64(1), got.ID)
	assert.True(t, got.Equal(stored.(entity.Order)))
	_, linked := got.Customer()
	assert.False(t, linked, "unspecified reference must be reset")
	assert.Equal(t, []int64{4}, keysOf(s.Snapshot().Related(entity.Customer{ID: 2}, entity.NavOrders)))
}

func TestEngine_ReplaceCustomer(t *testing.T) {
	m, s := newEngine(t)

	_, err := m.Replace(entity.SetCustomers, 3, entity.Customer{ID: 3, Name: "Jim"})
	require.NoError(t, err)

	got, _ := s.Customers.Get(3)
	assert.Equal(t, entity.Customer{ID: 3, Name: "Jim"}, got)
}

func TestEngine_ReplaceErrors(t *testing.T) {
	tests := []struct {
		name string
		set  string
		id   int64
		e    entity.Entity
		code entity.ErrorCode
	}{
		{"absent customer", entity.SetCustomers, 9, entity.Customer{Name: "x"}, entity.CodeNotFound},
		{"absent order", entity.SetOrders, 9, entity.Order{}, entity.CodeNotFound},
		{"key mismatch", entity.SetCustomers, 1, entity.Customer{ID: 2}, entity.CodeInvalidInput},
		{"wrong type", entity.SetCustomers, 1, entity.Order{}, entity.CodeInvalidInput},
		{"missing customer", entity.SetOrders, 1, entity.Order{CustomerID: entity.Ref(42)}, entity.CodeInvalidInput},
		{"nil", entity.SetOrders, 1, nil, entity.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s := newEngine(t)
			before := s.Snapshot()

			_, err := m.Replace(tt.set, tt.id, tt.e)
			assert.Equal(t, tt.code, entity.CodeOf(err))
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

// =============================================================================
// Patch
// =============================================================================

func TestEngine_PatchChangesOnlyPresentFields(t *testing.T) {
	m, s := newEngine(t)

	_, err := m.Patch(entity.SetCustomers, 3, entity.CustomerPatch{Name: entity.Some("Jim")})
	require.NoError(t, err)

	got, _ := s.Customers.Get(3)
	assert.Equal(t, "Jim", got.Name)
	assert.Equal(t, "NBI", got.City)
}

func TestEngine_PatchOrder(t *testing.T) {
	m, s := newEngine(t)

	_, err := m.Patch(entity.SetOrders, 1, entity.OrderPatch{Amount: entity.Some(decimal.NewFromInt(5))})
	require.NoError(t, err)
	got, _ := s.Orders.Get(1)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(5)))
	assert.True(t, got.OrderDate.Equal(orderDate))
	cid, _ := customerOf(t, s, 1)
	assert.Equal(t, int64(2), cid)

	_, err = m.Patch(entity.SetOrders, 1, entity.OrderPatch{Customer: entity.Some(entity.Ref(3))})
	require.NoError(t, err)
	cid, _ = customerOf(t, s, 1)
	assert.Equal(t, int64(3), cid)

	_, err = m.Patch(entity.SetOrders, 1, entity.OrderPatch{Customer: entity.Some[*int64](nil)})
	require.NoError(t, err)
	_, linked := customerOf(t, s, 1)
	assert.False(t, linked)
}

func TestEngine_PatchErrors(t *testing.T) {
	tests := []struct {
		name string
		set  string
		id   int64
		p    entity.Patch
		code entity.ErrorCode
	}{
		{"nil", entity.SetCustomers, 1, nil, entity.CodeInvalidInput},
		{"empty", entity.SetCustomers, 1, entity.CustomerPatch{}, entity.CodeInvalidInput},
		{"absent", entity.SetCustomers, 9, entity.CustomerPatch{Name: entity.Some("x")}, entity.CodeNotFound},
		{"absent order with link", entity.SetOrders, 9, entity.OrderPatch{Customer: entity.Some(entity.Ref(1))}, entity.CodeNotFound},
		{"key change", entity.SetCustomers, 1, entity.CustomerPatch{ID: entity.Some(int64(2))}, entity.CodeInvalidInput},
		{"wrong set", entity.SetOrders, 1, entity.CustomerPatch{Name: entity.Some("x")}, entity.CodeInvalidInput},
		{"missing customer", entity.SetOrders, 1, entity.OrderPatch{Customer: entity.Some(entity.Ref(42))}, entity.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s := newEngine(t)
			before := s.Snapshot()

			_, err := m.Patch(tt.set, tt.id, tt.p)
			assert.Equal(t, tt.code, entity.CodeOf(err))
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

func TestEngine_PatchSameKeyAllowed(t *testing.T) {
	m, _ := newEngine(t)
	_, err := m.Patch(entity.SetCustomers, 1, entity.CustomerPatch{ID: entity.Some(int64(1)), City: entity.Some("ABV")})
	assert.NoError(t, err)
}

// =============================================================================
// Delete
// =============================================================================

func TestEngine_DeleteIsIdempotent(t *testing.T) {
	m, s := newEngine(t)

	removed, err := m.Delete(entity.SetOrders, 3)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.Delete(entity.SetOrders, 3)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 4, s.Orders.Len())
}

func TestEngine_DeleteCustomerClearsReferences(t *testing.T) {
	m, s := newEngine(t)

	removed, err := m.Delete(entity.SetCustomers, 2)
	require.NoError(t, err)
	assert.True(t, removed)

	for _, id := range []int64{1, 4} {
		_, linked := customerOf(t, s, id)
		assert.False(t, linked, "order %d", id)
	}
	cid, _ := customerOf(t, s, 2)
	assert.Equal(t, int64(1), cid)
	assert.Equal(t, 5, s.Orders.Len())
}

func TestEngine_DeleteUnknownSet(t *testing.T) {
	m, _ := newEngine(t)
	_, err := m.Delete("Products", 1)
	assert.Equal(t, entity.CodeNotFound, entity.CodeOf(err))
}

// =============================================================================
// Link
// =============================================================================

func TestEngine_LinkOrderToCustomer(t *testing.T) {
	m, s := newEngine(t)

	require.NoError(t, m.Link(entity.SetOrders, 3, entity.NavCustomer, 3))
	cid, _ := customerOf(t, s, 3)
	assert.Equal(t, int64(3), cid)
}

func TestEngine_LinkFromCustomer(t *testing.T) {
	m, s := newEngine(t)

	require.NoError(t, m.Link(entity.SetCustomers, 2, entity.NavOrders, 5))
	cid, _ := customerOf(t, s, 5)
	assert.Equal(t, int64(2), cid)
}

func TestEngine_LinkErrors(t *testing.T) {
	tests := []struct {
		name      string
		set       string
		id        int64
		nav       string
		relatedID int64
		code      entity.ErrorCode
	}{
		{"missing order", entity.SetOrders, 6, entity.NavCustomer, 1, entity.CodeInvalidInput},
		{"missing customer", entity.SetOrders, 1, entity.NavCustomer, 42, entity.CodeInvalidInput},
		{"missing parent customer", entity.SetCustomers, 42, entity.NavOrders, 1, entity.CodeInvalidInput},
		{"missing related order", entity.SetCustomers, 1, entity.NavOrders, 6, entity.CodeInvalidInput},
		{"unknown navigation", entity.SetOrders, 1, "Lines", 1, entity.CodeInvalidInput},
		{"unknown set", "Products", 1, entity.NavCustomer, 1, entity.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s := newEngine(t)
			before := s.Snapshot()

			err := m.Link(tt.set, tt.id, tt.nav, tt.relatedID)
			assert.Equal(t, tt.code, entity.CodeOf(err))
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

// =============================================================================
// Concurrency
// =============================================================================

func TestEngine_ConcurrentLinkAndDelete(t *testing.T) {
	for i := 0; i < 20; i++ {
		m, s := newEngine(t)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Link(entity.SetOrders, 3, entity.NavCustomer, 3)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Delete(entity.SetCustomers, 3)
		}()
		wg.Wait()

		// Whatever the interleaving, no order may reference a missing customer.
		for _, o := range s.Orders.All() {
			if cid, ok := o.Customer(); ok {
				_, exists := s.Customers.Get(cid)
				assert.True(t, exists, "order %d references missing customer %d", o.ID, cid)
			}
		}
	}
}
