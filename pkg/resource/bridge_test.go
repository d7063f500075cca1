package resource

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/odatad/pkg/entity"
	"github.com/getmockd/odatad/pkg/seed"
	"github.com/getmockd/odatad/pkg/store"
)

func setupBridgeTest(t *testing.T, opts ...Option) (*Bridge, *MetricsObserver) {
	t.Helper()
	s := store.New()
	_, err := seed.Apply(s, seed.Default())
	require.NoError(t, err)

	obs := NewMetricsObserver()
	bridge, err := NewBridge(s, append([]Option{WithObserver(obs)}, opts...)...)
	require.NoError(t, err)
	return bridge, obs
}

func exec(b *Bridge, req *OperationRequest) *OperationResult {
	return b.Execute(context.Background(), req)
}

func body(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	d := json.NewDecoder(strings.NewReader(s))
	d.UseNumber()
	require.NoError(t, d.Decode(&m))
	return m
}

func keys(recs []entity.Record) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r[entity.KeyProperty].(int64)
	}
	return out
}

// --- Read tests ---

func TestBridge_List(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:    entity.SetOrders,
		Action: ActionList,
		Query:  url.Values{"$filter": {"Amount gt 100"}, "$orderby": {"Amount desc"}, "$count": {"true"}},
	})

	require.Equal(t, StatusSuccess, result.Status, "error: %v", result.Error)
	assert.Equal(t, []int64{1, 2, 4}, keys(result.List.Entities))
	require.NotNil(t, result.List.Count)
	assert.Equal(t, 3, *result.List.Count)
	assert.Equal(t, int64(1), obs.Snapshot().Totals().Listed)
}

func TestBridge_List_Aggregate(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:    entity.SetOrders,
		Action: ActionList,
		Query:  url.Values{"$apply": {"aggregate(Amount with average as Avg)"}},
	})

	require.Equal(t, StatusSuccess, result.Status, "error: %v", result.Error)
	require.Len(t, result.List.Aggregates, 1)
	avg := result.List.Aggregates[0]["Avg"].(json.Number)
	assert.True(t, decimal.RequireFromString(string(avg)).Equal(decimal.NewFromInt(110)))
}

func TestBridge_List_MaxPageSize(t *testing.T) {
	bridge, _ := setupBridgeTest(t, WithMaxPageSize(2))

	result := exec(bridge, &OperationRequest{Set: entity.SetOrders, Action: ActionList})

	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, []int64{1, 2}, keys(result.List.Entities))
	require.NotNil(t, result.List.NextSkip)
	assert.Equal(t, 2, *result.List.NextSkip)
}

func TestBridge_List_BadQuery(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:    entity.SetCustomers,
		Action: ActionList,
		Query:  url.Values{"$filter": {"Country eq 'KE'"}},
	})

	assert.Equal(t, StatusValidationError, result.Status)
	assert.IsType(t, &entity.ValidationError{}, result.Error)
	assert.Equal(t, int64(1), obs.Snapshot().Totals().Errors)
}

func TestBridge_Get(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:    entity.SetCustomers,
		Action: ActionGet,
		Key:    2,
		Query:  url.Values{"$expand": {"Orders($select=Id)"}, "$select": {"Name"}},
	})

	require.Equal(t, StatusSuccess, result.Status, "error: %v", result.Error)
	assert.Equal(t, "Joe", result.Entity["Name"])
	assert.NotContains(t, result.Entity, "City")
	assert.Equal(t, []entity.Record{{"Id": int64(1)}, {"Id": int64(4)}}, result.Entity["Orders"])
	assert.Equal(t, int64(1), obs.Snapshot().Totals().Read)
}

func TestBridge_Get_NotFound(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{Set: entity.SetCustomers, Action: ActionGet, Key: 42})

	assert.Equal(t, StatusNotFound, result.Status)
	var nf *entity.NotFoundError
	require.ErrorAs(t, result.Error, &nf)
	assert.Equal(t, int64(42), nf.Key)
	assert.Equal(t, int64(1), obs.Snapshot().Totals().Errors)
}

func TestBridge_Get_MissingKey(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{Set: entity.SetCustomers, Action: ActionGet})
	assert.Equal(t, StatusValidationError, result.Status)
}

func TestBridge_Get_ListOptionRejected(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:    entity.SetCustomers,
		Action: ActionGet,
		Key:    1,
		Query:  url.Values{"$top": {"1"}},
	})
	assert.Equal(t, StatusValidationError, result.Status)
}

// --- Write tests ---

func TestBridge_Create(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:    entity.SetOrders,
		Action: ActionCreate,
		Data:   body(t, `{"Id":6,"OrderDate":"2024-04-01T10:00:00Z","Amount":12.50,"Customer@odata.bind":"Customers(3)"}`),
	})

	require.Equal(t, StatusCreated, result.Status, "error: %v", result.Error)
	assert.Equal(t, int64(6), result.Key)
	assert.Equal(t, json.Number("12.5"), result.Entity["Amount"])
	assert.Equal(t, int64(1), obs.Snapshot().Totals().Created)

	get := exec(bridge, &OperationRequest{
		Set:    entity.SetCustomers,
		Action: ActionGet,
		Key:    3,
		Query:  url.Values{"$expand": {"Orders"}},
	})
	require.Equal(t, StatusSuccess, get.Status)
	assert.Equal(t, []int64{6}, keys(get.Entity["Orders"].([]entity.Record)))
}

func TestBridge_Create_Errors(t *testing.T) {
	tests := []struct {
		name   string
		set    string
		data   string
		status ResultStatus
	}{
		{"duplicate key", entity.SetCustomers, `{"Id":1,"Name":"Dup"}`, StatusConflict},
		{"missing key", entity.SetCustomers, `{"Name":"Ann"}`, StatusValidationError},
		{"wrong type", entity.SetCustomers, `{"Id":"4"}`, StatusValidationError},
		{"unknown customer", entity.SetOrders, `{"Id":6,"Customer@odata.bind":"Customers(9)"}`, StatusValidationError},
		{"bind to wrong set", entity.SetOrders, `{"Id":6,"Customer@odata.bind":"Orders(1)"}`, StatusValidationError},
		{"unknown property", entity.SetOrders, `{"Id":6,"Total":1}`, StatusValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge, _ := setupBridgeTest(t)
			before := bridge.Counts()

			result := exec(bridge, &OperationRequest{Set: tt.set, Action: ActionCreate, Data: body(t, tt.data)})

			assert.Equal(t, tt.status, result.Status, "error: %v", result.Error)
			assert.Error(t, result.Error)
			assert.Equal(t, before, bridge.Counts())
		})
	}
}

func TestBridge_Create_NilBody(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{Set: entity.SetCustomers, Action: ActionCreate})
	assert.Equal(t, StatusValidationError, result.Status)
}

func TestBridge_Replace(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:    entity.SetOrders,
		Action: ActionReplace,
		Key:    1,
		Data:   body(t, `{"Amount":"1.00"}`),
	})

	require.Equal(t, StatusSuccess, result.Status, "error: %v", result.Error)
	assert.Equal(t, int64(1), result.Entity["Id"])
	assert.Equal(t, json.Number("1"), result.Entity["Amount"])
	assert.Equal(t, "0001-01-01T00:00:00Z", result.Entity["OrderDate"])
	assert.Equal(t, int64(1), obs.Snapshot().Totals().Updated)

	// The customer reference was reset too.
	get := exec(bridge, &OperationRequest{
		Set:    entity.SetOrders,
		Action: ActionGet,
		Key:    1,
		Query:  url.Values{"$expand": {"Customer"}},
	})
	require.Equal(t, StatusSuccess, get.Status)
	assert.Nil(t, get.Entity["Customer"])
}

func TestBridge_Replace_Errors(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{Set: entity.SetOrders, Action: ActionReplace, Key: 99, Data: body(t, `{}`)})
	assert.Equal(t, StatusNotFound, result.Status)

	result = exec(bridge, &OperationRequest{Set: entity.SetOrders, Action: ActionReplace, Key: 1, Data: body(t, `{"Id":2}`)})
	assert.Equal(t, StatusValidationError, result.Status)
}

func TestBridge_Patch(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:    entity.SetCustomers,
		Action: ActionPatch,
		Key:    3,
		Data:   body(t, `{"Name":"Jim"}`),
	})

	require.Equal(t, StatusSuccess, result.Status, "error: %v", result.Error)
	assert.Equal(t, entity.Record{"Id": int64(3), "Name": "Jim", "City": "NBI"}, result.Entity)
}

func TestBridge_Patch_Errors(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	tests := []struct {
		name   string
		key    int64
		data   string
		status ResultStatus
	}{
		{"empty", 1, `{}`, StatusValidationError},
		{"annotations only", 1, `{"@odata.type":"#Customer"}`, StatusValidationError},
		{"missing entity", 42, `{"Name":"X"}`, StatusNotFound},
		{"key change", 1, `{"Id":5}`, StatusValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := exec(bridge, &OperationRequest{Set: entity.SetCustomers, Action: ActionPatch, Key: tt.key, Data: body(t, tt.data)})
			assert.Equal(t, tt.status, result.Status, "error: %v", result.Error)
		})
	}
}

func TestBridge_Delete_Idempotent(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	for range 2 {
		result := exec(bridge, &OperationRequest{Set: entity.SetOrders, Action: ActionDelete, Key: 5})
		assert.Equal(t, StatusNoContent, result.Status)
		assert.NoError(t, result.Error)
	}
	assert.Equal(t, 4, bridge.Counts()[entity.SetOrders])
	assert.Equal(t, int64(2), obs.Snapshot().Totals().Deleted)
}

func TestBridge_Reset(t *testing.T) {
	bridge, _ := setupBridgeTest(t)
	exec(bridge, &OperationRequest{Set: entity.SetOrders, Action: ActionDelete, Key: 1})

	require.NoError(t, bridge.Reset(seed.Dataset{Customers: []entity.Customer{{ID: 7, Name: "Ann"}}}))
	assert.Equal(t, map[string]int{entity.SetCustomers: 1, entity.SetOrders: 0}, bridge.Counts())

	require.NoError(t, bridge.Reset(seed.Default()))
	assert.Equal(t, map[string]int{entity.SetCustomers: 3, entity.SetOrders: 5}, bridge.Counts())
}

func TestBridge_Delete_NonPositiveKey(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	for _, key := range []int64{0, -3} {
		result := exec(bridge, &OperationRequest{Set: entity.SetCustomers, Action: ActionDelete, Key: key})
		assert.Equal(t, StatusNoContent, result.Status)
		assert.NoError(t, result.Error)
	}
	assert.Equal(t, map[string]int{entity.SetCustomers: 3, entity.SetOrders: 5}, bridge.Counts())

	get := exec(bridge, &OperationRequest{Set: entity.SetCustomers, Action: ActionGet, Key: 0})
	assert.Equal(t, StatusValidationError, get.Status)
}

func TestBridge_Link(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{
		Set:        entity.SetCustomers,
		Action:     ActionLink,
		Key:        3,
		Navigation: entity.NavOrders,
		Data:       map[string]any{LinkTarget: "Orders(5)"},
	})
	require.Equal(t, StatusNoContent, result.Status, "error: %v", result.Error)

	result = exec(bridge, &OperationRequest{
		Set:        entity.SetOrders,
		Action:     ActionLink,
		Key:        2,
		Navigation: entity.NavCustomer,
		Data:       map[string]any{LinkTarget: "http://localhost/Customers(3)"},
	})
	require.Equal(t, StatusNoContent, result.Status, "error: %v", result.Error)
	assert.Equal(t, int64(2), obs.Snapshot().Totals().Linked)

	get := exec(bridge, &OperationRequest{
		Set:    entity.SetCustomers,
		Action: ActionGet,
		Key:    3,
		Query:  url.Values{"$expand": {"Orders"}},
	})
	require.Equal(t, StatusSuccess, get.Status)
	assert.Equal(t, []int64{2, 5}, keys(get.Entity["Orders"].([]entity.Record)))
}

func TestBridge_Link_Errors(t *testing.T) {
	tests := []struct {
		name   string
		set    string
		key    int64
		nav    string
		data   map[string]any
		status ResultStatus
	}{
		{"missing order", entity.SetCustomers, 3, entity.NavOrders, map[string]any{LinkTarget: "Orders(6)"}, StatusValidationError},
		{"missing customer", entity.SetOrders, 1, entity.NavCustomer, map[string]any{LinkTarget: "Customers(9)"}, StatusValidationError},
		{"unknown navigation", entity.SetOrders, 1, "Supplier", map[string]any{LinkTarget: "Customers(1)"}, StatusValidationError},
		{"wrong target set", entity.SetOrders, 1, entity.NavCustomer, map[string]any{LinkTarget: "Orders(2)"}, StatusValidationError},
		{"no target", entity.SetOrders, 1, entity.NavCustomer, map[string]any{}, StatusValidationError},
		{"target not string", entity.SetOrders, 1, entity.NavCustomer, map[string]any{LinkTarget: json.Number("1")}, StatusValidationError},
		{"malformed target", entity.SetOrders, 1, entity.NavCustomer, map[string]any{LinkTarget: "Customers"}, StatusValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge, _ := setupBridgeTest(t)
			before := exec(bridge, &OperationRequest{Set: entity.SetCustomers, Action: ActionList, Query: url.Values{"$expand": {"Orders"}}})

			result := exec(bridge, &OperationRequest{Set: tt.set, Action: ActionLink, Key: tt.key, Navigation: tt.nav, Data: tt.data})
			assert.Equal(t, tt.status, result.Status, "error: %v", result.Error)

			after := exec(bridge, &OperationRequest{Set: entity.SetCustomers, Action: ActionList, Query: url.Values{"$expand": {"Orders"}}})
			assert.Equal(t, before.List.Entities, after.List.Entities)
		})
	}
}

// --- Dispatch tests ---

func TestBridge_UnknownSet(t *testing.T) {
	bridge, obs := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{Set: "Products", Action: ActionList})
	assert.Equal(t, StatusNotFound, result.Status)
	assert.Equal(t, int64(1), obs.Snapshot().Totals().Errors)

	for i := range 100 {
		exec(bridge, &OperationRequest{Set: "Bogus" + strconv.Itoa(i), Action: ActionGet, Key: 1})
	}
	snap := obs.Snapshot()
	assert.Len(t, snap.Sets, 1)
	assert.Equal(t, SetCounts{Errors: 101}, snap.Sets[UnknownSet])
}

func TestBridge_UnsupportedAction(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	result := exec(bridge, &OperationRequest{Set: entity.SetOrders, Action: "merge"})
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error.Error(), "unsupported action")
}

func TestBridge_NilRequest(t *testing.T) {
	bridge, _ := setupBridgeTest(t)

	result := bridge.Execute(context.Background(), nil)
	assert.Equal(t, StatusError, result.Status)
}

func TestBridge_CanceledContext(t *testing.T) {
	bridge, _ := setupBridgeTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := bridge.Execute(ctx, &OperationRequest{Set: entity.SetOrders, Action: ActionList})
	assert.Equal(t, StatusError, result.Status)
	assert.ErrorIs(t, result.Error, context.Canceled)
}

func TestNewBridge_NegativePageSize(t *testing.T) {
	_, err := NewBridge(store.New(), WithMaxPageSize(-1))
	assert.Error(t, err)
}

func TestNewBridge_NilStorePanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = NewBridge(nil) })
}
