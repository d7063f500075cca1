package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/odatad/pkg/entity"
	"github.com/getmockd/odatad/pkg/store"
)

func TestDefault(t *testing.T) {
	ds := Default()
	require.Len(t, ds.Customers, 3)
	require.Len(t, ds.Orders, 5)
	assert.Equal(t, 8, ds.Len())

	assert.Equal(t, "NBI", ds.Customers[2].City)

	sum := decimal.Zero
	owners := map[int64][]int64{}
	for _, o := range ds.Orders {
		sum = sum.Add(o.Amount)
		id, ok := o.Customer()
		require.True(t, ok)
		owners[id] = append(owners[id], o.ID)
	}
	assert.True(t, sum.Equal(decimal.NewFromInt(550)))
	assert.Equal(t, []int64{1, 4}, owners[2])
	assert.Equal(t, []int64{2, 3, 5}, owners[1])
}

func TestApply_Idempotent(t *testing.T) {
	s := store.New()

	applied, err := Apply(s, Default())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, map[string]int{entity.SetCustomers: 3, entity.SetOrders: 5}, s.Counts())

	applied, err = Apply(s, Default())
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, map[string]int{entity.SetCustomers: 3, entity.SetOrders: 5}, s.Counts())
}

func TestApply_SkipsNonEmptyStore(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Customers.Insert(entity.Customer{ID: 9, Name: "Ann"}))

	applied, err := Apply(s, Default())
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, s.Customers.Len())
}

func TestApply_Atomic(t *testing.T) {
	tests := []struct {
		name string
		ds   Dataset
	}{
		{
			name: "duplicate customer",
			ds: Dataset{Customers: []entity.Customer{{ID: 1}, {ID: 1}}},
		},
		{
			name: "dangling reference",
			ds: Dataset{
				Customers: []entity.Customer{{ID: 1}},
				Orders:    []entity.Order{{ID: 1, CustomerID: entity.Ref(7)}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.New()
			applied, err := Apply(s, tt.ds)
			assert.Error(t, err)
			assert.False(t, applied)
			assert.True(t, s.Empty())
		})
	}
}

func TestReset(t *testing.T) {
	s := store.New()
	_, err := Apply(s, Default())
	require.NoError(t, err)
	require.NoError(t, s.Customers.Insert(entity.Customer{ID: 9, Name: "Ann"}))
	assert.True(t, s.Orders.Remove(4))

	require.NoError(t, Reset(s, Default()))
	assert.Equal(t, map[string]int{entity.SetCustomers: 3, entity.SetOrders: 5}, s.Counts())
	_, ok := s.Customers.Get(9)
	assert.False(t, ok)

	joe, _ := s.Customers.Get(2)
	var related []int64
	for _, o := range s.Snapshot().Related(joe, entity.NavOrders) {
		related = append(related, o.Key())
	}
	assert.Equal(t, []int64{1, 4}, related)
}

func TestReset_KeepsStoreOnBadDataset(t *testing.T) {
	s := store.New()
	_, err := Apply(s, Default())
	require.NoError(t, err)

	err = Reset(s, Dataset{
		Customers: []entity.Customer{{ID: 1}},
		Orders:    []entity.Order{{ID: 1, CustomerID: entity.Ref(7)}},
	})
	require.Error(t, err)
	assert.Equal(t, map[string]int{entity.SetCustomers: 3, entity.SetOrders: 5}, s.Counts())
	kim, ok := s.Customers.Get(3)
	require.True(t, ok)
	assert.Equal(t, "NBI", kim.City)
}

func TestRecords_RoundTrip(t *testing.T) {
	recs := Default().Records()
	require.Len(t, recs[entity.SetOrders], 5)

	first := recs[entity.SetOrders][0]
	assert.Equal(t, "Customers(2)", first["Customer@odata.bind"])
	assert.Equal(t, "2024-01-05T09:00:00Z", first["OrderDate"])

	content := fileContent{}
	for _, r := range recs[entity.SetCustomers] {
		content.Customers = append(content.Customers, r)
	}
	for _, r := range recs[entity.SetOrders] {
		content.Orders = append(content.Orders, r)
	}
	ds, err := content.decode()
	require.NoError(t, err)
	require.Len(t, ds.Orders, 5)
	for i, o := range ds.Orders {
		assert.True(t, o.Equal(Default().Orders[i]), "order %d", o.ID)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "customers.yaml", `
Customers:
  - Id: 10
    Name: Ann
    City: MBA
`)
	writeFile(t, dir, "orders.json", `{
  "Orders": [
    {"Id": 20, "OrderDate": "2024-05-01T10:00:00+03:00", "Amount": 19.99, "Customer@odata.bind": "Customers(10)"}
  ]
}`)

	ds, err := LoadFile(filepath.Join(dir, "customers.yaml"))
	require.NoError(t, err)
	require.Len(t, ds.Customers, 1)
	assert.Equal(t, entity.Customer{ID: 10, Name: "Ann", City: "MBA"}, ds.Customers[0])

	ds, err = LoadFile(filepath.Join(dir, "orders.json"))
	require.NoError(t, err)
	require.Len(t, ds.Orders, 1)
	o := ds.Orders[0]
	assert.Equal(t, "19.99", o.Amount.String())
	id, ok := o.Customer()
	assert.True(t, ok)
	assert.Equal(t, int64(10), id)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"empty", "empty.yaml", "  \n", "file is empty"},
		{"bad yaml", "bad.yaml", "Customers: [", "parsing YAML"},
		{"bad json", "bad.json", "{", "parsing JSON"},
		{"missing key", "nokey.yaml", "Customers:\n  - Name: Ann\n", "Customers[0]"},
		{"unknown property", "extra.json", `{"Customers":[{"Id":1,"Country":"KE"}]}`, "Country"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			_, err := LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestLoadFiles_Glob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "seed/a/customers.yaml", "Customers:\n  - {Id: 1, Name: Sue, City: EKO}\n")
	writeFile(t, dir, "seed/b/more.yml", "Customers:\n  - {Id: 2, Name: Joe, City: JED}\n")
	writeFile(t, dir, "seed/b/orders.json", `{"Orders":[{"Id":1,"Amount":"5.00","Customer@odata.bind":"Customers(2)"}]}`)

	ds, err := LoadFiles([]string{"seed/**/*.y*ml", "seed/**/*.json"}, dir)
	require.NoError(t, err)
	require.Len(t, ds.Customers, 2)
	assert.Equal(t, int64(1), ds.Customers[0].ID)
	assert.Equal(t, int64(2), ds.Customers[1].ID)
	require.Len(t, ds.Orders, 1)

	s := store.New()
	applied, err := Apply(s, ds)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 3, s.Customers.Len()+s.Orders.Len())
}

func TestLoadFiles_Patterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", "Customers:\n  - {Id: 1}\n")

	ds, err := LoadFiles([]string{"one.yaml", "*.yaml"}, dir)
	require.NoError(t, err)
	assert.Len(t, ds.Customers, 1, "a file matched twice is loaded once")

	ds, err = LoadFiles([]string{"nothing/*.yaml"}, dir)
	require.NoError(t, err)
	assert.Zero(t, ds.Len())

	_, err = LoadFiles([]string{"missing.yaml"}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed file not found")
}
