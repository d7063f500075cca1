package entity

import "sort"

// Entity set names.
const (
	SetCustomers = "Customers"
	SetOrders    = "Orders"
)

// Navigation property names.
const (
	NavOrders   = "Orders"
	NavCustomer = "Customer"
)

// KeyProperty is the name of the key property on every entity type.
const KeyProperty = "Id"

// Kind is the primitive type of a scalar property.
type Kind int

const (
	KindInt64 Kind = iota
	KindString
	KindDecimal
	KindDateTimeOffset
	KindBoolean
)

// String returns the EDM name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "Edm.Int64"
	case KindString:
		return "Edm.String"
	case KindDecimal:
		return "Edm.Decimal"
	case KindDateTimeOffset:
		return "Edm.DateTimeOffset"
	case KindBoolean:
		return "Edm.Boolean"
	default:
		return "Edm.Unknown"
	}
}

// Property describes a scalar property of an entity type.
type Property struct {
	Name     string
	Kind     Kind
	Nullable bool
	Key      bool
}

// Navigation describes a relationship from one entity type to another.
type Navigation struct {
	// Name is the navigation property name (e.g. "Customer").
	Name string
	// Target is the entity set the navigation resolves into.
	Target string
	// Collection is true for to-many navigations.
	Collection bool
}

// Type describes an entity type and the set that holds its instances.
type Type struct {
	Name        string
	Set         string
	Properties  []Property
	Navigations []Navigation
}

// Property looks up a scalar property by name.
func (t *Type) Property(name string) (Property, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Navigation looks up a navigation property by name.
func (t *Type) Navigation(name string) (Navigation, bool) {
	for _, n := range t.Navigations {
		if n.Name == name {
			return n, true
		}
	}
	return Navigation{}, false
}

// PropertyNames returns the scalar property names in declaration order.
func (t *Type) PropertyNames() []string {
	names := make([]string, len(t.Properties))
	for i, p := range t.Properties {
		names[i] = p.Name
	}
	return names
}

// Model is the set of entity types exposed by the server.
type Model struct {
	types []*Type
	bySet map[string]*Type
}

// NewModel builds a model from the given types.
func NewModel(types ...*Type) *Model {
	m := &Model{bySet: make(map[string]*Type, len(types))}
	for _, t := range types {
		m.types = append(m.types, t)
		m.bySet[t.Set] = t
	}
	return m
}

// Lookup returns the entity type stored in the named set.
func (m *Model) Lookup(set string) (*Type, bool) {
	t, ok := m.bySet[set]
	return t, ok
}

// Types returns every entity type in declaration order.
func (m *Model) Types() []*Type {
	out := make([]*Type, len(m.types))
	copy(out, m.types)
	return out
}

// Sets returns the entity set names sorted alphabetically.
func (m *Model) Sets() []string {
	sets := make([]string, 0, len(m.bySet))
	for s := range m.bySet {
		sets = append(sets, s)
	}
	sort.Strings(sets)
	return sets
}

// CustomerType is the metadata for Customer.
var CustomerType = &Type{
	Name: "Customer",
	Set:  SetCustomers,
	Properties: []Property{
		{Name: KeyProperty, Kind: KindInt64, Key: true},
		{Name: "Name", Kind: KindString},
		{Name: "City", Kind: KindString},
	},
	Navigations: []Navigation{
		{Name: NavOrders, Target: SetOrders, Collection: true},
	},
}

// OrderType is the metadata for Order.
var OrderType = &Type{
	Name: "Order",
	Set:  SetOrders,
	Properties: []Property{
		{Name: KeyProperty, Kind: KindInt64, Key: true},
		{Name: "OrderDate", Kind: KindDateTimeOffset},
		{Name: "Amount", Kind: KindDecimal},
	},
	Navigations: []Navigation{
		{Name: NavCustomer, Target: SetCustomers},
	},
}

// DefaultModel returns the Customers/Orders model.
func DefaultModel() *Model {
	return NewModel(CustomerType, OrderType)
}
