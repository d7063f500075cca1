package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BindAnnotation is the suffix of a property that binds a navigation by
// reference, e.g. "Customer@odata.bind": "Customers(2)".
const BindAnnotation = "@odata.bind"

// Record is the serialized form of an entity or an aggregate row: a flat map
// of property name to JSON-ready value.
type Record map[string]any

// Encode serializes an entity into a Record of its scalar properties.
func Encode(e Entity) Record {
	t := typeOf(e)
	rec := make(Record, len(t.Properties))
	for _, p := range t.Properties {
		v, _ := e.Value(p.Name)
		rec[p.Name] = EncodeValue(v)
	}
	return rec
}

// EncodeValue converts an engine value into its wire form. Decimals become
// json.Number so they are written as exact JSON numbers; timestamps become
// RFC 3339 strings.
func EncodeValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return json.Number(x.String())
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func typeOf(e Entity) *Type {
	if e.EntitySet() == SetOrders {
		return OrderType
	}
	return CustomerType
}

// Decode builds a full entity of the given set from a decoded payload.
// Absent properties take their zero value.
func Decode(set string, data map[string]any) (Entity, error) {
	if data == nil {
		return nil, &ValidationError{Message: "request body must be a JSON object"}
	}
	switch set {
	case SetCustomers:
		p, err := decodeCustomerPatch(data)
		if err != nil {
			return nil, err
		}
		c := p.Apply(Customer{})
		c.ID, _ = p.ID.Get()
		return c, nil
	case SetOrders:
		p, err := decodeOrderPatch(data)
		if err != nil {
			return nil, err
		}
		o := p.Apply(Order{})
		o.ID, _ = p.ID.Get()
		return o, nil
	default:
		return nil, &NotFoundError{Set: set}
	}
}

// DecodePatch builds a merge-patch for the given set. A field is present in
// the patch iff its key is present in data.
func DecodePatch(set string, data map[string]any) (Patch, error) {
	if data == nil {
		return nil, &ValidationError{Message: "patch body must be a non-empty JSON object"}
	}
	switch set {
	case SetCustomers:
		return decodeCustomerPatch(data)
	case SetOrders:
		return decodeOrderPatch(data)
	default:
		return nil, &NotFoundError{Set: set}
	}
}

func decodeCustomerPatch(data map[string]any) (CustomerPatch, error) {
	var p CustomerPatch
	for _, key := range sortedKeys(data) {
		v := data[key]
		var err error
		switch key {
		case KeyProperty:
			p.ID.Value, err = toInt64(key, v)
			p.ID.Set = true
		case "Name":
			p.Name.Value, err = toString(key, v)
			p.Name.Set = true
		case "City":
			p.City.Value, err = toString(key, v)
			p.City.Set = true
		default:
			err = checkExtraKey(CustomerType, key)
		}
		if err != nil {
			return CustomerPatch{}, err
		}
	}
	return p, nil
}

func decodeOrderPatch(data map[string]any) (OrderPatch, error) {
	var p OrderPatch
	for _, key := range sortedKeys(data) {
		v := data[key]
		var err error
		switch key {
		case KeyProperty:
			p.ID.Value, err = toInt64(key, v)
			p.ID.Set = true
		case "OrderDate":
			p.OrderDate.Value, err = toTime(key, v)
			p.OrderDate.Set = true
		case "Amount":
			p.Amount.Value, err = toDecimal(key, v)
			p.Amount.Set = true
		case NavCustomer + BindAnnotation:
			p.Customer.Value, err = toBinding(key, SetCustomers, v)
			p.Customer.Set = true
		default:
			err = checkExtraKey(OrderType, key)
		}
		if err != nil {
			return OrderPatch{}, err
		}
	}
	return p, nil
}

// checkExtraKey accepts instance annotations and rejects everything else.
func checkExtraKey(t *Type, key string) error {
	if strings.HasPrefix(key, "@") {
		return nil
	}
	if nav, ok := t.Navigation(key); ok {
		return Invalidf(key, "navigation properties are not writable inline; use %s%s or a $ref link", nav.Name, BindAnnotation)
	}
	return Invalidf(key, "unknown property on %s", t.Name)
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInt64(field string, v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, Invalidf(field, "must not be null")
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, Invalidf(field, "must be an integer, got %s", x)
		}
		return n, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, Invalidf(field, "out of range")
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return 0, Invalidf(field, "must be an integer, got %v", x)
		}
		return int64(x), nil
	default:
		return 0, Invalidf(field, "must be an integer, got %T", v)
	}
}

func toString(field string, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", Invalidf(field, "must not be null")
	case string:
		return x, nil
	default:
		return "", Invalidf(field, "must be a string, got %T", v)
	}
}

func toDecimal(field string, v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, Invalidf(field, "must not be null")
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero, Invalidf(field, "must be a decimal number, got %s", x)
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, Invalidf(field, "must be a decimal number, got %q", x)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		// Only reached for YAML seed files; JSON payloads arrive as json.Number.
		return decimal.NewFromFloat(x), nil
	default:
		return decimal.Zero, Invalidf(field, "must be a decimal number, got %T", v)
	}
}

func toTime(field string, v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, Invalidf(field, "must not be null")
	case time.Time:
		return x, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return time.Time{}, Invalidf(field, "must be an RFC 3339 timestamp with offset, got %q", x)
		}
		return t, nil
	default:
		return time.Time{}, Invalidf(field, "must be a timestamp string, got %T", v)
	}
}

func toBinding(field, target string, v any) (*int64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		set, key, err := ParseEntityRef(x)
		if err != nil {
			return nil, Invalidf(field, "%v", err)
		}
		if set != target {
			return nil, Invalidf(field, "must reference %s, got %s", target, set)
		}
		return Ref(key), nil
	default:
		return nil, Invalidf(field, "must be an entity reference string such as %q", target+"(1)")
	}
}

// ParseEntityRef parses an entity reference of the form "Customers(2)",
// "Customers/2" or an absolute URL ending in either form.
func ParseEntityRef(ref string) (string, int64, error) {
	s := strings.TrimSuffix(strings.TrimSpace(ref), "/")
	if s == "" {
		return "", 0, fmt.Errorf("empty entity reference")
	}

	var set, keyText string
	if open := strings.LastIndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return "", 0, fmt.Errorf("malformed entity reference %q", ref)
		}
		keyText = s[open+1 : len(s)-1]
		head := s[:open]
		set = head[strings.LastIndexByte(head, '/')+1:]
	} else {
		slash := strings.LastIndexByte(s, '/')
		if slash < 0 {
			return "", 0, fmt.Errorf("malformed entity reference %q", ref)
		}
		keyText = s[slash+1:]
		head := s[:slash]
		set = head[strings.LastIndexByte(head, '/')+1:]
	}

	key, err := strconv.ParseInt(keyText, 10, 64)
	if err != nil || key <= 0 {
		return "", 0, fmt.Errorf("invalid key %q in entity reference", keyText)
	}
	if set == "" {
		return "", 0, fmt.Errorf("missing entity set in reference %q", ref)
	}
	return set, key, nil
}
