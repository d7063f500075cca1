package query

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getmockd/odatad/pkg/entity"
)

// AggregateMethod is an aggregation function.
type AggregateMethod string

const (
	MethodSum           AggregateMethod = "sum"
	MethodAverage       AggregateMethod = "average"
	MethodMin           AggregateMethod = "min"
	MethodMax           AggregateMethod = "max"
	MethodCount         AggregateMethod = "count"
	MethodCountDistinct AggregateMethod = "countdistinct"
	// MethodCountRows is "$count as Alias": the number of rows in the group.
	MethodCountRows AggregateMethod = "$count"
)

// Aggregate is one "path with method as Alias" item.
type Aggregate struct {
	// Property is nil for MethodCountRows.
	Property *Property
	Method   AggregateMethod
	Alias    string
}

// Apply is a parsed $apply pipeline: zero or more filter transformations
// optionally followed by one groupby or aggregate transformation.
type Apply struct {
	Filters    []Expr
	GroupBy    []*Property
	Aggregates []Aggregate
	// Aggregating is true when the pipeline ends in groupby or aggregate.
	Aggregating bool
}

// Columns returns the names of the columns of an aggregated row: group paths
// joined with "/" and aggregate aliases.
func (a *Apply) Columns() map[string]bool {
	cols := make(map[string]bool, len(a.GroupBy)+len(a.Aggregates))
	for _, g := range a.GroupBy {
		cols[g.String()] = true
	}
	for _, agg := range a.Aggregates {
		cols[agg.Alias] = true
	}
	return cols
}

func parseApply(src string, typ *entity.Type, model *entity.Model) (*Apply, error) {
	p, err := newParser("$apply", src, typ, model)
	if err != nil {
		return nil, err
	}
	a := &Apply{}
	for {
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if a.Aggregating {
			return nil, entity.Invalidf(p.option, "transformation %q after aggregation is not supported", name.text)
		}
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		switch name.text {
		case "filter":
			e, err := p.parseBoolean()
			if err != nil {
				return nil, err
			}
			a.Filters = append(a.Filters, e)
		case "aggregate":
			if a.Aggregates, err = p.parseAggregates(nil); err != nil {
				return nil, err
			}
			a.Aggregating = true
		case "groupby":
			if err := p.parseGroupBy(a); err != nil {
				return nil, err
			}
			a.Aggregating = true
		default:
			return nil, entity.Invalidf(p.option, "unsupported transformation %q", name.text)
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		if p.peek().kind != tokSlash {
			break
		}
		p.next()
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return a, nil
}

// parseGroupBy parses "(path, ...)[, aggregate(...)]" after "groupby(".
func (p *parser) parseGroupBy(a *Apply) error {
	if _, err := p.expect(tokLParen); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		prop, err := bindPath(p.option, path, p.typ, p.model)
		if err != nil {
			return err
		}
		if prop.Navigation {
			return entity.Invalidf(p.option, "cannot group by navigation %s; group by one of its properties", prop)
		}
		if seen[prop.String()] {
			return entity.Invalidf(p.option, "duplicate grouping property %s", prop)
		}
		seen[prop.String()] = true
		a.GroupBy = append(a.GroupBy, prop)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen); err != nil {
		return err
	}
	if p.peek().kind != tokComma {
		return nil
	}
	p.next()
	if err := p.expectKeyword("aggregate"); err != nil {
		return err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return err
	}
	aggs, err := p.parseAggregates(a.GroupBy)
	if err != nil {
		return err
	}
	a.Aggregates = aggs
	_, err = p.expect(tokRParen)
	return err
}

// parseAggregates parses a comma-separated aggregate list up to, not
// including, the closing parenthesis.
func (p *parser) parseAggregates(groups []*Property) ([]Aggregate, error) {
	taken := make(map[string]bool)
	for _, g := range groups {
		taken[g.Path[0]] = true
	}
	var aggs []Aggregate
	for {
		agg, err := p.parseAggregate()
		if err != nil {
			return nil, err
		}
		if taken[agg.Alias] {
			return nil, entity.Invalidf(p.option, "alias %q is already in use", agg.Alias)
		}
		taken[agg.Alias] = true
		aggs = append(aggs, agg)
		if p.peek().kind != tokComma {
			return aggs, nil
		}
		p.next()
	}
}

func (p *parser) parseAggregate() (Aggregate, error) {
	var agg Aggregate
	if p.atKeyword("$count") {
		p.next()
		agg.Method = MethodCountRows
	} else {
		path, err := p.parsePath()
		if err != nil {
			return agg, err
		}
		if agg.Property, err = bindPath(p.option, path, p.typ, p.model); err != nil {
			return agg, err
		}
		if agg.Property.Navigation {
			return agg, entity.Invalidf(p.option, "cannot aggregate navigation %s", agg.Property)
		}
		if err := p.expectKeyword("with"); err != nil {
			return agg, err
		}
		method, err := p.expect(tokIdent)
		if err != nil {
			return agg, err
		}
		agg.Method = AggregateMethod(method.text)
		if err := checkMethod(p.option, agg); err != nil {
			return agg, err
		}
	}
	if err := p.expectKeyword("as"); err != nil {
		return agg, err
	}
	alias, err := p.expect(tokIdent)
	if err != nil {
		return agg, err
	}
	if strings.HasPrefix(alias.text, "$") {
		return agg, entity.Invalidf(p.option, "invalid alias %q", alias.text)
	}
	agg.Alias = alias.text
	return agg, nil
}

func checkMethod(option string, agg Aggregate) error {
	t := typeOfKind(agg.Property.Kind)
	switch agg.Method {
	case MethodSum, MethodAverage:
		if !t.numeric() {
			return entity.Invalidf(option, "%s requires a numeric property, %s is %s", agg.Method, agg.Property, t)
		}
	case MethodMin, MethodMax, MethodCount, MethodCountDistinct:
	default:
		return entity.Invalidf(option, "unknown aggregation method %q", agg.Method)
	}
	return nil
}

type group struct {
	values  []any
	members []entity.Entity
}

// aggregate groups items and computes one row per group. Groups appear in
// the order their first member appears. Without grouping there is exactly one
// row, even over no items.
func (ev *evaluator) aggregate(items []entity.Entity, a *Apply) []map[string]any {
	var groups []*group
	if len(a.GroupBy) == 0 {
		groups = []*group{{members: items}}
	} else {
		byKey := make(map[string]*group)
		for _, it := range items {
			values := make([]any, len(a.GroupBy))
			keys := make([]string, len(a.GroupBy))
			for i, g := range a.GroupBy {
				values[i] = ev.resolve(it, g)
				keys[i] = canonical(values[i])
			}
			k := strings.Join(keys, "\x00")
			g, ok := byKey[k]
			if !ok {
				g = &group{values: values}
				byKey[k] = g
				groups = append(groups, g)
			}
			g.members = append(g.members, it)
		}
	}

	rows := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		row := make(map[string]any)
		for i, prop := range a.GroupBy {
			setPath(row, prop.Path, g.values[i])
		}
		for _, agg := range a.Aggregates {
			row[agg.Alias] = ev.compute(agg, g.members)
		}
		rows = append(rows, row)
	}
	return rows
}

func (ev *evaluator) compute(agg Aggregate, members []entity.Entity) any {
	if agg.Method == MethodCountRows {
		return int64(len(members))
	}
	var vals []any
	for _, m := range members {
		if v := ev.resolve(m, agg.Property); v != nil {
			vals = append(vals, v)
		}
	}

	switch agg.Method {
	case MethodSum:
		if agg.Property.Kind == entity.KindInt64 {
			if total, ok := sumInt64(vals); ok {
				return total
			}
		}
		return sumDecimal(vals)
	case MethodAverage:
		if len(vals) == 0 {
			return nil
		}
		return sumDecimal(vals).Div(decimal.NewFromInt(int64(len(vals))))
	case MethodMin, MethodMax:
		var best any
		for _, v := range vals {
			if best == nil {
				best = v
				continue
			}
			c, _ := compareValues(v, best)
			if (agg.Method == MethodMin && c < 0) || (agg.Method == MethodMax && c > 0) {
				best = v
			}
		}
		return best
	case MethodCount:
		return int64(len(vals))
	case MethodCountDistinct:
		seen := make(map[string]struct{}, len(vals))
		for _, v := range vals {
			seen[canonical(v)] = struct{}{}
		}
		return int64(len(seen))
	}
	return nil
}

// sumInt64 adds int64 values and reports false on overflow, in which case
// the exact sum comes from sumDecimal.
func sumInt64(vals []any) (int64, bool) {
	var total int64
	for _, v := range vals {
		x := v.(int64)
		if (x > 0 && total > math.MaxInt64-x) || (x < 0 && total < math.MinInt64-x) {
			return 0, false
		}
		total += x
	}
	return total, true
}

func sumDecimal(vals []any) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vals {
		switch x := v.(type) {
		case decimal.Decimal:
			total = total.Add(x)
		case int64:
			total = total.Add(decimal.NewFromInt(x))
		}
	}
	return total
}

// canonical returns a string that is equal for equal values.
func canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case int64:
		return "n:" + strconv.FormatInt(x, 10)
	case decimal.Decimal:
		return "n:" + x.String()
	case string:
		return "s:" + x
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case bool:
		return "b:" + strconv.FormatBool(x)
	case entity.Entity:
		return "e:" + x.EntitySet() + ":" + strconv.FormatInt(x.Key(), 10)
	}
	return "?"
}

func setPath(row map[string]any, path []string, v any) {
	cur := row
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = v
}

func rowValue(row map[string]any, path []string) any {
	var cur any = row
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

func encodeRow(row map[string]any) entity.Record {
	rec := make(entity.Record, len(row))
	for k, v := range row {
		if nested, ok := v.(map[string]any); ok {
			rec[k] = map[string]any(encodeRow(nested))
			continue
		}
		rec[k] = entity.EncodeValue(v)
	}
	return rec
}
