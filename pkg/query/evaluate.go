package query

import (
	"slices"

	"github.com/getmockd/odatad/pkg/entity"
)

// Source is a read-only view of the entity sets a query runs against.
// Implementations must be safe for concurrent reads and must not change while
// a query is evaluated.
type Source interface {
	// Entities returns the entities of set in collection order.
	Entities(set string) []entity.Entity
	// Find returns the entity of set with the given key.
	Find(set string, key int64) (entity.Entity, bool)
	// Related follows a navigation property from an entity.
	Related(from entity.Entity, nav string) []entity.Entity
}

// Result is the outcome of a query. Exactly one of Entities and Aggregates is
// non-nil.
type Result struct {
	Entities   []entity.Record
	Aggregates []entity.Record
	// Count is the number of matches before paging, when $count=true.
	Count *int
	// NextSkip and NextTop describe the next page when the server capped
	// this one. NextTop is nil when the request had no $top.
	NextSkip *int
	NextTop  *int
}

// Rows returns whichever of Entities and Aggregates the result carries.
func (r *Result) Rows() []entity.Record {
	if r.Aggregates != nil {
		return r.Aggregates
	}
	return r.Entities
}

var defaultModel = entity.DefaultModel()

// Evaluate runs opts against the entities of set. A nil opts returns the
// whole set. The only error is a NotFoundError for an unknown set.
func Evaluate(src Source, set string, opts *Options) (*Result, error) {
	if _, ok := defaultModel.Lookup(set); !ok {
		return nil, &entity.NotFoundError{Set: set}
	}
	if opts == nil {
		opts = &Options{}
	}
	ev := &evaluator{src: src}
	items := src.Entities(set)

	if opts.Apply != nil {
		for _, f := range opts.Apply.Filters {
			items = ev.filter(items, f)
		}
	}
	if opts.Aggregating() {
		return ev.evaluateRows(items, opts), nil
	}

	page, total, next := ev.entities(items, opts, opts.MaxPageSize)
	res := &Result{Entities: make([]entity.Record, 0, len(page))}
	for _, e := range page {
		res.Entities = append(res.Entities, ev.serialize(e, opts))
	}
	if opts.Count {
		res.Count = &total
	}
	res.NextSkip, res.NextTop = next.skip, next.top
	return res, nil
}

// EvaluateKey reads a single entity by key, honouring $select and $expand.
// The result holds zero or one entity.
func EvaluateKey(src Source, set string, key int64, opts *Options) (*Result, error) {
	if _, ok := defaultModel.Lookup(set); !ok {
		return nil, &entity.NotFoundError{Set: set}
	}
	if err := opts.CheckSingle(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}
	ev := &evaluator{src: src}
	res := &Result{Entities: []entity.Record{}}
	if e, ok := src.Find(set, key); ok {
		res.Entities = append(res.Entities, ev.serialize(e, opts))
	}
	return res, nil
}

type nextPage struct {
	skip, top *int
}

// entities filters, sorts and pages items. It returns the page, the number
// of matches before paging and, when maxPage cut the page short, where the
// next page starts.
func (ev *evaluator) entities(items []entity.Entity, opts *Options, maxPage int) ([]entity.Entity, int, nextPage) {
	if opts.Filter != nil {
		items = ev.filter(items, opts.Filter)
	}
	if len(opts.OrderBy) > 0 {
		items = ev.sortEntities(items, opts.OrderBy)
	}
	start, end, next := paginate(len(items), opts.Skip, opts.Top, maxPage)
	return items[start:end], len(items), next
}

func (ev *evaluator) filter(items []entity.Entity, e Expr) []entity.Entity {
	out := make([]entity.Entity, 0, len(items))
	for _, it := range items {
		if ev.matches(e, it) {
			out = append(out, it)
		}
	}
	return out
}

type sortable[T any] struct {
	item T
	keys []any
}

func sortStable[T any](items []T, order []OrderItem, key func(T, OrderItem) any) []T {
	rows := make([]sortable[T], len(items))
	for i, it := range items {
		keys := make([]any, len(order))
		for k, o := range order {
			keys[k] = key(it, o)
		}
		rows[i] = sortable[T]{item: it, keys: keys}
	}
	slices.SortStableFunc(rows, func(a, b sortable[T]) int {
		for k, o := range order {
			c := compareForSort(a.keys[k], b.keys[k])
			if o.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.item
	}
	return out
}

func (ev *evaluator) sortEntities(items []entity.Entity, order []OrderItem) []entity.Entity {
	return sortStable(items, order, func(e entity.Entity, o OrderItem) any {
		return ev.eval(o.Expr, e)
	})
}

// paginate applies skip then top, then caps the page at maxPage if set.
func paginate(n, skip int, top *int, maxPage int) (int, int, nextPage) {
	start := min(skip, n)
	end := n
	if top != nil && *top < n-start {
		end = start + *top
	}
	var next nextPage
	if maxPage > 0 && end-start > maxPage {
		end = start + maxPage
		next.skip = &end
		if top != nil {
			rest := *top - maxPage
			next.top = &rest
		}
	}
	return start, end, next
}

func (ev *evaluator) evaluateRows(items []entity.Entity, opts *Options) *Result {
	rows := ev.aggregate(items, opts.Apply)
	if len(opts.OrderBy) > 0 {
		rows = sortStable(rows, opts.OrderBy, func(r map[string]any, o OrderItem) any {
			return rowValue(r, o.Path)
		})
	}
	start, end, next := paginate(len(rows), opts.Skip, opts.Top, opts.MaxPageSize)
	res := &Result{Aggregates: make([]entity.Record, 0, end-start)}
	for _, r := range rows[start:end] {
		res.Aggregates = append(res.Aggregates, encodeRow(r))
	}
	if opts.Count {
		total := len(rows)
		res.Count = &total
	}
	res.NextSkip, res.NextTop = next.skip, next.top
	return res
}

// serialize encodes e with the projection and expansions of opts.
func (ev *evaluator) serialize(e entity.Entity, opts *Options) entity.Record {
	rec := entity.Encode(e)
	if opts.Select != nil {
		projected := make(entity.Record, len(opts.Select))
		for _, name := range opts.Select {
			projected[name] = rec[name]
		}
		rec = projected
	}
	for _, item := range opts.Expand {
		nav := item.Navigation
		related := ev.src.Related(e, nav.Name)
		if !nav.Collection {
			if len(related) == 0 {
				rec[nav.Name] = nil
			} else {
				rec[nav.Name] = ev.serialize(related[0], item.Options)
			}
			continue
		}
		page, total, _ := ev.entities(related, item.Options, 0)
		nested := make([]entity.Record, 0, len(page))
		for _, r := range page {
			nested = append(nested, ev.serialize(r, item.Options))
		}
		rec[nav.Name] = nested
		if item.Options.Count {
			rec[nav.Name+"@odata.count"] = total
		}
	}
	return rec
}
