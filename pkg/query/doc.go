// Package query implements the read side of odatad: the $filter expression
// language, sorting, paging, projection, expansion and the $apply aggregation
// pipeline.
//
// Options are parsed and type-checked against the entity model up front by
// ParseOptions, so evaluation itself cannot fail on user input. Evaluate runs
// a parsed query against a Source, usually an immutable store snapshot:
//
//	opts, err := query.ParseOptions(r.URL.Query(), entity.OrderType, model)
//	if err != nil {
//		return err // *entity.ValidationError
//	}
//	res, err := query.Evaluate(store.Snapshot(), entity.SetOrders, opts)
//
// Values flowing through evaluation are int64, decimal.Decimal, string,
// time.Time, bool, entity.Entity (single-valued navigations) or nil.
package query
