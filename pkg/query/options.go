package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/getmockd/odatad/pkg/entity"
)

// Options is a parsed, type-checked query. The zero value selects every
// entity in collection order.
type Options struct {
	Filter  Expr
	OrderBy []OrderItem
	Skip    int
	// Top is nil when unbounded.
	Top   *int
	Count bool
	// Select lists the scalar properties to return; nil means all.
	Select []string
	Expand []ExpandItem
	Apply  *Apply

	// MaxPageSize caps the number of entities returned in one page. It is set
	// by the server, not parsed, and only applies at the top level.
	MaxPageSize int
}

// ExpandItem is one navigation of $expand with its nested options.
type ExpandItem struct {
	Navigation entity.Navigation
	Options    *Options
}

// Aggregating reports whether the query returns aggregate rows.
func (o *Options) Aggregating() bool {
	return o != nil && o.Apply != nil && o.Apply.Aggregating
}

// CheckSingle returns an error if the options cannot apply to a single-entity
// read. Only $select and $expand are allowed there.
func (o *Options) CheckSingle() error {
	if o == nil {
		return nil
	}
	switch {
	case o.Filter != nil:
		return entity.Invalidf("$filter", "not allowed when reading a single entity")
	case o.OrderBy != nil:
		return entity.Invalidf("$orderby", "not allowed when reading a single entity")
	case o.Skip != 0:
		return entity.Invalidf("$skip", "not allowed when reading a single entity")
	case o.Top != nil:
		return entity.Invalidf("$top", "not allowed when reading a single entity")
	case o.Count:
		return entity.Invalidf("$count", "not allowed when reading a single entity")
	case o.Apply != nil:
		return entity.Invalidf("$apply", "not allowed when reading a single entity")
	}
	return nil
}

// ParseOptions parses the system query options in values for entities of
// type typ. Parameters not starting with "$" are ignored. Every error is an
// *entity.ValidationError naming the offending option.
func ParseOptions(values url.Values, typ *entity.Type, model *entity.Model) (*Options, error) {
	raw := make(map[string]string, len(values))
	for name, vs := range values {
		if !strings.HasPrefix(name, "$") {
			continue
		}
		if len(vs) != 1 {
			return nil, entity.Invalidf(name, "specified more than once")
		}
		raw[name] = vs[0]
	}
	return parseOptions(raw, typ, model, false)
}

func parseOptions(raw map[string]string, typ *entity.Type, model *entity.Model, nested bool) (*Options, error) {
	opts := &Options{}
	for name := range raw {
		switch name {
		case "$filter", "$orderby", "$skip", "$top", "$count", "$select", "$expand":
		case "$apply":
			if nested {
				return nil, entity.Invalidf(name, "not supported inside $expand")
			}
		default:
			return nil, entity.Invalidf(name, "unknown query option")
		}
	}

	var err error
	if s, ok := raw["$apply"]; ok {
		if opts.Apply, err = parseApply(s, typ, model); err != nil {
			return nil, err
		}
	}
	if s, ok := raw["$filter"]; ok {
		if opts.Filter, err = parseFilter("$filter", s, typ, model); err != nil {
			return nil, err
		}
	}
	if s, ok := raw["$orderby"]; ok {
		if opts.Aggregating() {
			opts.OrderBy, err = parseRowOrderBy(s, opts.Apply.Columns())
		} else {
			opts.OrderBy, err = parseOrderBy(s, typ, model)
		}
		if err != nil {
			return nil, err
		}
	}
	if s, ok := raw["$skip"]; ok {
		if opts.Skip, err = parseNonNegative("$skip", s); err != nil {
			return nil, err
		}
	}
	if s, ok := raw["$top"]; ok {
		top, err := parseNonNegative("$top", s)
		if err != nil {
			return nil, err
		}
		opts.Top = &top
	}
	if s, ok := raw["$count"]; ok {
		switch s {
		case "true":
			opts.Count = true
		case "false":
		default:
			return nil, entity.Invalidf("$count", "must be true or false, got %q", s)
		}
	}
	if s, ok := raw["$select"]; ok {
		if opts.Select, err = parseSelect(s, typ); err != nil {
			return nil, err
		}
	}
	if s, ok := raw["$expand"]; ok {
		if opts.Expand, err = parseExpand(s, typ, model); err != nil {
			return nil, err
		}
	}

	if opts.Aggregating() {
		if opts.Select != nil {
			return nil, entity.Invalidf("$select", "cannot be combined with aggregation")
		}
		if opts.Expand != nil {
			return nil, entity.Invalidf("$expand", "cannot be combined with aggregation")
		}
	}
	return opts, nil
}

func parseNonNegative(option, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, entity.Invalidf(option, "must be a non-negative integer, got %q", s)
	}
	if n < 0 {
		return 0, entity.Invalidf(option, "must be non-negative, got %d", n)
	}
	return n, nil
}

func parseSelect(s string, typ *entity.Type) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, item := range strings.Split(s, ",") {
		name := strings.TrimSpace(item)
		if name == "*" {
			return typ.PropertyNames(), nil
		}
		if _, ok := typ.Property(name); !ok {
			if _, isNav := typ.Navigation(name); isNav {
				return nil, entity.Invalidf("$select", "navigation %q must be requested with $expand", name)
			}
			return nil, entity.Invalidf("$select", "unknown property %q on %s", name, typ.Name)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

func parseExpand(s string, typ *entity.Type, model *entity.Model) ([]ExpandItem, error) {
	parts, err := splitTopLevel("$expand", s, ',')
	if err != nil {
		return nil, err
	}
	var items []ExpandItem
	seen := make(map[string]bool)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		name, inner := part, ""
		if i := strings.IndexByte(part, '('); i >= 0 {
			if !strings.HasSuffix(part, ")") {
				return nil, entity.Invalidf("$expand", "malformed item %q", part)
			}
			name, inner = strings.TrimSpace(part[:i]), part[i+1:len(part)-1]
		}

		if name == "*" {
			if inner != "" {
				return nil, entity.Invalidf("$expand", "'*' does not take options")
			}
			for _, nav := range typ.Navigations {
				if !seen[nav.Name] {
					seen[nav.Name] = true
					items = append(items, ExpandItem{Navigation: nav, Options: &Options{}})
				}
			}
			continue
		}

		nav, ok := typ.Navigation(name)
		if !ok {
			return nil, entity.Invalidf("$expand", "unknown navigation %q on %s", name, typ.Name)
		}
		if seen[name] {
			return nil, entity.Invalidf("$expand", "navigation %q expanded twice", name)
		}
		seen[name] = true

		target, ok := model.Lookup(nav.Target)
		if !ok {
			return nil, entity.Invalidf("$expand", "navigation %q targets unknown set %q", name, nav.Target)
		}
		raw, err := parseNestedOptions(inner)
		if err != nil {
			return nil, err
		}
		nestedOpts, err := parseOptions(raw, target, model, true)
		if err != nil {
			return nil, err
		}
		if !nav.Collection {
			if err := nestedOpts.CheckSingle(); err != nil {
				return nil, err
			}
		}
		items = append(items, ExpandItem{Navigation: nav, Options: nestedOpts})
	}
	return items, nil
}

// parseNestedOptions splits "$filter=...;$top=2" into option/value pairs.
func parseNestedOptions(s string) (map[string]string, error) {
	raw := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return raw, nil
	}
	parts, err := splitTopLevel("$expand", s, ';')
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, entity.Invalidf("$expand", "malformed nested option %q", part)
		}
		if _, dup := raw[name]; dup {
			return nil, entity.Invalidf(name, "specified more than once")
		}
		raw[name] = value
	}
	return raw, nil
}

// splitTopLevel splits s on sep outside parentheses and string literals.
func splitTopLevel(option, s string, sep byte) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, entity.Invalidf(option, "unbalanced ')' at position %d", i)
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if depth != 0 || inString {
		return nil, entity.Invalidf(option, "unbalanced parentheses or quotes")
	}
	return append(parts, s[start:]), nil
}
