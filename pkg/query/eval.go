package query

import (
	"cmp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getmockd/odatad/pkg/entity"
)

// evaluator evaluates expressions against entities of a Source.
type evaluator struct {
	src Source
}

func (ev *evaluator) eval(e Expr, ent entity.Entity) any {
	switch x := e.(type) {
	case *Literal:
		return x.Value
	case *Property:
		return ev.resolve(ent, x)
	case *Compare:
		return compareOp(x.Op, ev.eval(x.Left, ent), ev.eval(x.Right, ent))
	case *Logical:
		left := truthy(ev.eval(x.Left, ent))
		if x.And && !left {
			return false
		}
		if !x.And && left {
			return true
		}
		return truthy(ev.eval(x.Right, ent))
	case *Not:
		return !truthy(ev.eval(x.Expr, ent))
	case *Call:
		args := make([]any, len(x.Args))
		for i, a := range x.Args {
			args[i] = ev.eval(a, ent)
		}
		return functions[x.Name].apply(args)
	}
	return nil
}

// matches reports whether the boolean expression holds for ent.
func (ev *evaluator) matches(e Expr, ent entity.Entity) bool {
	return truthy(ev.eval(e, ent))
}

// resolve walks a property path. A missing navigation target yields nil.
func (ev *evaluator) resolve(ent entity.Entity, p *Property) any {
	cur := ent
	for i, seg := range p.Path {
		if i == len(p.Path)-1 && !p.Navigation {
			v, _ := cur.Value(seg)
			return v
		}
		related := ev.src.Related(cur, seg)
		if len(related) == 0 {
			return nil
		}
		cur = related[0]
	}
	return cur
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// compareOp applies op. null equals only null; ordering against null is false.
func compareOp(op CompareOp, a, b any) bool {
	if a == nil || b == nil {
		switch op {
		case OpEq:
			return a == nil && b == nil
		case OpNe:
			return a != nil || b != nil
		}
		return false
	}
	c, ok := compareValues(a, b)
	if !ok {
		return op == OpNe
	}
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	}
	return false
}

// compareValues orders two non-nil values of compatible types. Int64 and
// decimal compare numerically; timestamps by instant; strings ordinally.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y), true
		case decimal.Decimal:
			return decimal.NewFromInt(x).Cmp(y), true
		}
	case decimal.Decimal:
		switch y := b.(type) {
		case int64:
			return x.Cmp(decimal.NewFromInt(y)), true
		case decimal.Decimal:
			return x.Cmp(y), true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case entity.Entity:
		if y, ok := b.(entity.Entity); ok && x.EntitySet() == y.EntitySet() {
			return cmp.Compare(x.Key(), y.Key()), true
		}
	}
	return 0, false
}

// compareForSort orders values with null first.
func compareForSort(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, _ := compareValues(a, b)
	return c
}
