package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getmockd/odatad/pkg/entity"
)

// Expr is a node of a $filter expression tree.
type Expr interface {
	exprNode()
	String() string
}

// Literal is a constant value.
type Literal struct {
	Value any
}

func (*Literal) exprNode() {}

func (e *Literal) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case decimal.Decimal:
		return v.String() + "M"
	default:
		return fmt.Sprint(v)
	}
}

// Property is a property path such as Amount or Customer/City. A path whose
// last segment is a single-valued navigation evaluates to the related entity.
type Property struct {
	Path []string
	Kind entity.Kind
	// Navigation is true when the path ends in a navigation property.
	Navigation bool
}

func (*Property) exprNode() {}

func (e *Property) String() string { return strings.Join(e.Path, "/") }

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "eq"
	OpNe CompareOp = "ne"
	OpGt CompareOp = "gt"
	OpGe CompareOp = "ge"
	OpLt CompareOp = "lt"
	OpLe CompareOp = "le"
)

var compareOps = map[string]CompareOp{
	"eq": OpEq, "ne": OpNe, "gt": OpGt, "ge": OpGe, "lt": OpLt, "le": OpLe,
}

// Compare is a binary comparison.
type Compare struct {
	Op          CompareOp
	Left, Right Expr
}

func (*Compare) exprNode() {}

func (e *Compare) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

// Logical is an "and" or "or" of two boolean expressions.
type Logical struct {
	And         bool
	Left, Right Expr
}

func (*Logical) exprNode() {}

func (e *Logical) String() string {
	op := "or"
	if e.And {
		op = "and"
	}
	return fmt.Sprintf("(%s %s %s)", e.Left, op, e.Right)
}

// Not negates a boolean expression.
type Not struct {
	Expr Expr
}

func (*Not) exprNode() {}

func (e *Not) String() string { return "not " + e.Expr.String() }

// Call is a built-in function call.
type Call struct {
	Name string
	Args []Expr
}

func (*Call) exprNode() {}

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ",") + ")"
}

// OrderItem is one key of an $orderby clause.
type OrderItem struct {
	// Expr is set when ordering entities.
	Expr Expr
	// Path is set when ordering aggregate rows; it addresses a group path or
	// an aggregate alias.
	Path       []string
	Descending bool
}

// valueType is the static type of an expression.
type valueType int

const (
	typeNull valueType = iota
	typeInt
	typeDecimal
	typeString
	typeTime
	typeBool
	typeEntity
)

func (t valueType) String() string {
	switch t {
	case typeNull:
		return "null"
	case typeInt:
		return entity.KindInt64.String()
	case typeDecimal:
		return entity.KindDecimal.String()
	case typeString:
		return entity.KindString.String()
	case typeTime:
		return entity.KindDateTimeOffset.String()
	case typeBool:
		return entity.KindBoolean.String()
	default:
		return "entity"
	}
}

func (t valueType) numeric() bool {
	return t == typeInt || t == typeDecimal
}

func typeOfKind(k entity.Kind) valueType {
	switch k {
	case entity.KindInt64:
		return typeInt
	case entity.KindDecimal:
		return typeDecimal
	case entity.KindDateTimeOffset:
		return typeTime
	case entity.KindBoolean:
		return typeBool
	default:
		return typeString
	}
}

func typeOf(e Expr) valueType {
	switch x := e.(type) {
	case *Literal:
		switch x.Value.(type) {
		case int64:
			return typeInt
		case decimal.Decimal:
			return typeDecimal
		case string:
			return typeString
		case time.Time:
			return typeTime
		case bool:
			return typeBool
		}
		return typeNull
	case *Property:
		if x.Navigation {
			return typeEntity
		}
		return typeOfKind(x.Kind)
	case *Call:
		return functions[x.Name].result
	default:
		return typeBool
	}
}
