package query

import (
	"strings"

	"github.com/getmockd/odatad/pkg/entity"
)

// parser is a recursive-descent parser over the tokens of one query option.
// Property paths are bound against typ while parsing, so every expression it
// returns is well-typed.
type parser struct {
	option string
	toks   []token
	pos    int
	typ    *entity.Type
	model  *entity.Model
}

func newParser(option, src string, typ *entity.Type, model *entity.Model) (*parser, error) {
	toks, err := lex(option, src)
	if err != nil {
		return nil, err
	}
	return &parser{option: option, toks: toks, typ: typ, model: model}, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) atKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.unexpected(t, kind.String())
	}
	return t, nil
}

func (p *parser) expectKeyword(word string) error {
	t := p.next()
	if t.kind != tokIdent || t.text != word {
		return p.unexpected(t, "'"+word+"'")
	}
	return nil
}

func (p *parser) expectEOF() error {
	if t := p.peek(); t.kind != tokEOF {
		return p.unexpected(t, "end of input")
	}
	return nil
}

func (p *parser) unexpected(t token, want string) error {
	if t.kind == tokEOF {
		return entity.Invalidf(p.option, "unexpected end of input, expected %s", want)
	}
	return entity.Invalidf(p.option, "unexpected %q at position %d, expected %s", t.text, t.pos, want)
}

// parseFilter parses a complete boolean expression.
func parseFilter(option, src string, typ *entity.Type, model *entity.Model) (Expr, error) {
	p, err := newParser(option, src, typ, model)
	if err != nil {
		return nil, err
	}
	e, err := p.parseBoolean()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *parser) parseBoolean() (Expr, error) {
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if typeOf(e) != typeBool {
		return nil, entity.Invalidf(p.option, "expression %s is not boolean", e)
	}
	return e, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if err := p.checkLogical(left, right); err != nil {
			return nil, err
		}
		left = &Logical{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := p.checkLogical(left, right); err != nil {
			return nil, err
		}
		left = &Logical{And: true, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) checkLogical(operands ...Expr) error {
	for _, e := range operands {
		if typeOf(e) != typeBool {
			return entity.Invalidf(p.option, "operand %s of a logical operator is not boolean", e)
		}
	}
	return nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.atKeyword("not") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := p.checkLogical(inner); err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	op, ok := compareOps[t.text]
	if t.kind != tokIdent || !ok {
		return left, nil
	}
	p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if err := p.checkComparable(op, left, right); err != nil {
		return nil, err
	}
	return &Compare{Op: op, Left: left, Right: right}, nil
}

func (p *parser) checkComparable(op CompareOp, left, right Expr) error {
	lt, rt := typeOf(left), typeOf(right)
	if lt == typeEntity || rt == typeEntity {
		if (op == OpEq || op == OpNe) && (lt == typeNull || rt == typeNull) {
			return nil
		}
		return entity.Invalidf(p.option, "navigation can only be compared with null in %s %s %s", left, op, right)
	}
	if lt == typeNull || rt == typeNull || lt == rt || (lt.numeric() && rt.numeric()) {
		return nil
	}
	return entity.Invalidf(p.option, "cannot compare %s with %s in %s %s %s", lt, rt, left, op, right)
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil
	case tokString, tokInt, tokDecimal, tokDateTime:
		return &Literal{Value: t.val}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &Literal{Value: true}, nil
		case "false":
			return &Literal{Value: false}, nil
		case "null":
			return &Literal{Value: nil}, nil
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		prop, err := p.parsePathFrom(t)
		if err != nil {
			return nil, err
		}
		return prop, nil
	}
	return nil, p.unexpected(t, "an operand")
}

func (p *parser) parseCall(name token) (Expr, error) {
	sig, ok := functions[name.text]
	if !ok {
		return nil, entity.Invalidf(p.option, "unknown function %q", name.text)
	}
	p.next() // (
	var args []Expr
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	if len(args) != len(sig.params) {
		return nil, entity.Invalidf(p.option, "%s takes %d argument(s), got %d", name.text, len(sig.params), len(args))
	}
	for i, arg := range args {
		if at := typeOf(arg); at != typeNull && at != sig.params[i] {
			return nil, entity.Invalidf(p.option, "argument %d of %s must be %s, got %s", i+1, name.text, sig.params[i], at)
		}
	}
	return &Call{Name: name.text, Args: args}, nil
}

// parsePath reads a slash-separated identifier path.
func (p *parser) parsePath() ([]string, error) {
	first, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	return p.pathFrom(first)
}

func (p *parser) pathFrom(first token) ([]string, error) {
	path := []string{first.text}
	for p.peek().kind == tokSlash && p.peekAt(1).kind == tokIdent {
		p.next()
		path = append(path, p.next().text)
	}
	return path, nil
}

func (p *parser) parsePathFrom(first token) (*Property, error) {
	path, err := p.pathFrom(first)
	if err != nil {
		return nil, err
	}
	return bindPath(p.option, path, p.typ, p.model)
}

// bindPath resolves a property path against typ. Intermediate segments must be
// single-valued navigations.
func bindPath(option string, path []string, typ *entity.Type, model *entity.Model) (*Property, error) {
	cur := typ
	for i, seg := range path {
		last := i == len(path)-1
		if prop, ok := cur.Property(seg); ok {
			if !last {
				return nil, entity.Invalidf(option, "property %q of %s has no members", seg, cur.Name)
			}
			return &Property{Path: path, Kind: prop.Kind}, nil
		}
		nav, ok := cur.Navigation(seg)
		if !ok {
			return nil, entity.Invalidf(option, "unknown property %q on %s", seg, cur.Name)
		}
		if nav.Collection {
			return nil, entity.Invalidf(option, "collection navigation %q cannot be used in an expression", seg)
		}
		if last {
			return &Property{Path: path, Navigation: true}, nil
		}
		target, ok := model.Lookup(nav.Target)
		if !ok {
			return nil, entity.Invalidf(option, "navigation %q targets unknown set %q", seg, nav.Target)
		}
		cur = target
	}
	return nil, entity.Invalidf(option, "empty property path")
}

// parseOrderBy parses "expr [asc|desc], ..." for entity ordering.
func parseOrderBy(src string, typ *entity.Type, model *entity.Model) ([]OrderItem, error) {
	p, err := newParser("$orderby", src, typ, model)
	if err != nil {
		return nil, err
	}
	var items []OrderItem
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if typeOf(e) == typeEntity {
			return nil, entity.Invalidf(p.option, "cannot order by navigation %s", e)
		}
		item := OrderItem{Expr: e}
		if item.Descending, err = p.parseDirection(); err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return items, nil
}

// parseRowOrderBy parses an $orderby over aggregate rows. Every path must
// name a column produced by the aggregation.
func parseRowOrderBy(src string, columns map[string]bool) ([]OrderItem, error) {
	p, err := newParser("$orderby", src, nil, nil)
	if err != nil {
		return nil, err
	}
	var items []OrderItem
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		name := strings.Join(path, "/")
		if !columns[name] {
			return nil, entity.Invalidf(p.option, "%q is not a column of the aggregated result", name)
		}
		item := OrderItem{Path: path}
		if item.Descending, err = p.parseDirection(); err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *parser) parseDirection() (bool, error) {
	switch {
	case p.atKeyword("desc"):
		p.next()
		return true, nil
	case p.atKeyword("asc"):
		p.next()
	}
	if t := p.peek(); t.kind != tokComma && t.kind != tokEOF {
		return false, p.unexpected(t, "'asc', 'desc' or ','")
	}
	return false, nil
}
