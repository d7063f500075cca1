package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/getmockd/odatad/pkg/entity"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokInt
	tokDecimal
	tokDateTime
	tokLParen
	tokRParen
	tokComma
	tokSlash
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokInt, tokDecimal:
		return "number"
	case tokDateTime:
		return "date/time"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokSlash:
		return "'/'"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	// val holds the decoded literal for string, number and date/time tokens.
	val any
	pos int
}

var (
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T`)
)

// lex splits src into tokens. option names the query option being lexed and
// is used as the field of any error.
func lex(option, src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == '/':
			toks = append(toks, token{kind: tokSlash, text: "/", pos: i})
			i++
		case c == '\'':
			tok, n, err := lexString(option, src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = n
		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			tok, n, err := lexNumberOrDate(option, src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = n
		case c == '$' || c == '_' || isLetterAt(src, i):
			start := i
			_, size := utf8.DecodeRuneInString(src[i:])
			i += size
			for i < len(src) {
				if src[i] == '_' || isDigit(src[i]) || isLetterAt(src, i) {
					_, size := utf8.DecodeRuneInString(src[i:])
					i += size
					continue
				}
				break
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			r, _ := utf8.DecodeRuneInString(src[i:])
			return nil, entity.Invalidf(option, "unexpected character %q at position %d", r, i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func lexString(option, src string, start int) (token, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(src) {
		if src[i] == '\'' {
			if i+1 < len(src) && src[i+1] == '\'' {
				sb.WriteByte('\'')
				i += 2
				continue
			}
			return token{kind: tokString, text: src[start : i+1], val: sb.String(), pos: start}, i + 1, nil
		}
		sb.WriteByte(src[i])
		i++
	}
	return token{}, 0, entity.Invalidf(option, "unterminated string starting at position %d", start)
}

func lexNumberOrDate(option, src string, start int) (token, int, error) {
	i := start + 1
	for i < len(src) {
		c := src[i]
		if isDigit(c) || c == '.' || c == ':' || c == '-' || c == '+' || (c < utf8.RuneSelf && unicode.IsLetter(rune(c))) {
			i++
			continue
		}
		break
	}
	text := src[start:i]

	switch {
	case datePattern.MatchString(text):
		t, err := time.Parse(time.DateOnly, text)
		if err != nil {
			return token{}, 0, entity.Invalidf(option, "invalid date %q", text)
		}
		return token{kind: tokDateTime, text: text, val: t, pos: start}, i, nil
	case dateTimePattern.MatchString(text):
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return token{}, 0, entity.Invalidf(option, "invalid date/time %q", text)
		}
		return token{kind: tokDateTime, text: text, val: t, pos: start}, i, nil
	}

	num := text
	forceDecimal := false
	switch last := num[len(num)-1]; last {
	case 'M', 'm', 'D', 'd', 'F', 'f':
		num, forceDecimal = num[:len(num)-1], true
	case 'L', 'l':
		num = num[:len(num)-1]
	}
	if !forceDecimal && !strings.ContainsAny(num, ".eE") {
		if n, err := strconv.ParseInt(num, 10, 64); err == nil {
			return token{kind: tokInt, text: text, val: n, pos: start}, i, nil
		}
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return token{}, 0, entity.Invalidf(option, "invalid number %q", text)
	}
	return token{kind: tokDecimal, text: text, val: d, pos: start}, i, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetterAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}
