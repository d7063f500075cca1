package query

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type function struct {
	params []valueType
	result valueType
	// call receives non-nil arguments only; a null argument yields null
	// (or false for boolean functions) without calling it.
	call func(args []any) any
}

var functions = map[string]function{
	"contains": {
		params: []valueType{typeString, typeString},
		result: typeBool,
		call:   func(a []any) any { return strings.Contains(a[0].(string), a[1].(string)) },
	},
	"startswith": {
		params: []valueType{typeString, typeString},
		result: typeBool,
		call:   func(a []any) any { return strings.HasPrefix(a[0].(string), a[1].(string)) },
	},
	"endswith": {
		params: []valueType{typeString, typeString},
		result: typeBool,
		call:   func(a []any) any { return strings.HasSuffix(a[0].(string), a[1].(string)) },
	},
	"tolower": {
		params: []valueType{typeString},
		result: typeString,
		// Casers carry state and are not safe for concurrent use.
		call: func(a []any) any { return cases.Lower(language.Und).String(a[0].(string)) },
	},
	"toupper": {
		params: []valueType{typeString},
		result: typeString,
		call:   func(a []any) any { return cases.Upper(language.Und).String(a[0].(string)) },
	},
	"length": {
		params: []valueType{typeString},
		result: typeInt,
		call:   func(a []any) any { return int64(utf8.RuneCountInString(a[0].(string))) },
	},
}

func (f function) apply(args []any) any {
	for _, a := range args {
		if a == nil {
			if f.result == typeBool {
				return false
			}
			return nil
		}
	}
	return f.call(args)
}
