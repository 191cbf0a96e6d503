// Package errors provides error classification helpers for metrics tagging.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
	"unicode"
)

// Classify returns a normalized name for the innermost error's concrete
// type, suitable as a low-cardinality metric tag. Returns "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := t.Name()
	if name == "" {
		return "unknown"
	}
	return snakeCase(name)
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
