package calculator

import (
	"strings"
	"unicode"
)

// Valid reports whether src compiles and evaluates without error using the
// default symbols. Results of NaN or infinity are valid.
func Valid(src string, opts ...ParseOption) bool {
	_, err := EvalString(src, opts...)
	return err == nil
}

// Preview evaluates an expression which may still be being typed. Trailing
// whitespace and binary operators are dropped before evaluation, so "2*3+"
// gives 6. Other incomplete input, such as an unclosed bracket, is still an
// error.
func Preview(src string, opts ...ParseOption) (float64, error) {
	return EvalString(trimIncomplete(src), opts...)
}

// trimIncomplete removes trailing whitespace and operators from src.
func trimIncomplete(src string) string {
	return strings.TrimRightFunc(src, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(Operators, r)
	})
}
