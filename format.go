package calculator

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Display defaults for Format, matching a twelve-character calculator screen.
const (
	MaxDigits      = 12
	RoundingDigits = 5
)

// Format formats a result for display. The value is first rounded to
// 16-rounding significant digits, which hides the error accumulated in the
// last few bits of a float64 so that 0.1+0.2 displays as 0.3. If rounding is
// not between 1 and 13, the value is formatted to 17 digits instead. Then
// digits are dropped until the text fits within maxLen runes. Large values are
// written without an exponent whenever that fits, so 123456789012 displays as
// 123456789010 rather than 1.2345679e11; maxLen ≤ 0 means no limit.
// Special values format as NaN, Inf, and -Inf.
func Format(x float64, maxLen, rounding int) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Inf"
	case math.IsInf(x, -1):
		return "-Inf"
	}
	digits := 16 - rounding
	if rounding < 1 || rounding > 13 {
		digits = 17
	}
	s := formatDigits(x, digits)
	if maxLen <= 0 {
		return s
	}
	for d := digits; d > 0; d-- {
		s := formatDigits(x, d)
		if f, ok := fixed(s); ok && utf8.RuneCountInString(f) <= maxLen {
			return f
		}
		if utf8.RuneCountInString(s) <= maxLen {
			return s
		}
	}
	return formatDigits(x, 1)
}

// fixed rewrites s, the output of formatDigits, without its exponent if the
// exponent is non-negative.
func fixed(s string) (string, bool) {
	k := strings.IndexByte(s, 'e')
	if k < 0 || s[k+1] == '-' {
		return "", false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		panic("calculator: unparseable formatted number: " + s)
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

// formatDigits formats x to at most d significant digits with a compact
// exponent, e.g. 1.5e20 rather than 1.5e+20.
func formatDigits(x float64, d int) string {
	s := strconv.FormatFloat(x, 'g', d, 64)
	k := strings.IndexByte(s, 'e')
	if k < 0 {
		return s
	}
	exp, err := strconv.Atoi(s[k+1:])
	if err != nil {
		panic("calculator: bad exponent from strconv: " + s)
	}
	return s[:k] + "e" + strconv.Itoa(exp)
}
