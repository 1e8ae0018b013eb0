package boletin

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Average returns the rounded mean of every value that parses as a number.
// Halves round toward positive infinity (-2.5 is -2, 2.5 is 3).
// Empty and non-numeric values are skipped. The second result is false when
// nothing parsed.
func Average[T ~string](values []T) (int, bool) {
	sum := decimal.Zero
	n := 0
	for _, v := range values {
		d, ok := parseNumber(string(v))
		if !ok {
			continue
		}
		sum = sum.Add(d)
		n++
	}
	if n == 0 {
		return 0, false
	}
	half := decimal.New(5, -1)
	mean := sum.Div(decimal.NewFromInt(int64(n))).Add(half).Floor()
	return int(mean.IntPart()), true
}

// AverageText is Average rendered as a cell value; "" when nothing parsed.
func AverageText[T ~string](values []T) string {
	avg, ok := Average(values)
	if !ok {
		return ""
	}
	return decimal.NewFromInt(int64(avg)).String()
}

// parseNumber accepts the leading numeric prefix of s, like a browser's
// parseFloat does ("85a" is 85, "1e2" is 100, "a85" is not a number).
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	end := 0
	exp := ""
	seenDigit, seenDot := false, false
scan:
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		case (r == 'e' || r == 'E') && seenDigit:
			exp = s[i : i+exponentLen(s[i:])]
			break scan
		default:
			break scan
		}
	}
	if !seenDigit {
		return decimal.Zero, false
	}
	num := strings.TrimPrefix(s[:end]+exp, "+")
	neg := strings.HasPrefix(num, "-")
	num = strings.TrimPrefix(num, "-")
	if strings.HasPrefix(num, ".") {
		num = "0" + num
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// exponentLen is the length of a well-formed exponent ("e2", "E-3") at the
// start of s, or 0 when the digits are missing.
func exponentLen(s string) int {
	i := 1
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0
	}
	return i
}
