package bytecode

import (
	"math"
	"strconv"
)

// FormatNumber renders n the way PUSHN operands are stored: integral values
// without a fraction, everything else in the shortest exact form.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// ParseNumber parses the decimal text of a PUSHN operand.
func ParseNumber(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
