package expressions

import (
	"math/big"
	"strconv"
	"strings"
)

// ParseNumber reports whether s is a signed integer or decimal literal
// ("5", "-12", "+3", "5.5", ".5", "5.") and returns its value. Exponents,
// hex, underscores, Inf and NaN are not numbers. It is the only parser used
// both to classify node names and to read textual facts, so a string is
// numeric on either path or on neither.
func ParseNumber(s string) (float64, bool) {
	if !isDecimalLiteral(s) {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseExact is ParseNumber without rounding: the literal's exact rational
// value. Integers beyond 2^53 stay distinct.
func ParseExact(s string) (*big.Rat, bool) {
	if !isDecimalLiteral(s) {
		return nil, false
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")
	whole, frac, _ := strings.Cut(s, ".")

	num, ok := new(big.Int).SetString("0"+whole+frac, 10)
	if !ok {
		return nil, false
	}
	if neg {
		num.Neg(num)
	}
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(len(frac))), nil)
	return new(big.Rat).SetFrac(num, den), true
}

func isDecimalLiteral(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits, dot := 0, false
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// FormatNumber renders n the shortest way that parses back to n.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
