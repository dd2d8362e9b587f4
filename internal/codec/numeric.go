package codec

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

type numericKind int

const (
	numInvalid numericKind = iota
	numInteger
	numDecimal
	numExponential
)

// classifyNumeric is a single-pass scan that decides whether s is a plain
// integer, a decimal, or uses an exponent. Any ill-placed sign, second dot,
// or non-digit outside the exponent makes it invalid.
func classifyNumeric(s string) numericKind {
	kind := numInteger
	digits := 0
	expDigits := 0
	inExp := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			if inExp {
				expDigits++
			} else {
				digits++
			}
		case ch == '+' || ch == '-':
			if i == 0 {
				continue
			}
			if !inExp || expDigits > 0 || (s[i-1] != 'e' && s[i-1] != 'E') {
				return numInvalid
			}
		case ch == '.':
			if inExp || kind == numDecimal {
				return numInvalid
			}
			kind = numDecimal
		case ch == 'e' || ch == 'E':
			if inExp || digits == 0 {
				return numInvalid
			}
			inExp = true
		default:
			return numInvalid
		}
	}
	if digits == 0 || (inExp && expDigits == 0) {
		return numInvalid
	}
	if inExp {
		return numExponential
	}
	return kind
}

// ParseNumeric parses s into the narrowest exact representation:
// int8/int16/int32/int64 for integers, *big.Int on 64-bit overflow,
// float64 when the decimal survives a lossless round-trip, and
// pgtype.Numeric for everything else.
func ParseNumeric(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty numeric value")
	}

	switch classifyNumeric(s) {
	case numInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return downcastInt(n), nil
		}
		bi, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid numeric value: %s", s)
		}
		return bi, nil
	case numDecimal, numExponential:
		mant, exp, err := decomposeDecimal(s)
		if err != nil {
			return nil, err
		}
		// Trailing zeros move into the exponent so 3.140 and 3.14 agree.
		ten := big.NewInt(10)
		rem := new(big.Int)
		for exp < 0 && mant.Sign() != 0 {
			q, r := new(big.Int).QuoRem(mant, ten, rem)
			if r.Sign() != 0 {
				break
			}
			mant = q
			exp++
		}
		if mant.Sign() == 0 {
			exp = 0
		}
		if exp >= 0 {
			for i := 0; i < exp; i++ {
				mant.Mul(mant, ten)
			}
			return downcastBig(mant), nil
		}
		canonical := numericString(mant, exp)
		if f, err := strconv.ParseFloat(canonical, 64); err == nil && !math.IsInf(f, 0) {
			if strconv.FormatFloat(f, 'f', -1, 64) == canonical {
				return f, nil
			}
		}
		return pgtype.Numeric{Int: mant, Exp: int32(exp), Valid: true}, nil
	default:
		return nil, fmt.Errorf("invalid numeric value: %s", s)
	}
}

// decomposeDecimal splits a decimal or exponential literal into an integer
// mantissa and a base-10 exponent.
func decomposeDecimal(s string) (*big.Int, int, error) {
	mantStr := s
	exp := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return nil, 0, fmt.Errorf("invalid numeric value: %s", s)
		}
		exp = e
		mantStr = s[:i]
	}
	if i := strings.IndexByte(mantStr, '.'); i >= 0 {
		frac := mantStr[i+1:]
		exp -= len(frac)
		mantStr = mantStr[:i] + frac
	}
	if mantStr == "" || mantStr == "+" || mantStr == "-" {
		return nil, 0, fmt.Errorf("invalid numeric value: %s", s)
	}
	mant, ok := new(big.Int).SetString(mantStr, 10)
	if !ok {
		return nil, 0, fmt.Errorf("invalid numeric value: %s", s)
	}
	return mant, exp, nil
}

// downcastInt narrows n to the smallest exact-fitting signed width.
func downcastInt(n int64) any {
	switch {
	case n >= math.MinInt8 && n <= math.MaxInt8:
		return int8(n)
	case n >= math.MinInt16 && n <= math.MaxInt16:
		return int16(n)
	case n >= math.MinInt32 && n <= math.MaxInt32:
		return int32(n)
	default:
		return n
	}
}

func downcastBig(n *big.Int) any {
	if n.IsInt64() {
		return downcastInt(n.Int64())
	}
	return n
}

// numericString renders mantissa*10^exp in plain decimal notation without
// trailing fractional zeros. exp must be negative or zero.
func numericString(mant *big.Int, exp int) string {
	digits := new(big.Int).Abs(mant).String()
	neg := mant.Sign() < 0
	if exp >= 0 {
		if neg {
			return "-" + digits + strings.Repeat("0", exp)
		}
		return digits + strings.Repeat("0", exp)
	}
	frac := -exp
	if len(digits) <= frac {
		digits = strings.Repeat("0", frac-len(digits)+1) + digits
	}
	out := digits[:len(digits)-frac] + "." + digits[len(digits)-frac:]
	if neg {
		out = "-" + out
	}
	return out
}

// NumericText renders a ParseNumeric result in its canonical text form.
func NumericText(v any) string {
	switch n := v.(type) {
	case int8:
		return strconv.FormatInt(int64(n), 10)
	case int16:
		return strconv.FormatInt(int64(n), 10)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case *big.Int:
		return n.String()
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case pgtype.Numeric:
		if !n.Valid || n.Int == nil {
			return ""
		}
		return numericString(n.Int, int(n.Exp))
	default:
		return fmt.Sprint(v)
	}
}

// NormalizeDecimalText canonicalises a driver-supplied decimal string: an
// exact integer collapses to the integer form, a value with an exact
// float64 round-trip uses the shortest float form, anything else keeps its
// full decimal expansion. Unparseable input is returned unchanged.
func NormalizeDecimalText(s string) string {
	v, err := ParseNumeric(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return NumericText(v)
}
