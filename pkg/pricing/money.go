// Package pricing turns raw quotation line items into authoritative monetary
// totals. It is shared by the live preview endpoint and the persistence path so
// both produce identical figures for identical input.
//
// Every function here is pure: no I/O, no shared state, safe for concurrent use.
package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTaxPercent is the rate given to newly added items when no rate is supplied.
var DefaultTaxPercent = decimal.NewFromInt(18)

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// TaxableValue is quantity * rate, unrounded.
func TaxableValue(quantity int64, rate decimal.Decimal) decimal.Decimal {
	if quantity < 0 {
		quantity = 0
	}
	return decimal.NewFromInt(quantity).Mul(nonNegative(rate))
}

// TaxAmount is round2(taxable * percent / 100).
func TaxAmount(taxable, percent decimal.Decimal) decimal.Decimal {
	return Round2(nonNegative(taxable).Mul(nonNegative(percent)).Shift(-2))
}

// LineTotal is round2(taxable) + tax.
func LineTotal(taxable, tax decimal.Decimal) decimal.Decimal {
	return Round2(nonNegative(taxable)).Add(nonNegative(tax))
}

// FromFloat converts a float to a decimal, mapping NaN, infinities and negatives to zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Input is a raw numeric field as submitted by a form: a JSON number, a numeric
// string, or nothing at all. It keeps the submitted text so no precision is lost
// before the value reaches decimal arithmetic.
type Input string

// Number builds an Input from a float.
func Number(f float64) Input {
	return Input(strconv.FormatFloat(f, 'f', -1, 64))
}

// Int builds an Input from an integer.
func Int(i int64) Input {
	return Input(strconv.FormatInt(i, 10))
}

// Dec builds an Input from a decimal.
func Dec(d decimal.Decimal) Input {
	return Input(d.String())
}

// IsBlank reports whether nothing was submitted.
func (in Input) IsBlank() bool {
	return strings.TrimSpace(string(in)) == ""
}

// Decimal parses the input. ok is false for blank or non-numeric input.
func (in Input) Decimal() (d decimal.Decimal, ok bool) {
	s := strings.TrimSpace(string(in))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NonNegative coerces the input to a non-negative decimal. Anything that is not
// a usable number becomes zero.
func (in Input) NonNegative() decimal.Decimal {
	d, ok := in.Decimal()
	if !ok {
		return decimal.Zero
	}
	return nonNegative(d)
}

// Quantity coerces the input to a non-negative whole number, truncating any fraction.
func (in Input) Quantity() int64 {
	d := in.NonNegative()
	if d.GreaterThan(maxQuantity) {
		return 0
	}
	return d.IntPart()
}

var maxQuantity = decimal.NewFromInt(math.MaxInt32)

func (in Input) MarshalJSON() ([]byte, error) {
	if in.IsBlank() {
		return []byte("null"), nil
	}
	if d, ok := in.Decimal(); ok {
		return []byte(d.String()), nil
	}
	return []byte(strconv.Quote(string(in))), nil
}

func (in *Input) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*in = ""
	case strings.HasPrefix(s, `"`):
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		*in = Input(unquoted)
	default:
		*in = Input(s)
	}
	return nil
}
