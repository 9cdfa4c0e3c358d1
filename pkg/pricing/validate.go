package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldError names one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned by Validate when any field is rejected.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Field + " " + fe.Message
	}
	return "invalid items: " + strings.Join(parts, "; ")
}

// Upper bounds of the stored columns: money is numeric(15,2), percentages numeric(5,2).
var (
	MaxAmount  = decimal.RequireFromString("9999999999999.99")
	MaxPercent = decimal.RequireFromString("999.99")
)

// Validate checks submitted items before anything is computed or stored.
// globalPercent may be blank, in which case the caller's default applies.
// Per-item rates are only checked in per-item mode since global mode ignores them.
func Validate(items []RawItem, mode TaxMode, globalPercent Input) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	if !globalPercent.IsBlank() {
		if msg := checkPercent(globalPercent); msg != "" {
			add("gst_percent", msg)
		}
	}
	if len(items) == 0 {
		add("items", "must contain at least one item")
	}

	for i, item := range items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(item.Description) == "" {
			add(prefix+"description", "is required")
		}
		qtyMsg := checkQuantity(item.Quantity)
		if qtyMsg != "" {
			add(prefix+"quantity", qtyMsg)
		}
		rateMsg := checkMoney(item.Rate)
		if rateMsg != "" {
			add(prefix+"rate", rateMsg)
		}
		if qtyMsg == "" && rateMsg == "" && TaxableValue(item.Quantity.Quantity(), item.Rate.NonNegative()).GreaterThan(MaxAmount) {
			add(prefix+"rate", "is too large for the quantity")
		}
		if mode == TaxModePerItem && !item.TaxRatePercent.IsBlank() {
			if msg := checkPercent(item.TaxRatePercent); msg != "" {
				add(prefix+"tax_rate_percent", msg)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkQuantity(in Input) string {
	d, ok := in.Decimal()
	switch {
	case !ok:
		return "must be a number"
	case !d.Equal(d.Truncate(0)):
		return "must be a whole number"
	case d.LessThan(decimal.NewFromInt(1)):
		return "must be at least 1"
	case d.GreaterThan(maxQuantity):
		return "is too large"
	}
	return ""
}

// CheckTotals rejects computed totals that would not fit the stored columns.
func CheckTotals(t Totals) error {
	var errs ValidationErrors
	for i, item := range t.Items {
		if item.LineTotal.GreaterThan(MaxAmount) {
			errs = append(errs, FieldError{Field: fmt.Sprintf("items[%d].line_total", i), Message: "is too large"})
		}
	}
	if t.GrandTotal.GreaterThan(MaxAmount) {
		errs = append(errs, FieldError{Field: "grand_total", Message: "is too large"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkMoney(in Input) string {
	return checkBounded(in, MaxAmount)
}

func checkPercent(in Input) string {
	return checkBounded(in, MaxPercent)
}

func checkBounded(in Input, max decimal.Decimal) string {
	d, ok := in.Decimal()
	switch {
	case !ok:
		return "must be a number"
	case d.IsNegative():
		return "must not be negative"
	case !d.Equal(Round2(d)):
		return "must have at most 2 decimal places"
	case d.GreaterThan(max):
		return "must not exceed " + max.StringFixed(2)
	}
	return ""
}
