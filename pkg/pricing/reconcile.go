package pricing

import "github.com/shopspring/decimal"

// StoredItem is a persisted line item. Only the tax amount survives a save; the
// rate it was computed from does not.
type StoredItem struct {
	Description string
	Quantity    int64
	Rate        decimal.Decimal
	TaxAmount   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Reconciliation is the editing state rebuilt from a stored quotation.
type Reconciliation struct {
	Items            []LineItem      `json:"items"`
	InferredMode     TaxMode         `json:"inferred_mode"`
	GlobalTaxPercent decimal.Decimal `json:"global_tax_percent"`
}

// ImpliedTaxPercent reverse-derives the rate behind a stored tax amount. Items
// with no taxable value carry no information and get fallback instead.
func ImpliedTaxPercent(item StoredItem, fallback decimal.Decimal) decimal.Decimal {
	taxable := TaxableValue(item.Quantity, item.Rate)
	if !taxable.IsPositive() {
		return nonNegative(fallback)
	}
	return Round2(nonNegative(item.TaxAmount).Shift(2).Div(taxable))
}

// ReconcileTaxMode rebuilds editable per-item rates for a stored quotation and
// guesses the mode it was saved under: any item whose implied rate differs from
// the first item's means per-item, otherwise global.
//
// A single-item quotation always comes back as global. Nothing in the stored
// data distinguishes it from a single-item per-item quotation.
//
// Stored amounts are returned untouched; only the rates are reconstructed.
func ReconcileTaxMode(stored []StoredItem, storedGstPercent decimal.Decimal) Reconciliation {
	items := make([]LineItem, len(stored))
	mode := TaxModeGlobal
	for i, s := range stored {
		implied := ImpliedTaxPercent(s, storedGstPercent)
		items[i] = LineItem{
			Description:    s.Description,
			Quantity:       s.Quantity,
			Rate:           s.Rate,
			TaxRatePercent: implied,
			TaxAmount:      s.TaxAmount,
			LineTotal:      s.LineTotal,
		}
		if i > 0 && !implied.Equal(items[0].TaxRatePercent) {
			mode = TaxModePerItem
		}
	}
	return Reconciliation{
		Items:            items,
		InferredMode:     mode,
		GlobalTaxPercent: nonNegative(storedGstPercent),
	}
}
