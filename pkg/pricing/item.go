package pricing

import "github.com/shopspring/decimal"

// RawItem is a line item as submitted by a client. Computed figures are not part
// of it: whatever tax or total a client believes in is never read.
type RawItem struct {
	Description    string `json:"description"`
	Quantity       Input  `json:"quantity"`
	Rate           Input  `json:"rate"`
	TaxRatePercent Input  `json:"tax_rate_percent,omitempty"`
}

// LineItem is a normalized item with its derived tax amount and line total.
type LineItem struct {
	Description    string          `json:"description"`
	Quantity       int64           `json:"quantity"`
	Rate           decimal.Decimal `json:"rate"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// Taxable returns quantity * rate for the item.
func (li LineItem) Taxable() decimal.Decimal {
	return TaxableValue(li.Quantity, li.Rate)
}

// Raw turns a computed item back into submission form with its resolved rate pinned.
func (li LineItem) Raw() RawItem {
	return RawItem{
		Description:    li.Description,
		Quantity:       Int(li.Quantity),
		Rate:           Dec(li.Rate),
		TaxRatePercent: Dec(li.TaxRatePercent),
	}
}

// Calculator normalizes items and aggregates totals. The zero value uses
// DefaultTaxPercent for items that arrive without a rate.
type Calculator struct {
	defaultTax    decimal.Decimal
	hasDefaultTax bool
}

// NewCalculator returns a calculator whose default item rate is defaultPercent.
// Negative defaults fall back to DefaultTaxPercent.
func NewCalculator(defaultPercent decimal.Decimal) Calculator {
	if defaultPercent.IsNegative() {
		defaultPercent = DefaultTaxPercent
	}
	return Calculator{defaultTax: defaultPercent, hasDefaultTax: true}
}

// DefaultPercent is the rate applied to per-item entries submitted without one.
func (c Calculator) DefaultPercent() decimal.Decimal {
	if !c.hasDefaultTax {
		return DefaultTaxPercent
	}
	return c.defaultTax
}

// ResolveTaxPercent picks the rate an item is taxed at under mode.
func (c Calculator) ResolveTaxPercent(item RawItem, mode TaxMode, globalPercent decimal.Decimal) decimal.Decimal {
	if mode == TaxModeGlobal {
		return nonNegative(globalPercent)
	}
	if item.TaxRatePercent.IsBlank() {
		return c.DefaultPercent()
	}
	return item.TaxRatePercent.NonNegative()
}

// NormalizeItem coerces a raw item and computes its tax amount and line total.
// It never fails: unusable numbers are treated as zero so a half-typed form
// still previews. Validate rejects them before anything is stored.
func (c Calculator) NormalizeItem(item RawItem, mode TaxMode, globalPercent decimal.Decimal) LineItem {
	qty := item.Quantity.Quantity()
	rate := item.Rate.NonNegative()
	percent := c.ResolveTaxPercent(item, mode, globalPercent)

	taxable := TaxableValue(qty, rate)
	tax := TaxAmount(taxable, percent)
	return LineItem{
		Description:    item.Description,
		Quantity:       qty,
		Rate:           rate,
		TaxRatePercent: percent,
		TaxAmount:      tax,
		LineTotal:      LineTotal(taxable, tax),
	}
}
