package pricing

import "github.com/shopspring/decimal"

// Totals is the computed state of a whole quotation.
type Totals struct {
	Items      []LineItem      `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Aggregate sums normalized items. Rounding happens per line, so the grand total
// is the exact sum of line totals rather than subtotal plus tax rounded once.
func Aggregate(items []LineItem) Totals {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	grand := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Taxable())
		taxTotal = taxTotal.Add(item.TaxAmount)
		grand = grand.Add(item.LineTotal)
	}
	return Totals{
		Items:      items,
		Subtotal:   Round2(subtotal),
		TaxTotal:   Round2(taxTotal),
		GrandTotal: grand,
	}
}

// ComputeQuotationTotals normalizes every item from scratch and aggregates them.
func (c Calculator) ComputeQuotationTotals(items []RawItem, mode TaxMode, globalPercent decimal.Decimal) Totals {
	normalized := make([]LineItem, len(items))
	for i, item := range items {
		normalized[i] = c.NormalizeItem(item, mode, globalPercent)
	}
	return Aggregate(normalized)
}

// ComputeQuotationTotals runs the zero-value Calculator.
func ComputeQuotationTotals(items []RawItem, mode TaxMode, globalPercent decimal.Decimal) Totals {
	return Calculator{}.ComputeQuotationTotals(items, mode, globalPercent)
}
