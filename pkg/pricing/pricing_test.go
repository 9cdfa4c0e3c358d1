package pricing

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"2.675":  "2.68",
		"0.045":  "0.05",
		"0.044":  "0.04",
		"-1.005": "-1.01",
		"10":     "10",
	}
	for in, want := range cases {
		requireDecimal(t, want, Round2(dec(in)))
	}
}

func TestPrimitives(t *testing.T) {
	taxable := TaxableValue(3, dec("33.335"))
	requireDecimal(t, "100.005", taxable)

	tax := TaxAmount(taxable, dec("18"))
	requireDecimal(t, "18", tax)
	requireDecimal(t, "118.01", LineTotal(taxable, tax))

	requireDecimal(t, "0", TaxableValue(-2, dec("10")))
	requireDecimal(t, "0", TaxableValue(2, dec("-10")))
	requireDecimal(t, "0", TaxAmount(dec("100"), dec("-5")))
}

func TestInputCoercion(t *testing.T) {
	requireDecimal(t, "0", Input("abc").NonNegative())
	requireDecimal(t, "0", Input("-5").NonNegative())
	requireDecimal(t, "0", Input("").NonNegative())
	requireDecimal(t, "0", Number(math.NaN()).NonNegative())
	requireDecimal(t, "0", Number(math.Inf(1)).NonNegative())
	requireDecimal(t, "12.5", Input(" 12.5 ").NonNegative())

	require.Equal(t, int64(2), Input("2.9").Quantity())
	require.Equal(t, int64(0), Input("-3").Quantity())
	require.Equal(t, int64(0), Input("1e20").Quantity())

	requireDecimal(t, "0", FromFloat(math.NaN()))
	requireDecimal(t, "0", FromFloat(-1))
	requireDecimal(t, "1.1", FromFloat(1.1))
}

func TestInputJSON(t *testing.T) {
	var item RawItem
	payload := `{"description":"Tiles","quantity":"2","rate":100.50,"tax_rate_percent":null,"tax_amount":999,"line_total":999}`
	require.NoError(t, json.Unmarshal([]byte(payload), &item))

	require.Equal(t, "Tiles", item.Description)
	require.Equal(t, Input("2"), item.Quantity)
	require.Equal(t, Input("100.50"), item.Rate)
	require.True(t, item.TaxRatePercent.IsBlank())

	out, err := json.Marshal(item)
	require.NoError(t, err)
	require.JSONEq(t, `{"description":"Tiles","quantity":2,"rate":100.5}`, string(out))
}

func TestTaxModeJSON(t *testing.T) {
	out, err := json.Marshal(TaxModePerItem)
	require.NoError(t, err)
	require.Equal(t, `"per_item"`, string(out))

	var mode TaxMode
	require.NoError(t, json.Unmarshal([]byte(`"global"`), &mode))
	require.Equal(t, TaxModeGlobal, mode)
	require.NoError(t, json.Unmarshal([]byte(`1`), &mode))
	require.Equal(t, TaxModePerItem, mode)
	require.Error(t, json.Unmarshal([]byte(`"sometimes"`), &mode))

	require.NoError(t, mode.Scan(int64(0)))
	require.Equal(t, TaxModeGlobal, mode)

	mode = TaxModePerItem
	require.Error(t, mode.Scan([]byte("1")))
	require.Error(t, mode.Scan("per_item"))
	require.Equal(t, TaxModePerItem, mode)
}

func TestSingleItemPerItemRate(t *testing.T) {
	item := Calculator{}.NormalizeItem(RawItem{
		Description:    "Cement",
		Quantity:       "2",
		Rate:           "100",
		TaxRatePercent: "18",
	}, TaxModePerItem, decimal.Zero)

	requireDecimal(t, "36.00", item.TaxAmount)
	requireDecimal(t, "236.00", item.LineTotal)
	requireDecimal(t, "18", item.TaxRatePercent)
}

func TestGlobalModeTotals(t *testing.T) {
	totals := ComputeQuotationTotals([]RawItem{
		{Description: "Basin", Quantity: "1", Rate: "1000", TaxRatePercent: "5"},
		{Description: "Tap", Quantity: "3", Rate: "50"},
	}, TaxModeGlobal, dec("18"))

	require.Len(t, totals.Items, 2)
	requireDecimal(t, "1180.00", totals.Items[0].LineTotal)
	requireDecimal(t, "177.00", totals.Items[1].LineTotal)
	requireDecimal(t, "18", totals.Items[0].TaxRatePercent)
	requireDecimal(t, "1150.00", totals.Subtotal)
	requireDecimal(t, "207.00", totals.TaxTotal)
	requireDecimal(t, "1357.00", totals.GrandTotal)
}

func TestPerItemDefaultsMissingRate(t *testing.T) {
	calc := NewCalculator(dec("12"))
	item := calc.NormalizeItem(RawItem{Description: "Pipe", Quantity: "1", Rate: "100"}, TaxModePerItem, dec("28"))
	requireDecimal(t, "12", item.TaxRatePercent)
	requireDecimal(t, "12", item.TaxAmount)

	item = Calculator{}.NormalizeItem(RawItem{Description: "Pipe", Quantity: "1", Rate: "100"}, TaxModePerItem, dec("28"))
	requireDecimal(t, "18", item.TaxRatePercent)

	item = NewCalculator(decimal.Zero).NormalizeItem(RawItem{Description: "Pipe", Quantity: "1", Rate: "100"}, TaxModePerItem, dec("28"))
	requireDecimal(t, "0", item.TaxRatePercent)
}

func TestLivePreviewToleratesBadInput(t *testing.T) {
	totals := ComputeQuotationTotals([]RawItem{
		{Description: "", Quantity: "", Rate: "12"},
		{Description: "Grout", Quantity: "-1", Rate: "abc"},
		{Description: "Tile", Quantity: "4", Rate: "25"},
	}, TaxModeGlobal, dec("18"))

	requireDecimal(t, "0", totals.Items[0].LineTotal)
	requireDecimal(t, "0", totals.Items[1].LineTotal)
	requireDecimal(t, "118", totals.GrandTotal)
}

func TestPerLineRoundingIsAuthoritative(t *testing.T) {
	// each line rounds 0.045 up; the document-level figure rounds 0.135 once
	items := []RawItem{
		{Description: "a", Quantity: "1", Rate: "0.25"},
		{Description: "b", Quantity: "1", Rate: "0.25"},
		{Description: "c", Quantity: "1", Rate: "0.25"},
	}
	totals := ComputeQuotationTotals(items, TaxModeGlobal, dec("18"))
	requireDecimal(t, "0.05", totals.Items[0].TaxAmount)
	requireDecimal(t, "0.15", totals.TaxTotal)
	requireDecimal(t, "0.90", totals.GrandTotal)

	onceRounded := Round2(totals.Subtotal.Mul(dec("0.18"))).Add(totals.Subtotal)
	requireDecimal(t, "0.89", onceRounded)
}

func TestReconcileInfersMode(t *testing.T) {
	same := ReconcileTaxMode([]StoredItem{
		{Description: "a", Quantity: 1, Rate: dec("100"), TaxAmount: dec("18")},
		{Description: "b", Quantity: 2, Rate: dec("50"), TaxAmount: dec("18")},
	}, dec("18"))
	require.Equal(t, TaxModeGlobal, same.InferredMode)
	requireDecimal(t, "18", same.Items[1].TaxRatePercent)

	mixed := ReconcileTaxMode([]StoredItem{
		{Description: "a", Quantity: 1, Rate: dec("100"), TaxAmount: dec("18")},
		{Description: "b", Quantity: 1, Rate: dec("100"), TaxAmount: dec("12")},
	}, dec("18"))
	require.Equal(t, TaxModePerItem, mixed.InferredMode)
	requireDecimal(t, "12", mixed.Items[1].TaxRatePercent)
	requireDecimal(t, "18", mixed.GlobalTaxPercent)
}

func TestReconcileZeroTaxableFallsBack(t *testing.T) {
	rec := ReconcileTaxMode([]StoredItem{
		{Description: "free sample", Quantity: 0, Rate: dec("50"), TaxAmount: decimal.Zero},
	}, dec("18"))
	requireDecimal(t, "18", rec.Items[0].TaxRatePercent)
	require.Equal(t, TaxModeGlobal, rec.InferredMode)
}

func TestReconcileKeepsStoredAmounts(t *testing.T) {
	rec := ReconcileTaxMode([]StoredItem{
		{Description: "a", Quantity: 1, Rate: dec("0.10"), TaxAmount: dec("0.02"), LineTotal: dec("0.12")},
	}, dec("18"))
	requireDecimal(t, "20", rec.Items[0].TaxRatePercent)
	requireDecimal(t, "0.02", rec.Items[0].TaxAmount)
	requireDecimal(t, "0.12", rec.Items[0].LineTotal)
}

func TestReconcileEmpty(t *testing.T) {
	rec := ReconcileTaxMode(nil, dec("5"))
	require.Empty(t, rec.Items)
	require.Equal(t, TaxModeGlobal, rec.InferredMode)
	requireDecimal(t, "5", rec.GlobalTaxPercent)
}

func randomItems(r *rand.Rand, n int) []RawItem {
	percents := []string{"0", "5", "7.5", "12", "18", "28"}
	items := make([]RawItem, n)
	for i := range items {
		rate := decimal.New(int64(10000+r.Intn(990000)), -2)
		items[i] = RawItem{
			Description:    "item",
			Quantity:       Int(int64(1 + r.Intn(20))),
			Rate:           Dec(rate),
			TaxRatePercent: Input(percents[r.Intn(len(percents))]),
		}
	}
	return items
}

func TestComputeIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		first := ComputeQuotationTotals(randomItems(r, 1+r.Intn(8)), TaxModePerItem, dec("18"))

		again := make([]RawItem, len(first.Items))
		for i, item := range first.Items {
			again[i] = item.Raw()
		}
		second := ComputeQuotationTotals(again, TaxModePerItem, dec("18"))

		for i := range first.Items {
			require.Equal(t, first.Items[i].TaxAmount.String(), second.Items[i].TaxAmount.String())
			require.Equal(t, first.Items[i].LineTotal.String(), second.Items[i].LineTotal.String())
		}
		require.True(t, first.GrandTotal.Equal(second.GrandTotal))
	}
}

func TestGrandTotalIsSumOfLines(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 200; round++ {
		totals := ComputeQuotationTotals(randomItems(r, 1+r.Intn(10)), TaxModePerItem, dec("18"))
		sum := decimal.Zero
		for _, item := range totals.Items {
			sum = sum.Add(item.LineTotal)
		}
		require.True(t, sum.Equal(totals.GrandTotal))
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	tolerance := dec("0.01")
	for round := 0; round < 200; round++ {
		totals := ComputeQuotationTotals(randomItems(r, 1+r.Intn(6)), TaxModePerItem, dec("18"))

		stored := make([]StoredItem, len(totals.Items))
		for i, item := range totals.Items {
			stored[i] = StoredItem{
				Description: item.Description,
				Quantity:    item.Quantity,
				Rate:        item.Rate,
				TaxAmount:   item.TaxAmount,
				LineTotal:   item.LineTotal,
			}
		}
		rec := ReconcileTaxMode(stored, dec("18"))
		for i, item := range rec.Items {
			diff := item.TaxRatePercent.Sub(totals.Items[i].TaxRatePercent).Abs()
			require.Truef(t, diff.LessThanOrEqual(tolerance), "item %d: implied %s vs %s", i, item.TaxRatePercent, totals.Items[i].TaxRatePercent)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := []RawItem{{Description: "Tile", Quantity: "1", Rate: "0"}}
	require.NoError(t, Validate(valid, TaxModeGlobal, ""))

	err := Validate(nil, TaxModeGlobal, "18")
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "items", verrs[0].Field)

	err = Validate([]RawItem{
		{Description: " ", Quantity: "0", Rate: "-1", TaxRatePercent: "-5"},
		{Description: "ok", Quantity: "-2", Rate: "x"},
		{Description: "ok", Quantity: "1.5", Rate: "10"},
	}, TaxModePerItem, "-1")
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field)
	}
	require.ElementsMatch(t, []string{
		"gst_percent",
		"items[0].description",
		"items[0].quantity",
		"items[0].rate",
		"items[0].tax_rate_percent",
		"items[1].quantity",
		"items[1].rate",
		"items[2].quantity",
	}, fields)
}

func TestValidateIgnoresItemRatesInGlobalMode(t *testing.T) {
	items := []RawItem{{Description: "Tile", Quantity: "1", Rate: "10", TaxRatePercent: "-3"}}
	require.NoError(t, Validate(items, TaxModeGlobal, "18"))
	require.Error(t, Validate(items, TaxModePerItem, "18"))
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field] = fe.Message
	}
	return out
}

func TestValidateRejectsSubCentValues(t *testing.T) {
	items := []RawItem{{Description: "Tile", Quantity: "100", Rate: "1.005", TaxRatePercent: "18.005"}}

	fields := validationFields(t, Validate(items, TaxModePerItem, "18.125"))
	require.Equal(t, "must have at most 2 decimal places", fields["items[0].rate"])
	require.Equal(t, "must have at most 2 decimal places", fields["items[0].tax_rate_percent"])
	require.Equal(t, "must have at most 2 decimal places", fields["gst_percent"])

	// trailing zeros are still cents
	require.NoError(t, Validate([]RawItem{{Description: "Tile", Quantity: "1", Rate: "1.010"}}, TaxModeGlobal, "18.50"))
}

func TestTwoDecimalRateSurvivesReload(t *testing.T) {
	items := []RawItem{{Description: "Tile", Quantity: "100", Rate: "1.01"}}
	require.NoError(t, Validate(items, TaxModeGlobal, "18"))

	totals := ComputeQuotationTotals(items, TaxModeGlobal, dec("18"))
	item := totals.Items[0]
	requireDecimal(t, "18.18", item.TaxAmount)
	requireDecimal(t, "119.18", item.LineTotal)

	stored := []StoredItem{{
		Description: item.Description,
		Quantity:    item.Quantity,
		Rate:        Round2(item.Rate),
		TaxAmount:   item.TaxAmount,
		LineTotal:   item.LineTotal,
	}}
	requireDecimal(t, "101", item.LineTotal.Sub(item.TaxAmount))
	rec := ReconcileTaxMode(stored, dec("18"))
	diff := rec.Items[0].TaxRatePercent.Sub(dec("18")).Abs()
	require.Truef(t, diff.LessThanOrEqual(dec("0.01")), "implied %s", rec.Items[0].TaxRatePercent)
}

func TestValidateUpperBounds(t *testing.T) {
	fields := validationFields(t, Validate([]RawItem{
		{Description: "Tile", Quantity: "1", Rate: "1e20", TaxRatePercent: "1000"},
		{Description: "Tile", Quantity: "2147483647", Rate: "100000"},
	}, TaxModePerItem, "1000"))
	require.Equal(t, "must not exceed 999.99", fields["gst_percent"])
	require.Equal(t, "must not exceed 9999999999999.99", fields["items[0].rate"])
	require.Equal(t, "must not exceed 999.99", fields["items[0].tax_rate_percent"])
	require.Equal(t, "is too large for the quantity", fields["items[1].rate"])

	require.NoError(t, Validate([]RawItem{
		{Description: "Tile", Quantity: "1", Rate: "9999999999999.99", TaxRatePercent: "999.99"},
	}, TaxModePerItem, "999.99"))
}

func TestCheckTotals(t *testing.T) {
	ok := ComputeQuotationTotals([]RawItem{{Description: "Tile", Quantity: "2", Rate: "100"}}, TaxModeGlobal, dec("18"))
	require.NoError(t, CheckTotals(ok))

	big := ComputeQuotationTotals([]RawItem{
		{Description: "Tile", Quantity: "1", Rate: "9999999999999.99"},
	}, TaxModeGlobal, dec("18"))
	fields := validationFields(t, CheckTotals(big))
	require.Contains(t, fields, "items[0].line_total")
	require.Contains(t, fields, "grand_total")

	split := ComputeQuotationTotals([]RawItem{
		{Description: "Tile", Quantity: "1", Rate: "6000000000000"},
		{Description: "Tile", Quantity: "1", Rate: "6000000000000"},
	}, TaxModeGlobal, dec("0"))
	fields = validationFields(t, CheckTotals(split))
	require.Equal(t, map[string]string{"grand_total": "is too large"}, fields)
}
