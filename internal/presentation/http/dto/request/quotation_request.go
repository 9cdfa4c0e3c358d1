package request

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/sangkips/quotation-api/pkg/pricing"
)

// ItemsField holds the line items of a quotation payload. JSON bodies may send
// a real array or the array encoded as a string; multipart forms always send
// a string. Anything unparseable sets Malformed instead of failing the bind.
type ItemsField struct {
	Items     []pricing.RawItem
	Malformed bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *ItemsField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			f.Malformed = true
			return nil
		}
		return f.UnmarshalParam(s)
	}
	f.parse(data)
	return nil
}

// UnmarshalParam implements binding.BindUnmarshaler for form values
func (f *ItemsField) UnmarshalParam(param string) error {
	f.parse([]byte(strings.TrimSpace(param)))
	return nil
}

func (f *ItemsField) parse(data []byte) {
	f.Items, f.Malformed = nil, false
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return
	}
	if data[0] != '[' {
		f.Malformed = true
		return
	}
	var items []pricing.RawItem
	if err := json.Unmarshal(data, &items); err != nil {
		f.Malformed = true
		return
	}
	f.Items = items
}

// TaxModeField accepts "global" or "per_item", or 0 and 1 in JSON
type TaxModeField struct {
	Mode    pricing.TaxMode
	Invalid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *TaxModeField) UnmarshalJSON(data []byte) error {
	var m pricing.TaxMode
	if err := m.UnmarshalJSON(data); err != nil || (m != pricing.TaxModeGlobal && m != pricing.TaxModePerItem) {
		f.Mode, f.Invalid = pricing.TaxModeGlobal, true
		return nil
	}
	f.Mode, f.Invalid = m, false
	return nil
}

// UnmarshalParam implements binding.BindUnmarshaler for form values
func (f *TaxModeField) UnmarshalParam(param string) error {
	m, ok := pricing.ParseTaxMode(param)
	f.Mode, f.Invalid = m, !ok
	return nil
}

// QuotationRequest is the create, update and preview payload. It has no
// fields for computed amounts; any the client sends are dropped.
type QuotationRequest struct {
	CustomerName   string        `json:"customer_name" form:"customer_name" binding:"required,max=255"`
	StoreName      string        `json:"store_name" form:"store_name" binding:"required,max=255"`
	PhoneNumber    string        `json:"phone_number" form:"phone_number" binding:"required,phone"`
	ValidityPeriod string        `json:"validity_period" form:"validity_period" binding:"required,max=100"`
	Date           string        `json:"date" form:"date"`
	GSTPercent     pricing.Input `json:"gst_percent" form:"gst_percent"`
	TaxMode        TaxModeField  `json:"tax_mode" form:"tax_mode"`
	Items          ItemsField    `json:"items" form:"items"`
	RemoveLogo     bool          `json:"remove_logo" form:"remove_logo"`
}

// PreviewRequest is the live-preview payload
type PreviewRequest struct {
	GSTPercent pricing.Input `json:"gst_percent" form:"gst_percent"`
	TaxMode    TaxModeField  `json:"tax_mode" form:"tax_mode"`
	Items      ItemsField    `json:"items" form:"items"`
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ParseDate parses a quotation date. Blank means "not sent".
func ParseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// ListQuotationsQuery binds list and export filters
type ListQuotationsQuery struct {
	Page      int    `form:"page"`
	PerPage   int    `form:"per_page"`
	Limit     int    `form:"limit"`
	Search    string `form:"search"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ParseEndDate is ParseDate, except a bare date covers that whole day.
func ParseEndDate(s string) (*time.Time, bool) {
	t, ok := ParseDate(s)
	if t != nil && len(strings.TrimSpace(s)) == len(dateLayouts[0]) {
		end := t.Add(24*time.Hour - time.Nanosecond)
		return &end, ok
	}
	return t, ok
}
