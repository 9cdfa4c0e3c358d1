package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/quotation-api/pkg/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quotation is a priced offer to a customer. Money columns are written from
// pricing results only; nothing here is computed from client input.
type Quotation struct {
	ID             uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	UserID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	CustomerName   string           `gorm:"size:255;not null" json:"customer_name"`
	StoreName      string           `gorm:"size:255;not null" json:"store_name"`
	PhoneNumber    string           `gorm:"size:20;not null" json:"phone_number"`
	ValidityPeriod string           `gorm:"size:100;not null" json:"validity_period"`
	Date           time.Time        `gorm:"not null;index" json:"date"`
	LogoReference  *string          `gorm:"size:255" json:"logo_reference,omitempty"`
	GSTPercent     decimal.Decimal  `gorm:"type:decimal(5,2);not null;default:18" json:"gst_percent"`
	TaxMode        *pricing.TaxMode `gorm:"type:smallint" json:"tax_mode,omitempty"`
	Subtotal       decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0" json:"subtotal"`
	TaxTotal       decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0" json:"tax_total"`
	TotalAmount    decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0;index" json:"total_amount"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	// Relationships
	User  User            `gorm:"foreignKey:UserID" json:"-"`
	Items []QuotationItem `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"items"`
}

// BeforeCreate generates a UUID before creating a new quotation
func (q *Quotation) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Quotation model
func (Quotation) TableName() string {
	return "quotations"
}

// ApplyTotals replaces items and money columns with a freshly computed result.
func (q *Quotation) ApplyTotals(totals pricing.Totals) {
	items := make([]QuotationItem, len(totals.Items))
	for i, li := range totals.Items {
		items[i] = QuotationItem{
			QuotationID: q.ID,
			Position:    i,
			Description: li.Description,
			Quantity:    li.Quantity,
			Rate:        li.Rate,
			TaxAmount:   li.TaxAmount,
			LineTotal:   li.LineTotal,
		}
	}
	q.Items = items
	q.Subtotal = totals.Subtotal
	q.TaxTotal = totals.TaxTotal
	q.TotalAmount = totals.GrandTotal
}

// StoredItems converts persisted items for reconciliation.
func (q *Quotation) StoredItems() []pricing.StoredItem {
	out := make([]pricing.StoredItem, len(q.Items))
	for i, it := range q.Items {
		out[i] = pricing.StoredItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
			TaxAmount:   it.TaxAmount,
			LineTotal:   it.LineTotal,
		}
	}
	return out
}

// QuotationItem represents a line item in a quotation. Only the resolved tax
// amount is kept; the rate it came from is rebuilt on edit.
type QuotationItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	QuotationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	Position    int             `gorm:"not null" json:"-"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Rate        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"rate"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"tax_amount"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"line_total"`
}

// BeforeCreate generates a UUID before creating a new quotation item
func (qi *QuotationItem) BeforeCreate(tx *gorm.DB) error {
	if qi.ID == uuid.Nil {
		qi.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the QuotationItem model
func (QuotationItem) TableName() string {
	return "quotation_items"
}
