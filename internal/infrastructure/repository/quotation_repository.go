package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sangkips/quotation-api/internal/domain/entity"
	domainRepo "github.com/sangkips/quotation-api/internal/domain/repository"
	"gorm.io/gorm"
)

// sortColumns maps accepted sort keys to columns. Anything else sorts by created_at.
var sortColumns = map[string]string{
	"date":          "date",
	"created_at":    "created_at",
	"createdAt":     "created_at",
	"total_amount":  "total_amount",
	"totalAmount":   "total_amount",
	"customer_name": "customer_name",
	"customerName":  "customer_name",
	"store_name":    "store_name",
	"storeName":     "store_name",
}

var quotationColumns = []string{
	"customer_name", "store_name", "phone_number", "validity_period", "date",
	"logo_reference", "gst_percent", "tax_mode", "subtotal", "tax_total", "total_amount", "updated_at",
}

type quotationRepository struct {
	db *gorm.DB
}

// NewQuotationRepository creates a new quotation repository
func NewQuotationRepository(db *gorm.DB) domainRepo.QuotationRepository {
	return &quotationRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *quotationRepository) Create(ctx context.Context, quotation *entity.Quotation) error {
	return r.db.WithContext(ctx).Create(quotation).Error
}

func (r *quotationRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Quotation, error) {
	var quotation entity.Quotation
	err := r.db.WithContext(ctx).
		Scopes(OwnerScope(ctx)).
		Preload("Items", orderedItems).
		First(&quotation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &quotation, err
}

func (r *quotationRepository) Replace(ctx context.Context, quotation *entity.Quotation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Quotation{}).
			Scopes(OwnerScope(ctx)).
			Where("id = ?", quotation.ID).
			Select(quotationColumns).
			Updates(quotation)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainRepo.ErrNotFound
		}

		if err := tx.Where("quotation_id = ?", quotation.ID).Delete(&entity.QuotationItem{}).Error; err != nil {
			return err
		}
		for i := range quotation.Items {
			quotation.Items[i].ID = uuid.Nil
			quotation.Items[i].QuotationID = quotation.ID
		}
		if len(quotation.Items) == 0 {
			return nil
		}
		return tx.Create(&quotation.Items).Error
	})
}

func (r *quotationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quotation entity.Quotation
		err := tx.Scopes(OwnerScope(ctx)).Select("id").First(&quotation, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainRepo.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("quotation_id = ?", id).Delete(&entity.QuotationItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Quotation{}, "id = ?", id).Error
	})
}

func (r *quotationRepository) filtered(ctx context.Context, params *domainRepo.QuotationFilterParams) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entity.Quotation{}).Scopes(OwnerScope(ctx))

	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("customer_name ILIKE ? OR store_name ILIKE ?",
			"%"+search+"%", "%"+search+"%")
	}
	if params.StartDate != nil {
		query = query.Where("date >= ?", *params.StartDate)
	}
	if params.EndDate != nil {
		query = query.Where("date <= ?", *params.EndDate)
	}
	return query
}

func orderClause(params *domainRepo.QuotationFilterParams) string {
	sortBy, ok := sortColumns[params.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(params.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	return sortBy + " " + sortOrder + ", id " + sortOrder
}

func (r *quotationRepository) List(ctx context.Context, params *domainRepo.QuotationFilterParams) ([]entity.Quotation, int64, error) {
	var quotations []entity.Quotation
	var total int64

	query := r.filtered(ctx, params)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Pagination.Validate()
	err := query.Offset(params.Pagination.Offset()).Limit(params.Pagination.PerPage).
		Preload("Items", orderedItems).
		Order(orderClause(params)).
		Find(&quotations).Error

	return quotations, total, err
}

func (r *quotationRepository) ListWithItems(ctx context.Context, params *domainRepo.QuotationFilterParams, limit int) ([]entity.Quotation, error) {
	var quotations []entity.Quotation
	err := r.filtered(ctx, params).
		Preload("Items", orderedItems).
		Order(orderClause(params)).
		Limit(limit).
		Find(&quotations).Error
	return quotations, err
}
