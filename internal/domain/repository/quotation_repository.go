package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/quotation-api/internal/domain/entity"
	"github.com/sangkips/quotation-api/pkg/pagination"
)

// QuotationRepository defines the interface for quotation data operations.
// Reads and writes are limited to the owner carried in ctx unless ctx marks
// the caller as an admin.
type QuotationRepository interface {
	Create(ctx context.Context, quotation *entity.Quotation) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Quotation, error)
	// Replace overwrites the header and every item of an existing quotation.
	Replace(ctx context.Context, quotation *entity.Quotation) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params *QuotationFilterParams) ([]entity.Quotation, int64, error)
	// ListWithItems is List without pagination, capped at limit rows.
	ListWithItems(ctx context.Context, params *QuotationFilterParams, limit int) ([]entity.Quotation, error)
}

// QuotationFilterParams contains filtering parameters for quotation queries
type QuotationFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	StartDate  *time.Time
	EndDate    *time.Time
	SortBy     string
	SortOrder  string
}
