package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sangkips/quotation-api/internal/domain/entity"
	"github.com/sangkips/quotation-api/internal/domain/repository"
	"github.com/sangkips/quotation-api/pkg/apperror"
	"github.com/sangkips/quotation-api/pkg/metrics"
	"github.com/sangkips/quotation-api/pkg/pagination"
	"github.com/sangkips/quotation-api/pkg/pricing"
	"github.com/shopspring/decimal"
)

// QuotationService handles quotation business logic. Every money figure it
// stores comes from pricing; client-sent totals are never read.
type QuotationService struct {
	quotationRepo repository.QuotationRepository
	logos         repository.LogoStorage
	calc          pricing.Calculator
	metrics       *metrics.Metrics
	log           zerolog.Logger
	now           func() time.Time
}

// NewQuotationService creates a new quotation service
func NewQuotationService(
	quotationRepo repository.QuotationRepository,
	logos repository.LogoStorage,
	calc pricing.Calculator,
	m *metrics.Metrics,
	log zerolog.Logger,
) *QuotationService {
	return &QuotationService{
		quotationRepo: quotationRepo,
		logos:         logos,
		calc:          calc,
		metrics:       m,
		log:           log.With().Str("service", "quotation").Logger(),
		now:           time.Now,
	}
}

// Actor identifies who is calling
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func (a Actor) scope(ctx context.Context) context.Context {
	if a.IsAdmin {
		return repository.WithSkipOwnerScope(ctx)
	}
	return repository.WithOwner(ctx, a.UserID)
}

func (a Actor) canAccess(q *entity.Quotation) bool {
	return a.IsAdmin || q.UserID == a.UserID
}

// QuotationInput represents the create and update input
type QuotationInput struct {
	CustomerName   string
	StoreName      string
	PhoneNumber    string
	ValidityPeriod string
	Date           *time.Time
	GSTPercent     pricing.Input
	TaxMode        pricing.TaxMode
	Items          []pricing.RawItem
	// Logo is a newly uploaded logo, nil when none was sent.
	Logo io.Reader
	// RemoveLogo drops the current logo on update when no new one is sent.
	RemoveLogo bool
}

// PreviewInput is the live-preview payload
type PreviewInput struct {
	GSTPercent pricing.Input
	TaxMode    pricing.TaxMode
	Items      []pricing.RawItem
}

// PreviewResult is what the form shows while editing. Errors lists what would
// block a save; the totals are computed regardless.
type PreviewResult struct {
	pricing.Totals
	GSTPercent decimal.Decimal       `json:"gst_percent"`
	TaxMode    pricing.TaxMode       `json:"tax_mode"`
	Valid      bool                  `json:"valid"`
	Errors     []apperror.FieldError `json:"errors,omitempty"`
}

// EditState is a stored quotation prepared for the edit form
type EditState struct {
	Quotation        *entity.Quotation  `json:"quotation"`
	Items            []pricing.LineItem `json:"items"`
	TaxMode          pricing.TaxMode    `json:"tax_mode"`
	InferredMode     pricing.TaxMode    `json:"inferred_mode"`
	ModeWasStored    bool               `json:"mode_was_stored"`
	GlobalTaxPercent decimal.Decimal    `json:"global_tax_percent"`
}

// ListQuotationsInput represents the list quotations input
type ListQuotationsInput struct {
	Pagination *pagination.PaginationParams
	Search     string
	StartDate  *time.Time
	EndDate    *time.Time
	SortBy     string
	SortOrder  string
}

func (in *ListQuotationsInput) filter() *repository.QuotationFilterParams {
	if in.Pagination == nil {
		in.Pagination = pagination.DefaultPagination()
	}
	in.Pagination.Validate()
	return &repository.QuotationFilterParams{
		Pagination: in.Pagination,
		Search:     in.Search,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		SortBy:     in.SortBy,
		SortOrder:  in.SortOrder,
	}
}

// Preview computes totals exactly as a save would, without storing anything
func (s *QuotationService) Preview(input *PreviewInput) *PreviewResult {
	gst := s.resolveGST(input.GSTPercent)
	totals := s.calc.ComputeQuotationTotals(input.Items, input.TaxMode, gst)

	result := &PreviewResult{Totals: totals, GSTPercent: gst, TaxMode: input.TaxMode, Valid: true}
	if err := pricing.Validate(input.Items, input.TaxMode, input.GSTPercent); err != nil {
		result.Valid = false
		result.Errors = toFieldErrors(err)
	} else if err := pricing.CheckTotals(totals); err != nil {
		result.Valid = false
		result.Errors = toFieldErrors(err)
	}
	return result
}

// Create validates, prices and stores a new quotation
func (s *QuotationService) Create(ctx context.Context, actor Actor, input *QuotationInput) (*entity.Quotation, error) {
	totals, gst, err := s.price(input)
	if err != nil {
		return nil, err
	}

	quotation := &entity.Quotation{
		ID:     uuid.New(),
		UserID: actor.UserID,
	}
	s.applyHeader(quotation, input, gst)
	quotation.ApplyTotals(totals)

	logoRef, err := s.saveLogo(ctx, input.Logo)
	if err != nil {
		return nil, err
	}
	quotation.LogoReference = logoRef

	if err := s.quotationRepo.Create(ctx, quotation); err != nil {
		s.compensateLogo(ctx, logoRef, quotation.ID)
		return nil, err
	}

	s.metrics.QuotationWritten("create")
	s.log.Info().
		Str("quotation_id", quotation.ID.String()).
		Str("user_id", actor.UserID.String()).
		Str("total_amount", quotation.TotalAmount.StringFixed(2)).
		Msg("quotation created")
	return quotation, nil
}

// Update replaces every field and item of a quotation and reprices it from scratch
func (s *QuotationService) Update(ctx context.Context, actor Actor, id uuid.UUID, input *QuotationInput) (*entity.Quotation, error) {
	quotation, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	totals, gst, err := s.price(input)
	if err != nil {
		return nil, err
	}

	newLogo, err := s.saveLogo(ctx, input.Logo)
	if err != nil {
		return nil, err
	}

	oldLogo := quotation.LogoReference
	s.applyHeader(quotation, input, gst)
	quotation.ApplyTotals(totals)
	switch {
	case newLogo != nil:
		quotation.LogoReference = newLogo
	case input.RemoveLogo:
		quotation.LogoReference = nil
	}

	if err := s.quotationRepo.Replace(actor.scope(ctx), quotation); err != nil {
		s.compensateLogo(ctx, newLogo, quotation.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NewNotFoundError("Quotation")
		}
		return nil, err
	}

	if oldLogo != nil && (newLogo != nil || input.RemoveLogo) {
		s.releaseLogo(ctx, *oldLogo, quotation.ID)
	}

	s.metrics.QuotationWritten("update")
	s.log.Info().
		Str("quotation_id", quotation.ID.String()).
		Str("total_amount", quotation.TotalAmount.StringFixed(2)).
		Msg("quotation updated")
	return quotation, nil
}

// Get returns a quotation the actor may see
func (s *QuotationService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*entity.Quotation, error) {
	quotation, err := s.quotationRepo.GetByID(actor.scope(ctx), id)
	if err != nil {
		return nil, err
	}
	if quotation == nil {
		return nil, apperror.NewNotFoundError("Quotation")
	}
	if !actor.canAccess(quotation) {
		return nil, apperror.ErrForbidden
	}
	return quotation, nil
}

// GetForEdit returns a quotation with per-item tax rates rebuilt from the
// stored tax amounts. A stored tax mode wins over the inferred one; records
// saved before the mode was stored fall back to inference.
func (s *QuotationService) GetForEdit(ctx context.Context, actor Actor, id uuid.UUID) (*EditState, error) {
	quotation, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	rec := pricing.ReconcileTaxMode(quotation.StoredItems(), quotation.GSTPercent)
	state := &EditState{
		Quotation:        quotation,
		Items:            rec.Items,
		TaxMode:          rec.InferredMode,
		InferredMode:     rec.InferredMode,
		GlobalTaxPercent: rec.GlobalTaxPercent,
	}
	if quotation.TaxMode != nil {
		state.TaxMode = *quotation.TaxMode
		state.ModeWasStored = true
	}
	return state, nil
}

// Delete removes a quotation, then releases its logo. A failed release is
// logged and does not fail the delete.
func (s *QuotationService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	quotation, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.quotationRepo.Delete(actor.scope(ctx), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NewNotFoundError("Quotation")
		}
		return err
	}

	if quotation.LogoReference != nil {
		s.releaseLogo(ctx, *quotation.LogoReference, id)
	}

	s.metrics.QuotationWritten("delete")
	s.log.Info().Str("quotation_id", id.String()).Msg("quotation deleted")
	return nil
}

// List returns a filtered page of the actor's quotations
func (s *QuotationService) List(ctx context.Context, actor Actor, input *ListQuotationsInput) (*pagination.PaginatedResult[entity.Quotation], error) {
	params := input.filter()
	quotations, total, err := s.quotationRepo.List(actor.scope(ctx), params)
	if err != nil {
		return nil, err
	}

	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(quotations, pag), nil
}

// ListAll returns up to limit matching quotations with items, for export
func (s *QuotationService) ListAll(ctx context.Context, actor Actor, input *ListQuotationsInput, limit int) ([]entity.Quotation, error) {
	return s.quotationRepo.ListWithItems(actor.scope(ctx), input.filter(), limit)
}

func (s *QuotationService) resolveGST(in pricing.Input) decimal.Decimal {
	if in.IsBlank() {
		return s.calc.DefaultPercent()
	}
	return pricing.Round2(in.NonNegative())
}

func (s *QuotationService) price(input *QuotationInput) (pricing.Totals, decimal.Decimal, error) {
	var fields []apperror.FieldError
	for _, f := range []struct{ name, value string }{
		{"customer_name", input.CustomerName},
		{"store_name", input.StoreName},
		{"phone_number", input.PhoneNumber},
		{"validity_period", input.ValidityPeriod},
	} {
		if strings.TrimSpace(f.value) == "" {
			fields = append(fields, apperror.FieldError{Field: f.name, Message: "is required"})
		}
	}
	if err := pricing.Validate(input.Items, input.TaxMode, input.GSTPercent); err != nil {
		fields = append(fields, toFieldErrors(err)...)
	}
	if len(fields) > 0 {
		return pricing.Totals{}, decimal.Zero, apperror.NewValidationError(fields)
	}

	gst := s.resolveGST(input.GSTPercent)
	totals := s.calc.ComputeQuotationTotals(input.Items, input.TaxMode, gst)
	if err := pricing.CheckTotals(totals); err != nil {
		return pricing.Totals{}, decimal.Zero, apperror.NewValidationError(toFieldErrors(err))
	}
	return totals, gst, nil
}

func (s *QuotationService) applyHeader(q *entity.Quotation, input *QuotationInput, gst decimal.Decimal) {
	q.CustomerName = strings.TrimSpace(input.CustomerName)
	q.StoreName = strings.TrimSpace(input.StoreName)
	q.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	q.ValidityPeriod = strings.TrimSpace(input.ValidityPeriod)
	q.GSTPercent = gst
	mode := input.TaxMode
	q.TaxMode = &mode
	switch {
	case input.Date != nil:
		q.Date = *input.Date
	case q.Date.IsZero():
		q.Date = s.now()
	}
}

func (s *QuotationService) saveLogo(ctx context.Context, r io.Reader) (*string, error) {
	if r == nil {
		return nil, nil
	}
	ref, err := s.logos.Save(ctx, r)
	switch {
	case errors.Is(err, repository.ErrLogoTooLarge):
		return nil, apperror.ErrFileTooLarge
	case errors.Is(err, repository.ErrLogoUnsupported):
		return nil, apperror.ErrUnsupportedMedia
	case err != nil:
		return nil, err
	}
	return &ref, nil
}

// compensateLogo undoes a logo upload whose quotation write failed.
func (s *QuotationService) compensateLogo(ctx context.Context, ref *string, quotationID uuid.UUID) {
	if ref == nil {
		return
	}
	if err := s.logos.Delete(context.WithoutCancel(ctx), *ref); err != nil {
		s.log.Warn().Err(err).
			Str("quotation_id", quotationID.String()).
			Str("logo", *ref).
			Msg("failed to remove logo after quotation write failed")
	}
}

func (s *QuotationService) releaseLogo(ctx context.Context, ref string, quotationID uuid.UUID) {
	err := s.logos.Delete(context.WithoutCancel(ctx), ref)
	s.metrics.LogoCleanup(err)
	if err != nil {
		s.log.Warn().Err(err).
			Str("quotation_id", quotationID.String()).
			Str("logo", ref).
			Msg("logo cleanup failed")
	}
}

func toFieldErrors(err error) []apperror.FieldError {
	var verrs pricing.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperror.FieldError{{Field: "items", Message: err.Error()}}
	}
	out := make([]apperror.FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = apperror.FieldError{Field: fe.Field, Message: fe.Message}
	}
	return out
}
