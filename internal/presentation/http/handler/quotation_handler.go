package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sangkips/quotation-api/internal/application/service"
	"github.com/sangkips/quotation-api/internal/presentation/http/dto/request"
	"github.com/sangkips/quotation-api/internal/presentation/http/dto/response"
	"github.com/sangkips/quotation-api/pkg/apperror"
	"github.com/sangkips/quotation-api/pkg/pagination"
)

// QuotationHandler handles quotation-related HTTP requests
type QuotationHandler struct {
	quotationService *service.QuotationService
	documentService  *service.DocumentService
}

// NewQuotationHandler creates a new quotation handler
func NewQuotationHandler(quotationService *service.QuotationService, documentService *service.DocumentService) *QuotationHandler {
	return &QuotationHandler{
		quotationService: quotationService,
		documentService:  documentService,
	}
}

// Preview handles live total computation
// @Summary Preview Quotation Totals
// @Description Compute item tax, line totals and grand total without saving
// @Tags quotations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body request.PreviewRequest true "Items and tax settings"
// @Success 200 {object} response.APIResponse
// @Router /quotations/preview [post]
func (h *QuotationHandler) Preview(c *gin.Context) {
	var req request.PreviewRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Items.Malformed {
		response.Error(c, apperror.ErrMalformedPayload)
		return
	}
	if req.TaxMode.Invalid {
		response.ValidationError(c, []apperror.FieldError{{Field: "tax_mode", Message: "must be global or per_item"}})
		return
	}

	result := h.quotationService.Preview(&service.PreviewInput{
		GSTPercent: req.GSTPercent,
		TaxMode:    req.TaxMode.Mode,
		Items:      req.Items.Items,
	})
	response.OK(c, "Totals computed", result)
}

// List handles listing quotations
// @Summary List Quotations
// @Description Get quotations with pagination, search, date range and sorting
// @Tags quotations
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Items per page"
// @Param search query string false "Customer or store name"
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Param sort_by query string false "date, created_at, total_amount, customer_name or store_name"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.APIResponse
// @Router /quotations [get]
func (h *QuotationHandler) List(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	input, ok := listInput(c)
	if !ok {
		return
	}

	result, err := h.quotationService.List(c.Request.Context(), who, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, "Quotations retrieved successfully", result)
}

// Export handles the spreadsheet download
// @Summary Export Quotations
// @Description Download matching quotations and their items as an xlsx workbook
// @Tags quotations
// @Security BearerAuth
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /quotations/export [get]
func (h *QuotationHandler) Export(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	input, ok := listInput(c)
	if !ok {
		return
	}

	doc, err := h.documentService.ExportXLSX(c.Request.Context(), who, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Data)
}

// Get handles getting a single quotation
// @Summary Get Quotation
// @Description Get a quotation by ID
// @Tags quotations
// @Security BearerAuth
// @Produce json
// @Param id path string true "Quotation ID"
// @Success 200 {object} response.APIResponse
// @Router /quotations/{id} [get]
func (h *QuotationHandler) Get(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	quotation, err := h.quotationService.Get(c.Request.Context(), who, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Quotation retrieved successfully", quotation)
}

// Edit returns a quotation prepared for the edit form
// @Summary Get Quotation For Editing
// @Description Get a quotation with per-item tax rates rebuilt from stored amounts
// @Tags quotations
// @Security BearerAuth
// @Produce json
// @Param id path string true "Quotation ID"
// @Success 200 {object} response.APIResponse
// @Router /quotations/{id}/edit [get]
func (h *QuotationHandler) Edit(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	state, err := h.quotationService.GetForEdit(c.Request.Context(), who, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Quotation retrieved successfully", state)
}

// Create handles creating a quotation
// @Summary Create Quotation
// @Description Create a quotation from a JSON body or a multipart form with an optional logo
// @Tags quotations
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param request body request.QuotationRequest true "Quotation data"
// @Success 201 {object} response.APIResponse
// @Router /quotations [post]
func (h *QuotationHandler) Create(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}

	input, closeLogo, ok := bindQuotation(c)
	if !ok {
		return
	}
	defer closeLogo()

	quotation, err := h.quotationService.Create(c.Request.Context(), who, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Quotation created successfully", quotation)
}

// Update handles replacing a quotation
// @Summary Update Quotation
// @Description Replace every field and item of a quotation
// @Tags quotations
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Quotation ID"
// @Param request body request.QuotationRequest true "Quotation data"
// @Success 200 {object} response.APIResponse
// @Router /quotations/{id} [put]
func (h *QuotationHandler) Update(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	input, closeLogo, ok := bindQuotation(c)
	if !ok {
		return
	}
	defer closeLogo()

	quotation, err := h.quotationService.Update(c.Request.Context(), who, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Quotation updated successfully", quotation)
}

// Delete handles deleting a quotation
// @Summary Delete Quotation
// @Description Delete a quotation and release its logo
// @Tags quotations
// @Security BearerAuth
// @Param id path string true "Quotation ID"
// @Success 204
// @Router /quotations/{id} [delete]
func (h *QuotationHandler) Delete(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	if err := h.quotationService.Delete(c.Request.Context(), who, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// PDF handles the printable document download
// @Summary Download Quotation PDF
// @Description Render a quotation as a PDF document
// @Tags quotations
// @Security BearerAuth
// @Produce application/pdf
// @Param id path string true "Quotation ID"
// @Success 200 {file} file
// @Router /quotations/{id}/pdf [get]
func (h *QuotationHandler) PDF(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	doc, err := h.documentService.QuotationPDF(c.Request.Context(), who, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Data)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), binding.MIMEMultipartPOSTForm)
}

// bindQuotation reads a create or update payload. The returned func closes
// the uploaded logo, if any.
func bindQuotation(c *gin.Context) (*service.QuotationInput, func(), bool) {
	noop := func() {}

	var req request.QuotationRequest
	bindErr := c.ShouldBind(&req)
	if req.Items.Malformed {
		response.Error(c, apperror.ErrMalformedPayload)
		return nil, noop, false
	}
	if bindErr != nil {
		bindError(c, bindErr)
		return nil, noop, false
	}

	var fields []apperror.FieldError
	if req.TaxMode.Invalid {
		fields = append(fields, apperror.FieldError{Field: "tax_mode", Message: "must be global or per_item"})
	}
	date, ok := request.ParseDate(req.Date)
	if !ok {
		fields = append(fields, apperror.FieldError{Field: "date", Message: "must be a date (YYYY-MM-DD)"})
	}
	if len(fields) > 0 {
		response.ValidationError(c, fields)
		return nil, noop, false
	}

	input := &service.QuotationInput{
		CustomerName:   req.CustomerName,
		StoreName:      req.StoreName,
		PhoneNumber:    req.PhoneNumber,
		ValidityPeriod: req.ValidityPeriod,
		Date:           date,
		GSTPercent:     req.GSTPercent,
		TaxMode:        req.TaxMode.Mode,
		Items:          req.Items.Items,
		RemoveLogo:     req.RemoveLogo,
	}

	if !isMultipart(c) {
		return input, noop, true
	}
	fh, err := c.FormFile("logo")
	if errors.Is(err, http.ErrMissingFile) {
		return input, noop, true
	}
	if err != nil {
		response.BadRequest(c, "Invalid logo upload")
		return nil, noop, false
	}
	file, err := fh.Open()
	if err != nil {
		response.Error(c, err)
		return nil, noop, false
	}
	input.Logo = file
	return input, func() { _ = file.Close() }, true
}

func listInput(c *gin.Context) (*service.ListQuotationsInput, bool) {
	var q request.ListQuotationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return nil, false
	}

	var fields []apperror.FieldError
	start, ok := request.ParseDate(q.StartDate)
	if !ok {
		fields = append(fields, apperror.FieldError{Field: "start_date", Message: "must be a date (YYYY-MM-DD)"})
	}
	end, ok := request.ParseEndDate(q.EndDate)
	if !ok {
		fields = append(fields, apperror.FieldError{Field: "end_date", Message: "must be a date (YYYY-MM-DD)"})
	}
	if len(fields) > 0 {
		response.ValidationError(c, fields)
		return nil, false
	}

	return &service.ListQuotationsInput{
		Pagination: &pagination.PaginationParams{Page: q.Page, PerPage: q.PerPage, Limit: q.Limit},
		Search:     strings.TrimSpace(q.Search),
		StartDate:  start,
		EndDate:    end,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
	}, true
}
