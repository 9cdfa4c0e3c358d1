package service

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sangkips/quotation-api/internal/domain/entity"
	"github.com/sangkips/quotation-api/internal/domain/repository"
	"github.com/sangkips/quotation-api/pkg/apperror"
	"github.com/sangkips/quotation-api/pkg/metrics"
	"github.com/sangkips/quotation-api/pkg/pdf"
	"github.com/sangkips/quotation-api/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ExportLimit caps the number of quotations in one spreadsheet export.
const ExportLimit = 1000

//go:embed templates/quotation.html
var templateFS embed.FS

// Document is a rendered file ready to be sent to the client
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentService renders quotations as PDF and spreadsheet files
type DocumentService struct {
	quotations *QuotationService
	logos      repository.LogoStorage
	renderer   pdf.Renderer
	tpl        *template.Template
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewDocumentService parses the quotation template and wires the renderer
func NewDocumentService(
	quotations *QuotationService,
	logos repository.LogoStorage,
	renderer pdf.Renderer,
	m *metrics.Metrics,
	log zerolog.Logger,
) (*DocumentService, error) {
	if renderer == nil {
		return nil, errors.New("document service: pdf renderer required")
	}
	printer := message.NewPrinter(language.MustParse("en-IN"))
	funcMap := template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return FormatINR(printer, d)
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"inc": func(i int) int { return i + 1 },
	}
	tpl, err := template.New("quotation.html").Funcs(funcMap).ParseFS(templateFS, "templates/quotation.html")
	if err != nil {
		return nil, err
	}
	return &DocumentService{
		quotations: quotations,
		logos:      logos,
		renderer:   renderer,
		tpl:        tpl,
		metrics:    m,
		log:        log.With().Str("service", "document").Logger(),
	}, nil
}

// FormatINR formats an amount in rupees with two decimals
func FormatINR(p *message.Printer, d decimal.Decimal) string {
	return "₹" + p.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}

type quotationView struct {
	Quotation *entity.Quotation
	Number    string
	LogoURI   template.URL
}

// RenderHTML builds the printable HTML for a quotation. Item rows show the
// stored per-item tax amounts.
func (s *DocumentService) RenderHTML(ctx context.Context, q *entity.Quotation) (string, error) {
	view := quotationView{
		Quotation: q,
		Number:    strings.ToUpper(q.ID.String()[:8]),
	}
	if q.LogoReference != nil {
		data, contentType, err := s.logos.Open(ctx, *q.LogoReference)
		switch {
		case err == nil:
			view.LogoURI = template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
		case errors.Is(err, repository.ErrLogoNotFound):
			s.log.Warn().Str("quotation_id", q.ID.String()).Str("logo", *q.LogoReference).Msg("logo missing, rendering without it")
		default:
			return "", err
		}
	}

	buf := &bytes.Buffer{}
	if err := s.tpl.Execute(buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// QuotationPDF renders a stored quotation the actor may see as a PDF
func (s *DocumentService) QuotationPDF(ctx context.Context, actor Actor, id uuid.UUID) (*Document, error) {
	q, err := s.quotations.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	html, err := s.RenderHTML(ctx, q)
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.RenderHTML(ctx, html)
	s.metrics.DocumentRendered("pdf", err)
	if err != nil {
		s.log.Error().Err(err).Str("quotation_id", id.String()).Msg("pdf render failed")
		return nil, apperror.Wrap(apperror.ErrRenderUnavailable, err)
	}

	return &Document{
		Filename:    documentName(q, "pdf"),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

var (
	quotationSheetHeader = []interface{}{"ID", "Date", "Customer", "Store", "Phone", "Validity", "GST %", "Subtotal", "Tax", "Total"}
	itemSheetHeader      = []interface{}{"Quotation ID", "#", "Description", "Quantity", "Rate", "Tax Amount", "Line Total"}
)

// ExportXLSX writes the quotations matching input to a workbook with one
// sheet of headers and one of items.
func (s *DocumentService) ExportXLSX(ctx context.Context, actor Actor, input *ListQuotationsInput) (*Document, error) {
	quotations, err := s.quotations.ListAll(ctx, actor, input, ExportLimit)
	if err != nil {
		return nil, err
	}

	data, err := BuildWorkbook(quotations)
	s.metrics.DocumentRendered("xlsx", err)
	if err != nil {
		return nil, err
	}

	return &Document{
		Filename:    "quotations-" + time.Now().Format("20060102") + ".xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

// BuildWorkbook lays quotations out as a "Quotations" and an "Items" sheet
func BuildWorkbook(quotations []entity.Quotation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const headers, items = "Quotations", "Items"
	if err := f.SetSheetName("Sheet1", headers); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(items); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := writeRow(f, headers, 1, quotationSheetHeader); err != nil {
		return nil, err
	}
	if err := writeRow(f, items, 1, itemSheetHeader); err != nil {
		return nil, err
	}
	for _, sheet := range []string{headers, items} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return nil, err
		}
	}

	itemRow := 2
	for i, q := range quotations {
		row := []interface{}{
			q.ID.String(),
			q.Date.Format("2006-01-02"),
			q.CustomerName,
			q.StoreName,
			q.PhoneNumber,
			q.ValidityPeriod,
			q.GSTPercent.InexactFloat64(),
			q.Subtotal.InexactFloat64(),
			q.TaxTotal.InexactFloat64(),
			q.TotalAmount.InexactFloat64(),
		}
		if err := writeRow(f, headers, i+2, row); err != nil {
			return nil, err
		}

		for j, it := range q.Items {
			row := []interface{}{
				q.ID.String(),
				j + 1,
				it.Description,
				it.Quantity,
				it.Rate.InexactFloat64(),
				it.TaxAmount.InexactFloat64(),
				it.LineTotal.InexactFloat64(),
			}
			if err := writeRow(f, items, itemRow, row); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	if err := f.SetColWidth(headers, "A", "J", 16); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(items, "C", "C", 40); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func documentName(q *entity.Quotation, ext string) string {
	name := utils.Slugify(q.CustomerName)
	if name == "" {
		name = "quotation"
	}
	return fmt.Sprintf("%s-%s.%s", name, q.Date.Format("2006-01-02"), ext)
}
