package export

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

const maxColumnWidth = 50

// Repository loads statements for the workbook builder
type Repository interface {
	ListForDocument(ctx context.Context, documentID uuid.UUID) ([]domain.FinancialStatement, error)
}

// Service renders a document's statements into an xlsx workbook
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new export service
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ToExcel writes one sheet per statement type with periods as columns
// and returns the path of a temp .xlsx file. The caller owns the file.
func (s *Service) ToExcel(ctx context.Context, documentID uuid.UUID) (string, error) {
	statements, err := s.repo.ListForDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	if len(statements) == 0 {
		return "", apperrors.RecordNotFound("financial statements")
	}

	byType := make(map[string][]domain.FinancialStatement)
	var typeOrder []string
	for _, stmt := range statements {
		if _, seen := byType[stmt.StatementType]; !seen {
			typeOrder = append(typeOrder, stmt.StatementType)
		}
		byType[stmt.StatementType] = append(byType[stmt.StatementType], stmt)
	}

	f := excelize.NewFile()
	defer f.Close()

	for _, stmtType := range typeOrder {
		if err := s.writeSheet(f, stmtType, byType[stmtType]); err != nil {
			return "", err
		}
	}

	// excelize always creates Sheet1; drop it once real sheets exist
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "financials-*.xlsx")
	if err != nil {
		return "", err
	}
	tmp.Close()

	if err := f.SaveAs(tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	s.logger.Info("workbook exported",
		slog.String("document_id", documentID.String()),
		slog.Int("sheets", len(typeOrder)),
		slog.String("path", tmp.Name()))

	return tmp.Name(), nil
}

func (s *Service) writeSheet(f *excelize.File, stmtType string, stmts []domain.FinancialStatement) error {
	sheet := domain.StatementTypeLabel(stmtType)
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	firstHeaderStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "left"},
	})
	if err != nil {
		return err
	}
	numFmt := "#,##0.00"
	valueStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return err
	}
	totalValueStyle, err := f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		CustomNumFmt: &numFmt,
	})
	if err != nil {
		return err
	}
	totalLabelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	headers := []string{"Line Item"}
	for i := range stmts {
		headers = append(headers, stmts[i].Period)
	}

	widths := make([]int, len(headers))
	setCell := func(col, row int, value interface{}, style int) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return err
		}
		if style != 0 {
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return err
			}
		}
		return nil
	}

	for col, h := range headers {
		style := headerStyle
		if col == 0 {
			style = firstHeaderStyle
		}
		if err := setCell(col+1, 1, h, style); err != nil {
			return err
		}
		if len(h) > widths[col] {
			widths[col] = len(h)
		}
	}

	// The statement with the most line items drives the row order
	template := &stmts[0]
	for i := range stmts {
		if len(stmts[i].LineItems) > len(template.LineItems) {
			template = &stmts[i]
		}
	}

	type valueKey struct {
		stmtID uuid.UUID
		label  string
	}
	values := make(map[valueKey]*float64)
	for i := range stmts {
		for j := range stmts[i].LineItems {
			item := &stmts[i].LineItems[j]
			values[valueKey{stmts[i].ID, item.DisplayLabel()}] = item.DisplayValue()
		}
	}

	row := 2
	for i := range template.LineItems {
		item := &template.LineItems[i]
		label := strings.Repeat("  ", item.IndentLevel) + item.DisplayLabel()

		labelStyle := 0
		if item.IsTotal {
			labelStyle = totalLabelStyle
		}
		if err := setCell(1, row, label, labelStyle); err != nil {
			return err
		}
		if len(label) > widths[0] {
			widths[0] = len(label)
		}

		for si := range stmts {
			style := valueStyle
			if item.IsTotal {
				style = totalValueStyle
			}
			val := values[valueKey{stmts[si].ID, item.DisplayLabel()}]
			if val == nil {
				cell, err := excelize.CoordinatesToCellName(si+2, row)
				if err != nil {
					return err
				}
				if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
					return err
				}
				continue
			}
			if err := setCell(si+2, row, *val, style); err != nil {
				return err
			}
		}
		row++
	}

	if footnote := footnoteFor(stmts); footnote != "" {
		if err := setCell(1, row+1, footnote, 0); err != nil {
			return err
		}
	}

	for col, w := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		width := w + 4
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(sheet, name, name, float64(width)); err != nil {
			return err
		}
	}

	return nil
}

// footnoteFor reports the first currency and unit seen across the
// sheet's statements.
func footnoteFor(stmts []domain.FinancialStatement) string {
	var parts []string
	for i := range stmts {
		if stmts[i].Currency != nil && *stmts[i].Currency != "" {
			parts = append(parts, "Currency: "+*stmts[i].Currency)
			break
		}
	}
	for i := range stmts {
		if stmts[i].Unit != nil && *stmts[i].Unit != "" {
			parts = append(parts, "Unit: "+*stmts[i].Unit)
			break
		}
	}
	return strings.Join(parts, " | ")
}
