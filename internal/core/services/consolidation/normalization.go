package consolidation

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
)

// labelPattern maps a lowercase substring to a canonical metric name.
// Registration order matters: among equally long matches the earliest
// registered pattern wins.
type labelPattern struct {
	pattern   string
	canonical string
}

var labelPatterns = []labelPattern{
	// Income statement
	{"total revenue", "Total Revenue"},
	{"net revenue", "Total Revenue"},
	{"revenue", "Revenue"},
	{"sales", "Revenue"},
	{"net sales", "Revenue"},
	{"cost of revenue", "Cost of Revenue"},
	{"cost of goods sold", "Cost of Revenue"},
	{"cost of sales", "Cost of Revenue"},
	{"cogs", "Cost of Revenue"},
	{"gross profit", "Gross Profit"},
	{"gross margin", "Gross Profit"},
	{"research and development", "Research & Development"},
	{"r&d", "Research & Development"},
	{"selling, general", "Selling, General & Administrative"},
	{"sg&a", "Selling, General & Administrative"},
	{"selling general and administrative", "Selling, General & Administrative"},
	{"operating expense", "Operating Expenses"},
	{"total operating expense", "Total Operating Expenses"},
	{"operating income", "Operating Income"},
	{"income from operations", "Operating Income"},
	{"interest expense", "Interest Expense"},
	{"interest income", "Interest Income"},
	{"other income", "Other Income/Expense"},
	{"other expense", "Other Income/Expense"},
	{"income before", "Income Before Tax"},
	{"pretax income", "Income Before Tax"},
	{"provision for income tax", "Income Tax Expense"},
	{"income tax expense", "Income Tax Expense"},
	{"income tax", "Income Tax Expense"},
	{"net income", "Net Income"},
	{"net loss", "Net Income"},
	{"earnings per share", "Earnings Per Share"},
	{"basic eps", "Earnings Per Share (Basic)"},
	{"diluted eps", "Earnings Per Share (Diluted)"},
	{"depreciation and amortization", "Depreciation & Amortization"},
	{"depreciation", "Depreciation & Amortization"},
	{"ebitda", "EBITDA"},

	// Balance sheet
	{"cash and cash equivalents", "Cash & Cash Equivalents"},
	{"cash and equivalents", "Cash & Cash Equivalents"},
	{"short-term investments", "Short-term Investments"},
	{"marketable securities", "Short-term Investments"},
	{"accounts receivable", "Accounts Receivable"},
	{"inventories", "Inventory"},
	{"inventory", "Inventory"},
	{"total current assets", "Total Current Assets"},
	{"property, plant", "Property, Plant & Equipment"},
	{"property and equipment", "Property, Plant & Equipment"},
	{"goodwill", "Goodwill"},
	{"intangible assets", "Intangible Assets"},
	{"total assets", "Total Assets"},
	{"accounts payable", "Accounts Payable"},
	{"accrued", "Accrued Liabilities"},
	{"short-term debt", "Short-term Debt"},
	{"current portion of long-term debt", "Short-term Debt"},
	{"total current liabilities", "Total Current Liabilities"},
	{"long-term debt", "Long-term Debt"},
	{"total liabilities", "Total Liabilities"},
	{"common stock", "Common Stock"},
	{"retained earnings", "Retained Earnings"},
	{"accumulated deficit", "Retained Earnings"},
	{"treasury stock", "Treasury Stock"},
	{"total stockholders", "Total Stockholders' Equity"},
	{"total shareholders", "Total Stockholders' Equity"},
	{"total equity", "Total Stockholders' Equity"},
	{"total liabilities and stockholders", "Total Liabilities & Equity"},
	{"total liabilities and shareholders", "Total Liabilities & Equity"},
	{"total liabilities and equity", "Total Liabilities & Equity"},

	// Cash flow
	{"operating activities", "Cash from Operating Activities"},
	{"cash from operations", "Cash from Operating Activities"},
	{"net cash provided by operating", "Cash from Operating Activities"},
	{"capital expenditure", "Capital Expenditures"},
	{"purchases of property", "Capital Expenditures"},
	{"investing activities", "Cash from Investing Activities"},
	{"net cash used in investing", "Cash from Investing Activities"},
	{"financing activities", "Cash from Financing Activities"},
	{"net cash provided by financing", "Cash from Financing Activities"},
	{"net cash used in financing", "Cash from Financing Activities"},
	{"dividends paid", "Dividends Paid"},
	{"share repurchase", "Share Repurchases"},
	{"stock-based compensation", "Stock-based Compensation"},
	{"net change in cash", "Net Change in Cash"},
	{"net increase", "Net Change in Cash"},
	{"net decrease", "Net Change in Cash"},
	{"beginning cash", "Beginning Cash Balance"},
	{"cash at beginning", "Beginning Cash Balance"},
	{"ending cash", "Ending Cash Balance"},
	{"cash at end", "Ending Cash Balance"},
}

// foldAccents strips diacritics so labels from localized statements
// still hit the pattern table.
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeLabel matches a raw line-item label to a canonical metric
// name. The longest matching pattern wins; ties go to the earliest
// registered pattern. Pure: safe to re-apply, though an already
// canonical string may itself match nothing.
func NormalizeLabel(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if folded, _, err := transform.String(foldAccents, lower); err == nil {
		lower = folded
	}

	best := ""
	bestLen := 0
	for _, lp := range labelPatterns {
		if len(lp.pattern) > bestLen && strings.Contains(lower, lp.pattern) {
			best = lp.canonical
			bestLen = len(lp.pattern)
		}
	}
	return best, bestLen > 0
}

// Normalizer applies canonical labels to persisted line items
type Normalizer struct {
	repo   Repository
	logger *slog.Logger
}

// NewNormalizer creates a new normalization engine
func NewNormalizer(repo Repository, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Normalizer{
		repo:   repo,
		logger: logger,
	}
}

// NormalizeStatement writes canonical labels onto every line item of a
// statement, using the display label (edited when present) as the
// normalization input. Returns the count of items that matched.
func (n *Normalizer) NormalizeStatement(ctx context.Context, statementID uuid.UUID) (int, error) {
	stmt, err := n.repo.GetStatementWithItems(ctx, statementID)
	if err != nil {
		return 0, err
	}

	count := 0
	var changed []domain.LineItem
	for _, item := range stmt.LineItems {
		canonical, ok := NormalizeLabel(item.DisplayLabel())
		if !ok {
			continue
		}
		item.CanonicalLabel = &canonical
		changed = append(changed, item)
		count++
	}

	if len(changed) > 0 {
		if err := n.repo.SaveCanonicalLabels(ctx, changed); err != nil {
			return 0, err
		}
	}

	n.logger.Debug("statement normalized",
		slog.String("statement_id", statementID.String()),
		slog.Int("matched", count),
		slog.Int("total", len(stmt.LineItems)))

	return count, nil
}

// NormalizeInvestment normalizes every statement mapped to an
// investment and returns the total matched item count.
func (n *Normalizer) NormalizeInvestment(ctx context.Context, investmentID uuid.UUID) (int, error) {
	statements, err := n.repo.ListStatementsForInvestment(ctx, investmentID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, stmt := range statements {
		count, err := n.NormalizeStatement(ctx, stmt.ID)
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}
