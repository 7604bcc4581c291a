package consolidation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
)

const comparisonCacheTTL = 5 * time.Minute

// Aggregator groups statements by type and period and aligns their
// line items into comparable rows and columns.
type Aggregator struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
}

// NewAggregator creates a new aggregation engine. cache may be nil.
func NewAggregator(repo Repository, cache Cache, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// GroupByTypeAndPeriod returns the investment's statements grouped by
// statement type, each group in insertion order.
func (a *Aggregator) GroupByTypeAndPeriod(ctx context.Context, investmentID uuid.UUID) (map[string][]domain.FinancialStatement, error) {
	statements, err := a.repo.ListStatementsForInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]domain.FinancialStatement)
	for _, stmt := range statements {
		groups[stmt.StatementType] = append(groups[stmt.StatementType], stmt)
	}
	return groups, nil
}

// periodLabel prefers the analytical fiscal period label over the
// period as extracted.
func periodLabel(stmt *domain.FinancialStatement) string {
	if stmt.FiscalPeriodLabel != nil && *stmt.FiscalPeriodLabel != "" {
		return *stmt.FiscalPeriodLabel
	}
	return stmt.Period
}

// Align builds a period-comparison table for statements of one type.
// Columns are distinct period labels in first-seen order. Rows are
// keyed canonical_label, then edited_label, then label; the first
// occurrence of a key fixes the row's metadata. A statement that lacks
// a key contributes no entry for its period.
func Align(statements []domain.FinancialStatement) AlignedResult {
	result := AlignedResult{Periods: []string{}, Rows: []AlignedRow{}}
	if len(statements) == 0 {
		return result
	}

	seenPeriod := make(map[string]bool)
	for i := range statements {
		label := periodLabel(&statements[i])
		if !seenPeriod[label] {
			seenPeriod[label] = true
			result.Periods = append(result.Periods, label)
		}
	}

	rowIndex := make(map[string]int)
	for i := range statements {
		stmt := &statements[i]
		period := periodLabel(stmt)
		for j := range stmt.LineItems {
			item := &stmt.LineItems[j]
			key := rowKey(item)

			idx, ok := rowIndex[key]
			if !ok {
				idx = len(result.Rows)
				rowIndex[key] = idx
				result.Rows = append(result.Rows, AlignedRow{
					CanonicalLabel: key,
					Category:       item.Category,
					IsTotal:        item.IsTotal,
					IndentLevel:    item.IndentLevel,
					Values:         make(map[string]*float64),
				})
			}
			result.Rows[idx].Values[period] = item.DisplayValue()
		}
	}

	return result
}

// rowKey is the alignment fallback chain: canonical label, reviewer
// override, extracted label.
func rowKey(item *domain.LineItem) string {
	if item.CanonicalLabel != nil && *item.CanonicalLabel != "" {
		return *item.CanonicalLabel
	}
	if item.EditedLabel != nil && *item.EditedLabel != "" {
		return *item.EditedLabel
	}
	return item.Label
}

// BuildComparisonDataset aligns every statement type for an investment
// and flattens the rows into one label → period → value metric map.
// When a label appears under several statement types, the later
// processed type wins for overlapping periods; types are processed in
// the fixed enum order so the outcome is deterministic.
func (a *Aggregator) BuildComparisonDataset(ctx context.Context, investmentID uuid.UUID) (*ComparisonDataset, error) {
	if cached := a.fromCache(ctx, investmentID); cached != nil {
		return cached, nil
	}

	groups, err := a.GroupByTypeAndPeriod(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	dataset := &ComparisonDataset{
		InvestmentID:      investmentID,
		StatementTypes:    make(map[string]AlignedResult),
		NormalizedMetrics: make(map[string]map[string]*float64),
	}

	for _, stmtType := range domain.ValidStatementTypes() {
		stmts, ok := groups[stmtType]
		if !ok {
			continue
		}
		aligned := Align(stmts)
		dataset.StatementTypes[stmtType] = aligned

		for _, row := range aligned.Rows {
			metrics, ok := dataset.NormalizedMetrics[row.CanonicalLabel]
			if !ok {
				metrics = make(map[string]*float64)
				dataset.NormalizedMetrics[row.CanonicalLabel] = metrics
			}
			for period, value := range row.Values {
				metrics[period] = value
			}
		}
	}

	a.toCache(ctx, investmentID, dataset)
	return dataset, nil
}

// MergeDuplicateStatements deduplicates persisted statements mapped to
// an investment that share (type, period), keeping the one with the
// most line items. Returns the number of statements removed.
func (a *Aggregator) MergeDuplicateStatements(ctx context.Context, investmentID uuid.UUID) (int, error) {
	statements, err := a.repo.ListStatementsForInvestment(ctx, investmentID)
	if err != nil {
		return 0, err
	}

	type key struct{ stmtType, period string }
	byKey := make(map[key][]domain.FinancialStatement)
	var order []key
	for _, stmt := range statements {
		k := key{stmtType: stmt.StatementType, period: stmt.Period}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], stmt)
	}

	var doomed []uuid.UUID
	for _, k := range order {
		group := byKey[k]
		if len(group) <= 1 {
			continue
		}
		keeper := 0
		for i := 1; i < len(group); i++ {
			if len(group[i].LineItems) > len(group[keeper].LineItems) {
				keeper = i
			}
		}
		for i := range group {
			if i != keeper {
				doomed = append(doomed, group[i].ID)
			}
		}
	}

	if len(doomed) == 0 {
		return 0, nil
	}

	if err := a.repo.DeleteStatements(ctx, doomed); err != nil {
		return 0, err
	}

	a.logger.Info("merged duplicate statements",
		slog.String("investment_id", investmentID.String()),
		slog.Int("removed", len(doomed)))

	if err := a.InvalidateInvestment(ctx, investmentID); err != nil {
		a.logger.Warn("failed to invalidate comparison cache", slog.Any("error", err))
	}

	return len(doomed), nil
}

// InvalidateInvestment drops the cached comparison dataset after a
// mutation to the investment's statements or line items.
func (a *Aggregator) InvalidateInvestment(ctx context.Context, investmentID uuid.UUID) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Delete(ctx, comparisonCacheKey(investmentID))
}

func comparisonCacheKey(investmentID uuid.UUID) string {
	return fmt.Sprintf("financials:comparison:%s", investmentID)
}

func (a *Aggregator) fromCache(ctx context.Context, investmentID uuid.UUID) *ComparisonDataset {
	if a.cache == nil {
		return nil
	}
	data, err := a.cache.GetBytes(ctx, comparisonCacheKey(investmentID))
	if err != nil || len(data) == 0 {
		return nil
	}
	var dataset ComparisonDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		a.logger.Warn("invalid cached comparison dataset",
			slog.String("investment_id", investmentID.String()),
			slog.Any("error", err))
		return nil
	}
	return &dataset
}

func (a *Aggregator) toCache(ctx context.Context, investmentID uuid.UUID, dataset *ComparisonDataset) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(dataset)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, comparisonCacheKey(investmentID), data, comparisonCacheTTL); err != nil {
		a.logger.Warn("failed to cache comparison dataset",
			slog.String("investment_id", investmentID.String()),
			slog.Any("error", err))
	}
}
