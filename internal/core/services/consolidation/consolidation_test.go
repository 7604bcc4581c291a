package consolidation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

// mockRepository serves statements from memory
type mockRepository struct {
	mu         sync.Mutex
	statements map[uuid.UUID]*domain.FinancialStatement
	byInvest   map[uuid.UUID][]uuid.UUID
	canonical  map[uuid.UUID]*string
	deleted    []uuid.UUID
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		statements: make(map[uuid.UUID]*domain.FinancialStatement),
		byInvest:   make(map[uuid.UUID][]uuid.UUID),
		canonical:  make(map[uuid.UUID]*string),
	}
}

func (m *mockRepository) add(investmentID uuid.UUID, stmt domain.FinancialStatement) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stmt.ID == uuid.Nil {
		stmt.ID = uuid.New()
	}
	for i := range stmt.LineItems {
		if stmt.LineItems[i].ID == uuid.Nil {
			stmt.LineItems[i].ID = uuid.New()
		}
	}
	stmt.InvestmentID = &investmentID
	m.statements[stmt.ID] = &stmt
	m.byInvest[investmentID] = append(m.byInvest[investmentID], stmt.ID)
	return stmt.ID
}

func (m *mockRepository) GetStatementWithItems(ctx context.Context, statementID uuid.UUID) (*domain.FinancialStatement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stmt, ok := m.statements[statementID]
	if !ok {
		return nil, apperrors.RecordNotFound("financial statement")
	}
	copied := *stmt
	return &copied, nil
}

func (m *mockRepository) ListStatementsForInvestment(ctx context.Context, investmentID uuid.UUID) ([]domain.FinancialStatement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FinancialStatement
	for _, id := range m.byInvest[investmentID] {
		if stmt, ok := m.statements[id]; ok {
			out = append(out, *stmt)
		}
	}
	return out, nil
}

func (m *mockRepository) SaveCanonicalLabels(ctx context.Context, items []domain.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		m.canonical[item.ID] = item.CanonicalLabel
	}
	return nil
}

func (m *mockRepository) DeleteStatements(ctx context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.statements, id)
		m.deleted = append(m.deleted, id)
	}
	return nil
}

// mockCache is a TTL-less in-memory consolidation cache
type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, apperrors.RecordNotFound("key")
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.([]byte)
	return nil
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string     { return &s }

func TestNormalizeLabel_Matches(t *testing.T) {
	tests := []struct {
		raw       string
		canonical string
	}{
		{"Total Revenues", "Total Revenue"},
		{"Revenue", "Revenue"},
		{"Net sales", "Revenue"},
		{"Cost of Goods Sold", "Cost of Revenue"},
		{"  gross profit  ", "Gross Profit"},
		{"Net income (loss)", "Net Income"},
		{"Cash and cash equivalents", "Cash & Cash Equivalents"},
		{"Net cash provided by operating activities", "Cash from Operating Activities"},
		{"Dépréciation", "Depreciation & Amortization"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			canonical, ok := NormalizeLabel(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.canonical, canonical)
		})
	}
}

func TestNormalizeLabel_LongestMatchWins(t *testing.T) {
	// "total revenue" (13 chars) beats "revenue" (7 chars)
	canonical, ok := NormalizeLabel("Total revenue for the year")
	require.True(t, ok)
	assert.Equal(t, "Total Revenue", canonical)
}

func TestNormalizeLabel_NoMatch(t *testing.T) {
	_, ok := NormalizeLabel("Miscellaneous line")
	assert.False(t, ok)
}

func TestNormalizer_NormalizeStatement(t *testing.T) {
	repo := newMockRepository()
	investmentID := uuid.New()
	edited := "Total Revenues"
	stmtID := repo.add(investmentID, domain.FinancialStatement{
		StatementType: domain.StatementTypeIncome,
		Period:        "Q1 2024",
		LineItems: []domain.LineItem{
			{Label: "Revenues", EditedLabel: &edited},
			{Label: "Cost of goods sold"},
			{Label: "Sundry items"},
		},
	})

	normalizer := NewNormalizer(repo, nil)
	count, err := normalizer.NormalizeStatement(context.Background(), stmtID)

	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The edited label drives normalization, not the extracted one
	stmt := repo.statements[stmtID]
	assert.Equal(t, "Total Revenue", *repo.canonical[stmt.LineItems[0].ID])
	assert.Equal(t, "Cost of Revenue", *repo.canonical[stmt.LineItems[1].ID])
	_, sundrySaved := repo.canonical[stmt.LineItems[2].ID]
	assert.False(t, sundrySaved)
}

func TestNormalizer_NormalizeInvestment(t *testing.T) {
	repo := newMockRepository()
	investmentID := uuid.New()
	repo.add(investmentID, domain.FinancialStatement{
		StatementType: domain.StatementTypeIncome,
		Period:        "Q1 2024",
		LineItems:     []domain.LineItem{{Label: "Revenue"}, {Label: "Net income"}},
	})
	repo.add(investmentID, domain.FinancialStatement{
		StatementType: domain.StatementTypeBalance,
		Period:        "Q1 2024",
		LineItems:     []domain.LineItem{{Label: "Total assets"}},
	})

	normalizer := NewNormalizer(repo, nil)
	total, err := normalizer.NormalizeInvestment(context.Background(), investmentID)

	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func incomeStatement(period string, items ...domain.LineItem) domain.FinancialStatement {
	return domain.FinancialStatement{
		StatementType: domain.StatementTypeIncome,
		Period:        period,
		LineItems:     items,
	}
}

func TestAlign_PeriodsAndRows(t *testing.T) {
	statements := []domain.FinancialStatement{
		incomeStatement("Q1 2023",
			domain.LineItem{Label: "Revenue", CanonicalLabel: strPtr("Revenue"), Value: floatPtr(100)},
			domain.LineItem{Label: "Net income", CanonicalLabel: strPtr("Net Income"), Value: floatPtr(10), IsTotal: true},
		),
		incomeStatement("Q2 2023",
			domain.LineItem{Label: "Revenue", CanonicalLabel: strPtr("Revenue"), Value: floatPtr(120)},
			domain.LineItem{Label: "Operating costs", Value: floatPtr(80)},
		),
	}

	result := Align(statements)

	assert.Equal(t, []string{"Q1 2023", "Q2 2023"}, result.Periods)
	require.Len(t, result.Rows, 3)

	rows := make(map[string]AlignedRow)
	for _, r := range result.Rows {
		rows[r.CanonicalLabel] = r
	}

	assert.Equal(t, 100.0, *rows["Revenue"].Values["Q1 2023"])
	assert.Equal(t, 120.0, *rows["Revenue"].Values["Q2 2023"])

	// A label absent from a period leaves no entry for that period
	_, present := rows["Operating costs"].Values["Q1 2023"]
	assert.False(t, present)
	assert.Equal(t, 80.0, *rows["Operating costs"].Values["Q2 2023"])

	assert.True(t, rows["Net Income"].IsTotal)
}

func TestAlign_PresentKeyMayHoldNil(t *testing.T) {
	statements := []domain.FinancialStatement{
		incomeStatement("Q1 2023",
			domain.LineItem{Label: "Revenue", Value: nil},
		),
	}

	result := Align(statements)

	require.Len(t, result.Rows, 1)
	value, present := result.Rows[0].Values["Q1 2023"]
	assert.True(t, present)
	assert.Nil(t, value)
}

func TestAlign_RowKeyFallbackChain(t *testing.T) {
	statements := []domain.FinancialStatement{
		incomeStatement("Q1 2023",
			domain.LineItem{Label: "Rev.", EditedLabel: strPtr("Revenue (edited)"), CanonicalLabel: strPtr("Revenue"), Value: floatPtr(1)},
			domain.LineItem{Label: "Costs raw", EditedLabel: strPtr("Costs edited"), Value: floatPtr(2)},
			domain.LineItem{Label: "Other raw", Value: floatPtr(3)},
		),
	}

	result := Align(statements)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, "Revenue", result.Rows[0].CanonicalLabel)
	assert.Equal(t, "Costs edited", result.Rows[1].CanonicalLabel)
	assert.Equal(t, "Other raw", result.Rows[2].CanonicalLabel)
}

func TestAlign_EditedValuePreferred(t *testing.T) {
	statements := []domain.FinancialStatement{
		incomeStatement("Q1 2023",
			domain.LineItem{Label: "Revenue", Value: floatPtr(100), EditedValue: floatPtr(150)},
		),
	}

	result := Align(statements)

	assert.Equal(t, 150.0, *result.Rows[0].Values["Q1 2023"])
}

func TestAlign_FiscalPeriodLabelPreferred(t *testing.T) {
	stmt := incomeStatement("three months ended 2023-03-31",
		domain.LineItem{Label: "Revenue", Value: floatPtr(100)})
	stmt.FiscalPeriodLabel = strPtr("Q1 2023")

	result := Align([]domain.FinancialStatement{stmt})

	assert.Equal(t, []string{"Q1 2023"}, result.Periods)
}

func TestAlign_Empty(t *testing.T) {
	result := Align(nil)

	assert.Empty(t, result.Periods)
	assert.Empty(t, result.Rows)
}

func TestAggregator_BuildComparisonDataset(t *testing.T) {
	repo := newMockRepository()
	investmentID := uuid.New()
	repo.add(investmentID, incomeStatement("Q1 2023",
		domain.LineItem{Label: "Revenue", CanonicalLabel: strPtr("Revenue"), Value: floatPtr(100)}))
	balance := domain.FinancialStatement{
		StatementType: domain.StatementTypeBalance,
		Period:        "Q1 2023",
		LineItems: []domain.LineItem{
			{Label: "Total assets", CanonicalLabel: strPtr("Total Assets"), Value: floatPtr(500)},
		},
	}
	repo.add(investmentID, balance)

	aggregator := NewAggregator(repo, nil, nil)
	dataset, err := aggregator.BuildComparisonDataset(context.Background(), investmentID)

	require.NoError(t, err)
	assert.Equal(t, investmentID, dataset.InvestmentID)
	assert.Contains(t, dataset.StatementTypes, domain.StatementTypeIncome)
	assert.Contains(t, dataset.StatementTypes, domain.StatementTypeBalance)
	assert.NotContains(t, dataset.StatementTypes, domain.StatementTypeCashFlow)
	assert.Equal(t, 100.0, *dataset.NormalizedMetrics["Revenue"]["Q1 2023"])
	assert.Equal(t, 500.0, *dataset.NormalizedMetrics["Total Assets"]["Q1 2023"])
}

func TestAggregator_CacheRoundTrip(t *testing.T) {
	repo := newMockRepository()
	cache := newMockCache()
	investmentID := uuid.New()
	repo.add(investmentID, incomeStatement("Q1 2023",
		domain.LineItem{Label: "Revenue", Value: floatPtr(100)}))

	aggregator := NewAggregator(repo, cache, nil)

	first, err := aggregator.BuildComparisonDataset(context.Background(), investmentID)
	require.NoError(t, err)
	assert.Len(t, cache.data, 1)

	// Mutate the store; the cached dataset must still be served
	repo.add(investmentID, incomeStatement("Q2 2023",
		domain.LineItem{Label: "Revenue", Value: floatPtr(200)}))

	second, err := aggregator.BuildComparisonDataset(context.Background(), investmentID)
	require.NoError(t, err)
	assert.Equal(t, first.StatementTypes[domain.StatementTypeIncome].Periods,
		second.StatementTypes[domain.StatementTypeIncome].Periods)

	require.NoError(t, aggregator.InvalidateInvestment(context.Background(), investmentID))

	third, err := aggregator.BuildComparisonDataset(context.Background(), investmentID)
	require.NoError(t, err)
	assert.Len(t, third.StatementTypes[domain.StatementTypeIncome].Periods, 2)
}

func TestAggregator_MergeDuplicateStatements(t *testing.T) {
	repo := newMockRepository()
	investmentID := uuid.New()
	keeperID := repo.add(investmentID, incomeStatement("Q1 2023",
		domain.LineItem{Label: "A"}, domain.LineItem{Label: "B"}, domain.LineItem{Label: "C"}))
	doomedID := repo.add(investmentID, incomeStatement("Q1 2023",
		domain.LineItem{Label: "A"}))
	otherID := repo.add(investmentID, incomeStatement("Q2 2023",
		domain.LineItem{Label: "A"}))

	aggregator := NewAggregator(repo, nil, nil)
	removed, err := aggregator.MergeDuplicateStatements(context.Background(), investmentID)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []uuid.UUID{doomedID}, repo.deleted)
	assert.Contains(t, repo.statements, keeperID)
	assert.Contains(t, repo.statements, otherID)
}

func TestAggregator_MergeDuplicateStatements_NoDuplicates(t *testing.T) {
	repo := newMockRepository()
	investmentID := uuid.New()
	repo.add(investmentID, incomeStatement("Q1 2023", domain.LineItem{Label: "A"}))

	aggregator := NewAggregator(repo, nil, nil)
	removed, err := aggregator.MergeDuplicateStatements(context.Background(), investmentID)

	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Empty(t, repo.deleted)
}
