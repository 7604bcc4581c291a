package consolidation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
)

// Repository is the persistence contract for the consolidation engines
type Repository interface {
	// GetStatementWithItems loads a statement and its line items in
	// sort order.
	GetStatementWithItems(ctx context.Context, statementID uuid.UUID) (*domain.FinancialStatement, error)

	// ListStatementsForInvestment returns statements mapped to the
	// investment, line items loaded, ordered by statement type and
	// insertion order.
	ListStatementsForInvestment(ctx context.Context, investmentID uuid.UUID) ([]domain.FinancialStatement, error)

	// SaveCanonicalLabels persists canonical_label for the given items
	SaveCanonicalLabels(ctx context.Context, items []domain.LineItem) error

	// DeleteStatements removes statements and, by cascade, their line
	// items and edit logs.
	DeleteStatements(ctx context.Context, ids []uuid.UUID) error
}

// Cache stores computed comparison datasets. Implementations may be
// nil-safe absent; the aggregator treats a missing cache as a miss.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// AlignedRow is one canonical line item's values indexed by period
// label. A period key is present exactly when the owning statement
// contains the row's label; a present key may still hold a nil value.
type AlignedRow struct {
	CanonicalLabel string              `json:"canonical_label"`
	Category       string              `json:"category"`
	IsTotal        bool                `json:"is_total"`
	IndentLevel    int                 `json:"indent_level"`
	Values         map[string]*float64 `json:"values"`
}

// AlignedResult is a period-comparison table for one statement type
type AlignedResult struct {
	Periods []string     `json:"periods"`
	Rows    []AlignedRow `json:"rows"`
}

// ComparisonDataset is the full cross-statement-type comparison view
// for an investment.
type ComparisonDataset struct {
	InvestmentID      uuid.UUID                      `json:"investment_id"`
	StatementTypes    map[string]AlignedResult       `json:"statement_types"`
	NormalizedMetrics map[string]map[string]*float64 `json:"normalized_metrics"`
}
