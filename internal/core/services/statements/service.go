package statements

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
)

// Repository is the read/delete contract for persisted statements
type Repository interface {
	GetStatementWithItems(ctx context.Context, statementID uuid.UUID) (*domain.FinancialStatement, error)

	// ListForDocument returns a document's statements ordered by
	// statement type then period, line items in sort order.
	ListForDocument(ctx context.Context, documentID uuid.UUID) ([]domain.FinancialStatement, error)

	// ListForInvestment returns statements mapped to an investment,
	// ordered by reporting date (newest first) then statement type.
	ListForInvestment(ctx context.Context, investmentID uuid.UUID) ([]domain.FinancialStatement, error)

	SaveStatement(ctx context.Context, stmt *domain.FinancialStatement) error

	// DeleteAllForDocument removes the document's financial data as an
	// ordered cascade: edit logs, line items, statements, parse jobs.
	DeleteAllForDocument(ctx context.Context, documentID uuid.UUID) error
}

// DocumentRepository looks up documents owned elsewhere in the system
type DocumentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
}

// InvestmentRepository validates investment mappings
type InvestmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error)
}

// Invalidator drops derived comparison data after a mutation
type Invalidator interface {
	InvalidateInvestment(ctx context.Context, investmentID uuid.UUID) error
}

// MappingSuggestion is a candidate investment for a statement
type MappingSuggestion struct {
	InvestmentID   uuid.UUID `json:"investment_id"`
	InvestmentName string    `json:"investment_name"`
	Confidence     string    `json:"confidence"`
	Reason         string    `json:"reason"`
}

// MappingSuggestions is the suggest-mapping response
type MappingSuggestions struct {
	Suggestions   []MappingSuggestion `json:"suggestions"`
	Period        string              `json:"period"`
	PeriodEndDate *string             `json:"period_end_date,omitempty"`
}

// Service exposes statement reads, deletion and investment mapping
type Service struct {
	repo        Repository
	documents   DocumentRepository
	investments InvestmentRepository
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService creates a new statements service. invalidator may be nil.
func NewService(repo Repository, documents DocumentRepository, investments InvestmentRepository, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:        repo,
		documents:   documents,
		investments: investments,
		invalidator: invalidator,
		logger:      logger,
	}
}

// ListForDocument returns every statement extracted from a document
func (s *Service) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]domain.FinancialStatement, error) {
	return s.repo.ListForDocument(ctx, documentID)
}

// Get returns one statement with its line items in sort order
func (s *Service) Get(ctx context.Context, statementID uuid.UUID) (*domain.FinancialStatement, error) {
	return s.repo.GetStatementWithItems(ctx, statementID)
}

// ListForInvestment returns statements mapped to an investment
func (s *Service) ListForInvestment(ctx context.Context, investmentID uuid.UUID) ([]domain.FinancialStatement, error) {
	return s.repo.ListForInvestment(ctx, investmentID)
}

// DeleteFinancials removes all parsed financial data for a document
func (s *Service) DeleteFinancials(ctx context.Context, documentID uuid.UUID) error {
	if err := s.repo.DeleteAllForDocument(ctx, documentID); err != nil {
		return err
	}

	s.logger.Info("financial data deleted", slog.String("document_id", documentID.String()))
	return nil
}

// MapToInvestment binds a statement to an investment for cross-period
// analysis. The binding is analytical and independent of the
// document's own ownership.
func (s *Service) MapToInvestment(ctx context.Context, statementID, investmentID uuid.UUID, reportingDate, fiscalPeriodLabel *string) (*domain.FinancialStatement, error) {
	stmt, err := s.repo.GetStatementWithItems(ctx, statementID)
	if err != nil {
		return nil, err
	}

	if _, err := s.investments.GetByID(ctx, investmentID); err != nil {
		return nil, err
	}

	previous := stmt.InvestmentID
	stmt.InvestmentID = &investmentID
	stmt.ReportingDate = reportingDate
	stmt.FiscalPeriodLabel = fiscalPeriodLabel
	if err := s.repo.SaveStatement(ctx, stmt); err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateInvestment(ctx, investmentID); err != nil {
			s.logger.Warn("failed to invalidate comparison cache", slog.Any("error", err))
		}
		if previous != nil && *previous != investmentID {
			if err := s.invalidator.InvalidateInvestment(ctx, *previous); err != nil {
				s.logger.Warn("failed to invalidate comparison cache", slog.Any("error", err))
			}
		}
	}

	s.logger.Info("statement mapped to investment",
		slog.String("statement_id", statementID.String()),
		slog.String("investment_id", investmentID.String()))

	return stmt, nil
}

// SuggestMapping proposes an investment for a statement. The document
// already belongs to an investment, which makes it the high-confidence
// candidate.
func (s *Service) SuggestMapping(ctx context.Context, statementID uuid.UUID) (*MappingSuggestions, error) {
	stmt, err := s.repo.GetStatementWithItems(ctx, statementID)
	if err != nil {
		return nil, err
	}

	result := &MappingSuggestions{
		Suggestions:   []MappingSuggestion{},
		Period:        stmt.Period,
		PeriodEndDate: stmt.PeriodEndDate,
	}

	doc, err := s.documents.GetByID(ctx, stmt.DocumentID)
	if err != nil {
		return result, nil
	}

	if inv, err := s.investments.GetByID(ctx, doc.InvestmentID); err == nil {
		result.Suggestions = append(result.Suggestions, MappingSuggestion{
			InvestmentID:   inv.ID,
			InvestmentName: inv.InvestmentName,
			Confidence:     "high",
			Reason:         "Document belongs to this investment",
		})
	}

	return result, nil
}
