package review

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

// StatementRepository is the persistence contract for the review
// workflow.
type StatementRepository interface {
	GetStatement(ctx context.Context, id uuid.UUID) (*domain.FinancialStatement, error)
	SaveStatement(ctx context.Context, stmt *domain.FinancialStatement) error
	GetLineItem(ctx context.Context, id uuid.UUID) (*domain.LineItem, error)

	// ApplyEdit saves the line item and appends its audit rows in one
	// transaction. Either both land or neither does.
	ApplyEdit(ctx context.Context, item *domain.LineItem, entries []domain.EditLog) error
}

// EditLogRepository reads the append-only audit trail
type EditLogRepository interface {
	// ListForLineItem returns a line item's audit rows newest-first
	ListForLineItem(ctx context.Context, lineItemID uuid.UUID) ([]domain.EditLog, error)
}

// Invalidator drops derived comparison data after a mutation
type Invalidator interface {
	InvalidateInvestment(ctx context.Context, investmentID uuid.UUID) error
}

// EditRequest carries reviewer overrides for a line item. Nil fields
// are left untouched.
type EditRequest struct {
	Label *string  `json:"edited_label,omitempty"`
	Value *float64 `json:"edited_value,omitempty"`
}

// Service implements the review, lock and line-item edit workflow
type Service struct {
	statements  StatementRepository
	editLogs    EditLogRepository
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService creates a new review service. invalidator may be nil.
func NewService(statements StatementRepository, editLogs EditLogRepository, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		statements:  statements,
		editLogs:    editLogs,
		invalidator: invalidator,
		logger:      logger,
	}
}

// SetReviewStatus moves a statement between the pending, reviewed and
// approved states. Any transition among the three is permitted unless
// the statement is locked.
func (s *Service) SetReviewStatus(ctx context.Context, statementID uuid.UUID, status string, reviewerID, notes *string) (*domain.FinancialStatement, error) {
	if !domain.IsValidReviewStatus(status) {
		return nil, apperrors.InvalidReviewStatus(status)
	}

	stmt, err := s.statements.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if stmt.Locked {
		return nil, apperrors.StatementLocked()
	}

	stmt.ReviewStatus = status
	stmt.ReviewerID = reviewerID
	stmt.ReviewNotes = notes
	if err := s.statements.SaveStatement(ctx, stmt); err != nil {
		return nil, err
	}

	s.logger.Info("review status updated",
		slog.String("statement_id", statementID.String()),
		slog.String("status", status))

	return stmt, nil
}

// Lock freezes a statement permanently. Locking flips the review
// status to approved; there is no unlock operation.
func (s *Service) Lock(ctx context.Context, statementID uuid.UUID) (*domain.FinancialStatement, error) {
	stmt, err := s.statements.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	stmt.Locked = true
	stmt.ReviewStatus = domain.ReviewStatusApproved
	if err := s.statements.SaveStatement(ctx, stmt); err != nil {
		return nil, err
	}

	s.logger.Info("statement locked", slog.String("statement_id", statementID.String()))
	return stmt, nil
}

// EditLineItem applies reviewer overrides to a line item. Each
// submitted field is compared against the item's current edited value;
// one audit row is written per field that actually changes, recording
// the prior effective value. Concurrent edits are last-write-wins.
func (s *Service) EditLineItem(ctx context.Context, lineItemID uuid.UUID, req EditRequest) (*domain.LineItem, error) {
	item, err := s.statements.GetLineItem(ctx, lineItemID)
	if err != nil {
		return nil, err
	}

	stmt, err := s.statements.GetStatement(ctx, item.StatementID)
	if err != nil {
		return nil, err
	}
	if stmt.Locked {
		return nil, apperrors.StatementLocked()
	}

	var entries []domain.EditLog

	if req.Label != nil && (item.EditedLabel == nil || *item.EditedLabel != *req.Label) {
		entries = append(entries, domain.EditLog{
			LineItemID: item.ID,
			Field:      domain.EditFieldLabel,
			OldValue:   item.DisplayLabel(),
			NewValue:   *req.Label,
		})
		item.EditedLabel = req.Label
	}

	if req.Value != nil && (item.EditedValue == nil || *item.EditedValue != *req.Value) {
		entries = append(entries, domain.EditLog{
			LineItemID: item.ID,
			Field:      domain.EditFieldValue,
			OldValue:   formatValue(item.DisplayValue()),
			NewValue:   formatValue(req.Value),
		})
		item.EditedValue = req.Value
	}

	if len(entries) == 0 {
		return item, nil
	}

	item.IsUserModified = true
	if err := s.statements.ApplyEdit(ctx, item, entries); err != nil {
		return nil, err
	}

	if s.invalidator != nil && stmt.InvestmentID != nil {
		if err := s.invalidator.InvalidateInvestment(ctx, *stmt.InvestmentID); err != nil {
			s.logger.Warn("failed to invalidate comparison cache", slog.Any("error", err))
		}
	}

	s.logger.Info("line item edited",
		slog.String("line_item_id", lineItemID.String()),
		slog.Int("fields_changed", len(entries)))

	return item, nil
}

// EditHistory returns a line item's audit trail, most recent first
func (s *Service) EditHistory(ctx context.Context, lineItemID uuid.UUID) ([]domain.EditLog, error) {
	if _, err := s.statements.GetLineItem(ctx, lineItemID); err != nil {
		return nil, err
	}
	return s.editLogs.ListForLineItem(ctx, lineItemID)
}

// formatValue renders a nullable numeric as audit text. Absent values
// are recorded as "None" so histories read the same across the stack.
func formatValue(v *float64) string {
	if v == nil {
		return "None"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
