package repositories

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

// EditLogRepository implements the append-only audit trail using GORM
type EditLogRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewEditLogRepository creates a new repository instance
func NewEditLogRepository(db *gorm.DB, logger *slog.Logger) *EditLogRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &EditLogRepository{
		db:     db,
		logger: logger,
	}
}

// ListForLineItem returns a line item's audit rows newest-first.
// Rows are written through StatementRepository.ApplyEdit and never
// updated or deleted outside the document-level cascade.
func (r *EditLogRepository) ListForLineItem(ctx context.Context, lineItemID uuid.UUID) ([]domain.EditLog, error) {
	var logs []domain.EditLog
	err := r.db.WithContext(ctx).
		Where("line_item_id = ?", lineItemID).
		Order("created_at DESC").
		Find(&logs).
		Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return logs, nil
}
