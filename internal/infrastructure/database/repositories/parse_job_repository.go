package repositories

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

// ParseJobRepository implements the parse job persistence contract
// using GORM.
type ParseJobRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewParseJobRepository creates a new repository instance
func NewParseJobRepository(db *gorm.DB, logger *slog.Logger) *ParseJobRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &ParseJobRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new parse job
func (r *ParseJobRepository) Create(ctx context.Context, job *domain.ParseJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		r.logger.Error("failed to create parse job",
			slog.String("document_id", job.DocumentID.String()),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}
	return nil
}

// GetByID fetches a job by primary key
func (r *ParseJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ParseJob, error) {
	var job domain.ParseJob
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("parse job")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &job, nil
}

// LatestForDocument returns the most recent job for a document, or nil
// when the document was never parsed.
func (r *ParseJobRepository) LatestForDocument(ctx context.Context, documentID uuid.UUID) (*domain.ParseJob, error) {
	var job domain.ParseJob
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		First(&job).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &job, nil
}

// HasActiveJob reports whether a pending or processing job exists for
// the document.
func (r *ParseJobRepository) HasActiveJob(ctx context.Context, documentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ParseJob{}).
		Where("document_id = ? AND status IN ?", documentID, domain.ActiveJobStatuses()).
		Count(&count).
		Error
	if err != nil {
		return false, apperrors.DatabaseError(err)
	}
	return count > 0, nil
}

// IncrementCompletedChunks atomically bumps the progress counter
func (r *ParseJobRepository) IncrementCompletedChunks(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&domain.ParseJob{}).
		Where("id = ?", id).
		UpdateColumn("completed_chunks", gorm.Expr("completed_chunks + ?", 1)).
		Error
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// MarkCompleted moves a job to the completed terminal state. A non-nil
// errorMessage records partial chunk failures that the run tolerated.
func (r *ParseJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, errorMessage *string) error {
	updates := map[string]interface{}{
		"status":        domain.JobStatusCompleted,
		"error_message": errorMessage,
	}
	err := r.db.WithContext(ctx).
		Model(&domain.ParseJob{}).
		Where("id = ?", id).
		Updates(updates).
		Error
	if err != nil {
		r.logger.Error("failed to mark job completed",
			slog.String("job_id", id.String()),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}
	return nil
}

// MarkFailed moves a job to the failed terminal state
func (r *ParseJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	updates := map[string]interface{}{
		"status":        domain.JobStatusFailed,
		"error_message": errorMessage,
	}
	err := r.db.WithContext(ctx).
		Model(&domain.ParseJob{}).
		Where("id = ?", id).
		Updates(updates).
		Error
	if err != nil {
		r.logger.Error("failed to mark job failed",
			slog.String("job_id", id.String()),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}
	return nil
}
