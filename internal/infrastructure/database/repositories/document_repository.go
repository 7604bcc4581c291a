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

// DocumentRepository provides read-only lookups of documents and
// investments owned by the wider platform.
type DocumentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDocumentRepository creates a new repository instance
func NewDocumentRepository(db *gorm.DB, logger *slog.Logger) *DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID fetches a document by primary key
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("document")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &doc, nil
}

// GetForInvestment fetches a document scoped to an investment. A
// document outside the investment is reported as not found.
func (r *DocumentRepository) GetForInvestment(ctx context.Context, documentID, investmentID uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).
		First(&doc, "id = ? AND investment_id = ?", documentID, investmentID).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("document")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &doc, nil
}

// InvestmentRepository provides read-only investment lookups
type InvestmentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewInvestmentRepository creates a new repository instance
func NewInvestmentRepository(db *gorm.DB, logger *slog.Logger) *InvestmentRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &InvestmentRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID fetches an investment by primary key
func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	var inv domain.Investment
	err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("investment")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &inv, nil
}
