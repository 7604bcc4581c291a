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

// StatementRepository implements statement persistence for the parse,
// review, consolidation and export workflows using GORM.
type StatementRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStatementRepository creates a new repository instance
func NewStatementRepository(db *gorm.DB, logger *slog.Logger) *StatementRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &StatementRepository{
		db:     db,
		logger: logger,
	}
}

func sortedLineItems(db *gorm.DB) *gorm.DB {
	return db.Order("line_items.sort_order ASC")
}

// GetStatement fetches a statement without its line items
func (r *StatementRepository) GetStatement(ctx context.Context, id uuid.UUID) (*domain.FinancialStatement, error) {
	var stmt domain.FinancialStatement
	err := r.db.WithContext(ctx).First(&stmt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("financial statement")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &stmt, nil
}

// GetStatementWithItems fetches a statement and its line items in sort
// order.
func (r *StatementRepository) GetStatementWithItems(ctx context.Context, id uuid.UUID) (*domain.FinancialStatement, error) {
	var stmt domain.FinancialStatement
	err := r.db.WithContext(ctx).
		Preload("LineItems", sortedLineItems).
		First(&stmt, "id = ?", id).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("financial statement")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &stmt, nil
}

// SaveStatement persists statement-level fields. Line items are saved
// through their own methods.
func (r *StatementRepository) SaveStatement(ctx context.Context, stmt *domain.FinancialStatement) error {
	err := r.db.WithContext(ctx).
		Omit("LineItems").
		Save(stmt).
		Error
	if err != nil {
		r.logger.Error("failed to save statement",
			slog.String("statement_id", stmt.ID.String()),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}
	return nil
}

// GetLineItem fetches a line item by primary key
func (r *StatementRepository) GetLineItem(ctx context.Context, id uuid.UUID) (*domain.LineItem, error) {
	var item domain.LineItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("line item")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &item, nil
}

// ApplyEdit saves a line item and appends its audit rows in one
// transaction, so the trail never records a change that was not
// applied.
func (r *StatementRepository) ApplyEdit(ctx context.Context, item *domain.LineItem, entries []domain.EditLog) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	})
	if err != nil {
		r.logger.Error("failed to apply line item edit",
			slog.String("line_item_id", item.ID.String()),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}
	return nil
}

// ListForDocument returns a document's statements ordered by statement
// type then period, line items loaded in sort order.
func (r *StatementRepository) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]domain.FinancialStatement, error) {
	var statements []domain.FinancialStatement
	err := r.db.WithContext(ctx).
		Preload("LineItems", sortedLineItems).
		Where("document_id = ?", documentID).
		Order("statement_type ASC, period ASC").
		Find(&statements).
		Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return statements, nil
}

// ListForInvestment returns statements mapped to an investment,
// newest reporting date first, line items loaded in sort order.
func (r *StatementRepository) ListForInvestment(ctx context.Context, investmentID uuid.UUID) ([]domain.FinancialStatement, error) {
	var statements []domain.FinancialStatement
	err := r.db.WithContext(ctx).
		Preload("LineItems", sortedLineItems).
		Where("investment_id = ?", investmentID).
		Order("reporting_date DESC, statement_type ASC").
		Find(&statements).
		Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return statements, nil
}

// ListStatementsForInvestment returns an investment's statements in
// statement type then creation order, for the consolidation engines.
func (r *StatementRepository) ListStatementsForInvestment(ctx context.Context, investmentID uuid.UUID) ([]domain.FinancialStatement, error) {
	var statements []domain.FinancialStatement
	err := r.db.WithContext(ctx).
		Preload("LineItems", sortedLineItems).
		Where("investment_id = ?", investmentID).
		Order("statement_type ASC, created_at ASC").
		Find(&statements).
		Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return statements, nil
}

// SaveCanonicalLabels persists canonical_label for the given items
func (r *StatementRepository) SaveCanonicalLabels(ctx context.Context, items []domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			err := tx.Model(&domain.LineItem{}).
				Where("id = ?", items[i].ID).
				UpdateColumn("canonical_label", items[i].CanonicalLabel).
				Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to save canonical labels",
			slog.Int("count", len(items)),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}
	return nil
}

// DeleteStatements removes statements with their line items and edit
// logs in one transaction.
func (r *StatementRepository) DeleteStatements(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteStatementRows(tx, ids)
	})
	if err != nil {
		r.logger.Error("failed to delete statements",
			slog.Int("count", len(ids)),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}
	return nil
}

// ReplaceForDocument deletes every prior statement for the document
// and inserts the new set, in one transaction. Re-parsing replaces,
// never merges.
func (r *StatementRepository) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, statements []domain.FinancialStatement) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []uuid.UUID
		err := tx.Model(&domain.FinancialStatement{}).
			Where("document_id = ?", documentID).
			Pluck("id", &existing).
			Error
		if err != nil {
			return err
		}
		if err := deleteStatementRows(tx, existing); err != nil {
			return err
		}

		for i := range statements {
			statements[i].DocumentID = documentID
			if err := tx.Create(&statements[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to replace statements",
			slog.String("document_id", documentID.String()),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}

	r.logger.Info("statements replaced",
		slog.String("document_id", documentID.String()),
		slog.Int("count", len(statements)))

	return nil
}

// DeleteAllForDocument removes the document's financial data as an
// ordered cascade: edit logs, line items, statements, parse jobs.
func (r *StatementRepository) DeleteAllForDocument(ctx context.Context, documentID uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []uuid.UUID
		err := tx.Model(&domain.FinancialStatement{}).
			Where("document_id = ?", documentID).
			Pluck("id", &existing).
			Error
		if err != nil {
			return err
		}
		if err := deleteStatementRows(tx, existing); err != nil {
			return err
		}

		return tx.Where("document_id = ?", documentID).
			Delete(&domain.ParseJob{}).
			Error
	})
	if err != nil {
		r.logger.Error("failed to delete financial data",
			slog.String("document_id", documentID.String()),
			slog.Any("error", err))
		return apperrors.DatabaseError(err)
	}
	return nil
}

// deleteStatementRows removes statements bottom-up so the cascade
// holds on databases without foreign key enforcement.
func deleteStatementRows(tx *gorm.DB, statementIDs []uuid.UUID) error {
	if len(statementIDs) == 0 {
		return nil
	}

	var itemIDs []uuid.UUID
	err := tx.Model(&domain.LineItem{}).
		Where("statement_id IN ?", statementIDs).
		Pluck("id", &itemIDs).
		Error
	if err != nil {
		return err
	}

	if len(itemIDs) > 0 {
		err = tx.Where("line_item_id IN ?", itemIDs).
			Delete(&domain.EditLog{}).
			Error
		if err != nil {
			return err
		}
	}

	err = tx.Where("statement_id IN ?", statementIDs).
		Delete(&domain.LineItem{}).
		Error
	if err != nil {
		return err
	}

	return tx.Where("id IN ?", statementIDs).
		Delete(&domain.FinancialStatement{}).
		Error
}
