package repository

import (
	"context"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type StagedRowRepository struct {
	db *gorm.DB
}

func NewStagedRowRepository(db *gorm.DB) *StagedRowRepository {
	return &StagedRowRepository{db: db}
}

// Replace swaps the batch's staged rows for rows and moves the batch to next,
// all in one transaction. Rows are inserted in chunks of chunkSize.
func (r *StagedRowRepository) Replace(ctx context.Context, batchID uuid.UUID, rows []models.StagedRow, chunkSize int, next models.BatchStatus) error {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearStagedRows(tx, batchID); err != nil {
			return err
		}
		for start := 0; start < len(rows); start += chunkSize {
			end := start + chunkSize
			if end > len(rows) {
				end = len(rows)
			}
			chunk := rows[start:end]
			if err := tx.Create(&chunk).Error; err != nil {
				return errors.Wrapf(err, "insert staged rows %d..%d", start, end-1)
			}
		}
		return transition(tx, batchID, next)
	})
	return classify("stage rows", err)
}

// ListByBatch returns the batch's staged rows in source order.
func (r *StagedRowRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.StagedRow, error) {
	var rows []models.StagedRow
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("row_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Upstream("load staged rows", errors.Wrap(err, "select staged rows"))
	}
	return rows, nil
}

// Page returns one window of staged rows in source order plus the total
// count of rows matching the filter.
func (r *StagedRowRepository) Page(ctx context.Context, batchID uuid.UUID, onlyErrors bool, offset, limit int) ([]models.StagedRow, int, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("batch_id = ?", batchID)
		if onlyErrors {
			db = db.Where("jsonb_array_length(COALESCE(validation_errors, '[]'::jsonb)) > 0")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.StagedRow{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, apperr.Upstream("count staged rows", errors.Wrap(err, "count staged rows"))
	}

	rows := []models.StagedRow{}
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("row_index ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperr.Upstream("load staged rows", errors.Wrap(err, "select staged rows page"))
	}
	return rows, int(total), nil
}
