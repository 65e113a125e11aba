package repository

import (
	"context"
	stderrors "errors"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(ctx context.Context, batch *models.ImportBatch) error {
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return apperr.Upstream("create batch", errors.Wrap(err, "insert import batch"))
	}
	return nil
}

func (r *BatchRepository) Get(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("batch %s not found", id)
	}
	if err != nil {
		return nil, apperr.Upstream("load batch", errors.Wrap(err, "select import batch"))
	}
	return &batch, nil
}

// LatestForPeriod returns the most recently created batch for the period.
func (r *BatchRepository) LatestForPeriod(ctx context.Context, orgID uuid.UUID, month, year int) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND month = ? AND year = ?", orgID, month, year).
		Order("created_at DESC").
		First(&batch).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no batch for %d-%02d", year, month)
	}
	if err != nil {
		return nil, apperr.Upstream("load batch", errors.Wrap(err, "select latest import batch"))
	}
	return &batch, nil
}

// ReplaceSource points the batch at a new source file. The detected format
// and any staged rows describe the previous file, so both are cleared in the
// same transaction. The status is left alone.
func (r *BatchRepository) ReplaceSource(ctx context.Context, id uuid.UUID, fileURL string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ImportBatch{}).
			Where("id = ? AND status NOT IN ?", id, closedStatuses).
			Updates(map[string]interface{}{
				"file_url":        fileURL,
				"detected_format": gorm.Expr("NULL"),
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update source file")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("batch %s is closed", id)
		}
		return clearStagedRows(tx, id)
	})
	return classify("replace source file", err)
}

func (r *BatchRepository) SetDetectedFormat(ctx context.Context, id uuid.UUID, format datatypes.JSON) error {
	res := r.db.WithContext(ctx).Model(&models.ImportBatch{}).
		Where("id = ? AND status NOT IN ?", id, closedStatuses).
		Update("detected_format", format)
	if res.Error != nil {
		return apperr.Upstream("update batch", errors.Wrap(res.Error, "update detected format"))
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("batch %s is closed", id)
	}
	return nil
}

// SaveMapping stores the mapping, moves the batch to mapped and drops the
// rows staged under the previous mapping, all in one transaction.
func (r *BatchRepository) SaveMapping(ctx context.Context, id uuid.UUID, mapping datatypes.JSON) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ImportBatch{}).
			Where("id = ? AND status IN ?", id, models.SourcesFor(models.BatchStatusMapped)).
			Updates(map[string]interface{}{
				"column_mapping": mapping,
				"status":         models.BatchStatusMapped,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update column mapping")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("batch %s cannot be mapped in its current status", id)
		}
		return clearStagedRows(tx, id)
	})
	return classify("save mapping", err)
}

// Transition moves the batch to next if its current status allows it.
func (r *BatchRepository) Transition(ctx context.Context, id uuid.UUID, next models.BatchStatus) error {
	return transition(r.db.WithContext(ctx), id, next)
}

// Delete removes the batch and its staged rows. Applied batches are kept
// because overrides reference them.
func (r *BatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status <> ?", id, models.BatchStatusApplied).Delete(&models.ImportBatch{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete import batch")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("batch %s is applied or already gone", id)
		}
		return clearStagedRows(tx, id)
	})
	return classify("discard batch", err)
}

var closedStatuses = []models.BatchStatus{models.BatchStatusApplied, models.BatchStatusRejected}

func clearStagedRows(tx *gorm.DB, batchID uuid.UUID) error {
	if err := tx.Where("batch_id = ?", batchID).Delete(&models.StagedRow{}).Error; err != nil {
		return errors.Wrap(err, "delete staged rows")
	}
	return nil
}

// transition is the status compare-and-swap shared by every repository that
// changes a batch's status inside its own transaction.
func transition(tx *gorm.DB, id uuid.UUID, next models.BatchStatus) error {
	res := tx.Model(&models.ImportBatch{}).
		Where("id = ? AND status IN ?", id, models.SourcesFor(next)).
		Update("status", next)
	if res.Error != nil {
		return apperr.Upstream("update batch status", errors.Wrap(res.Error, "update import batch status"))
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("batch %s cannot move to %s from its current status", id, next)
	}
	return nil
}

// classify keeps already-classified errors and marks the rest as upstream.
func classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if stderrors.As(err, &ae) {
		return err
	}
	return apperr.Upstream(msg, err)
}
