package repository

import (
	"context"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const overrideChunk = 500

type OverrideRepository struct {
	db *gorm.DB
}

func NewOverrideRepository(db *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// ApplyBatch upserts the overrides and marks the batch applied in one
// transaction. An existing override for the same employee and period is
// replaced wholesale.
func (r *OverrideRepository) ApplyBatch(ctx context.Context, batchID uuid.UUID, overrides []models.MonthlyOverride) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, batchID, models.BatchStatusApplied); err != nil {
			return err
		}
		upsert := clause.OnConflict{
			Columns: []clause.Column{
				{Name: "organization_id"}, {Name: "employee_id"}, {Name: "month"}, {Name: "year"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"source_batch_id", "payload", "approved_by", "approved_at", "updated_at",
			}),
		}
		for start := 0; start < len(overrides); start += overrideChunk {
			end := start + overrideChunk
			if end > len(overrides) {
				end = len(overrides)
			}
			chunk := overrides[start:end]
			if err := tx.Clauses(upsert).Create(&chunk).Error; err != nil {
				return errors.Wrap(err, "upsert monthly overrides")
			}
		}
		return nil
	})
	return classify("apply batch", err)
}

// ListForPeriod returns every override of an organization's pay period.
func (r *OverrideRepository) ListForPeriod(ctx context.Context, orgID uuid.UUID, month, year int) ([]models.MonthlyOverride, error) {
	var out []models.MonthlyOverride
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND month = ? AND year = ?", orgID, month, year).
		Order("employee_id").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Upstream("load overrides", errors.Wrap(err, "select monthly overrides"))
	}
	return out, nil
}
