package imports

import (
	"context"

	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BatchStore persists ImportBatch rows. Every status-changing method is a
// compare-and-swap on the current status and fails with a conflict otherwise.
// ReplaceSource and SaveMapping also drop the batch's staged rows.
type BatchStore interface {
	Create(ctx context.Context, batch *models.ImportBatch) error
	Get(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error)
	LatestForPeriod(ctx context.Context, orgID uuid.UUID, month, year int) (*models.ImportBatch, error)
	ReplaceSource(ctx context.Context, id uuid.UUID, fileURL string) error
	SetDetectedFormat(ctx context.Context, id uuid.UUID, format datatypes.JSON) error
	SaveMapping(ctx context.Context, id uuid.UUID, mapping datatypes.JSON) error
	Transition(ctx context.Context, id uuid.UUID, next models.BatchStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StagedRowStore replaces and reads a batch's staged rows.
type StagedRowStore interface {
	Replace(ctx context.Context, batchID uuid.UUID, rows []models.StagedRow, chunkSize int, next models.BatchStatus) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.StagedRow, error)
	Page(ctx context.Context, batchID uuid.UUID, onlyErrors bool, offset, limit int) ([]models.StagedRow, int, error)
}

// OverrideStore is the only writer of monthly overrides.
type OverrideStore interface {
	ApplyBatch(ctx context.Context, batchID uuid.UUID, overrides []models.MonthlyOverride) error
	ListForPeriod(ctx context.Context, orgID uuid.UUID, month, year int) ([]models.MonthlyOverride, error)
}
