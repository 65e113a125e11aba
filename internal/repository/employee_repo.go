package repository

import (
	"context"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// EmployeeRepository reads the employee directory. It never writes.
type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByReferences returns the organization's employees whose id, code,
// external code or phone appears in the given reference sets.
func (r *EmployeeRepository) FindByReferences(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, refs []string) ([]models.Employee, error) {
	if len(ids) == 0 && len(refs) == 0 {
		return nil, nil
	}
	cond := r.db.Where("1 = 0")
	if len(ids) > 0 {
		cond = cond.Or("id IN ?", ids)
	}
	if len(refs) > 0 {
		cond = cond.Or("employee_code IN ?", refs).
			Or("external_code IN ?", refs).
			Or("phone IN ?", refs)
	}

	var out []models.Employee
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Where(cond).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Upstream("employee directory", errors.Wrap(err, "select employees by reference"))
	}
	return out, nil
}

// ListByOrganization returns the whole directory of one organization.
func (r *EmployeeRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Employee, error) {
	var out []models.Employee
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Upstream("employee directory", errors.Wrap(err, "select employees"))
	}
	return out, nil
}
