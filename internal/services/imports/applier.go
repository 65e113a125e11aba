package imports

import (
	"math"
	"sort"
	"time"

	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// buildOverrides folds the clean rows of each resolved employee into one
// override for the batch period. Duplicate, erroneous and unresolved rows
// never contribute.
//
// The last clean row carrying aggregate fields wins. Employees without one
// are aggregated from their daily rows: payable days count distinct dates,
// overtime is summed.
func buildOverrides(batch *models.ImportBatch, rows []models.StagedRow, approver string, now time.Time) []models.MonthlyOverride {
	type group struct {
		aggregate *models.NormalizedFields
		dates     map[string]struct{}
		overtime  decimal.Decimal
		remarks   string
	}
	groups := map[uuid.UUID]*group{}

	sorted := make([]models.StagedRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RowIndex < sorted[j].RowIndex })

	for i := range sorted {
		r := &sorted[i]
		if !r.WillApply() {
			continue
		}
		g, ok := groups[*r.EmployeeID]
		if !ok {
			g = &group{dates: map[string]struct{}{}}
			groups[*r.EmployeeID] = g
		}
		n := r.Normalized.Data()
		if n.HasAggregates() {
			g.aggregate = &n
		}
		if n.Date != "" {
			g.dates[n.Date] = struct{}{}
		}
		g.overtime = g.overtime.Add(decimal.NewFromFloat(n.OvertimeHours))
		if n.Remarks != "" {
			g.remarks = n.Remarks
		}
	}

	ids := make([]uuid.UUID, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	// Fixed order keeps concurrent applies from locking override rows in
	// different orders.
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	out := make([]models.MonthlyOverride, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		var p models.OverridePayload
		if a := g.aggregate; a != nil {
			p = models.OverridePayload{
				PayableDays: deref(firstSet(a.PayableDays, a.PresentDays)),
				LOPDays:     deref(a.LOPDays),
				PaidLeaves:  deref(a.PaidLeaves),
				OTHours:     deref(a.OTHours),
				LateCount:   int(math.Round(deref(a.LateCount))),
				Remarks:     a.Remarks,
			}
		} else {
			ot, _ := g.overtime.Round(2).Float64()
			p = models.OverridePayload{
				PayableDays: float64(len(g.dates)),
				OTHours:     ot,
				Remarks:     g.remarks,
			}
		}
		out = append(out, models.MonthlyOverride{
			OrganizationID: batch.OrganizationID,
			EmployeeID:     id,
			Month:          batch.Month,
			Year:           batch.Year,
			SourceBatchID:  batch.ID,
			Payload:        datatypes.NewJSONType(p),
			ApprovedBy:     approver,
			ApprovedAt:     now,
		})
	}
	return out
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
