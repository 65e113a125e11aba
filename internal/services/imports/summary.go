package imports

import (
	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// summarize derives the stage summary from a staged row set.
func summarize(rows []models.StagedRow) models.StageSummary {
	s := models.StageSummary{TotalRows: len(rows)}
	if len(rows) == 0 {
		return s
	}

	matched := map[uuid.UUID]struct{}{}
	var confidence int64
	for i := range rows {
		r := &rows[i]
		if r.EmployeeID != nil {
			matched[*r.EmployeeID] = struct{}{}
		}
		confidence += int64(r.MatchConfidence)
		if r.IsDuplicate {
			s.Duplicates++
		}
		if len(r.ValidationErrors) > 0 {
			s.Errors++
		}
		if r.WillApply() {
			s.WillApplyRows++
		}
	}
	s.MatchedUsers = len(matched)
	s.AvgMatchConfidence, _ = decimal.NewFromInt(confidence).
		Div(decimal.NewFromInt(int64(len(rows)))).
		Round(2).
		Float64()
	return s
}
