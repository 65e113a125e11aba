package imports

import (
	"fmt"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/models"
	"attendance-import-backend/internal/services/suggest"
)

const errNoStagedRows = "Batch has no staged rows"

// ValidationResult combines blocking errors with advisory warnings.
type ValidationResult struct {
	Errors   []apperr.Issue     `json:"errors"`
	Warnings []apperr.Issue     `json:"warnings"`
	Status   models.BatchStatus `json:"status"`
}

// hardRuleViolations checks the aggregate fields of one row against the
// period length and for negative values.
func hardRuleViolations(n models.NormalizedFields, daysInMonth int) []string {
	var out []string
	if n.PayableDays != nil && *n.PayableDays > float64(daysInMonth) {
		out = append(out, fmt.Sprintf("payable_days %.2f exceeds %d days in month", *n.PayableDays, daysInMonth))
	}
	if n.PresentDays != nil && *n.PresentDays > float64(daysInMonth) {
		out = append(out, fmt.Sprintf("present_days %.2f exceeds %d days in month", *n.PresentDays, daysInMonth))
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"payable_days", n.PayableDays},
		{"present_days", n.PresentDays},
		{"lop_days", n.LOPDays},
		{"paid_leaves", n.PaidLeaves},
		{"ot_hours", n.OTHours},
		{"late_count", n.LateCount},
	} {
		if f.v != nil && *f.v < 0 {
			out = append(out, fmt.Sprintf("%s must not be negative", f.name))
		}
	}
	return out
}

// hardErrors lists every blocking issue of a staged batch: the errors
// recorded at staging plus the aggregate rules, re-checked against the
// batch period. An unstaged batch has one blocking issue.
func hardErrors(batch *models.ImportBatch, rows []models.StagedRow) []apperr.Issue {
	issues := []apperr.Issue{}
	if len(rows) == 0 {
		return append(issues, apperr.Issue{RowIndex: 0, Message: errNoStagedRows})
	}
	days := batch.DaysInPeriod()
	for i := range rows {
		r := &rows[i]
		recorded := map[string]struct{}{}
		for _, msg := range r.ValidationErrors {
			recorded[msg] = struct{}{}
			issues = append(issues, apperr.Issue{RowIndex: r.RowIndex, Message: msg})
		}
		for _, msg := range hardRuleViolations(r.Normalized.Data(), days) {
			if _, ok := recorded[msg]; !ok {
				issues = append(issues, apperr.Issue{RowIndex: r.RowIndex, Message: msg})
			}
		}
	}
	return issues
}

func reviewRows(rows []models.StagedRow) []suggest.ReviewRow {
	out := make([]suggest.ReviewRow, 0, len(rows))
	for i := range rows {
		if !rows[i].WillApply() {
			continue
		}
		out = append(out, suggest.ReviewRow{RowIndex: rows[i].RowIndex, Normalized: rows[i].Normalized.Data()})
	}
	return out
}
