package imports

import (
	"fmt"
	"strings"

	"attendance-import-backend/internal/models"
	"attendance-import-backend/internal/services/detect"
	"attendance-import-backend/internal/services/identity"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	errInvalidDate     = "Invalid/missing date"
	errNoReference     = "No employee code or user id"
	errUnresolved      = "User not resolved"
	errNoCheckInOrHour = "Neither check-in nor hours available"
)

// reference returns the identity reference of a source row: the user id
// column when it has a value, otherwise the employee code column.
func reference(mapping models.ColumnMapping, raw map[string]string) string {
	if h := mapping.Header(models.FieldUserID); h != "" {
		if v := strings.TrimSpace(raw[h]); v != "" {
			return v
		}
	}
	if h := mapping.Header(models.FieldEmployeeCode); h != "" {
		return strings.TrimSpace(raw[h])
	}
	return ""
}

// rawMaps keys every row by header. Cells past the last header are kept
// under their column_N position so raw stays the whole source row.
func rawMaps(table *detect.Table) []map[string]string {
	out := make([]map[string]string, len(table.Rows))
	for i, row := range table.Rows {
		m := make(map[string]string, len(row))
		for j, cell := range row {
			if j < len(table.Headers) {
				m[table.Headers[j]] = cell
				continue
			}
			key := detect.ColumnKey(j)
			if _, taken := m[key]; taken {
				key += " (extra)"
			}
			m[key] = cell
		}
		out[i] = m
	}
	return out
}

// buildRows normalizes every source row, resolves identities from the
// prepared index and flags duplicates. RowIndex is the 1-based position
// among data rows.
func buildRows(batch *models.ImportBatch, mapping models.ColumnMapping, raws []map[string]string, ix *identity.Index) []models.StagedRow {
	rows := make([]models.StagedRow, 0, len(raws))
	seen := map[string]struct{}{}
	daysInMonth := batch.DaysInPeriod()

	for i, raw := range raws {
		get := func(f models.CanonicalField) string {
			if h := mapping.Header(f); h != "" {
				return raw[h]
			}
			return ""
		}

		var errs []string
		n := normalizeRow(get)

		rawDate := get(models.FieldDate)
		if d, ok := parseDate(rawDate); ok {
			n.Date = d
		} else if !n.HasAggregates() || strings.TrimSpace(rawDate) != "" {
			errs = append(errs, errInvalidDate)
		}

		for _, f := range aggregateFields {
			if v := strings.TrimSpace(get(f)); v != "" {
				if _, ok := parseNumber(v); !ok {
					errs = append(errs, fmt.Sprintf("Invalid number in %s", f))
				}
			}
		}

		row := models.StagedRow{
			ID:       uuid.New(),
			BatchID:  batch.ID,
			RowIndex: i + 1,
			Raw:      datatypes.NewJSONType(raw),
		}

		ref := reference(mapping, raw)
		if ref == "" {
			errs = append(errs, errNoReference)
		} else {
			m := ix.Resolve(ref)
			row.MatchConfidence = m.Confidence
			if m.Resolved() {
				id := *m.EmployeeID
				row.EmployeeID = &id
			} else {
				errs = append(errs, errUnresolved)
			}
		}

		if row.EmployeeID != nil {
			key := row.EmployeeID.String() + "|" + n.Date
			if _, dup := seen[key]; dup {
				row.IsDuplicate = true
			} else {
				seen[key] = struct{}{}
			}
		}

		if !n.HasAggregates() && strings.TrimSpace(get(models.FieldCheckIn)) == "" && strings.TrimSpace(get(models.FieldHours)) == "" {
			errs = append(errs, errNoCheckInOrHour)
		}

		errs = append(errs, hardRuleViolations(n, daysInMonth)...)

		row.Normalized = datatypes.NewJSONType(n)
		row.ValidationErrors = datatypes.NewJSONSlice(errs)
		rows = append(rows, row)
	}
	return rows
}

var aggregateFields = []models.CanonicalField{
	models.FieldPayableDays, models.FieldPresentDays, models.FieldLOPDays,
	models.FieldPaidLeaves, models.FieldOTHours, models.FieldLateCount,
}

func normalizeRow(get func(models.CanonicalField) string) models.NormalizedFields {
	n := models.NormalizedFields{
		CheckIn:   parseClock(get(models.FieldCheckIn)),
		CheckOut:  parseClock(get(models.FieldCheckOut)),
		Remarks:   strings.TrimSpace(get(models.FieldRemarks)),
		ShiftCode: strings.TrimSpace(get(models.FieldShiftCode)),
	}
	n.Hours, _ = parseHours(get(models.FieldHours))
	n.OvertimeHours, _ = parseHours(get(models.FieldOvertimeHours))
	n.BreakMinutes, _ = parseMinutes(get(models.FieldBreakMinutes))

	optional := func(f models.CanonicalField, parse func(string) (float64, bool)) *float64 {
		if v, ok := parse(get(f)); ok {
			return &v
		}
		return nil
	}
	n.PayableDays = optional(models.FieldPayableDays, parseNumber)
	n.PresentDays = optional(models.FieldPresentDays, parseNumber)
	n.LOPDays = optional(models.FieldLOPDays, parseNumber)
	n.PaidLeaves = optional(models.FieldPaidLeaves, parseNumber)
	n.OTHours = optional(models.FieldOTHours, parseHours)
	n.LateCount = optional(models.FieldLateCount, parseNumber)
	return n
}
