package models

import (
	"fmt"
	"sort"
	"strings"
)

// CanonicalField names a normalized attendance attribute a source column can map to.
type CanonicalField string

const (
	FieldUserID        CanonicalField = "user_id"
	FieldEmployeeCode  CanonicalField = "employee_code"
	FieldDate          CanonicalField = "date"
	FieldCheckIn       CanonicalField = "check_in"
	FieldCheckOut      CanonicalField = "check_out"
	FieldHours         CanonicalField = "hours"
	FieldOvertimeHours CanonicalField = "overtime_hours"
	FieldRemarks       CanonicalField = "remarks"
	FieldShiftCode     CanonicalField = "shift_code"
	FieldBreakMinutes  CanonicalField = "break_minutes"
	FieldPayableDays   CanonicalField = "payable_days"
	FieldPresentDays   CanonicalField = "present_days"
	FieldLOPDays       CanonicalField = "lop_days"
	FieldPaidLeaves    CanonicalField = "paid_leaves"
	FieldOTHours       CanonicalField = "ot_hours"
	FieldLateCount     CanonicalField = "late_count"
)

// CanonicalFields is every field a mapping may target, in display order.
var CanonicalFields = []CanonicalField{
	FieldUserID, FieldEmployeeCode, FieldDate, FieldCheckIn, FieldCheckOut,
	FieldHours, FieldOvertimeHours, FieldRemarks, FieldShiftCode, FieldBreakMinutes,
	FieldPayableDays, FieldPresentDays, FieldLOPDays, FieldPaidLeaves, FieldOTHours, FieldLateCount,
}

func (f CanonicalField) Known() bool {
	for _, k := range CanonicalFields {
		if k == f {
			return true
		}
	}
	return false
}

// ColumnMapping maps a canonical field to the source header carrying it.
type ColumnMapping map[CanonicalField]string

// Validate checks the mapping against the detected headers. Header lookup is
// exact after trimming, matching how rows are keyed during staging.
func (m ColumnMapping) Validate(headers []string) error {
	if len(m) == 0 {
		return fmt.Errorf("column_mapping is empty")
	}
	known := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		known[strings.TrimSpace(h)] = struct{}{}
	}
	keys := make([]string, 0, len(m))
	for f := range m {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	for _, k := range keys {
		f := CanonicalField(k)
		if !f.Known() {
			return fmt.Errorf("unknown canonical field %q", k)
		}
		h := strings.TrimSpace(m[f])
		if h == "" {
			continue
		}
		if _, ok := known[h]; !ok {
			return fmt.Errorf("field %q maps to header %q which is not in the file", k, h)
		}
	}
	if m.Header(FieldUserID) == "" && m.Header(FieldEmployeeCode) == "" {
		return fmt.Errorf("column_mapping needs user_id or employee_code")
	}
	return nil
}

// Header returns the trimmed source header for f, or "" when unmapped.
func (m ColumnMapping) Header(f CanonicalField) string {
	return strings.TrimSpace(m[f])
}
