package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NormalizedFields is the canonical view of one source row. Aggregate fields
// are pointers because they are only present when the mapping carries them.
type NormalizedFields struct {
	Date          string   `json:"date,omitempty"`
	CheckIn       string   `json:"check_in,omitempty"`
	CheckOut      string   `json:"check_out,omitempty"`
	Hours         float64  `json:"hours"`
	OvertimeHours float64  `json:"overtime_hours"`
	BreakMinutes  float64  `json:"break_minutes"`
	Remarks       string   `json:"remarks,omitempty"`
	ShiftCode     string   `json:"shift_code,omitempty"`
	PayableDays   *float64 `json:"payable_days,omitempty"`
	PresentDays   *float64 `json:"present_days,omitempty"`
	LOPDays       *float64 `json:"lop_days,omitempty"`
	PaidLeaves    *float64 `json:"paid_leaves,omitempty"`
	OTHours       *float64 `json:"ot_hours,omitempty"`
	LateCount     *float64 `json:"late_count,omitempty"`
}

// HasAggregates reports whether the row carries any monthly aggregate field.
func (n NormalizedFields) HasAggregates() bool {
	return n.PayableDays != nil || n.PresentDays != nil || n.LOPDays != nil ||
		n.PaidLeaves != nil || n.OTHours != nil || n.LateCount != nil
}

// StagedRow is one parsed source row bound to a batch.
type StagedRow struct {
	ID               uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID          uuid.UUID                             `gorm:"type:uuid;not null;index" json:"batch_id"`
	RowIndex         int                                   `gorm:"not null" json:"row_index"`
	Raw              datatypes.JSONType[map[string]string] `gorm:"not null" json:"raw"`
	Normalized       datatypes.JSONType[NormalizedFields]  `gorm:"not null" json:"normalized"`
	EmployeeID       *uuid.UUID                            `gorm:"type:uuid;index" json:"employee_id"`
	MatchConfidence  int                                   `gorm:"not null;default:0" json:"match_confidence"`
	IsDuplicate      bool                                  `gorm:"not null;default:false" json:"is_duplicate"`
	ValidationErrors datatypes.JSONSlice[string]           `gorm:"type:jsonb" json:"validation_errors"`
	CreatedAt        time.Time                             `json:"created_at"`
}

func (StagedRow) TableName() string { return "attendance_staged_rows" }

// WillApply is true for rows the applier may fold into an override.
func (r *StagedRow) WillApply() bool {
	return !r.IsDuplicate && len(r.ValidationErrors) == 0 && r.EmployeeID != nil
}

// StageSummary is the aggregate view of a batch's staged rows.
type StageSummary struct {
	TotalRows          int     `json:"total_rows"`
	MatchedUsers       int     `json:"matched_users"`
	AvgMatchConfidence float64 `json:"avg_match_confidence"`
	Duplicates         int     `json:"duplicates"`
	Errors             int     `json:"errors"`
	WillApplyRows      int     `json:"will_apply_rows"`
}
