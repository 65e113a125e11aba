package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OverridePayload is the payroll-facing attendance aggregate.
type OverridePayload struct {
	PayableDays float64 `json:"payable_days"`
	LOPDays     float64 `json:"lop_days"`
	PaidLeaves  float64 `json:"paid_leaves"`
	OTHours     float64 `json:"ot_hours"`
	LateCount   int     `json:"late_count"`
	Remarks     string  `json:"remarks,omitempty"`
}

// MonthlyOverride is unique per (organization, employee, month, year). A later
// apply replaces the payload wholesale.
type MonthlyOverride struct {
	OrganizationID uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"organization_id"`
	EmployeeID     uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"employee_id"`
	Month          int                                 `gorm:"primaryKey;autoIncrement:false" json:"month"`
	Year           int                                 `gorm:"primaryKey;autoIncrement:false" json:"year"`
	SourceBatchID  uuid.UUID                           `gorm:"type:uuid;not null;index" json:"source_batch_id"`
	Payload        datatypes.JSONType[OverridePayload] `gorm:"not null" json:"payload"`
	ApprovedBy     string                              `gorm:"type:text;not null" json:"approved_by"`
	ApprovedAt     time.Time                           `gorm:"not null" json:"approved_at"`
	CreatedAt      time.Time                           `json:"created_at"`
	UpdatedAt      time.Time                           `json:"updated_at"`
}

func (MonthlyOverride) TableName() string { return "attendance_monthly_overrides" }
