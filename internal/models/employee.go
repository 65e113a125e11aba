package models

import (
	"time"

	"github.com/google/uuid"
)

// Employee is the read-only directory entry identity resolution runs against.
// The table is owned by the HR side of the system.
type Employee struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	EmployeeCode   string    `gorm:"type:text;index" json:"employee_code"`
	ExternalCode   string    `gorm:"type:text;index" json:"external_code"`
	Phone          string    `gorm:"type:text;index" json:"phone"`
	FullName       string    `gorm:"type:text" json:"full_name"`
	Status         string    `gorm:"type:text" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Employee) TableName() string { return "employees" }
