package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ImportBatch is one attempt to import attendance for an organization's pay period.
type ImportBatch struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;not null;index:idx_import_batches_period,priority:1" json:"organization_id"`
	Month          int            `gorm:"not null;index:idx_import_batches_period,priority:3" json:"month"`
	Year           int            `gorm:"not null;index:idx_import_batches_period,priority:2" json:"year"`
	Source         SourceKind     `gorm:"type:text;not null" json:"source"`
	FileURL        *string        `gorm:"type:text" json:"file_url"`
	DetectedFormat datatypes.JSON `gorm:"type:jsonb" json:"detected_format,omitempty"`
	ColumnMapping  datatypes.JSON `gorm:"type:jsonb" json:"column_mapping,omitempty"`
	Status         BatchStatus    `gorm:"type:text;not null;index" json:"status"`
	CreatedBy      string         `gorm:"type:text" json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (ImportBatch) TableName() string { return "attendance_import_batches" }

// Format decodes the persisted detection result; nil when detection has not run.
func (b *ImportBatch) Format() (*DetectedFormat, error) {
	if len(b.DetectedFormat) == 0 {
		return nil, nil
	}
	var f DetectedFormat
	if err := json.Unmarshal(b.DetectedFormat, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Mapping decodes the persisted column mapping; nil when no mapping was saved.
func (b *ImportBatch) Mapping() (ColumnMapping, error) {
	if len(b.ColumnMapping) == 0 {
		return nil, nil
	}
	var m ColumnMapping
	if err := json.Unmarshal(b.ColumnMapping, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// DaysInPeriod is the number of calendar days in the batch's declared month.
func (b *ImportBatch) DaysInPeriod() int {
	return time.Date(b.Year, time.Month(b.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Dialect describes how a source file was decoded.
type Dialect struct {
	Kind      string `json:"kind"` // "delimited" or "spreadsheet"
	Delimiter string `json:"delimiter,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
	HeaderRow int    `json:"header_row"`
	MimeType  string `json:"mime_type,omitempty"`
}

const (
	DialectDelimited   = "delimited"
	DialectSpreadsheet = "spreadsheet"
)

// DetectedFormat is the sniffed structure of an uploaded file.
type DetectedFormat struct {
	Headers    []string   `json:"headers"`
	SampleRows [][]string `json:"sample_rows"`
	Dialect    Dialect    `json:"dialect"`
}
