package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Parse job lifecycle states
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ParseJob tracks one run of the extraction pipeline against a document
type ParseJob struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DocumentID      uuid.UUID `gorm:"type:uuid;not null;index:idx_parse_jobs_document" json:"document_id"`
	Status          string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TotalChunks     int       `gorm:"default:0" json:"total_chunks"`
	CompletedChunks int       `gorm:"default:0" json:"completed_chunks"`
	ErrorMessage    *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ParseJob) TableName() string {
	return "parse_jobs"
}

// BeforeCreate GORM hook
func (j *ParseJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// ActiveJobStatuses returns the states in which a job blocks a new
// parse run for the same document.
func ActiveJobStatuses() []string {
	return []string{JobStatusPending, JobStatusProcessing}
}

// IsActive reports whether the job is still pending or running
func (j *ParseJob) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

// IsTerminal reports whether the job reached a final state
func (j *ParseJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
