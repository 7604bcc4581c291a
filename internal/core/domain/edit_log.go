package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fields a reviewer can override on a line item
const (
	EditFieldLabel = "label"
	EditFieldValue = "value"
)

// EditLog is one append-only audit row: a single field change on a
// single line item. Rows are never mutated or deleted.
type EditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	LineItemID uuid.UUID `gorm:"type:uuid;not null;index:idx_edit_logs_line_item" json:"line_item_id"`
	Field      string    `gorm:"type:varchar(50);not null" json:"field"`
	OldValue   string    `gorm:"type:text" json:"old_value"`
	NewValue   string    `gorm:"type:text" json:"new_value"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (EditLog) TableName() string {
	return "edit_logs"
}

// BeforeCreate GORM hook
func (e *EditLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
