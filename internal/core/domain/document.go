package domain

import (
	"github.com/google/uuid"
)

// Document is the read-only view of a document owned elsewhere in the
// system. The parsing pipeline only needs its investment, file location
// and type; upload and storage mechanics live outside this service.
type Document struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InvestmentID uuid.UUID `gorm:"type:uuid;not null" json:"investment_id"`
	FileName     string    `gorm:"type:varchar(500)" json:"file_name"`
	FilePath     string    `gorm:"type:text" json:"file_path"`
	DocumentType string    `gorm:"type:varchar(20)" json:"document_type"` // file extension, e.g. ".pdf"
}

// TableName specifies the table name for GORM
func (Document) TableName() string {
	return "documents"
}

// Investment is the read-only view of an investment, used to validate
// statement mappings.
type Investment struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InvestmentName string    `gorm:"type:varchar(500)" json:"investment_name"`
}

// TableName specifies the table name for GORM
func (Investment) TableName() string {
	return "investments"
}
