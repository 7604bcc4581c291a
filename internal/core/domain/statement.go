package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Statement types recognised by the extraction pipeline (closed enum)
const (
	StatementTypeIncome    = "income_statement"
	StatementTypeBalance   = "balance_sheet"
	StatementTypeCashFlow  = "cash_flow"
)

// Review workflow states
const (
	ReviewStatusPending  = "pending"
	ReviewStatusReviewed = "reviewed"
	ReviewStatusApproved = "approved"
)

// FinancialStatement is one extracted statement for a single period.
// It exclusively owns its line items; deleting a statement cascades to
// them.
type FinancialStatement struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DocumentID    uuid.UUID `gorm:"type:uuid;not null;index:idx_statements_document" json:"document_id"`
	StatementType string    `gorm:"type:varchar(50);not null" json:"statement_type"`
	Period        string    `gorm:"type:varchar(100);not null" json:"period"`
	PeriodEndDate *string   `gorm:"type:varchar(50)" json:"period_end_date,omitempty"`
	Currency      *string   `gorm:"type:varchar(10)" json:"currency,omitempty"`
	Unit          *string   `gorm:"type:varchar(50)" json:"unit,omitempty"`
	SourcePages   *string   `gorm:"type:varchar(200)" json:"source_pages,omitempty"`
	RawResponse   *string   `gorm:"type:text" json:"raw_response,omitempty"`

	// Review / lock workflow
	ReviewStatus string  `gorm:"type:varchar(20);not null;default:'pending'" json:"review_status"`
	ReviewerID   *string `gorm:"type:varchar(255)" json:"reviewer_id,omitempty"`
	ReviewNotes  *string `gorm:"type:text" json:"review_notes,omitempty"`
	Locked       bool    `gorm:"default:false" json:"locked"`

	// Analytical investment mapping, independent of document ownership
	InvestmentID      *uuid.UUID `gorm:"type:uuid;index:idx_statements_investment" json:"investment_id,omitempty"`
	ReportingDate     *string    `gorm:"type:varchar(50)" json:"reporting_date,omitempty"`
	FiscalPeriodLabel *string    `gorm:"type:varchar(100)" json:"fiscal_period_label,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	LineItems []LineItem `gorm:"foreignKey:StatementID;constraint:OnDelete:CASCADE" json:"line_items,omitempty"`
}

// TableName specifies the table name for GORM
func (FinancialStatement) TableName() string {
	return "financial_statements"
}

// BeforeCreate GORM hook
func (s *FinancialStatement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ValidStatementTypes returns the closed statement type enum
func ValidStatementTypes() []string {
	return []string{StatementTypeIncome, StatementTypeBalance, StatementTypeCashFlow}
}

// IsValidStatementType checks a statement type against the closed enum
func IsValidStatementType(t string) bool {
	for _, v := range ValidStatementTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ValidReviewStatuses returns the review workflow states
func ValidReviewStatuses() []string {
	return []string{ReviewStatusPending, ReviewStatusReviewed, ReviewStatusApproved}
}

// IsValidReviewStatus checks a review status value
func IsValidReviewStatus(s string) bool {
	for _, v := range ValidReviewStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// StatementTypeLabel returns the display name for a statement type
func StatementTypeLabel(t string) string {
	switch t {
	case StatementTypeIncome:
		return "Income Statement"
	case StatementTypeBalance:
		return "Balance Sheet"
	case StatementTypeCashFlow:
		return "Cash Flow"
	default:
		return t
	}
}

// LineItem is one row of a financial statement, ordered by SortOrder
// within its owning statement.
type LineItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StatementID uuid.UUID `gorm:"type:uuid;not null;index:idx_line_items_statement" json:"statement_id"`
	Category    string    `gorm:"type:varchar(100);not null" json:"category"`
	Label       string    `gorm:"type:varchar(255);not null" json:"label"`
	Value       *float64  `json:"value,omitempty"`
	IsTotal     bool      `gorm:"default:false" json:"is_total"`
	IndentLevel int       `gorm:"default:0" json:"indent_level"`
	SortOrder   int       `gorm:"default:0" json:"sort_order"`

	// Reviewer overrides; the display value/label prefers these
	EditedLabel    *string  `gorm:"type:varchar(255)" json:"edited_label,omitempty"`
	EditedValue    *float64 `json:"edited_value,omitempty"`
	IsUserModified bool     `gorm:"default:false" json:"is_user_modified"`

	// Set by the normalization engine
	CanonicalLabel *string `gorm:"type:varchar(255)" json:"canonical_label,omitempty"`

	// Relations
	EditLogs []EditLog `gorm:"foreignKey:LineItemID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (LineItem) TableName() string {
	return "line_items"
}

// BeforeCreate GORM hook
func (li *LineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}

// DisplayLabel returns the edited label when present, else the label
// as extracted.
func (li *LineItem) DisplayLabel() string {
	if li.EditedLabel != nil {
		return *li.EditedLabel
	}
	return li.Label
}

// DisplayValue returns the edited value when present, else the value
// as extracted. May be nil.
func (li *LineItem) DisplayValue() *float64 {
	if li.EditedValue != nil {
		return li.EditedValue
	}
	return li.Value
}
