package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidStatementType(t *testing.T) {
	assert.True(t, IsValidStatementType(StatementTypeIncome))
	assert.True(t, IsValidStatementType(StatementTypeBalance))
	assert.True(t, IsValidStatementType(StatementTypeCashFlow))
	assert.False(t, IsValidStatementType("equity_statement"))
	assert.False(t, IsValidStatementType(""))
}

func TestIsValidReviewStatus(t *testing.T) {
	assert.True(t, IsValidReviewStatus(ReviewStatusPending))
	assert.True(t, IsValidReviewStatus(ReviewStatusReviewed))
	assert.True(t, IsValidReviewStatus(ReviewStatusApproved))
	assert.False(t, IsValidReviewStatus("rejected"))
}

func TestStatementTypeLabel(t *testing.T) {
	assert.Equal(t, "Income Statement", StatementTypeLabel(StatementTypeIncome))
	assert.Equal(t, "Balance Sheet", StatementTypeLabel(StatementTypeBalance))
	assert.Equal(t, "Cash Flow", StatementTypeLabel(StatementTypeCashFlow))
	assert.Equal(t, "custom", StatementTypeLabel("custom"))
}

func TestLineItem_DisplayLabel(t *testing.T) {
	item := LineItem{Label: "Revenue"}
	assert.Equal(t, "Revenue", item.DisplayLabel())

	edited := "Total Revenue"
	item.EditedLabel = &edited
	assert.Equal(t, "Total Revenue", item.DisplayLabel())
}

func TestLineItem_DisplayValue(t *testing.T) {
	item := LineItem{}
	assert.Nil(t, item.DisplayValue())

	original := 100.0
	item.Value = &original
	assert.Equal(t, 100.0, *item.DisplayValue())

	edited := 150.0
	item.EditedValue = &edited
	assert.Equal(t, 150.0, *item.DisplayValue())
}

func TestParseJob_Lifecycle(t *testing.T) {
	job := ParseJob{Status: JobStatusPending}
	assert.True(t, job.IsActive())
	assert.False(t, job.IsTerminal())

	job.Status = JobStatusProcessing
	assert.True(t, job.IsActive())

	job.Status = JobStatusCompleted
	assert.False(t, job.IsActive())
	assert.True(t, job.IsTerminal())

	job.Status = JobStatusFailed
	assert.True(t, job.IsTerminal())
}

func TestActiveJobStatuses(t *testing.T) {
	assert.ElementsMatch(t, []string{JobStatusPending, JobStatusProcessing}, ActiveJobStatuses())
}
