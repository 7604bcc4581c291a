package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

func TestParseStatements_PlainJSON(t *testing.T) {
	raw := `[{"statement_type": "income_statement", "period": "Q1 2024",
		"line_items": [{"category": "revenue", "label": "Revenue", "value": 100}]}]`

	statements, err := parseStatements(raw)

	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "income_statement", statements[0].StatementType)
	assert.Equal(t, "Q1 2024", statements[0].Period)
	require.Len(t, statements[0].LineItems, 1)
	assert.Equal(t, 100.0, *statements[0].LineItems[0].ValueOf())
}

func TestParseStatements_MarkdownFence(t *testing.T) {
	raw := "```json\n[{\"statement_type\": \"balance_sheet\", \"period\": \"FY 2023\", \"line_items\": []}]\n```"

	statements, err := parseStatements(raw)

	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "balance_sheet", statements[0].StatementType)
}

func TestParseStatements_EmptyResponse(t *testing.T) {
	statements, err := parseStatements("")

	require.NoError(t, err)
	assert.Empty(t, statements)
}

func TestParseStatements_EmptyArray(t *testing.T) {
	statements, err := parseStatements("[]")

	require.NoError(t, err)
	assert.Empty(t, statements)
}

func TestParseStatements_RepairsTrailingComma(t *testing.T) {
	raw := `[{"statement_type": "cash_flow", "period": "FY 2023", "line_items": [],}]`

	statements, err := parseStatements(raw)

	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "cash_flow", statements[0].StatementType)
}

func TestParseStatements_UnknownStatementType(t *testing.T) {
	raw := `[{"statement_type": "equity_statement", "period": "Q1 2024", "line_items": []}]`

	_, err := parseStatements(raw)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExtractionResponse))
}

func TestParseStatements_EmptyPeriod(t *testing.T) {
	raw := `[{"statement_type": "income_statement", "period": "  ", "line_items": []}]`

	_, err := parseStatements(raw)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExtractionResponse))
}

func TestFlexFloat_Formats(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected float64
	}{
		{"plain number", `123.45`, 123.45},
		{"negative number", `-500`, -500},
		{"string number", `"123.45"`, 123.45},
		{"parenthesized negative", `"(500)"`, -500},
		{"currency and separators", `"$1,234.56"`, 1234.56},
		{"negative string", `"-42"`, -42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexFloat
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &f))
			assert.Equal(t, tt.expected, float64(f))
		})
	}
}

func TestFlexFloat_NonNumericString(t *testing.T) {
	var f FlexFloat
	assert.Error(t, json.Unmarshal([]byte(`"n/a"`), &f))
}

func TestFlexFloat_NullValue(t *testing.T) {
	var item RawLineItem
	require.NoError(t, json.Unmarshal([]byte(`{"label": "Revenue", "value": null}`), &item))
	assert.Nil(t, item.ValueOf())
}

func rawStatement(stmtType, period string, itemCount int) RawStatement {
	items := make([]RawLineItem, itemCount)
	for i := range items {
		items[i] = RawLineItem{Category: "other", Label: "Item"}
	}
	return RawStatement{StatementType: stmtType, Period: period, LineItems: items}
}

func TestMergeStatements_MostLineItemsWins(t *testing.T) {
	results := [][]RawStatement{
		{rawStatement("income_statement", "Q1 2024", 2)},
		{rawStatement("income_statement", "Q1 2024", 5)},
		{rawStatement("income_statement", "Q1 2024", 3)},
	}

	merged := MergeStatements(results)

	require.Len(t, merged, 1)
	assert.Len(t, merged[0].LineItems, 5)
}

func TestMergeStatements_FirstSeenWinsTies(t *testing.T) {
	first := rawStatement("income_statement", "Q1 2024", 3)
	first.Currency = strPtr("USD")
	second := rawStatement("income_statement", "Q1 2024", 3)
	second.Currency = strPtr("EUR")

	merged := MergeStatements([][]RawStatement{{first}, {second}})

	require.Len(t, merged, 1)
	assert.Equal(t, "USD", *merged[0].Currency)
}

func TestMergeStatements_DistinctKeysKept(t *testing.T) {
	merged := MergeStatements([][]RawStatement{
		{rawStatement("income_statement", "Q1 2024", 2)},
		{rawStatement("income_statement", "Q2 2024", 2)},
		{rawStatement("balance_sheet", "Q1 2024", 2)},
	})

	assert.Len(t, merged, 3)
}

func TestMergeStatements_InsertionOrderPreserved(t *testing.T) {
	merged := MergeStatements([][]RawStatement{
		{rawStatement("cash_flow", "Q2 2024", 1)},
		{rawStatement("income_statement", "Q1 2024", 1)},
		{rawStatement("cash_flow", "Q2 2024", 4)},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "cash_flow", merged[0].StatementType)
	assert.Len(t, merged[0].LineItems, 4)
	assert.Equal(t, "income_statement", merged[1].StatementType)
}

func TestMergeStatements_Empty(t *testing.T) {
	assert.Empty(t, MergeStatements(nil))
	assert.Empty(t, MergeStatements([][]RawStatement{{}, {}}))
}

func strPtr(s string) *string { return &s }
