package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
)

// RawStatement is one statement object as returned by the extraction
// service, validated against the closed schema at the client boundary.
type RawStatement struct {
	StatementType string        `json:"statement_type"`
	Period        string        `json:"period"`
	PeriodEndDate *string       `json:"period_end_date,omitempty"`
	Currency      *string       `json:"currency,omitempty"`
	Unit          *string       `json:"unit,omitempty"`
	SourcePages   *string       `json:"source_pages,omitempty"`
	LineItems     []RawLineItem `json:"line_items"`
}

// RawLineItem is one extracted statement row
type RawLineItem struct {
	Category    string     `json:"category"`
	Label       string     `json:"label"`
	Value       *FlexFloat `json:"value"`
	IsTotal     bool       `json:"is_total"`
	IndentLevel int        `json:"indent_level"`
}

// Validate checks a statement against the expected shape. Schema
// violations are typed extraction errors, never silently coerced.
func (s *RawStatement) Validate() error {
	if !domain.IsValidStatementType(s.StatementType) {
		return fmt.Errorf("unknown statement_type %q", s.StatementType)
	}
	if strings.TrimSpace(s.Period) == "" {
		return fmt.Errorf("statement of type %q has empty period", s.StatementType)
	}
	return nil
}

// ValueOf returns the item's numeric value as a plain pointer
func (li *RawLineItem) ValueOf() *float64 {
	if li.Value == nil {
		return nil
	}
	v := float64(*li.Value)
	return &v
}

// FlexFloat accepts the numeric formats extraction services actually
// emit: JSON numbers, or strings such as "(500)", "$1,234.56". A
// parenthesized figure is negative.
type FlexFloat float64

var numericPattern = regexp.MustCompile(`[\d.]+`)

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexFloat(num)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value is neither number nor string: %s", data)
	}

	v, err := parseFlexibleNumber(s)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

func parseFlexibleNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, " ", "")

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	} else if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	match := numericPattern.FindString(s)
	if match == "" {
		return 0, fmt.Errorf("no numeric value in %q", s)
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as number: %w", s, err)
	}

	if negative {
		v = -v
	}
	return v, nil
}
