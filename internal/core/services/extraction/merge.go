package extraction

// mergeKey deduplicates statements across chunks. Period matching is
// exact; no fuzzy matching.
type mergeKey struct {
	statementType string
	period        string
}

// MergeStatements reduces the per-chunk extraction results for one job
// into a deduplicated set. When several chunks produced a statement for
// the same (type, period), the candidate with strictly more line items
// wins; the first seen wins ties. A statement never carries line items
// from more than one candidate.
func MergeStatements(results [][]RawStatement) []RawStatement {
	best := make(map[mergeKey]RawStatement)
	var order []mergeKey

	for _, chunkResult := range results {
		for _, stmt := range chunkResult {
			key := mergeKey{statementType: stmt.StatementType, period: stmt.Period}
			existing, seen := best[key]
			if !seen {
				best[key] = stmt
				order = append(order, key)
				continue
			}
			if len(stmt.LineItems) > len(existing.LineItems) {
				best[key] = stmt
			}
		}
	}

	merged := make([]RawStatement, 0, len(order))
	for _, key := range order {
		merged = append(merged, best[key])
	}
	return merged
}
