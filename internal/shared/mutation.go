package shared

// MutationResult reports how many records an update or delete touched.
// The field names follow the document-store style the API clients consume.
type MutationResult struct {
	Matched  int64 `json:"n"`
	Modified int64 `json:"nModified"`
	OK       int   `json:"ok"`
}

// NewMutationResult builds a result where every matched record was modified.
func NewMutationResult(affected int64) MutationResult {
	return MutationResult{Matched: affected, Modified: affected, OK: 1}
}
