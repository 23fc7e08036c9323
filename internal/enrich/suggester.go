// Package enrich fronts the external suggestion collaborator that proposes
// fixes for invalid rows. The collaborator itself is a black box behind the
// Suggester interface; this package owns the rate limiting and caching that
// protect it.
package enrich

import (
	"context"
	"errors"

	"github.com/csvflow/csvflow/internal/core"
)

// ErrRateLimited is returned when a request would exceed the configured
// budget for the collaborator.
var ErrRateLimited = errors.New("suggestion rate limit exceeded")

// Fix is one proposed correction for a single cell.
type Fix struct {
	RowIndex       int    `json:"row_index"`
	ColumnIndex    int    `json:"column_index"`
	OriginalValue  string `json:"original_value"`
	SuggestedValue string `json:"suggested_value"`
	Explanation    string `json:"explanation"`
}

// SuggestRequest carries the validation errors and surrounding rows the
// collaborator needs to propose fixes.
type SuggestRequest struct {
	Errors         []map[string]any `json:"errors"`
	DataRows       []core.Row       `json:"data_rows"`
	TemplateFields []map[string]any `json:"template_fields"`
	ValidRows      []core.Row       `json:"valid_rows,omitempty"`
}

// SuggestResponse is the collaborator's answer.
type SuggestResponse struct {
	Fixes []Fix `json:"fixes"`
}

// Suggester proposes fixes for invalid rows.
type Suggester interface {
	SuggestFixes(ctx context.Context, req SuggestRequest) (SuggestResponse, error)
}

// Unconfigured is the default Suggester wired when no collaborator endpoint
// is set. It answers every request with an empty fix list so the endpoint
// stays usable without the external service.
type Unconfigured struct{}

func (Unconfigured) SuggestFixes(context.Context, SuggestRequest) (SuggestResponse, error) {
	return SuggestResponse{Fixes: []Fix{}}, nil
}
