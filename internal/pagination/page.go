// Package pagination provides page/limit helpers for list endpoints.
package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize clamps page to >= 1 and limit to [1, MaxLimit], applying
// DefaultLimit when limit is unset.
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Offset converts a normalized page/limit pair into a SQL offset.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// Result is a paginated result set.
type Result[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// NewResult assembles a Result, computing total_pages from total and limit.
func NewResult[T any](data []T, total, page, limit int) Result[T] {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pages,
	}
}
