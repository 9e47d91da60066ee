// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/domain"
)

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// FromListResult maps every item of a domain page.
func FromListResult[E, T any](r domain.ListResult[E], mapFn func(E) T) ListResponse[T] {
	items := make([]T, 0, len(r.Items))
	for _, e := range r.Items {
		items = append(items, mapFn(e))
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: r.TotalCount,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
}

// --- Common Filters ---

// ListQuery contains the paging parameters shared by list endpoints.
type ListQuery struct {
	Search  string   `form:"search"`
	IDs     []string `form:"ids"`
	OrderBy string   `form:"orderBy"`
	Limit   int      `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int      `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts query parameters into a domain filter with defaults.
func (q ListQuery) ToFilter() (domain.ListFilter, error) {
	filter := domain.DefaultListFilter()
	filter.Search = q.Search
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		filter.Limit = q.Limit
	}
	filter.Offset = q.Offset

	for _, raw := range q.IDs {
		parsed, err := ParseID("ids", raw)
		if err != nil {
			return filter, err
		}
		filter.IDs = append(filter.IDs, parsed)
	}
	return filter, nil
}

// ParseID parses a UUID field, reporting field on failure.
func ParseID(field, raw string) (id.ID, error) {
	parsed, err := id.Parse(raw)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id format").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return parsed, nil
}
