package query

import (
	"context"
	"record-sync/models"
)

// Lister is the slice of the record store the listing pipeline needs.
type Lister interface {
	Count(ctx context.Context, filter []Condition) (int, error)
	Find(ctx context.Context, filter []Condition, sort []Sort, skip, limit int) ([]*models.Record, error)
}

// PageToken points at an adjacent page using the same limit.
type PageToken struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination carries next/prev tokens; either is omitted when there is no
// page in that direction.
type Pagination struct {
	Next *PageToken `json:"next,omitempty"`
	Prev *PageToken `json:"prev,omitempty"`
}

// ListResult is the paginated outcome of one translated query.
type ListResult struct {
	Items      []map[string]any
	Count      int
	Pagination Pagination
}

// Run executes the translated query: a total count over the filter, then
// one page of records with sort and projection applied.
func Run(ctx context.Context, store Lister, opts *Options) (*ListResult, error) {
	total, err := store.Count(ctx, opts.Filter)
	if err != nil {
		return nil, err
	}

	skip := (opts.Page - 1) * opts.Limit

	records, err := store.Find(ctx, opts.Filter, opts.Sort, skip, opts.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.View(opts.Projection))
	}

	result := &ListResult{
		Items: items,
		Count: len(items),
	}
	if skip+opts.Limit < total {
		result.Pagination.Next = &PageToken{Page: opts.Page + 1, Limit: opts.Limit}
	}
	if opts.Page > 1 {
		result.Pagination.Prev = &PageToken{Page: opts.Page - 1, Limit: opts.Limit}
	}

	return result, nil
}
