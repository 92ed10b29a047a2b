// Package pagination normalizes page-number paging for catalog listings.
package pagination

import "github.com/angelmondragon/storefront/pkg/types"

const (
	// DefaultLimit is the catalog page size when a limit is not provided.
	DefaultLimit = 12
	// MaxLimit caps how many products one page can request.
	MaxLimit = 100
	// FeaturedLimit is the default size of the featured strip.
	FeaturedLimit = 8
)

// NormalizeLimit enforces the default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// TotalPages rounds up; an empty result still has one page.
func TotalPages(total, limit int) int {
	limit = NormalizeLimit(limit)
	if total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// Complete fills the fields an upstream omitted. When the upstream sent no
// metadata at all, the page is assumed to be the whole result.
func Complete(meta *types.Pagination, page, limit, count int) *types.Pagination {
	if meta == nil {
		meta = &types.Pagination{Total: count}
	}
	out := *meta
	if out.Page <= 0 {
		out.Page = NormalizePage(page)
	}
	if out.Limit <= 0 {
		out.Limit = NormalizeLimit(limit)
	}
	if out.TotalPages <= 0 {
		out.TotalPages = TotalPages(out.Total, out.Limit)
	}
	return &out
}
