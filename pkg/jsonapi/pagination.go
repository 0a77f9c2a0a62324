package jsonapi

import (
	"net/url"
	"strconv"
)

// Pagination describes one page of a collection and knows how to render
// its metadata and navigation links.
type Pagination struct {
	Total   int64  // total items across all pages
	Page    int    // current page, 1-based
	PerPage int    // items per page
	BaseURL string // path the navigation links point at
}

// NewPagination creates a Pagination, normalizing out-of-range values.
func NewPagination(total int64, page, perPage int, baseURL string) *Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return &Pagination{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		BaseURL: baseURL,
	}
}

// TotalPages returns ceil(Total/PerPage). An empty collection still has
// one page so clients can always render page 1.
func (p *Pagination) TotalPages() int {
	if p.Total == 0 {
		return 1
	}
	pages := int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if pages < 1 {
		pages = 1
	}
	return pages
}

// HasPrev reports whether a previous page exists.
func (p *Pagination) HasPrev() bool {
	return p.Page > 1
}

// HasNext reports whether a next page exists.
func (p *Pagination) HasNext() bool {
	return p.Page < p.TotalPages()
}

// Offset returns the row offset of this page.
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the row limit of this page.
func (p *Pagination) Limit() int {
	return p.PerPage
}

// Links renders self/first/last plus prev/next where they exist.
func (p *Pagination) Links() *Links {
	links := &Links{
		Self:  p.pageURL(p.Page),
		First: p.pageURL(1),
		Last:  p.pageURL(p.TotalPages()),
	}

	if p.HasPrev() {
		links.Prev = p.pageURL(p.Page - 1)
	}
	if p.HasNext() {
		links.Next = p.pageURL(p.Page + 1)
	}

	return links
}

func (p *Pagination) pageURL(page int) string {
	if p.BaseURL == "" {
		return ""
	}

	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return p.BaseURL
	}

	q := u.Query()
	q.Set("page[number]", strconv.Itoa(page))
	q.Set("page[size]", strconv.Itoa(p.PerPage))
	u.RawQuery = q.Encode()

	return u.String()
}

// Meta returns the page metadata rendered into collection envelopes.
func (p *Pagination) Meta() Meta {
	return Meta{
		"total":    p.Total,
		"page":     p.Page,
		"per_page": p.PerPage,
		"pages":    p.TotalPages(),
	}
}

// ParsePaginationParams reads the page and page-size from a query
// string. JSON:API style (page[number], page[size]) wins over the plain
// page / per_page / limit parameters. Invalid or missing values fall
// back to page 1 and defaultPerPage; the size is capped at 100.
func ParsePaginationParams(query url.Values, defaultPerPage int) (page, perPage int) {
	page = firstPositive(query, []string{"page[number]", "page"}, 1)
	perPage = firstPositive(query, []string{"page[size]", "per_page", "limit"}, defaultPerPage)

	if perPage > 100 {
		perPage = 100
	}

	return page, perPage
}

// firstPositive returns the first parseable positive integer among the
// named query parameters, else the fallback.
func firstPositive(query url.Values, names []string, fallback int) int {
	for _, name := range names {
		if v := query.Get(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return fallback
}
