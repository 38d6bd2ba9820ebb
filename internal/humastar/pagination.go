// Pagination: HATEOAS pagination via RFC 8288 Link headers.
//
// Response bodies implement the Pager interface to emit next/prev/first/last
// Link headers. LinkTransformer reads these and sets the headers.
package humastar

import (
	"fmt"
	"net/url"
	"strconv"
)

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(u *url.URL) []string
}

// PageBody is a generic paginated response envelope.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// Page slices all into a PageBody. Out-of-range offsets give an empty page.
func Page[T any](all []T, offset, limit int) PageBody[T] {
	if limit <= 0 {
		limit = len(all)
	}
	p := PageBody[T]{Total: len(all), Offset: offset, Limit: limit, Data: []T{}}
	if offset < 0 || offset >= len(all) {
		return p
	}
	end := min(offset+limit, len(all))
	p.Data = all[offset:end]
	return p
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
// Query parameters other than offset and limit are preserved.
func (p PageBody[T]) PaginationLinks(u *url.URL) []string {
	if p.Limit <= 0 {
		return nil
	}
	link := func(offset int, rel string) string {
		q := u.Query()
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(p.Limit))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, u.Path, q.Encode(), rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	lastOffset := max(((p.Total-1)/p.Limit)*p.Limit, 0)
	return append(links, link(lastOffset, "last"))
}
