package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a normalized page request. Page is 1-based.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// New normalizes page and perPage: non-positive values fall back to the
// defaults and perPage is capped at MaxPerPage.
func New(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage < 1:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage}
}

// Limit returns the SQL LIMIT for the page.
func (p Params) Limit() int { return p.PerPage }

// Offset returns the SQL OFFSET for the page.
func (p Params) Offset() int { return (p.Page - 1) * p.PerPage }

// FromRequest reads the page and per_page query parameters. Values that do
// not parse are ignored.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return New(page, perPage)
}
