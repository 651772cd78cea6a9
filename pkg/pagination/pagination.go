package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// DefaultPageSize is the page size of page-numbered listings.
	DefaultPageSize = 10
)

// Params holds offset pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts offset pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit := clampLimit(atoi(c.QueryParam("limit")), DefaultLimit)
	offset := atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// Response wraps an offset-paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// Page holds 1-based page parameters.
type Page struct {
	Number int
	Size   int
}

// PageFromContext reads ?page=&limit= with a 1-based page number.
func PageFromContext(c echo.Context) Page {
	n := atoi(c.QueryParam("page"))
	if n < 1 {
		n = 1
	}
	return Page{Number: n, Size: clampLimit(atoi(c.QueryParam("limit")), DefaultPageSize)}
}

// Offset is the number of items preceding the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageInfo describes where a page sits in the full result.
type PageInfo struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

func (p Page) Info(total int) PageInfo {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return PageInfo{CurrentPage: p.Number, TotalPages: pages, TotalItems: total, ItemsPerPage: p.Size}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
