// Package pagination reads limit/offset query parameters and shapes list
// responses.
package pagination

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit (or page_size) and offset (or a 1-based page,
// which wins). Bad values fall back to the defaults; limit is clamped to
// MaxLimit.
func FromContext(c echo.Context) Params {
	p := Params{Limit: firstPositive(c.QueryParam("limit"), c.QueryParam("page_size"))}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	p.Limit = min(p.Limit, MaxLimit)

	if page := firstPositive(c.QueryParam("page")); page > 0 {
		p.Offset = (page - 1) * p.Limit
	} else if off, err := strconv.Atoi(c.QueryParam("offset")); err == nil && off > 0 {
		p.Offset = off
	}
	return p
}

func firstPositive(values ...string) int {
	for _, v := range values {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// Page is the JSON envelope of every list endpoint. Data is never null.
type Page[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func NewPage[T any](items []T, total int, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Data:    items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+len(items) < total,
	}
}

// Respond writes a 200 with the page envelope.
func Respond[T any](c echo.Context, items []T, total int, p Params) error {
	return c.JSON(http.StatusOK, NewPage(items, total, p))
}
