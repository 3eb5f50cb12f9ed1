// Package pagination resolves the page window for list endpoints and
// wraps one page of results for the response body.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Params is the resolved page window, ready for a LIMIT/OFFSET query.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads the page window from the query string. Both
// page/size (1-based pages) and limit/offset are accepted; page wins
// when both are present.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size, _ = strconv.Atoi(c.QueryParam("limit"))
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	offset := 0
	if page, _ := strconv.Atoi(c.QueryParam("page")); page > 1 {
		offset = (page - 1) * size
	} else if off, _ := strconv.Atoi(c.QueryParam("offset")); off > 0 {
		offset = off
	}

	return Params{Limit: size, Offset: offset}
}

// Response wraps one page of results.
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
