package common

import (
	"net/http"
	"strconv"
)

// Pagination holds normalised limit/offset values for list endpoints.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePagination reads limit and offset query parameters, applying the
// default and cap.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	p := Pagination{Limit: defaultLimit}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		p.Limit = l
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o > 0 {
		p.Offset = o
	}
	return p
}

// AtoiDefault converts a string to an integer, falling back on parse failure.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
