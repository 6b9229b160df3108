// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows returned by paged endpoints.
// Keep this as an int because most call sites add/subtract and then
// cast to int64 for Mongo Find().SetLimit().
const PageSize = 50

// LimitPlusOne returns PageSize+1 as int64 for look-ahead pagination
// (fetch one extra document to detect hasNext).
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	s := query.Get(r, "start")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Offset is the number of rows to skip for a 1-based start.
func Offset(start int) int64 {
	if start < 1 {
		return 0
	}
	return int64(start - 1)
}

// TrimPage trims rows fetched with LimitPlusOne to PageSize and reports
// whether a further page exists.
func TrimPage[T any](rows *[]T) (hasNext bool) {
	if len(*rows) > PageSize {
		*rows = (*rows)[:PageSize]
		return true
	}
	return false
}

// Range holds computed range values for a paged response.
type Range struct {
	Start     int `json:"start"` // 1-based start index (0 if no results)
	End       int `json:"end"`   // 1-based end index (0 if no results)
	PrevStart int `json:"prev_start"`
	NextStart int `json:"next_start,omitempty"` // 0 when there is no next page
}

// ComputeRange calculates range values given the current start index, the
// number of items shown and whether another page follows.
func ComputeRange(start, shown int, hasNext bool) Range {
	if shown == 0 {
		return Range{PrevStart: 1}
	}

	prevStart := start - PageSize
	if prevStart < 1 {
		prevStart = 1
	}

	rg := Range{
		Start:     start,
		End:       start + shown - 1,
		PrevStart: prevStart,
	}
	if hasNext {
		rg.NextStart = start + shown
	}
	return rg
}
