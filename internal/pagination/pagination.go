// Package pagination holds the cursor protocol shared by every
// time-ordered listing: comments, the activity feed, bookmarks and
// notifications.
//
// Pages are ordered by the composite key (created_at DESC, id DESC). The
// secondary id key makes the ordering total: rows written in the same
// timestamp tick would otherwise be skipped or duplicated across page
// boundaries. A cursor is the id of the last row on the previous page; the
// next query resolves that id back to its full sort position and seeks past
// it, so page cost does not grow with depth the way offset paging does.
package pagination

import (
	"errors"
	"time"
)

const (
	// DefaultLimit applies when the caller sends no limit.
	DefaultLimit = 20
	// MaxLimit caps a single page.
	MaxLimit = 50
)

// ErrInvalidCursor is returned when a cursor does not resolve to a row in
// the collection being paged, for example after the row was hard-deleted.
var ErrInvalidCursor = errors.New("invalid pagination cursor")

// Params are the normalized inputs of one page request. An empty Cursor
// means the first page.
type Params struct {
	Cursor string
	Limit  int
}

// Normalized clamps the limit into [1, MaxLimit], substituting DefaultLimit
// for zero or negative values.
func (p Params) Normalized() Params {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// FetchLimit is the number of rows to ask the store for: one more than the
// page size, so the presence of a further page is known without a count
// query.
func (p Params) FetchLimit() int {
	return p.Limit + 1
}

// HasMore reports whether a fetch of FetchLimit rows ran past the page.
func (p Params) HasMore(fetched int) bool {
	return fetched > p.Limit
}

// SortClause is the ORDER BY fragment every paged query uses.
const SortClause = "created_at DESC, id DESC"

// SeekClause is the WHERE fragment that starts a page strictly after the
// cursor row's sort position. Bind it with SeekArgs.
const SeekClause = "created_at < ? OR (created_at = ? AND id < ?)"

// SeekArgs returns the bind arguments for SeekClause given the cursor row's
// sort position.
func SeekArgs(createdAt time.Time, id string) []interface{} {
	return []interface{}{createdAt, createdAt, id}
}
