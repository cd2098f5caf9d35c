package models

const (
	DefaultPageSize = 3
	MaxPageSize     = 50
)

type PageDirection string

const (
	PageNext PageDirection = "next"
	PagePrev PageDirection = "prev"
)

// PageRequest asks for the page after (next) or before (prev) Cursor.
// An empty cursor means the first page.
type PageRequest struct {
	Cursor    string
	Direction PageDirection
	Limit     int
}

func (r PageRequest) Normalize() PageRequest {
	if r.Direction != PagePrev {
		r.Direction = PageNext
	}
	if r.Cursor == "" {
		r.Direction = PageNext
	}
	if r.Limit <= 0 {
		r.Limit = DefaultPageSize
	}
	if r.Limit > MaxPageSize {
		r.Limit = MaxPageSize
	}
	return r
}

// Page holds one slice of an ordered listing. An empty NextCursor marks the
// last page and an empty PrevCursor the first.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	PrevCursor string `json:"prevCursor,omitempty"`
}
