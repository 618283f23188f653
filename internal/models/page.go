package models

// Page is a windowed result set. Offset echoes the request and Total is
// the server-reported count; neither is re-derived from len(Items).
// Invariants: 0 <= Offset <= Total, len(Items) <= Count.
type Page[T any] struct {
	Items  []T
	Offset int
	Count  int
	Total  int
}

// NewPage wraps items in a page window.
func NewPage[T any](items []T, offset, count, total int) Page[T] {
	return Page[T]{Items: items, Offset: offset, Count: count, Total: total}
}

// HasMore reports whether entries remain past this window.
func (p Page[T]) HasMore() bool {
	return p.Offset+len(p.Items) < p.Total
}
