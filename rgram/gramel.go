package rgram

import "errors"

var (
	ErrPutDone = errors.New("rgram: put called on a complete element")
	ErrNotDone = errors.New("rgram: value read before the element completed")
)

// GramEl is a resumable parser for one wire value or composite.
type GramEl interface {
	// Put consumes as many bytes from c as the element still needs.
	Put(c *Cursor)

	// Done reports whether the element has a complete value (or has faulted).
	Done() bool

	// Reset returns the element to its initial, empty state.
	Reset()
}

// Value is a GramEl that yields a typed value once complete.
type Value[T any] interface {
	GramEl
	Get() T
}

// Faulter is implemented by elements that can complete in a terminal
// faulted state instead of with a value.
type Faulter interface {
	Fault() bool
}

// Faulted reports whether el is done because it faulted.
func Faulted(el GramEl) bool {
	f, ok := el.(Faulter)
	return ok && f.Fault()
}

// Feed runs el over data as a single chunk and returns the number of bytes
// consumed.
func Feed(el GramEl, data []byte) int {
	c := NewCursor(data)
	if !el.Done() {
		el.Put(c)
	}

	return c.Offset()
}

func mustNotBeDone(el GramEl) {
	if el.Done() {
		panic(ErrPutDone)
	}
}
