package rgram

// FixedArray parses exactly n repetitions of an element.
type FixedArray[T any] struct {
	el     Value[T]
	values []T
	idx    int
	fault  bool
}

func NewFixedArray[T any](el Value[T], n int) *FixedArray[T] {
	return &FixedArray[T]{el: el, values: make([]T, n)}
}

func (a *FixedArray[T]) Put(c *Cursor) {
	mustNotBeDone(a)

	for !a.Done() && !c.Empty() {
		a.el.Put(c)
		if !a.el.Done() {
			continue
		}

		if Faulted(a.el) {
			a.fault = true
			return
		}

		a.values[a.idx] = a.el.Get()
		a.el.Reset()
		a.idx++
	}
}

func (a *FixedArray[T]) Done() bool {
	return a.fault || a.idx == len(a.values)
}

func (a *FixedArray[T]) Fault() bool {
	return a.fault
}

// Get returns the parsed values. The slice is reused after Reset.
func (a *FixedArray[T]) Get() []T {
	if !a.Done() {
		panic(ErrNotDone)
	}

	return a.values
}

func (a *FixedArray[T]) Reset() {
	a.el.Reset()
	a.idx = 0
	a.fault = false
}

// Len is the number of values the array holds when complete.
func (a *FixedArray[T]) Len() int {
	return len(a.values)
}

// NewPadding parses and discards n bytes.
func NewPadding(n int) *FixedArray[uint8] {
	return NewFixedArray[uint8](NewUint8(), n)
}

const maxPrealloc = 1 << 16

// DynamicArray parses n repetitions of an element where n is only known once
// a preceding length field has been decoded. It is never done before SetSize
// has been called.
type DynamicArray[T any] struct {
	el      Value[T]
	values  []T
	size    int
	sizeSet bool
	fault   bool
}

func NewDynamicArray[T any](el Value[T]) *DynamicArray[T] {
	return &DynamicArray[T]{el: el}
}

func (a *DynamicArray[T]) Put(c *Cursor) {
	mustNotBeDone(a)

	for !a.Done() && !c.Empty() {
		a.el.Put(c)
		if !a.el.Done() {
			continue
		}

		if Faulted(a.el) {
			a.fault = true
			return
		}

		a.values = append(a.values, a.el.Get())
		a.el.Reset()
	}
}

func (a *DynamicArray[T]) Done() bool {
	return a.fault || (a.sizeSet && len(a.values) == a.size)
}

func (a *DynamicArray[T]) Fault() bool {
	return a.fault
}

// Get returns the parsed values. The slice is reused after Reset.
func (a *DynamicArray[T]) Get() []T {
	if !a.Done() {
		panic(ErrNotDone)
	}

	return a.values
}

func (a *DynamicArray[T]) Reset() {
	a.values = a.values[:0]
	a.el.Reset()
	a.size = 0
	a.sizeSet = false
	a.fault = false
}

// SetSize fixes the number of values to parse for this pass. Storage beyond
// maxPrealloc values grows as values actually arrive, so a hostile length
// field cannot force a large allocation up front.
func (a *DynamicArray[T]) SetSize(n int) {
	a.size = n
	a.sizeSet = true

	if want := min(n, maxPrealloc); cap(a.values) < want {
		values := make([]T, len(a.values), want)
		copy(values, a.values)
		a.values = values
	}
}

// SizeSet reports whether SetSize has been called since the last Reset.
func (a *DynamicArray[T]) SizeSet() bool {
	return a.sizeSet
}

var (
	_ Value[[]byte]  = (*FixedArray[byte])(nil)
	_ Value[[]int32] = (*DynamicArray[int32])(nil)
	_ Faulter        = (*DynamicArray[int32])(nil)
)
