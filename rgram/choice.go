package rgram

// Choice reads a discriminant and then parses the element mapped to its
// value. A discriminant with no mapping is a bad key: the choice completes in
// a faulted state and no mapped element is ever fed.
type Choice[K comparable] struct {
	key      Value[K]
	choices  map[K]GramEl
	selected GramEl
	badKey   bool
}

func NewChoice[K comparable](key Value[K]) *Choice[K] {
	return &Choice[K]{key: key, choices: make(map[K]GramEl)}
}

// Add maps k to el. The mapping must be complete before parsing begins.
func (ch *Choice[K]) Add(k K, el GramEl) *Choice[K] {
	ch.choices[k] = el
	return ch
}

// Put resolves the discriminant first and, within the same call, hands any
// remaining bytes to the selected element.
func (ch *Choice[K]) Put(c *Cursor) {
	mustNotBeDone(ch)

	if !ch.key.Done() {
		ch.key.Put(c)
		if !ch.key.Done() {
			return
		}

		el, ok := ch.choices[ch.key.Get()]
		if !ok {
			ch.badKey = true
			return
		}

		ch.selected = el
	}

	if !ch.selected.Done() && !c.Empty() {
		ch.selected.Put(c)
	}
}

func (ch *Choice[K]) Done() bool {
	if ch.badKey {
		return true
	}

	return ch.selected != nil && ch.selected.Done()
}

// Fault is true when the discriminant had no mapping or the selected element
// itself faulted.
func (ch *Choice[K]) Fault() bool {
	return ch.badKey || (ch.selected != nil && Faulted(ch.selected))
}

// BadKey reports whether the discriminant had no mapping.
func (ch *Choice[K]) BadKey() bool {
	return ch.badKey
}

// Get returns the discriminant.
func (ch *Choice[K]) Get() K {
	return ch.key.Get()
}

// Selected is the element chosen by the discriminant, or nil.
func (ch *Choice[K]) Selected() GramEl {
	return ch.selected
}

func (ch *Choice[K]) Reset() {
	ch.key.Reset()
	for _, el := range ch.choices {
		el.Reset()
	}

	ch.selected = nil
	ch.badKey = false
}

var _ Value[uint8] = (*Choice[uint8])(nil)
