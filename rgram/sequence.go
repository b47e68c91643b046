package rgram

// Sequence parses its children strictly in order.
type Sequence struct {
	els   []GramEl
	idx   int
	fault bool
}

func NewSequence(els ...GramEl) *Sequence {
	s := &Sequence{}
	for _, el := range els {
		s.Append(el)
	}

	return s
}

// Append adds el to the end of the sequence. A nil element is ignored.
// Appending while a parse is in progress is not supported.
func (s *Sequence) Append(el GramEl) {
	if el != nil {
		s.els = append(s.els, el)
	}
}

// Put feeds the current child until the sequence completes or c runs dry.
// Children that are already complete without input (an empty array, a zero
// length sequence) are stepped over even when c is empty.
func (s *Sequence) Put(c *Cursor) {
	mustNotBeDone(s)

	for !s.Done() {
		el := s.els[s.idx]
		if el.Done() {
			if Faulted(el) {
				s.fault = true
				return
			}

			s.idx++
			continue
		}

		if c.Empty() {
			return
		}

		el.Put(c)
	}
}

func (s *Sequence) Done() bool {
	return s.fault || s.idx == len(s.els)
}

func (s *Sequence) Fault() bool {
	return s.fault
}

func (s *Sequence) Reset() {
	for _, el := range s.els {
		el.Reset()
	}

	s.idx = 0
	s.fault = false
}

// Len is the number of children.
func (s *Sequence) Len() int {
	return len(s.els)
}

// Index is the position of the child currently being parsed.
func (s *Sequence) Index() int {
	return s.idx
}

var _ Faulter = (*Sequence)(nil)
