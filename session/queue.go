package session

// Queue is the FIFO of serialised messages waiting to be sent.
type Queue struct {
	items [][]byte
}

func (q *Queue) Push(b []byte) {
	q.items = append(q.items, b)
}

// Pop removes and returns the oldest message.
func (q *Queue) Pop() ([]byte, bool) {
	if len(q.items) == 0 {
		return nil, false
	}

	b := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	return b, true
}

func (q *Queue) Len() int {
	return len(q.items)
}
