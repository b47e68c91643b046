package rgram

// Cursor is a forward only view over one chunk of input. It does not own the
// chunk and never copies past its end.
type Cursor struct {
	data []byte
	off  int
}

func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Consume copies up to len(dst) unread bytes into dst and returns how many
// were copied.
func (c *Cursor) Consume(dst []byte) int {
	n := copy(dst, c.data[c.off:])
	c.off += n
	return n
}

// Empty reports whether every byte of the chunk has been consumed.
func (c *Cursor) Empty() bool {
	return c.off == len(c.data)
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.data) - c.off
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int {
	return c.off
}
