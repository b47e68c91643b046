package rgram

import "encoding/binary"

// Scalar decodes a fixed width integer. Multi-byte values are converted from
// their wire byte order exactly once, when the final byte arrives.
type Scalar[T any] struct {
	buf    [4]byte
	width  int
	count  int
	value  T
	decode func([]byte) T
}

func newScalar[T any](width int, decode func([]byte) T) *Scalar[T] {
	return &Scalar[T]{width: width, decode: decode}
}

func (s *Scalar[T]) Put(c *Cursor) {
	mustNotBeDone(s)

	s.count += c.Consume(s.buf[s.count:s.width])
	if s.Done() {
		s.value = s.decode(s.buf[:s.width])
	}
}

func (s *Scalar[T]) Done() bool {
	return s.count == s.width
}

func (s *Scalar[T]) Get() T {
	if !s.Done() {
		panic(ErrNotDone)
	}

	return s.value
}

func (s *Scalar[T]) Reset() {
	s.count = 0
}

func NewChar() *Scalar[byte] {
	return newScalar(1, func(b []byte) byte { return b[0] })
}

func NewUint8() *Scalar[uint8] {
	return newScalar(1, func(b []byte) uint8 { return b[0] })
}

func NewInt8() *Scalar[int8] {
	return newScalar(1, func(b []byte) int8 { return int8(b[0]) })
}

func NewUint16() *Scalar[uint16] {
	return NewUint16With(binary.BigEndian)
}

func NewInt16() *Scalar[int16] {
	return newScalar(2, func(b []byte) int16 { return int16(binary.BigEndian.Uint16(b)) })
}

func NewUint32() *Scalar[uint32] {
	return NewUint32With(binary.BigEndian)
}

func NewInt32() *Scalar[int32] {
	return newScalar(4, func(b []byte) int32 { return int32(binary.BigEndian.Uint32(b)) })
}

// NewUint16With decodes a 16 bit value in the given byte order rather than
// network order.
func NewUint16With(bo binary.ByteOrder) *Scalar[uint16] {
	return newScalar(2, bo.Uint16)
}

// NewUint32With decodes a 32 bit value in the given byte order rather than
// network order. Pixel values use the byte order of the pixel format.
func NewUint32With(bo binary.ByteOrder) *Scalar[uint32] {
	return newScalar(4, bo.Uint32)
}

var (
	_ Value[byte]   = (*Scalar[byte])(nil)
	_ Value[int16]  = (*Scalar[int16])(nil)
	_ Value[uint32] = (*Scalar[uint32])(nil)
)
