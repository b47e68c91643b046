package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Rectangle is one region of a FramebufferUpdate. Only RAW pixel data is
// carried; Pixels holds Width*Height values row by row.
type Rectangle struct {
	X        uint16
	Y        uint16
	Width    uint16
	Height   uint16
	Encoding EncodingType
	Pixels   []uint32
}

// Area is the number of pixels the rectangle covers.
func (r *Rectangle) Area() int {
	return int(r.Width) * int(r.Height)
}

// AppendTo appends the wire form of r to b, writing pixel values in the
// byte order of pf.
func (r *Rectangle) AppendTo(b []byte, pf PixelFormat) ([]byte, error) {
	if r.Encoding != EncodingRaw {
		return nil, fmt.Errorf("%s: %w", r.Encoding, ErrUnknownEncoding)
	}

	if len(r.Pixels) != r.Area() {
		return nil, fmt.Errorf("%d pixels for %dx%d: %w", len(r.Pixels), r.Width, r.Height, ErrShortPixelData)
	}

	b = binary.BigEndian.AppendUint16(b, r.X)
	b = binary.BigEndian.AppendUint16(b, r.Y)
	b = binary.BigEndian.AppendUint16(b, r.Width)
	b = binary.BigEndian.AppendUint16(b, r.Height)
	b = binary.BigEndian.AppendUint32(b, uint32(r.Encoding))

	var px [4]byte
	bo := pf.ByteOrder()
	for _, p := range r.Pixels {
		bo.PutUint32(px[:], p)
		b = append(b, px[:]...)
	}

	return b, nil
}

// FramebufferUpdate carries rectangles of pixel data to the client.
// PixelFormat is not sent; it is the format the client asked for and decides
// the byte order of every pixel value.
type FramebufferUpdate struct {
	PixelFormat PixelFormat
	Rectangles  []Rectangle
}

func (m *FramebufferUpdate) Type() MessageType {
	return FramebufferUpdateType
}

func (m *FramebufferUpdate) Marshal() ([]byte, error) {
	if len(m.Rectangles) > math.MaxUint16 {
		return nil, fmt.Errorf("%d rectangles: %w", len(m.Rectangles), ErrTooManyRectangles)
	}

	if err := m.PixelFormat.CheckRaw(); err != nil {
		return nil, err
	}

	size := 4
	for i := range m.Rectangles {
		size += 12 + 4*m.Rectangles[i].Area()
	}

	b := make([]byte, 0, size)
	b = append(b, byte(FramebufferUpdateType), 0)
	b = binary.BigEndian.AppendUint16(b, uint16(len(m.Rectangles)))

	var err error
	for i := range m.Rectangles {
		if b, err = m.Rectangles[i].AppendTo(b, m.PixelFormat); err != nil {
			return nil, err
		}
	}

	return b, nil
}
