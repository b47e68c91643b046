package protocol

import (
	"encoding/binary"
	"fmt"
)

// PixelFormatLength is the size of a PixelFormat on the wire, padding
// included.
const PixelFormatLength = 16

// PixelFormat describes how pixel values are laid out.
type PixelFormat struct {
	BitsPerPixel uint8
	Depth        uint8
	BigEndian    bool
	TrueColour   bool

	RedMax     uint16
	GreenMax   uint16
	BlueMax    uint16
	RedShift   uint8
	GreenShift uint8
	BlueShift  uint8
}

// PixelFormatRGB888 is 32 bits per pixel, 24 bit depth true colour with red
// in the third byte, in the given byte order.
func PixelFormatRGB888(bigEndian bool) PixelFormat {
	return PixelFormat{
		BitsPerPixel: 32,
		Depth:        24,
		BigEndian:    bigEndian,
		TrueColour:   true,
		RedMax:       0xff,
		GreenMax:     0xff,
		BlueMax:      0xff,
		RedShift:     16,
		GreenShift:   8,
		BlueShift:    0,
	}
}

// ByteOrder is the order pixel values are written in.
func (pf PixelFormat) ByteOrder() binary.ByteOrder {
	if pf.BigEndian {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// BytesPerPixel is the size of one pixel value.
func (pf PixelFormat) BytesPerPixel() int {
	return int(pf.BitsPerPixel) / 8
}

// CheckRaw returns an error unless pixels in this format can be carried by
// RAW rectangles, which are always 4 bytes per pixel here.
func (pf PixelFormat) CheckRaw() error {
	if pf.BitsPerPixel != 32 || !pf.TrueColour {
		return fmt.Errorf("%d bpp, true colour %t: %w", pf.BitsPerPixel, pf.TrueColour, ErrUnsupportedPixelFmt)
	}

	if pf.RedMax == 0 || pf.GreenMax == 0 || pf.BlueMax == 0 {
		return fmt.Errorf("zero colour max: %w", ErrUnsupportedPixelFmt)
	}

	return nil
}

func (pf PixelFormat) String() string {
	return fmt.Sprintf("%dbpp depth %d big-endian %t true-colour %t max %d/%d/%d shift %d/%d/%d",
		pf.BitsPerPixel, pf.Depth, pf.BigEndian, pf.TrueColour,
		pf.RedMax, pf.GreenMax, pf.BlueMax,
		pf.RedShift, pf.GreenShift, pf.BlueShift)
}

// AppendTo appends the 16 byte wire form of pf to b.
func (pf PixelFormat) AppendTo(b []byte) []byte {
	b = append(b, pf.BitsPerPixel, pf.Depth, boolByte(pf.BigEndian), boolByte(pf.TrueColour))
	b = binary.BigEndian.AppendUint16(b, pf.RedMax)
	b = binary.BigEndian.AppendUint16(b, pf.GreenMax)
	b = binary.BigEndian.AppendUint16(b, pf.BlueMax)
	b = append(b, pf.RedShift, pf.GreenShift, pf.BlueShift)
	return append(b, 0, 0, 0)
}

func (pf PixelFormat) Marshal() ([]byte, error) {
	return pf.AppendTo(make([]byte, 0, PixelFormatLength)), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}

	return 0
}
