package framebuffer

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/nfnt/resize"

	"github.com/jrwilson/substrate/protocol"
)

var (
	ErrOutOfBounds    = errors.New("Rectangle does not fit in the framebuffer")
	ErrShortPixelData = errors.New("Rectangle pixel data does not match its dimensions")
)

// Framebuffer is a Width x Height grid of pixel values laid out in
// PixelFormat, row by row.
type Framebuffer struct {
	Width       int
	Height      int
	PixelFormat protocol.PixelFormat
	Pix         []uint32
}

func New(width, height int, pf protocol.PixelFormat) *Framebuffer {
	return &Framebuffer{
		Width:       width,
		Height:      height,
		PixelFormat: pf,
		Pix:         make([]uint32, width*height),
	}
}

func (fb *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, fb.Width, fb.Height)
}

func (fb *Framebuffer) At(x, y int) uint32 {
	return fb.Pix[y*fb.Width+x]
}

func (fb *Framebuffer) Set(x, y int, p uint32) {
	fb.Pix[y*fb.Width+x] = p
}

// Blit copies the pixels of a RAW rectangle into the framebuffer at the
// rectangle's offset. Nothing is written unless the whole rectangle fits.
func (fb *Framebuffer) Blit(r protocol.Rectangle) error {
	x, y, w, h := int(r.X), int(r.Y), int(r.Width), int(r.Height)

	if x+w > fb.Width || y+h > fb.Height {
		return fmt.Errorf("%dx%d at (%d,%d) in %dx%d: %w", w, h, x, y, fb.Width, fb.Height, ErrOutOfBounds)
	}

	if len(r.Pixels) != w*h {
		return fmt.Errorf("%d pixels for %dx%d: %w", len(r.Pixels), w, h, ErrShortPixelData)
	}

	for row := 0; row < h; row++ {
		start := (y+row)*fb.Width + x
		copy(fb.Pix[start:start+w], r.Pixels[row*w:(row+1)*w])
	}

	return nil
}

// Region returns the pixels inside r, row by row, translated into pf. r is
// clipped to the framebuffer.
func (fb *Framebuffer) Region(r image.Rectangle, pf protocol.PixelFormat) []uint32 {
	r = r.Intersect(fb.Bounds())

	pixels := make([]uint32, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for _, p := range fb.Pix[y*fb.Width+r.Min.X : y*fb.Width+r.Max.X] {
			pixels = append(pixels, Translate(p, fb.PixelFormat, pf))
		}
	}

	return pixels
}

// Translate re-packs a true colour pixel value from one format into another,
// scaling each component to the destination's maximum.
func Translate(p uint32, from, to protocol.PixelFormat) uint32 {
	if from == to {
		return p
	}

	r := scale((p>>from.RedShift)&uint32(from.RedMax), from.RedMax, to.RedMax)
	g := scale((p>>from.GreenShift)&uint32(from.GreenMax), from.GreenMax, to.GreenMax)
	b := scale((p>>from.BlueShift)&uint32(from.BlueMax), from.BlueMax, to.BlueMax)

	return r<<to.RedShift | g<<to.GreenShift | b<<to.BlueShift
}

func scale(v uint32, from, to uint16) uint32 {
	if from == to || from == 0 {
		return v
	}

	return v * uint32(to) / uint32(from)
}

// RGBA converts the framebuffer into an opaque RGBA image.
func (fb *Framebuffer) RGBA() *image.RGBA {
	img := image.NewRGBA(fb.Bounds())
	rgba := protocol.PixelFormat{
		RedMax:     0xff,
		GreenMax:   0xff,
		BlueMax:    0xff,
		RedShift:   0,
		GreenShift: 8,
		BlueShift:  16,
	}

	for i, p := range fb.Pix {
		p = Translate(p, fb.PixelFormat, rgba)
		img.Pix[4*i] = uint8(p)
		img.Pix[4*i+1] = uint8(p >> 8)
		img.Pix[4*i+2] = uint8(p >> 16)
		img.Pix[4*i+3] = 0xff
	}

	return img
}

// Thumbnail scales the framebuffer to the given width, keeping its aspect
// ratio. A width of 0 keeps the original size.
func (fb *Framebuffer) Thumbnail(width uint) image.Image {
	img := fb.RGBA()
	if width == 0 || int(width) == fb.Width {
		return img
	}

	return resize.Resize(width, 0, img, resize.Lanczos3)
}

// Snapshot writes a PNG thumbnail of the framebuffer to w.
func (fb *Framebuffer) Snapshot(w io.Writer, width uint) error {
	return png.Encode(w, fb.Thumbnail(width))
}
