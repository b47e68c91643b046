package framebuffer

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrUnknownSource = errors.New("Unknown image source")

// Source produces the next image of a server's framebuffer.
type Source interface {
	Next(fb *Framebuffer)
}

// NewSource returns the source called name: "noise" or "pattern".
func NewSource(name string, seed int64) (Source, error) {
	switch name {
	case "noise":
		return &Noise{rand: rand.New(rand.NewSource(seed))}, nil
	case "pattern":
		return &Pattern{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownSource)
	}
}

// Noise fills every pixel with a random colour.
type Noise struct {
	rand *rand.Rand
}

func (n *Noise) Next(fb *Framebuffer) {
	pf := fb.PixelFormat
	for i := range fb.Pix {
		v := n.rand.Uint32()
		r := (v & uint32(pf.RedMax)) << pf.RedShift
		g := ((v >> 8) & uint32(pf.GreenMax)) << pf.GreenShift
		b := ((v >> 16) & uint32(pf.BlueMax)) << pf.BlueShift
		fb.Pix[i] = r | g | b
	}
}

// Pattern draws a diagonal gradient that moves one pixel per frame.
type Pattern struct {
	frame int
}

func (p *Pattern) Next(fb *Framebuffer) {
	pf := fb.PixelFormat

	for y := 0; y < fb.Height; y++ {
		for x := 0; x < fb.Width; x++ {
			r := uint32(x+p.frame) % (uint32(pf.RedMax) + 1)
			g := uint32(y+p.frame) % (uint32(pf.GreenMax) + 1)
			b := uint32(x+y) % (uint32(pf.BlueMax) + 1)
			fb.Set(x, y, r<<pf.RedShift|g<<pf.GreenShift|b<<pf.BlueShift)
		}
	}

	p.frame++
}

var (
	_ Source = (*Noise)(nil)
	_ Source = (*Pattern)(nil)
)
