package session

import (
	"image"

	"github.com/jrwilson/substrate/protocol"
)

// requestRegion converts a FramebufferUpdateRequest into a rectangle clipped
// to bounds. It reports false for a request that covers nothing: an empty
// size or an origin outside bounds.
func requestRegion(req *protocol.FramebufferUpdateRequest, bounds image.Rectangle) (image.Rectangle, bool) {
	x, y := int(req.X), int(req.Y)
	if x >= bounds.Max.X || y >= bounds.Max.Y || req.Width == 0 || req.Height == 0 {
		return image.Rectangle{}, false
	}

	r := image.Rect(x, y, x+int(req.Width), y+int(req.Height))
	return r.Intersect(bounds), true
}

// PendingRegion accumulates update requests until an update answers them.
type PendingRegion struct {
	rect        image.Rectangle
	outstanding bool
}

// Add merges r into the pending region: it becomes the pending region when
// none is outstanding and is unioned with it otherwise.
func (p *PendingRegion) Add(r image.Rectangle) {
	if !p.outstanding {
		p.rect = r
		p.outstanding = true
		return
	}

	p.rect = p.rect.Union(r)
}

// Take returns the pending region and clears it.
func (p *PendingRegion) Take() image.Rectangle {
	r := p.rect
	p.rect = image.Rectangle{}
	p.outstanding = false
	return r
}

func (p *PendingRegion) Outstanding() bool {
	return p.outstanding
}

func (p *PendingRegion) Rect() image.Rectangle {
	return p.rect
}
