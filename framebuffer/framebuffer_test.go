package framebuffer_test

import (
	"bytes"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/jrwilson/substrate/framebuffer"
	"github.com/jrwilson/substrate/protocol"
)

var _ = Describe("Framebuffer", func() {
	var fb *framebuffer.Framebuffer

	BeforeEach(func() {
		fb = framebuffer.New(10, 10, protocol.PixelFormatRGB888(false))
		for i := range fb.Pix {
			fb.Pix[i] = 0xdeadbeef
		}
	})

	Describe("Blit()", func() {
		It("writes only inside the rectangle", func() {
			pixels := make([]uint32, 20)
			for i := range pixels {
				pixels[i] = uint32(i + 1)
			}

			Expect(fb.Blit(protocol.Rectangle{X: 2, Y: 3, Width: 4, Height: 5, Pixels: pixels})).To(Succeed())

			for y := 0; y < 10; y++ {
				for x := 0; x < 10; x++ {
					if x >= 2 && x < 6 && y >= 3 && y < 8 {
						Expect(fb.At(x, y)).To(Equal(uint32((y-3)*4 + (x - 2) + 1)))
					} else {
						Expect(fb.At(x, y)).To(Equal(uint32(0xdeadbeef)))
					}
				}
			}
		})

		It("refuses a rectangle that does not fit", func() {
			err := fb.Blit(protocol.Rectangle{X: 8, Y: 0, Width: 4, Height: 1, Pixels: make([]uint32, 4)})
			Expect(err).To(MatchError(framebuffer.ErrOutOfBounds))
			Expect(fb.At(8, 0)).To(Equal(uint32(0xdeadbeef)))
		})

		It("refuses short pixel data", func() {
			err := fb.Blit(protocol.Rectangle{Width: 2, Height: 2, Pixels: make([]uint32, 3)})
			Expect(err).To(MatchError(framebuffer.ErrShortPixelData))
		})
	})

	Describe("Region()", func() {
		It("clips to the framebuffer", func() {
			fb.Set(9, 9, 7)
			Expect(fb.Region(image.Rect(9, 9, 20, 20), fb.PixelFormat)).To(Equal([]uint32{7}))
		})

		It("translates into the requested format", func() {
			fb.Set(0, 0, 0x00112233)

			bgr := protocol.PixelFormatRGB888(true)
			bgr.RedShift, bgr.BlueShift = 0, 16

			Expect(fb.Region(image.Rect(0, 0, 1, 1), bgr)).To(Equal([]uint32{0x00332211}))
		})
	})

	Describe("Translate()", func() {
		It("scales components to the destination maximum", func() {
			rgb565 := protocol.PixelFormat{
				BitsPerPixel: 32, Depth: 16, TrueColour: true,
				RedMax: 31, GreenMax: 63, BlueMax: 31,
				RedShift: 11, GreenShift: 5, BlueShift: 0,
			}

			p := framebuffer.Translate(0x00ffffff, protocol.PixelFormatRGB888(false), rgb565)
			Expect(p).To(Equal(uint32(0xffff)))
		})

		It("ignores byte order, which only affects the wire", func() {
			p := framebuffer.Translate(0x00123456, protocol.PixelFormatRGB888(false), protocol.PixelFormatRGB888(true))
			Expect(p).To(Equal(uint32(0x00123456)))
		})
	})

	Describe("Snapshot()", func() {
		It("writes a PNG scaled to the requested width", func() {
			fb = framebuffer.New(240, 160, protocol.PixelFormatRGB888(false))
			w := bytes.NewBuffer([]byte{})

			Expect(fb.Snapshot(w, 120)).To(Succeed())

			img, err := png.Decode(w)
			Expect(err).To(Succeed())
			Expect(img.Bounds()).To(Equal(image.Rect(0, 0, 120, 80)))
		})

		It("converts pixels to RGBA", func() {
			fb.Set(0, 0, 0x00112233)
			img := fb.RGBA()

			Expect(img.Pix[:4]).To(Equal([]uint8{0x11, 0x22, 0x33, 0xff}))
		})
	})
})

var _ = Describe("Source", func() {
	It("rejects unknown sources", func() {
		_, err := framebuffer.NewSource("webcam", 1)
		Expect(err).To(MatchError(framebuffer.ErrUnknownSource))
	})

	It("changes the image on every frame", func() {
		for _, name := range []string{"noise", "pattern"} {
			src, err := framebuffer.NewSource(name, 1)
			Expect(err).To(Succeed())

			fb := framebuffer.New(16, 16, protocol.PixelFormatRGB888(false))
			src.Next(fb)
			first := append([]uint32(nil), fb.Pix...)
			src.Next(fb)

			Expect(fb.Pix).NotTo(Equal(first), name)
		}
	})

	It("stays within the colour masks", func() {
		src, _ := framebuffer.NewSource("noise", 7)
		fb := framebuffer.New(8, 8, protocol.PixelFormatRGB888(false))
		src.Next(fb)

		for _, p := range fb.Pix {
			Expect(p & 0xff000000).To(BeZero())
		}
	})
})
