package session_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/jrwilson/substrate/framebuffer"
	"github.com/jrwilson/substrate/protocol"
	"github.com/jrwilson/substrate/session"
)

type recordedDisplay struct {
	updates []*protocol.FramebufferUpdate
	bells   int
	text    []string
}

func (r *recordedDisplay) Updated(u *protocol.FramebufferUpdate) { r.updates = append(r.updates, u) }
func (r *recordedDisplay) Bell()                                 { r.bells++ }
func (r *recordedDisplay) CutText(text string)                   { r.text = append(r.text, text) }

func serverInit(width, height uint16) []byte {
	return marshal(&protocol.ServerInit{
		Width:       width,
		Height:      height,
		PixelFormat: protocol.PixelFormatRGB888(false),
		Name:        "desk",
	})
}

// handshakeClient33 takes a client through a 3.3 handshake with a 10x10
// server.
func handshakeClient33(c *session.Client) {
	Expect(c.Deliver([]byte("RFB 003.003\n"))).To(Succeed())
	Expect(c.Deliver([]byte{0, 0, 0, 1})).To(Succeed())
	Expect(c.Deliver(serverInit(10, 10))).To(Succeed())
	Expect(c.State()).To(Equal(session.ClientNormal))
	drain(c)
}

var _ = Describe("Client", func() {
	var (
		c       *session.Client
		display *recordedDisplay
	)

	BeforeEach(func() {
		display = &recordedDisplay{}
		c = session.NewClient(session.ClientOptions{Display: display})
	})

	It("follows the 3.3 handshake", func() {
		Expect(c.Deliver([]byte("RFB 003.003\n"))).To(Succeed())
		Expect(drain(c)).To(Equal([][]byte{[]byte("RFB 003.003\n")}))
		Expect(c.State()).To(Equal(session.ClientRecvSecurityType))

		Expect(c.Deliver([]byte{0, 0, 0, 1})).To(Succeed())
		Expect(drain(c)).To(Equal([][]byte{{1}}))

		Expect(c.Deliver(serverInit(240, 160))).To(Succeed())
		Expect(c.Name()).To(Equal("desk"))
		Expect(drain(c)).To(Equal([][]byte{
			marshal(&protocol.SetPixelFormat{PixelFormat: protocol.PixelFormatRGB888(false)}),
			marshal(&protocol.SetEncodings{Encodings: session.DefaultEncodings}),
			fbur(false, 0, 0, 240, 160),
		}))
	})

	table.DescribeTable("version selection",
		func(server string, expected string) {
			Expect(c.Deliver([]byte(server))).To(Succeed())
			Expect(drain(c)).To(Equal([][]byte{[]byte(expected)}))
		},
		table.Entry("3.3 server", "RFB 003.003\n", "RFB 003.003\n"),
		table.Entry("3.7 server", "RFB 003.007\n", "RFB 003.007\n"),
		table.Entry("3.8 server", "RFB 003.008\n", "RFB 003.008\n"),
		table.Entry("newer unknown server", "RFB 003.889\n", "RFB 003.008\n"),
		table.Entry("4.0 server", "RFB 004.000\n", "RFB 003.008\n"),
	)

	It("rejects an older unknown server version", func() {
		Expect(c.Deliver([]byte("RFB 003.005\n"))).To(MatchError(protocol.ErrUnsupportedVersion))
	})

	It("clamps the requested region to the local display", func() {
		c = session.NewClient(session.ClientOptions{Width: 100, Height: 50})
		Expect(c.Deliver([]byte("RFB 003.003\n"))).To(Succeed())
		Expect(c.Deliver([]byte{0, 0, 0, 1})).To(Succeed())
		Expect(c.Deliver(serverInit(240, 160))).To(Succeed())

		out := drain(c)
		Expect(out[len(out)-1]).To(Equal(fbur(false, 0, 0, 100, 50)))
		Expect(c.Framebuffer().Bounds().Dx()).To(Equal(100))
	})

	Describe("security", func() {
		BeforeEach(func() {
			Expect(c.Deliver([]byte("RFB 003.008\n"))).To(Succeed())
			drain(c)
		})

		It("selects NONE and waits for the result", func() {
			Expect(c.Deliver([]byte{2, 2, 1})).To(Succeed())
			Expect(drain(c)).To(Equal([][]byte{{1}}))
			Expect(c.State()).To(Equal(session.ClientRecvSecurityResult))

			Expect(c.Deliver([]byte{0, 0, 0, 0})).To(Succeed())
			Expect(drain(c)).To(Equal([][]byte{{1}}))
			Expect(c.State()).To(Equal(session.ClientRecvServerInit))
		})

		It("fails when no security types are offered", func() {
			Expect(c.Deliver([]byte{0})).To(MatchError(session.ErrConnectionFailed))
			Expect(c.State()).To(Equal(session.ClientFailed))
		})

		It("fails when NONE is not offered", func() {
			Expect(c.Deliver([]byte{1, 2})).To(MatchError(session.ErrNoSecurityType))
		})

		It("fails on a bad security result", func() {
			Expect(c.Deliver([]byte{1, 1, 0, 0, 0, 1})).To(MatchError(session.ErrSecurityFailed))
		})
	})

	Describe("server messages", func() {
		BeforeEach(func() {
			handshakeClient33(c)
		})

		It("writes RAW rectangles into the framebuffer and asks for more", func() {
			data := []byte{0, 0, 0, 1}
			data = append(data, rectHeader(2, 3, 4, 5, protocol.EncodingRaw)...)
			for i := 0; i < 20; i++ {
				data = binary.LittleEndian.AppendUint32(data, uint32(100+i))
			}

			Expect(c.Deliver(data)).To(Succeed())

			fb := c.Framebuffer()
			for y := 0; y < 10; y++ {
				for x := 0; x < 10; x++ {
					if x >= 2 && x < 6 && y >= 3 && y < 8 {
						Expect(fb.At(x, y)).To(Equal(uint32(100 + (y-3)*4 + (x - 2))))
					} else {
						Expect(fb.At(x, y)).To(BeZero())
					}
				}
			}

			Expect(display.updates).To(HaveLen(1))
			Expect(drain(c)).To(Equal([][]byte{fbur(true, 0, 0, 10, 10)}))
		})

		It("fails on a rectangle outside the framebuffer", func() {
			data := []byte{0, 0, 0, 1}
			data = append(data, rectHeader(9, 9, 2, 1, protocol.EncodingRaw)...)
			data = append(data, make([]byte, 8)...)

			Expect(c.Deliver(data)).To(MatchError(framebuffer.ErrOutOfBounds))
		})

		It("fails on an encoding other than RAW", func() {
			data := []byte{0, 0, 0, 1}
			data = append(data, rectHeader(0, 0, 4, 4, protocol.EncodingZRLE)...)

			Expect(c.Deliver(data)).To(MatchError(protocol.ErrUnknownEncoding))
		})

		It("rings the bell and takes cut text", func() {
			data := []byte{2}
			data = append(data, marshal(&protocol.ServerCutText{Text: "pasted"})...)

			Expect(c.Deliver(data)).To(Succeed())
			Expect(display.bells).To(Equal(1))
			Expect(display.text).To(Equal([]string{"pasted"}))
		})

		It("queues input events", func() {
			Expect(c.SendKeyEvent(true, 0xff0d)).To(Succeed())
			Expect(c.SendPointerEvent(1, 3, 4)).To(Succeed())

			Expect(drain(c)).To(Equal([][]byte{
				marshal(&protocol.KeyEvent{Down: true, Key: 0xff0d}),
				marshal(&protocol.PointerEvent{ButtonMask: 1, X: 3, Y: 4}),
			}))
		})
	})

	It("refuses input before the handshake is done", func() {
		Expect(c.SendCutText("early")).To(MatchError(session.ErrNotReady))
	})
})

var _ = Describe("Client and server", func() {
	table.DescribeTable("converge on the server's image",
		func(version protocol.ProtocolVersion, chunk int) {
			src, err := framebuffer.NewSource("pattern", 1)
			Expect(err).To(Succeed())

			s := session.NewServer(session.ServerOptions{Width: 24, Height: 16, Name: "pumped", Version: version})
			s.Update(src)

			c := session.NewClient(session.ClientOptions{PixelFormat: protocol.PixelFormatRGB888(true)})

			Expect(pump(s, c, chunk)).To(Succeed())
			Expect(s.State()).To(Equal(session.ServerNormal))
			Expect(c.State()).To(Equal(session.ClientNormal))
			Expect(c.Version()).To(Equal(version))
			Expect(c.Name()).To(Equal("pumped"))
			Expect(c.Framebuffer().Pix).To(Equal(s.Framebuffer().Pix))

			// The incremental request stays outstanding until the image changes.
			r, outstanding := s.Pending()
			Expect(outstanding).To(BeTrue())
			Expect(r.Dx()).To(Equal(24))

			s.Update(src)
			Expect(pump(s, c, chunk)).To(Succeed())
			Expect(c.Framebuffer().Pix).To(Equal(s.Framebuffer().Pix))
			Expect(c.Status().Updates).To(Equal(2))
		},
		table.Entry("3.3 whole messages", protocol.Version33, 1<<20),
		table.Entry("3.7 whole messages", protocol.Version37, 1<<20),
		table.Entry("3.8 whole messages", protocol.Version38, 1<<20),
		table.Entry("3.3 byte at a time", protocol.Version33, 1),
		table.Entry("3.8 byte at a time", protocol.Version38, 1),
		table.Entry("3.8 odd chunks", protocol.Version38, 7),
	)
})
