package session

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/jrwilson/substrate/framebuffer"
	"github.com/jrwilson/substrate/protocol"
	"github.com/jrwilson/substrate/rgram"
)

type ServerState int

const (
	ServerSendVersion ServerState = iota
	ServerRecvVersion
	ServerSendSecurityTypes
	ServerSendSecurityType
	ServerRecvSecurityType
	ServerSendSecurityResult
	ServerRecvClientInit
	ServerSendServerInit
	ServerNormal
	ServerFailed
)

var serverStateNames = map[ServerState]string{
	ServerSendVersion:        "SEND_VERSION",
	ServerRecvVersion:        "RECV_VERSION",
	ServerSendSecurityTypes:  "SEND_SECURITY_TYPES",
	ServerSendSecurityType:   "SEND_SECURITY_TYPE",
	ServerRecvSecurityType:   "RECV_SECURITY_TYPE",
	ServerSendSecurityResult: "SEND_SECURITY_RESULT",
	ServerRecvClientInit:     "RECV_CLIENT_INIT",
	ServerSendServerInit:     "SEND_SERVER_INIT",
	ServerNormal:             "NORMAL",
	ServerFailed:             "FAILED",
}

func (s ServerState) String() string {
	if name, ok := serverStateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("ServerState(%d)", int(s))
}

type ServerOptions struct {
	// Width and Height of the framebuffer
	Width  int
	Height int

	// Name is the desktop name sent in ServerInit
	Name string

	// Version is the highest protocol version the server speaks
	Version protocol.ProtocolVersion

	// PixelFormat the framebuffer is kept in. The client's format starts out
	// as this one.
	PixelFormat protocol.PixelFormat

	// Input receives key, pointer and cut text events. Optional.
	Input InputHandler

	Observer Observer

	Log *zap.Logger
}

// Server is the server side of one RFB connection. It is not safe for
// concurrent use: Deliver, Poll and MarkChanged must be called from one
// goroutine, one at a time.
type Server struct {
	opts ServerOptions
	log  *zap.Logger

	state   ServerState
	version protocol.ProtocolVersion
	err     error

	fb           *framebuffer.Framebuffer
	pixelFormat  protocol.PixelFormat
	encodings    *protocol.SetEncodings
	shared       bool
	pending      PendingRegion
	imageChanged bool
	updates      int

	out Queue

	versionGrammar      *protocol.ProtocolVersionGrammar
	securityTypeGrammar *protocol.SecurityTypeGrammar
	clientInitGrammar   *protocol.ClientInitGrammar
	messageGrammar      *protocol.ClientMessageGrammar
	active              rgram.GramEl
}

// NewServer starts a session by queueing the server's ProtocolVersion.
func NewServer(opts ServerOptions) *Server {
	if opts.Version == (protocol.ProtocolVersion{}) {
		opts.Version = protocol.Version38
	}

	if opts.PixelFormat == (protocol.PixelFormat{}) {
		opts.PixelFormat = protocol.PixelFormatRGB888(false)
	}

	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	s := &Server{
		opts:           opts,
		log:            opts.Log,
		fb:             framebuffer.New(opts.Width, opts.Height, opts.PixelFormat),
		pixelFormat:    opts.PixelFormat,
		encodings:      &protocol.SetEncodings{},
		versionGrammar: protocol.NewProtocolVersionGrammar(),
		messageGrammar: protocol.NewClientMessageGrammar(),
	}

	if err := s.send(opts.Version); err != nil {
		s.fail(err)
		return s
	}

	s.transition(ServerRecvVersion)
	s.active = s.versionGrammar

	return s
}

// Deliver feeds one received chunk to the active grammar, handling every
// message it completes. The first protocol error is returned and makes the
// session terminal.
func (s *Server) Deliver(chunk []byte) error {
	if s.err != nil {
		return s.err
	}

	s.opts.Observer.BytesReceived(RoleServer, len(chunk))

	c := rgram.NewCursor(chunk)
	for !c.Empty() {
		s.active.Put(c)
		if !s.active.Done() {
			break
		}

		if err := s.complete(); err != nil {
			return s.fail(err)
		}
	}

	return nil
}

// Poll sends a framebuffer update if one is due and returns the oldest
// queued message.
func (s *Server) Poll() ([]byte, bool) {
	if s.err == nil {
		if err := s.flush(); err != nil {
			s.fail(err)
		}
	}

	return s.out.Pop()
}

// MarkChanged flags that the image changed since the last update.
func (s *Server) MarkChanged() {
	s.imageChanged = true
}

// Update draws the next image from src and flags the change.
func (s *Server) Update(src framebuffer.Source) {
	src.Next(s.fb)
	s.MarkChanged()
}

func (s *Server) Framebuffer() *framebuffer.Framebuffer {
	return s.fb
}

func (s *Server) State() ServerState {
	return s.state
}

func (s *Server) Err() error {
	return s.err
}

// Version is the negotiated protocol version. It is the zero value until
// the client's version has been received.
func (s *Server) Version() protocol.ProtocolVersion {
	return s.version
}

func (s *Server) PixelFormat() protocol.PixelFormat {
	return s.pixelFormat
}

func (s *Server) Encodings() []protocol.EncodingType {
	return s.encodings.Encodings
}

// Pending is the update region requested and not yet answered.
func (s *Server) Pending() (image.Rectangle, bool) {
	return s.pending.Rect(), s.pending.Outstanding()
}

func (s *Server) Status() Status {
	st := Status{
		Role:    RoleServer,
		State:   s.state.String(),
		Width:   s.fb.Width,
		Height:  s.fb.Height,
		Format:  s.pixelFormat.String(),
		Updates: s.updates,
	}

	if s.version != (protocol.ProtocolVersion{}) {
		st.Version = s.version.String()
	}

	for _, e := range s.encodings.Encodings {
		st.Encodings = append(st.Encodings, e.String())
	}

	if s.err != nil {
		st.Error = s.err.Error()
	}

	return st
}

func (s *Server) complete() error {
	switch s.state {
	case ServerRecvVersion:
		return s.receivedVersion()

	case ServerRecvSecurityType:
		return s.receivedSecurityType()

	case ServerRecvClientInit:
		return s.receivedClientInit()

	case ServerNormal:
		return s.receivedMessage()
	}

	return fmt.Errorf("Unexpected input in state %s", s.state)
}

func (s *Server) receivedVersion() error {
	v, err := s.versionGrammar.Get()
	if err != nil {
		return err
	}

	if !v.Supported() {
		return fmt.Errorf("Client version %s: %w", v, protocol.ErrUnsupportedVersion)
	}

	s.version = v.Lowest(s.opts.Version)
	s.log.Debug("Negotiated protocol version",
		zap.Stringer("client", v),
		zap.Stringer("version", s.version))

	if s.version.AtLeast(protocol.Version37) {
		s.transition(ServerSendSecurityTypes)
		if err := s.send(&protocol.SecurityTypes{Types: []protocol.SecurityType{protocol.SecurityNone}}); err != nil {
			return err
		}

		s.securityTypeGrammar = protocol.NewSecurityTypeGrammar(s.version)
		s.transition(ServerRecvSecurityType)
		s.active = s.securityTypeGrammar
		return nil
	}

	s.transition(ServerSendSecurityType)
	if err := s.send(&protocol.SecurityTypeRFB33{Type: protocol.SecurityNone}); err != nil {
		return err
	}

	s.clientInitGrammar = protocol.NewClientInitGrammar()
	s.transition(ServerRecvClientInit)
	s.active = s.clientInitGrammar
	return nil
}

func (s *Server) receivedSecurityType() error {
	t := s.securityTypeGrammar.Get()

	s.transition(ServerSendSecurityResult)
	if t != protocol.SecurityNone {
		if err := s.send(&protocol.SecurityResult{Status: 1}); err != nil {
			return err
		}

		return fmt.Errorf("Client chose %s: %w", t, ErrSecurityFailed)
	}

	if err := s.send(&protocol.SecurityResult{Status: protocol.SecurityResultOK}); err != nil {
		return err
	}

	s.clientInitGrammar = protocol.NewClientInitGrammar()
	s.transition(ServerRecvClientInit)
	s.active = s.clientInitGrammar
	return nil
}

func (s *Server) receivedClientInit() error {
	s.shared = s.clientInitGrammar.Get().Shared

	s.transition(ServerSendServerInit)
	err := s.send(&protocol.ServerInit{
		Width:       uint16(s.fb.Width),
		Height:      uint16(s.fb.Height),
		PixelFormat: s.opts.PixelFormat,
		Name:        s.opts.Name,
	})
	if err != nil {
		return err
	}

	s.transition(ServerNormal)
	s.active = s.messageGrammar
	return nil
}

func (s *Server) receivedMessage() error {
	msg, err := s.messageGrammar.Get()
	if err != nil {
		return err
	}

	s.messageGrammar.Reset()
	s.opts.Observer.MessageDecoded(RoleServer, messageName(msg))

	switch m := msg.(type) {
	case *protocol.SetPixelFormat:
		if err := m.PixelFormat.CheckRaw(); err != nil {
			return fmt.Errorf("%s: %w", m.PixelFormat, ErrPixelFormatMismatch)
		}

		s.log.Debug("Client pixel format", zap.Stringer("format", m.PixelFormat))
		s.pixelFormat = m.PixelFormat

	case *protocol.SetEncodings:
		s.encodings = m

	case *protocol.FramebufferUpdateRequest:
		s.request(m)

	case *protocol.KeyEvent:
		if s.opts.Input != nil {
			s.opts.Input.KeyEvent(m)
		}

	case *protocol.PointerEvent:
		if s.opts.Input != nil {
			s.opts.Input.PointerEvent(m)
		}

	case *protocol.ClientCutText:
		if s.opts.Input != nil {
			s.opts.Input.CutText(m.Text)
		}
	}

	return nil
}

func (s *Server) request(req *protocol.FramebufferUpdateRequest) {
	r, ok := requestRegion(req, s.fb.Bounds())
	if !ok {
		return
	}

	s.pending.Add(r)
	if !req.Incremental {
		s.imageChanged = true
	}
}

func (s *Server) flush() error {
	if s.state != ServerNormal || !s.pending.Outstanding() || !s.imageChanged {
		return nil
	}

	r := s.pending.Take()
	s.imageChanged = false

	update := &protocol.FramebufferUpdate{
		PixelFormat: s.pixelFormat,
		Rectangles: []protocol.Rectangle{{
			X:        uint16(r.Min.X),
			Y:        uint16(r.Min.Y),
			Width:    uint16(r.Dx()),
			Height:   uint16(r.Dy()),
			Encoding: protocol.EncodingRaw,
			Pixels:   s.fb.Region(r, s.pixelFormat),
		}},
	}

	if err := s.send(update); err != nil {
		return err
	}

	s.updates++
	s.opts.Observer.UpdateSent(1, r.Dx()*r.Dy())
	return nil
}

func (s *Server) send(m protocol.Marshaler) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}

	s.out.Push(b)
	return nil
}

func (s *Server) transition(to ServerState) {
	s.log.Debug("State transition", zap.Stringer("from", s.state), zap.Stringer("to", to))
	s.state = to
}

func (s *Server) fail(err error) error {
	s.log.Warn("Protocol error", zap.Stringer("state", s.state), zap.Error(err))
	s.opts.Observer.ProtocolError(RoleServer, err)

	s.err = err
	s.transition(ServerFailed)
	return err
}
