package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jrwilson/substrate/framebuffer"
	"github.com/jrwilson/substrate/protocol"
	"github.com/jrwilson/substrate/rgram"
)

type ClientState int

const (
	ClientRecvVersion ClientState = iota
	ClientSendVersion
	ClientRecvSecurityTypes
	ClientRecvSecurityType
	ClientSendSecurityType
	ClientRecvSecurityResult
	ClientSendClientInit
	ClientRecvServerInit
	ClientSendSetPixelFormat
	ClientSendSetEncodings
	ClientSendFramebufferUpdateRequest
	ClientNormal
	ClientFailed
)

var clientStateNames = map[ClientState]string{
	ClientRecvVersion:                  "RECV_VERSION",
	ClientSendVersion:                  "SEND_VERSION",
	ClientRecvSecurityTypes:            "RECV_SECURITY_TYPES",
	ClientRecvSecurityType:             "RECV_SECURITY_TYPE",
	ClientSendSecurityType:             "SEND_SECURITY_TYPE",
	ClientRecvSecurityResult:           "RECV_SECURITY_RESULT",
	ClientSendClientInit:               "SEND_CLIENT_INIT",
	ClientRecvServerInit:               "RECV_SERVER_INIT",
	ClientSendSetPixelFormat:           "SEND_SET_PIXEL_FORMAT",
	ClientSendSetEncodings:             "SEND_SET_ENCODINGS",
	ClientSendFramebufferUpdateRequest: "SEND_FRAMEBUFFER_UPDATE_REQUEST",
	ClientNormal:                       "NORMAL",
	ClientFailed:                       "FAILED",
}

func (s ClientState) String() string {
	if name, ok := clientStateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("ClientState(%d)", int(s))
}

// DefaultEncodings is the list a client sends in SetEncodings unless told
// otherwise. Only RAW is ever decoded.
var DefaultEncodings = []protocol.EncodingType{
	protocol.EncodingRaw,
	protocol.EncodingCopyRect,
	protocol.EncodingRRE,
	protocol.EncodingHextile,
	protocol.EncodingZRLE,
}

type ClientOptions struct {
	// Width and Height of the local display. The requested region is
	// clamped to them; zero means the server's size.
	Width  int
	Height int

	// Version is the highest protocol version the client speaks
	Version protocol.ProtocolVersion

	// PixelFormat the client asks the server to send pixels in
	PixelFormat protocol.PixelFormat

	Encodings []protocol.EncodingType

	// Display receives updates, bells and cut text. Optional.
	Display DisplayHandler

	Observer Observer

	Log *zap.Logger
}

// Client is the client side of one RFB connection. Like Server it must be
// driven from one goroutine.
type Client struct {
	opts ClientOptions
	log  *zap.Logger

	state   ClientState
	version protocol.ProtocolVersion
	err     error

	name    string
	fb      *framebuffer.Framebuffer
	updates int

	out Queue

	versionGrammar        *protocol.ProtocolVersionGrammar
	securityTypesGrammar  *protocol.SecurityTypesGrammar
	securityTypeGrammar   *protocol.SecurityTypeGrammar
	securityResultGrammar *protocol.SecurityResultGrammar
	serverInitGrammar     *protocol.ServerInitGrammar
	messageGrammar        *protocol.ServerMessageGrammar
	active                rgram.GramEl
}

// NewClient returns a client waiting for the server's ProtocolVersion.
func NewClient(opts ClientOptions) *Client {
	if opts.Version == (protocol.ProtocolVersion{}) {
		opts.Version = protocol.Version38
	}

	if opts.PixelFormat == (protocol.PixelFormat{}) {
		opts.PixelFormat = protocol.PixelFormatRGB888(false)
	}

	if opts.Encodings == nil {
		opts.Encodings = DefaultEncodings
	}

	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	c := &Client{
		opts:           opts,
		log:            opts.Log,
		versionGrammar: protocol.NewProtocolVersionGrammar(),
	}

	c.state = ClientRecvVersion
	c.active = c.versionGrammar

	return c
}

// Deliver feeds one received chunk to the active grammar. The first
// protocol error is returned and makes the session terminal.
func (c *Client) Deliver(chunk []byte) error {
	if c.err != nil {
		return c.err
	}

	c.opts.Observer.BytesReceived(RoleClient, len(chunk))

	cur := rgram.NewCursor(chunk)
	for !cur.Empty() {
		c.active.Put(cur)
		if !c.active.Done() {
			break
		}

		if err := c.complete(); err != nil {
			return c.fail(err)
		}
	}

	return nil
}

// Poll returns the oldest queued message.
func (c *Client) Poll() ([]byte, bool) {
	return c.out.Pop()
}

// SendKeyEvent queues a key press or release.
func (c *Client) SendKeyEvent(down bool, key uint32) error {
	return c.sendInput(&protocol.KeyEvent{Down: down, Key: key})
}

// SendPointerEvent queues a pointer move with the buttons in mask held.
func (c *Client) SendPointerEvent(mask uint8, x, y uint16) error {
	return c.sendInput(&protocol.PointerEvent{ButtonMask: mask, X: x, Y: y})
}

// SendCutText queues text for the server's clipboard.
func (c *Client) SendCutText(text string) error {
	return c.sendInput(&protocol.ClientCutText{Text: text})
}

func (c *Client) sendInput(m protocol.ClientMessage) error {
	if c.err != nil {
		return c.err
	}

	if c.state != ClientNormal {
		return ErrNotReady
	}

	return c.send(m)
}

// Framebuffer is the local copy of the server's image. It is nil until
// ServerInit has been received.
func (c *Client) Framebuffer() *framebuffer.Framebuffer {
	return c.fb
}

func (c *Client) State() ClientState {
	return c.state
}

func (c *Client) Err() error {
	return c.err
}

func (c *Client) Version() protocol.ProtocolVersion {
	return c.version
}

// Name is the desktop name the server sent.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) Status() Status {
	st := Status{
		Role:    RoleClient,
		State:   c.state.String(),
		Format:  c.opts.PixelFormat.String(),
		Updates: c.updates,
	}

	if c.version != (protocol.ProtocolVersion{}) {
		st.Version = c.version.String()
	}

	if c.fb != nil {
		st.Width, st.Height = c.fb.Width, c.fb.Height
	}

	for _, e := range c.opts.Encodings {
		st.Encodings = append(st.Encodings, e.String())
	}

	if c.err != nil {
		st.Error = c.err.Error()
	}

	return st
}

func (c *Client) complete() error {
	switch c.state {
	case ClientRecvVersion:
		return c.receivedVersion()

	case ClientRecvSecurityTypes:
		return c.receivedSecurityTypes()

	case ClientRecvSecurityType:
		return c.receivedSecurityType()

	case ClientRecvSecurityResult:
		return c.receivedSecurityResult()

	case ClientRecvServerInit:
		return c.receivedServerInit()

	case ClientNormal:
		return c.receivedMessage()
	}

	return fmt.Errorf("Unexpected input in state %s", c.state)
}

// selectVersion picks the version to answer a server with: the lower of the
// two when the server's version is known, otherwise our own highest as long
// as the server claims to be newer.
func (c *Client) selectVersion(server protocol.ProtocolVersion) (protocol.ProtocolVersion, error) {
	if server.Supported() {
		return server.Lowest(c.opts.Version), nil
	}

	if server.AtLeast(c.opts.Version) {
		return c.opts.Version, nil
	}

	return server, fmt.Errorf("Server version %s: %w", server, protocol.ErrUnsupportedVersion)
}

func (c *Client) receivedVersion() error {
	server, err := c.versionGrammar.Get()
	if err != nil {
		return err
	}

	if c.version, err = c.selectVersion(server); err != nil {
		return err
	}

	c.log.Debug("Negotiated protocol version",
		zap.Stringer("server", server),
		zap.Stringer("version", c.version))

	c.transition(ClientSendVersion)
	if err := c.send(c.version); err != nil {
		return err
	}

	if c.version.AtLeast(protocol.Version37) {
		c.securityTypesGrammar = protocol.NewSecurityTypesGrammar()
		c.transition(ClientRecvSecurityTypes)
		c.active = c.securityTypesGrammar
		return nil
	}

	c.securityTypeGrammar = protocol.NewSecurityTypeGrammar(c.version)
	c.transition(ClientRecvSecurityType)
	c.active = c.securityTypeGrammar
	return nil
}

func (c *Client) receivedSecurityTypes() error {
	offered := c.securityTypesGrammar.Get()

	if len(offered.Types) == 0 {
		return ErrConnectionFailed
	}

	if !offered.Offers(protocol.SecurityNone) {
		return fmt.Errorf("Offered %v: %w", offered.Types, ErrNoSecurityType)
	}

	c.transition(ClientSendSecurityType)
	if err := c.send(&protocol.SecurityTypeSelection{Type: protocol.SecurityNone}); err != nil {
		return err
	}

	c.securityResultGrammar = protocol.NewSecurityResultGrammar()
	c.transition(ClientRecvSecurityResult)
	c.active = c.securityResultGrammar
	return nil
}

func (c *Client) receivedSecurityType() error {
	switch t := c.securityTypeGrammar.Get(); t {
	case protocol.SecurityNone:
		return c.sendClientInit()

	case protocol.SecurityInvalid:
		return ErrConnectionFailed

	default:
		return fmt.Errorf("Server decided on %s: %w", t, ErrNoSecurityType)
	}
}

func (c *Client) receivedSecurityResult() error {
	if result := c.securityResultGrammar.Get(); !result.OK() {
		return fmt.Errorf("Status %d: %w", result.Status, ErrSecurityFailed)
	}

	return c.sendClientInit()
}

func (c *Client) sendClientInit() error {
	c.transition(ClientSendClientInit)
	if err := c.send(&protocol.ClientInit{Shared: true}); err != nil {
		return err
	}

	c.serverInitGrammar = protocol.NewServerInitGrammar()
	c.transition(ClientRecvServerInit)
	c.active = c.serverInitGrammar
	return nil
}

func (c *Client) receivedServerInit() error {
	si := c.serverInitGrammar.Get()
	c.name = si.Name

	width, height := int(si.Width), int(si.Height)
	if c.opts.Width > 0 {
		width = min(width, c.opts.Width)
	}

	if c.opts.Height > 0 {
		height = min(height, c.opts.Height)
	}

	c.log.Debug("Server init",
		zap.String("name", si.Name),
		zap.Int("serverWidth", int(si.Width)),
		zap.Int("serverHeight", int(si.Height)),
		zap.Stringer("serverFormat", si.PixelFormat))

	c.fb = framebuffer.New(width, height, c.opts.PixelFormat)

	c.transition(ClientSendSetPixelFormat)
	if err := c.send(&protocol.SetPixelFormat{PixelFormat: c.opts.PixelFormat}); err != nil {
		return err
	}

	c.transition(ClientSendSetEncodings)
	if err := c.send(&protocol.SetEncodings{Encodings: c.opts.Encodings}); err != nil {
		return err
	}

	c.transition(ClientSendFramebufferUpdateRequest)
	if err := c.request(false); err != nil {
		return err
	}

	c.messageGrammar = protocol.NewServerMessageGrammar(c.opts.PixelFormat)
	c.transition(ClientNormal)
	c.active = c.messageGrammar
	return nil
}

func (c *Client) request(incremental bool) error {
	return c.send(&protocol.FramebufferUpdateRequest{
		Incremental: incremental,
		Width:       uint16(c.fb.Width),
		Height:      uint16(c.fb.Height),
	})
}

func (c *Client) receivedMessage() error {
	msg, err := c.messageGrammar.Get()
	if err != nil {
		return err
	}

	c.messageGrammar.Reset()
	c.opts.Observer.MessageDecoded(RoleClient, messageName(msg))

	switch m := msg.(type) {
	case *protocol.FramebufferUpdate:
		for _, r := range m.Rectangles {
			if err := c.fb.Blit(r); err != nil {
				return err
			}
		}

		c.updates++
		if c.opts.Display != nil {
			c.opts.Display.Updated(m)
		}

		return c.request(true)

	case *protocol.Bell:
		if c.opts.Display != nil {
			c.opts.Display.Bell()
		}

	case *protocol.ServerCutText:
		if c.opts.Display != nil {
			c.opts.Display.CutText(m.Text)
		}
	}

	return nil
}

func (c *Client) send(m protocol.Marshaler) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}

	c.out.Push(b)
	return nil
}

func (c *Client) transition(to ClientState) {
	c.log.Debug("State transition", zap.Stringer("from", c.state), zap.Stringer("to", to))
	c.state = to
}

func (c *Client) fail(err error) error {
	c.log.Warn("Protocol error", zap.Stringer("state", c.state), zap.Error(err))
	c.opts.Observer.ProtocolError(RoleClient, err)

	c.err = err
	c.transition(ClientFailed)
	return err
}
