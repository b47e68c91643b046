package protocol

import (
	"fmt"

	"github.com/jrwilson/substrate/rgram"
)

// root gives every grammar below the rgram.GramEl methods of its top level
// element.
type root struct {
	rgram.GramEl
}

func (r root) Fault() bool {
	return rgram.Faulted(r.GramEl)
}

// ProtocolVersionGrammar parses the 12 byte ProtocolVersion message.
type ProtocolVersionGrammar struct {
	root
	chars *rgram.FixedArray[byte]
}

func NewProtocolVersionGrammar() *ProtocolVersionGrammar {
	chars := rgram.NewFixedArray[byte](rgram.NewChar(), ProtocolVersionLength)
	return &ProtocolVersionGrammar{root: root{chars}, chars: chars}
}

func (g *ProtocolVersionGrammar) Get() (ProtocolVersion, error) {
	return ParseProtocolVersion(g.chars.Get())
}

// SecurityTypesGrammar parses the list of security types a 3.7+ server
// offers.
type SecurityTypesGrammar struct {
	root
	types *rgram.DynamicArray[uint8]
}

func NewSecurityTypesGrammar() *SecurityTypesGrammar {
	count := rgram.NewUint8()
	types := rgram.NewDynamicArray[uint8](rgram.NewUint8())

	return &SecurityTypesGrammar{
		root: root{rgram.NewSequence(
			rgram.OnDone(count, func() { types.SetSize(int(count.Get())) }),
			types,
		)},
		types: types,
	}
}

func (g *SecurityTypesGrammar) Get() *SecurityTypes {
	msg := &SecurityTypes{Types: make([]SecurityType, 0, len(g.types.Get()))}
	for _, t := range g.types.Get() {
		msg.Types = append(msg.Types, SecurityType(t))
	}

	return msg
}

// SecurityTypeGrammar parses a single security type: 32 bits when a 3.3
// server decides it, one byte when a 3.7+ client selects it.
type SecurityTypeGrammar struct {
	root
	get func() SecurityType
}

func NewSecurityTypeGrammar(v ProtocolVersion) *SecurityTypeGrammar {
	if v.AtLeast(Version37) {
		el := rgram.NewUint8()
		return &SecurityTypeGrammar{root: root{el}, get: func() SecurityType { return SecurityType(el.Get()) }}
	}

	el := rgram.NewUint32()
	return &SecurityTypeGrammar{root: root{el}, get: func() SecurityType {
		if t := el.Get(); t <= 0xff {
			return SecurityType(t)
		}

		return SecurityInvalid
	}}
}

func (g *SecurityTypeGrammar) Get() SecurityType {
	return g.get()
}

type SecurityResultGrammar struct {
	root
	status *rgram.Scalar[uint32]
}

func NewSecurityResultGrammar() *SecurityResultGrammar {
	status := rgram.NewUint32()
	return &SecurityResultGrammar{root: root{status}, status: status}
}

func (g *SecurityResultGrammar) Get() *SecurityResult {
	return &SecurityResult{Status: g.status.Get()}
}

type ClientInitGrammar struct {
	root
	shared *rgram.Scalar[uint8]
}

func NewClientInitGrammar() *ClientInitGrammar {
	shared := rgram.NewUint8()
	return &ClientInitGrammar{root: root{shared}, shared: shared}
}

func (g *ClientInitGrammar) Get() *ClientInit {
	return &ClientInit{Shared: g.shared.Get() != 0}
}

// PixelFormatGrammar parses the 16 byte PixelFormat structure.
type PixelFormatGrammar struct {
	root

	bpp, depth, bigEndian, trueColour *rgram.Scalar[uint8]
	redMax, greenMax, blueMax         *rgram.Scalar[uint16]
	redShift, greenShift, blueShift   *rgram.Scalar[uint8]
}

func NewPixelFormatGrammar() *PixelFormatGrammar {
	g := &PixelFormatGrammar{
		bpp:        rgram.NewUint8(),
		depth:      rgram.NewUint8(),
		bigEndian:  rgram.NewUint8(),
		trueColour: rgram.NewUint8(),
		redMax:     rgram.NewUint16(),
		greenMax:   rgram.NewUint16(),
		blueMax:    rgram.NewUint16(),
		redShift:   rgram.NewUint8(),
		greenShift: rgram.NewUint8(),
		blueShift:  rgram.NewUint8(),
	}

	g.root = root{rgram.NewSequence(
		g.bpp, g.depth, g.bigEndian, g.trueColour,
		g.redMax, g.greenMax, g.blueMax,
		g.redShift, g.greenShift, g.blueShift,
		rgram.NewPadding(3),
	)}

	return g
}

func (g *PixelFormatGrammar) Get() PixelFormat {
	return PixelFormat{
		BitsPerPixel: g.bpp.Get(),
		Depth:        g.depth.Get(),
		BigEndian:    g.bigEndian.Get() != 0,
		TrueColour:   g.trueColour.Get() != 0,
		RedMax:       g.redMax.Get(),
		GreenMax:     g.greenMax.Get(),
		BlueMax:      g.blueMax.Get(),
		RedShift:     g.redShift.Get(),
		GreenShift:   g.greenShift.Get(),
		BlueShift:    g.blueShift.Get(),
	}
}

type ServerInitGrammar struct {
	root

	width, height *rgram.Scalar[uint16]
	pixelFormat   *PixelFormatGrammar
	name          *rgram.DynamicArray[byte]
}

func NewServerInitGrammar() *ServerInitGrammar {
	nameLength := rgram.NewUint32()

	g := &ServerInitGrammar{
		width:       rgram.NewUint16(),
		height:      rgram.NewUint16(),
		pixelFormat: NewPixelFormatGrammar(),
		name:        rgram.NewDynamicArray[byte](rgram.NewChar()),
	}

	g.root = root{rgram.NewSequence(
		g.width,
		g.height,
		g.pixelFormat,
		rgram.OnDone(nameLength, func() { g.name.SetSize(int(nameLength.Get())) }),
		g.name,
	)}

	return g
}

func (g *ServerInitGrammar) Get() *ServerInit {
	return &ServerInit{
		Width:       g.width.Get(),
		Height:      g.height.Get(),
		PixelFormat: g.pixelFormat.Get(),
		Name:        DecodeLatin1(g.name.Get()),
	}
}

// cutTextGrammar parses the body shared by ClientCutText and ServerCutText.
type cutTextGrammar struct {
	root
	text *rgram.DynamicArray[byte]
}

func newCutTextGrammar() *cutTextGrammar {
	length := rgram.NewUint32()
	text := rgram.NewDynamicArray[byte](rgram.NewChar())

	return &cutTextGrammar{
		root: root{rgram.NewSequence(
			rgram.NewPadding(3),
			rgram.OnDone(length, func() { text.SetSize(int(length.Get())) }),
			text,
		)},
		text: text,
	}
}

func (g *cutTextGrammar) Get() string {
	return DecodeLatin1(g.text.Get())
}

// ClientMessageGrammar parses any message a client sends after the
// handshake, dispatching on the leading message type byte.
type ClientMessageGrammar struct {
	root

	choice *rgram.Choice[uint8]

	pixelFormat *PixelFormatGrammar
	encodings   *rgram.DynamicArray[int32]

	incremental         *rgram.Scalar[uint8]
	x, y, width, height *rgram.Scalar[uint16]

	keyDown *rgram.Scalar[uint8]
	key     *rgram.Scalar[uint32]

	buttonMask         *rgram.Scalar[uint8]
	pointerX, pointerY *rgram.Scalar[uint16]

	cutText *cutTextGrammar
}

func NewClientMessageGrammar() *ClientMessageGrammar {
	g := &ClientMessageGrammar{
		pixelFormat: NewPixelFormatGrammar(),
		encodings:   rgram.NewDynamicArray[int32](rgram.NewInt32()),
		incremental: rgram.NewUint8(),
		x:           rgram.NewUint16(),
		y:           rgram.NewUint16(),
		width:       rgram.NewUint16(),
		height:      rgram.NewUint16(),
		keyDown:     rgram.NewUint8(),
		key:         rgram.NewUint32(),
		buttonMask:  rgram.NewUint8(),
		pointerX:    rgram.NewUint16(),
		pointerY:    rgram.NewUint16(),
		cutText:     newCutTextGrammar(),
	}

	count := rgram.NewUint16()

	g.choice = rgram.NewChoice[uint8](rgram.NewUint8()).
		Add(uint8(SetPixelFormatType), rgram.NewSequence(rgram.NewPadding(3), g.pixelFormat)).
		Add(uint8(SetEncodingsType), rgram.NewSequence(
			rgram.NewPadding(1),
			rgram.OnDone(count, func() { g.encodings.SetSize(int(count.Get())) }),
			g.encodings,
		)).
		Add(uint8(FramebufferUpdateRequestType), rgram.NewSequence(g.incremental, g.x, g.y, g.width, g.height)).
		Add(uint8(KeyEventType), rgram.NewSequence(g.keyDown, rgram.NewPadding(2), g.key)).
		Add(uint8(PointerEventType), rgram.NewSequence(g.buttonMask, g.pointerX, g.pointerY)).
		Add(uint8(ClientCutTextType), g.cutText)

	g.root = root{g.choice}
	return g
}

// Get returns the decoded message. An unknown message type is reported as
// ErrUnknownMessage.
func (g *ClientMessageGrammar) Get() (ClientMessage, error) {
	if !g.Done() {
		return nil, ErrIncomplete
	}

	if g.choice.BadKey() {
		return nil, fmt.Errorf("Client message type %d: %w", g.choice.Get(), ErrUnknownMessage)
	}

	switch MessageType(g.choice.Get()) {
	case SetPixelFormatType:
		return &SetPixelFormat{PixelFormat: g.pixelFormat.Get()}, nil

	case SetEncodingsType:
		msg := &SetEncodings{Encodings: make([]EncodingType, 0, len(g.encodings.Get()))}
		for _, e := range g.encodings.Get() {
			msg.Encodings = append(msg.Encodings, EncodingType(e))
		}
		return msg, nil

	case FramebufferUpdateRequestType:
		return &FramebufferUpdateRequest{
			Incremental: g.incremental.Get() != 0,
			X:           g.x.Get(),
			Y:           g.y.Get(),
			Width:       g.width.Get(),
			Height:      g.height.Get(),
		}, nil

	case KeyEventType:
		return &KeyEvent{Down: g.keyDown.Get() != 0, Key: g.key.Get()}, nil

	case PointerEventType:
		return &PointerEvent{ButtonMask: g.buttonMask.Get(), X: g.pointerX.Get(), Y: g.pointerY.Get()}, nil

	case ClientCutTextType:
		return &ClientCutText{Text: g.cutText.Get()}, nil
	}

	return nil, fmt.Errorf("Client message type %d: %w", g.choice.Get(), ErrUnknownMessage)
}

// RectangleGrammar parses a rectangle header followed by pixel data chosen
// by its encoding type. Only RAW is mapped; any other encoding faults.
type RectangleGrammar struct {
	root

	x, y, width, height *rgram.Scalar[uint16]
	encoding            *rgram.Choice[int32]
	raw                 *rgram.DynamicArray[uint32]
}

// NewRectangleGrammar reads pixel values in the byte order of pf.
func NewRectangleGrammar(pf PixelFormat) *RectangleGrammar {
	g := &RectangleGrammar{
		x:      rgram.NewUint16(),
		y:      rgram.NewUint16(),
		width:  rgram.NewUint16(),
		height: rgram.NewUint16(),
		raw:    rgram.NewDynamicArray[uint32](rgram.NewUint32With(pf.ByteOrder())),
	}

	g.encoding = rgram.NewChoice[int32](rgram.NewInt32()).
		Add(int32(EncodingRaw), g.raw)

	g.root = root{rgram.NewSequence(
		g.x, g.y, g.width,
		rgram.OnDone(g.height, func() { g.raw.SetSize(int(g.width.Get()) * int(g.height.Get())) }),
		g.encoding,
	)}

	return g
}

func (g *RectangleGrammar) Get() Rectangle {
	return Rectangle{
		X:        g.x.Get(),
		Y:        g.y.Get(),
		Width:    g.width.Get(),
		Height:   g.height.Get(),
		Encoding: EncodingType(g.encoding.Get()),
		Pixels:   append([]uint32(nil), g.raw.Get()...),
	}
}

// Encoding is the encoding type read so far. It is only meaningful once the
// header and encoding fields have been parsed, for example after a fault.
func (g *RectangleGrammar) Encoding() EncodingType {
	return EncodingType(g.encoding.Get())
}

// ServerMessageGrammar parses any message a server sends after the
// handshake, dispatching on the leading message type byte.
type ServerMessageGrammar struct {
	root

	choice      *rgram.Choice[uint8]
	pixelFormat PixelFormat
	rectangle   *RectangleGrammar
	rectangles  *rgram.DynamicArray[Rectangle]
	cutText     *cutTextGrammar
}

// NewServerMessageGrammar expects pixel data in pf, the format the client
// asked the server for.
func NewServerMessageGrammar(pf PixelFormat) *ServerMessageGrammar {
	g := &ServerMessageGrammar{
		pixelFormat: pf,
		rectangle:   NewRectangleGrammar(pf),
		cutText:     newCutTextGrammar(),
	}
	g.rectangles = rgram.NewDynamicArray[Rectangle](g.rectangle)

	count := rgram.NewUint16()

	g.choice = rgram.NewChoice[uint8](rgram.NewUint8()).
		Add(uint8(FramebufferUpdateType), rgram.NewSequence(
			rgram.NewPadding(1),
			rgram.OnDone(count, func() { g.rectangles.SetSize(int(count.Get())) }),
			g.rectangles,
		)).
		Add(uint8(BellType), rgram.NewSequence()).
		Add(uint8(ServerCutTextType), g.cutText)

	g.root = root{g.choice}
	return g
}

// Get returns the decoded message. An unknown message type is reported as
// ErrUnknownMessage and a rectangle in an unsupported encoding as
// ErrUnknownEncoding.
func (g *ServerMessageGrammar) Get() (ServerMessage, error) {
	if !g.Done() {
		return nil, ErrIncomplete
	}

	if g.choice.BadKey() {
		return nil, fmt.Errorf("Server message type %d: %w", g.choice.Get(), ErrUnknownMessage)
	}

	if g.Fault() {
		return nil, fmt.Errorf("Rectangle encoding %s: %w", g.rectangle.Encoding(), ErrUnknownEncoding)
	}

	switch MessageType(g.choice.Get()) {
	case FramebufferUpdateType:
		return &FramebufferUpdate{
			PixelFormat: g.pixelFormat,
			Rectangles:  append([]Rectangle(nil), g.rectangles.Get()...),
		}, nil

	case BellType:
		return &Bell{}, nil

	case ServerCutTextType:
		return &ServerCutText{Text: g.cutText.Get()}, nil
	}

	return nil, fmt.Errorf("Server message type %d: %w", g.choice.Get(), ErrUnknownMessage)
}

var (
	_ rgram.Value[PixelFormat] = (*PixelFormatGrammar)(nil)
	_ rgram.Value[Rectangle]   = (*RectangleGrammar)(nil)
	_ rgram.Faulter            = (*ServerMessageGrammar)(nil)
)
