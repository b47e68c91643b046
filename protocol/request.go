package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ClientMessage is a message sent by the client once the handshake is over.
type ClientMessage interface {
	Marshaler
	Type() MessageType
}

// SecurityTypeSelection is the security type chosen by a 3.7+ client.
type SecurityTypeSelection struct {
	Type SecurityType
}

func (m *SecurityTypeSelection) Marshal() ([]byte, error) {
	return []byte{byte(m.Type)}, nil
}

// ClientInit ends the client side of the handshake.
type ClientInit struct {
	// Shared asks the server to leave other clients connected.
	Shared bool
}

func (m *ClientInit) Marshal() ([]byte, error) {
	return []byte{boolByte(m.Shared)}, nil
}

type SetPixelFormat struct {
	PixelFormat PixelFormat
}

func (m *SetPixelFormat) Type() MessageType {
	return SetPixelFormatType
}

func (m *SetPixelFormat) Marshal() ([]byte, error) {
	b := make([]byte, 4, 4+PixelFormatLength)
	b[0] = byte(SetPixelFormatType)
	return m.PixelFormat.AppendTo(b), nil
}

type SetEncodings struct {
	Encodings []EncodingType
}

func (m *SetEncodings) Type() MessageType {
	return SetEncodingsType
}

func (m *SetEncodings) Marshal() ([]byte, error) {
	if len(m.Encodings) > math.MaxUint16 {
		return nil, fmt.Errorf("%d encodings: %w", len(m.Encodings), ErrTooManyEncodings)
	}

	b := make([]byte, 0, 4+4*len(m.Encodings))
	b = append(b, byte(SetEncodingsType), 0)
	b = binary.BigEndian.AppendUint16(b, uint16(len(m.Encodings)))
	for _, e := range m.Encodings {
		b = binary.BigEndian.AppendUint32(b, uint32(e))
	}

	return b, nil
}

type FramebufferUpdateRequest struct {
	// Incremental asks only for the parts of the region that changed.
	Incremental bool

	X      uint16
	Y      uint16
	Width  uint16
	Height uint16
}

func (m *FramebufferUpdateRequest) Type() MessageType {
	return FramebufferUpdateRequestType
}

func (m *FramebufferUpdateRequest) Marshal() ([]byte, error) {
	b := make([]byte, 0, 10)
	b = append(b, byte(FramebufferUpdateRequestType), boolByte(m.Incremental))
	b = binary.BigEndian.AppendUint16(b, m.X)
	b = binary.BigEndian.AppendUint16(b, m.Y)
	b = binary.BigEndian.AppendUint16(b, m.Width)
	b = binary.BigEndian.AppendUint16(b, m.Height)
	return b, nil
}

type KeyEvent struct {
	Down bool
	Key  uint32 // X11 keysym
}

func (m *KeyEvent) Type() MessageType {
	return KeyEventType
}

func (m *KeyEvent) Marshal() ([]byte, error) {
	b := []byte{byte(KeyEventType), boolByte(m.Down), 0, 0}
	return binary.BigEndian.AppendUint32(b, m.Key), nil
}

type PointerEvent struct {
	ButtonMask uint8
	X          uint16
	Y          uint16
}

func (m *PointerEvent) Type() MessageType {
	return PointerEventType
}

func (m *PointerEvent) Marshal() ([]byte, error) {
	b := []byte{byte(PointerEventType), m.ButtonMask}
	b = binary.BigEndian.AppendUint16(b, m.X)
	return binary.BigEndian.AppendUint16(b, m.Y), nil
}

type ClientCutText struct {
	Text string
}

func (m *ClientCutText) Type() MessageType {
	return ClientCutTextType
}

func (m *ClientCutText) Marshal() ([]byte, error) {
	return marshalCutText(ClientCutTextType, m.Text)
}

var (
	_ ClientMessage = (*SetPixelFormat)(nil)
	_ ClientMessage = (*SetEncodings)(nil)
	_ ClientMessage = (*FramebufferUpdateRequest)(nil)
	_ ClientMessage = (*KeyEvent)(nil)
	_ ClientMessage = (*PointerEvent)(nil)
	_ ClientMessage = (*ClientCutText)(nil)
)
