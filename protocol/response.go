package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ServerMessage is a message sent by the server once the handshake is over.
type ServerMessage interface {
	Marshaler
	Type() MessageType
}

// SecurityTypes lists the security types a 3.7+ server offers. An empty list
// means the connection failed.
type SecurityTypes struct {
	Types []SecurityType
}

func (m *SecurityTypes) Marshal() ([]byte, error) {
	if len(m.Types) > math.MaxUint8 {
		return nil, fmt.Errorf("%d security types: too many", len(m.Types))
	}

	b := make([]byte, 0, 1+len(m.Types))
	b = append(b, byte(len(m.Types)))
	for _, t := range m.Types {
		b = append(b, byte(t))
	}

	return b, nil
}

// Offers reports whether t is in the list.
func (m *SecurityTypes) Offers(t SecurityType) bool {
	for _, offered := range m.Types {
		if offered == t {
			return true
		}
	}

	return false
}

// SecurityTypeRFB33 is the security type a 3.3 server decides on. It is a
// 32 bit value, unlike the single byte selection of later versions.
type SecurityTypeRFB33 struct {
	Type SecurityType
}

func (m *SecurityTypeRFB33) Marshal() ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, uint32(m.Type)), nil
}

type SecurityResult struct {
	Status uint32
}

func (m *SecurityResult) OK() bool {
	return m.Status == SecurityResultOK
}

func (m *SecurityResult) Marshal() ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, m.Status), nil
}

// ServerInit ends the server side of the handshake.
type ServerInit struct {
	Width       uint16
	Height      uint16
	PixelFormat PixelFormat
	Name        string
}

func (m *ServerInit) Marshal() ([]byte, error) {
	name, err := EncodeLatin1(m.Name)
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, 24+len(name))
	b = binary.BigEndian.AppendUint16(b, m.Width)
	b = binary.BigEndian.AppendUint16(b, m.Height)
	b = m.PixelFormat.AppendTo(b)
	b = binary.BigEndian.AppendUint32(b, uint32(len(name)))
	return append(b, name...), nil
}

type Bell struct{}

func (m *Bell) Type() MessageType {
	return BellType
}

func (m *Bell) Marshal() ([]byte, error) {
	return []byte{byte(BellType)}, nil
}

type ServerCutText struct {
	Text string
}

func (m *ServerCutText) Type() MessageType {
	return ServerCutTextType
}

func (m *ServerCutText) Marshal() ([]byte, error) {
	return marshalCutText(ServerCutTextType, m.Text)
}

var (
	_ ServerMessage = (*FramebufferUpdate)(nil)
	_ ServerMessage = (*Bell)(nil)
	_ ServerMessage = (*ServerCutText)(nil)
)
