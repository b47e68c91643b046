package protocol

import "strconv"

// MessageType is the leading byte of every message exchanged after the
// handshake.
type MessageType uint8

// Client to server message types.
const (
	SetPixelFormatType           MessageType = 0
	SetEncodingsType             MessageType = 2
	FramebufferUpdateRequestType MessageType = 3
	KeyEventType                 MessageType = 4
	PointerEventType             MessageType = 5
	ClientCutTextType            MessageType = 6
)

// Server to client message types.
const (
	FramebufferUpdateType MessageType = 0
	BellType              MessageType = 2
	ServerCutTextType     MessageType = 3
)

// EncodingType identifies how the pixel data of a rectangle is encoded.
type EncodingType int32

const (
	EncodingRaw      EncodingType = 0
	EncodingCopyRect EncodingType = 1
	EncodingRRE      EncodingType = 2
	EncodingHextile  EncodingType = 5
	EncodingZRLE     EncodingType = 16
)

var encodingNames = map[EncodingType]string{
	EncodingRaw:      "RAW",
	EncodingCopyRect: "COPY_RECT",
	EncodingRRE:      "RRE",
	EncodingHextile:  "HEXTILE",
	EncodingZRLE:     "ZRLE",
}

func (e EncodingType) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}

	return "ENCODING(" + strconv.Itoa(int(e)) + ")"
}

// SecurityType is a security scheme offered by the server.
type SecurityType uint8

const (
	SecurityInvalid SecurityType = 0
	SecurityNone    SecurityType = 1
)

func (s SecurityType) String() string {
	switch s {
	case SecurityInvalid:
		return "INVALID"
	case SecurityNone:
		return "NONE"
	default:
		return "SECURITY(" + strconv.Itoa(int(s)) + ")"
	}
}

// SecurityResultOK is the only successful SecurityResult status.
const SecurityResultOK uint32 = 0
