package protocol

import "errors"

var (
	ErrMalformedVersion    = errors.New("ProtocolVersion is malformed")
	ErrUnsupportedVersion  = errors.New("Protocol version is not supported")
	ErrUnknownMessage      = errors.New("Unknown message type could not be parsed")
	ErrUnknownEncoding     = errors.New("Rectangle uses an encoding that is not supported")
	ErrUnsupportedPixelFmt = errors.New("Pixel format is not supported for RAW encoding")
	ErrNotLatin1           = errors.New("Text cannot be represented in ISO-8859-1")
	ErrTooManyEncodings    = errors.New("Too many encodings for a SetEncodings message")
	ErrTooManyRectangles   = errors.New("Too many rectangles for a FramebufferUpdate message")
	ErrShortPixelData      = errors.New("Rectangle pixel data does not match its dimensions")
	ErrIncomplete          = errors.New("Message grammar has not completed")
)
