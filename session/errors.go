package session

import "errors"

var (
	ErrConnectionFailed    = errors.New("Server offered no security types")
	ErrNoSecurityType      = errors.New("No supported security type was offered")
	ErrSecurityFailed      = errors.New("Security handshake failed")
	ErrPixelFormatMismatch = errors.New("Pixel format cannot be used with RAW encoding")
	ErrNotReady            = errors.New("Session has not finished its handshake")
)
