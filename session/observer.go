package session

import (
	"fmt"
	"strings"

	"github.com/jrwilson/substrate/protocol"
)

// Observer is told about traffic on a session. internal/metrics provides a
// Prometheus implementation.
type Observer interface {
	BytesReceived(role string, n int)
	MessageDecoded(role string, t string)
	UpdateSent(rects, pixels int)
	ProtocolError(role string, err error)
}

// InputHandler receives the input events a client sends to a server.
type InputHandler interface {
	KeyEvent(e *protocol.KeyEvent)
	PointerEvent(e *protocol.PointerEvent)
	CutText(text string)
}

// DisplayHandler receives what a server sends to a client after the
// handshake.
type DisplayHandler interface {
	Updated(update *protocol.FramebufferUpdate)
	Bell()
	CutText(text string)
}

type nopObserver struct{}

func (nopObserver) BytesReceived(string, int)     {}
func (nopObserver) MessageDecoded(string, string) {}
func (nopObserver) UpdateSent(int, int)           {}
func (nopObserver) ProtocolError(string, error)   {}

const (
	RoleServer = "server"
	RoleClient = "client"
)

var _ Observer = nopObserver{}

// messageName is the message's type name without its package, used as a
// metric label.
func messageName(m any) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", m), "*protocol.")
}
