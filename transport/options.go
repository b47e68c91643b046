package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/jrwilson/substrate/session"
	"github.com/jrwilson/substrate/storage"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on. 0 picks a free port, see TCP.Addr
	Port int

	// Reuseport controls setting SO_REUSEPORT. Without it only one listener
	// is started.
	Reuseport bool

	// Trace will log every chunk read and written. This is only useful in
	// local debugging
	Trace bool

	NumListeners int

	// Session is the template for each connection's server session. Log and
	// Observer are filled in per connection.
	Session session.ServerOptions

	// Source names the image source each session draws from
	Source string

	// UpdateInterval is how often a session draws a new image. 0 disables
	// redrawing after the first image.
	UpdateInterval time.Duration

	// Store receives the status of every live session. Optional.
	Store storage.Store

	// Observer is told about session traffic and connections. Optional.
	Observer SessionObserver

	Log *zap.Logger
}

// SessionObserver extends session.Observer with connection tracking.
type SessionObserver interface {
	session.Observer
	SessionStarted(transport string)
	SessionEnded(transport string)
}
