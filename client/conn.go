package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/jrwilson/substrate/protocol"
	"github.com/jrwilson/substrate/session"
)

const ReadBufferSize = 32 * 1024

var ErrDisconnected = errors.New("Disconnected from server")

type Options struct {
	// Addr of the RFB server, host:port
	Addr string

	// Session configures the client side of the handshake. Display is
	// wrapped so that WaitForUpdate keeps working.
	Session session.ClientOptions

	Log *zap.Logger
}

// Conn is a client session over TCP. Incoming data is handled by Run;
// every other method is safe to call from any goroutine.
type Conn struct {
	conn net.Conn

	mu      sync.Mutex
	session *session.Client
	display session.DisplayHandler

	updated chan struct{}
	done    chan struct{}
	err     error

	log *zap.Logger
}

// Dial connects to the server. The handshake happens once Run is called.
func Dial(ctx context.Context, options Options) (*Conn, error) {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", options.Addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to '%s': %w", options.Addr, err)
	}

	c := &Conn{
		conn:    conn,
		display: options.Session.Display,
		updated: make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     options.Log,
	}

	sessionOptions := options.Session
	sessionOptions.Display = c
	if sessionOptions.Log == nil {
		sessionOptions.Log = options.Log.Named("session")
	}

	c.session = session.NewClient(sessionOptions)

	return c, nil
}

// Run reads from the server until the connection closes, ctx is cancelled
// or the session fails.
func (c *Conn) Run(ctx context.Context) error {
	defer close(c.done)

	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer stop()

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			if derr := c.deliver(buf[:n]); derr != nil {
				c.setErr(derr)
				return derr
			}
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.setErr(ErrDisconnected)
				return nil
			}

			c.setErr(err)
			return err
		}
	}
}

func (c *Conn) deliver(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.session.Deliver(chunk); err != nil {
		// Whatever the session queued before failing still goes out
		if ferr := c.flushLocked(); ferr != nil {
			c.log.Debug("Failed to flush failed session", zap.Error(ferr))
		}

		return err
	}

	return c.flushLocked()
}

func (c *Conn) flushLocked() error {
	for {
		b, ok := c.session.Poll()
		if !ok {
			return nil
		}

		if _, err := c.conn.Write(b); err != nil {
			return fmt.Errorf("Failed to write to server: %w", err)
		}
	}
}

func (c *Conn) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err == nil {
		c.err = err
	}
}

// WaitForUpdate blocks until a FramebufferUpdate arrives after the call,
// or one arrived since the previous call.
func (c *Conn) WaitForUpdate(ctx context.Context) error {
	select {
	case <-c.updated:
		return nil

	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.err

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) SendKeyEvent(down bool, key uint32) error {
	return c.send(func() error {
		return c.session.SendKeyEvent(down, key)
	})
}

func (c *Conn) SendPointerEvent(mask uint8, x, y uint16) error {
	return c.send(func() error {
		return c.session.SendPointerEvent(mask, x, y)
	})
}

func (c *Conn) SendCutText(text string) error {
	return c.send(func() error {
		return c.session.SendCutText(text)
	})
}

func (c *Conn) send(queue func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := queue(); err != nil {
		return err
	}

	return c.flushLocked()
}

// Snapshot writes the current framebuffer as a PNG, scaled to width when
// width is not 0.
func (c *Conn) Snapshot(w io.Writer, width uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fb := c.session.Framebuffer()
	if fb == nil {
		return session.ErrNotReady
	}

	return fb.Snapshot(w, width)
}

// Status reports on the client session.
func (c *Conn) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session.Status()
}

func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session.Name()
}

// Close disconnects from the server.
func (c *Conn) Close() error {
	err := c.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

// Updated is called by the session with c.mu held.
func (c *Conn) Updated(update *protocol.FramebufferUpdate) {
	if c.display != nil {
		c.display.Updated(update)
	}

	select {
	case c.updated <- struct{}{}:
	default:
	}
}

func (c *Conn) Bell() {
	if c.display != nil {
		c.display.Bell()
	}
}

func (c *Conn) CutText(text string) {
	if c.display != nil {
		c.display.CutText(text)
	}
}

var _ session.DisplayHandler = (*Conn)(nil)
