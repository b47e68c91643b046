package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/jrwilson/substrate/framebuffer"
	"github.com/jrwilson/substrate/session"
	"github.com/jrwilson/substrate/storage"
)

var ErrConnClosed = errors.New("Connection is closed")

// chunkConn is a byte stream delivered in discrete chunks, such as TCP reads
// or WebSocket binary messages.
type chunkConn interface {
	ReadChunk() ([]byte, error)
	WriteChunk(b []byte) error
}

// sessionLoop runs one server session over a chunkConn. Every call into the
// session happens on the goroutine running Run.
type sessionLoop struct {
	id        string
	transport string

	conn     chunkConn
	server   *session.Server
	source   framebuffer.Source
	interval time.Duration

	store    storage.Store
	observer SessionObserver

	trace bool
	log   *zap.Logger
}

func newSessionLoop(id, transport string, conn chunkConn, options Options) (*sessionLoop, error) {
	source, err := framebuffer.NewSource(options.Source, time.Now().UnixNano())
	if err != nil {
		return nil, err
	}

	log := options.Log.With(zap.String("session", id))

	serverOptions := options.Session
	serverOptions.Log = log.Named("session")
	if options.Observer != nil {
		serverOptions.Observer = options.Observer
	}

	return &sessionLoop{
		id:        id,
		transport: transport,
		conn:      conn,
		server:    session.NewServer(serverOptions),
		source:    source,
		interval:  options.UpdateInterval,
		store:     options.Store,
		observer:  options.Observer,
		trace:     options.Trace,
		log:       log,
	}, nil
}

// Run serves the session until the peer goes away, ctx is cancelled or the
// session fails. A clean disconnect returns nil.
func (l *sessionLoop) Run(ctx context.Context) error {
	if l.observer != nil {
		l.observer.SessionStarted(l.transport)
		defer l.observer.SessionEnded(l.transport)
	}

	if l.store != nil {
		defer func() {
			if err := l.store.Delete(context.Background(), l.id); err != nil && !errors.Is(err, storage.ErrNotFound) {
				l.log.Warn("Failed to remove session from store", zap.Error(err))
			}
		}()
	}

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go l.readLoop(ctx, chunks, readErr)

	var tick <-chan time.Time
	if l.interval > 0 {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	l.server.Update(l.source)
	if err := l.flush(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case chunk, ok := <-chunks:
			if !ok {
				return ignoreDisconnect(<-readErr)
			}

			if l.trace {
				l.log.Debug("Read", zap.String("data", hex.EncodeToString(chunk)))
			}

			if err := l.server.Deliver(chunk); err != nil {
				// Whatever the session queued before failing still goes out
				if ferr := l.flush(ctx); ferr != nil {
					l.log.Debug("Failed to flush failed session", zap.Error(ferr))
				}

				return err
			}

		case <-tick:
			l.server.Update(l.source)
		}

		if err := l.flush(ctx); err != nil {
			return err
		}
	}
}

func (l *sessionLoop) readLoop(ctx context.Context, chunks chan<- []byte, readErr chan<- error) {
	defer close(chunks)

	for {
		chunk, err := l.conn.ReadChunk()
		if len(chunk) > 0 {
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}

		if err != nil {
			readErr <- err
			return
		}
	}
}

// flush writes everything the session has queued and publishes its status.
func (l *sessionLoop) flush(ctx context.Context) error {
	for {
		b, ok := l.server.Poll()
		if !ok {
			break
		}

		if l.trace {
			l.log.Debug("Write", zap.Int("bytes", len(b)), zap.String("head", hex.EncodeToString(b[:min(len(b), 32)])))
		}

		if err := l.conn.WriteChunk(b); err != nil {
			return fmt.Errorf("Failed to write to session %s: %w", l.id, err)
		}
	}

	if l.store != nil {
		if err := l.store.Put(ctx, l.id, l.server.Status()); err != nil && !errors.Is(err, storage.ErrClosed) {
			l.log.Warn("Failed to publish session status", zap.Error(err))
		}
	}

	return nil
}

func ignoreDisconnect(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrConnClosed) {
		return nil
	}

	return err
}
