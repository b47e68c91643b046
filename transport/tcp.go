package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// ReadBufferSize is the largest chunk read from a connection at once
	ReadBufferSize = 32 * 1024

	WriteQueueSize = 127
)

type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr string

	numListeners int
	reuseport    bool

	mu        sync.Mutex
	listeners []*TCPListener

	nextID  uint64
	options Options

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	if !options.Reuseport {
		numListeners = 1
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		numListeners: numListeners,
		reuseport:    options.Reuseport,
		listeners:    make([]*TCPListener, 0, numListeners),
		options:      options,
		log:          options.Log,
	}
}

// Start binds every listener and then serves them in the background. A
// failure to bind is returned and nothing is left running.
func (w *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	addr := w.addr
	for i := 0; i < w.numListeners; i++ {
		listener, err := w.listen(ctx, addr, i)
		if err != nil {
			cancel()
			return multierr.Append(err, w.closeListeners())
		}

		// With port 0, the remaining listeners share the first one's port
		addr = listener.Addr().String()

		w.startListener(listener)
	}

	return nil
}

func (w *TCP) listen(ctx context.Context, addr string, n int) (*TCPListener, error) {
	var (
		l   net.Listener
		err error
	)

	if w.reuseport {
		l, err = reuseport.Listen("tcp", addr)
	} else {
		l, err = net.Listen("tcp", addr)
	}

	if err != nil {
		return nil, fmt.Errorf("Failed to listen on %s: %w", addr, err)
	}

	listener := NewTCPListener(ctx, l, w, w.log.Named("listener").With(zap.Int("listener", n)))

	w.mu.Lock()
	w.listeners = append(w.listeners, listener)
	w.mu.Unlock()

	return listener, nil
}

func (w *TCP) startListener(listener *TCPListener) {
	w.stopWaiter.Add(1)

	go func() {
		defer w.stopWaiter.Done()

		if err := listener.Serve(); err != nil {
			// TODO: restart failed listeners, until then fewer than
			//       numListeners may be accepting
			w.log.Error("Listener stopped", zap.Error(err))
		}
	}()
}

// Addr is the address the first listener is bound to.
func (w *TCP) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.listeners) == 0 {
		return nil
	}

	return w.listeners[0].Addr()
}

// Close immediately closes all listeners and connections and waits for
// their sessions to end.
func (w *TCP) Close() error {
	w.log.Info("Stopping TCP server")
	if w.cancel != nil {
		w.cancel()
	}

	err := w.closeListeners()

	w.log.Info("Waiting for listeners")
	w.stopWaiter.Wait()
	w.log.Info("Listeners stopped")

	return err
}

func (w *TCP) closeListeners() (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.Close())
	}

	return err
}

func (w *TCP) nextSessionID() string {
	return fmt.Sprintf("tcp-%d", atomic.AddUint64(&w.nextID, 1))
}

type TCPListener struct {
	ctx context.Context

	listener net.Listener
	tcp      *TCP
	log      *zap.Logger

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}
	closed      bool

	loopWaiter sync.WaitGroup
}

func NewTCPListener(
	ctx context.Context,
	listener net.Listener,
	tcp *TCP,
	log *zap.Logger,
) *TCPListener {
	return &TCPListener{
		ctx:         ctx,
		listener:    listener,
		tcp:         tcp,
		activeConns: make(map[*TCPConn]struct{}),
		log:         log,
	}
}

func (t *TCPListener) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops accepting and closes every active connection.
func (t *TCPListener) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}

	t.closed = true
	err := t.listener.Close()

	conns := make([]*TCPConn, 0, len(t.activeConns))
	for conn := range t.activeConns {
		conns = append(conns, conn)
	}
	t.mu.Unlock()

	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}

	return err
}

// Serve accepts connections until the listener is closed, then waits for
// the sessions it started.
func (t *TCPListener) Serve() error {
	defer func() {
		t.log.Info("Waiting for sessions to stop")
		t.loopWaiter.Wait()
		t.log.Info("Listener stopped")
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// Closed while we were waiting for new connections, that's fine
				return nil
			}

			return fmt.Errorf("Failed to accept on %s: %w", t.listener.Addr(), err)
		}

		id := t.tcp.nextSessionID()
		tcpConn := NewTCPConn(t.ctx, conn, t.log.Named("conn").With(zap.String("session", id)))

		loop, err := newSessionLoop(id, "tcp", tcpConn, t.tcp.options)
		if err != nil {
			t.log.Error("Failed to create session", zap.Error(err))
			conn.Close()
			continue
		}

		if !t.addConn(tcpConn) {
			conn.Close()
			return nil
		}

		t.loopWaiter.Add(1)
		go func() {
			defer t.loopWaiter.Done()
			defer t.removeConn(tcpConn)

			tcpConn.Start(loop)
		}()
	}
}

func (t *TCPListener) addConn(conn *TCPConn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}

	t.activeConns[conn] = struct{}{}
	return true
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

// TCPConn is one accepted connection. Reads happen on the session loop's
// read goroutine, writes on the write loop.
type TCPConn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup

	conn net.Conn

	writeQueue chan []byte

	closeOnce sync.Once
	log       *zap.Logger
}

func NewTCPConn(
	parentCtx context.Context,
	conn net.Conn,
	log *zap.Logger,
) *TCPConn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &TCPConn{
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		writeQueue: make(chan []byte, WriteQueueSize),
		log:        log,
	}
}

// Close cancels the session and closes the socket, which unblocks any
// pending read.
func (t *TCPConn) Close() (err error) {
	t.closeOnce.Do(func() {
		t.cancel()
		err = t.conn.Close()
	})

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

// Start runs loop on this connection and returns once it has ended and all
// queued writes have been attempted.
func (t *TCPConn) Start(loop *sessionLoop) {
	t.loopWaiter.Add(1)
	go func() {
		defer t.loopWaiter.Done()
		t.WriteLoop()
	}()

	if err := loop.Run(t.ctx); err != nil {
		t.log.Warn("Session ended with an error", zap.Error(err))
	} else {
		t.log.Info("Session ended")
	}

	// Stop the write loop, it drains what is left before returning
	t.cancel()
	t.loopWaiter.Wait()

	if err := t.Close(); err != nil {
		t.log.Warn("Failed to close connection cleanly", zap.Error(err))
	}
}

func (t *TCPConn) ReadChunk() ([]byte, error) {
	buf := make([]byte, ReadBufferSize)
	n, err := t.conn.Read(buf)
	return buf[:n], err
}

// WriteChunk queues data for the write loop.
func (t *TCPConn) WriteChunk(data []byte) error {
	select {
	case t.writeQueue <- data:
		return nil
	case <-t.ctx.Done():
		return ErrConnClosed
	}
}

func (t *TCPConn) WriteLoop() {
	log := t.log.Named("writeLoop")

	for {
		select {
		case <-t.ctx.Done():
			t.drain(log)
			return

		case data := <-t.writeQueue:
			if _, err := t.conn.Write(data); err != nil {
				log.Warn("Failed to write to connection", zap.Int("bytes", len(data)), zap.Error(err))
				t.cancel()
				return
			}
		}
	}
}

func (t *TCPConn) drain(log *zap.Logger) {
	for {
		select {
		case data := <-t.writeQueue:
			if _, err := t.conn.Write(data); err != nil {
				log.Debug("Dropped queued writes on close", zap.String("head", hex.EncodeToString(data[:min(len(data), 16)])))
				return
			}

		default:
			return
		}
	}
}

var _ chunkConn = (*TCPConn)(nil)
