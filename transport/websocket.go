package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketSubprotocol is offered to browser clients such as noVNC.
const WebSocketSubprotocol = "binary"

// WebSocket serves RFB sessions over WebSocket binary messages. Each message
// carries an arbitrary slice of the byte stream.
type WebSocket struct {
	ctx    context.Context
	cancel context.CancelFunc

	upgrader websocket.Upgrader

	nextID uint64

	mu         sync.Mutex
	closed     bool
	loopWaiter sync.WaitGroup

	options Options
	log     *zap.Logger
}

func NewWebSocket(parentCtx context.Context, options Options) *WebSocket {
	ctx, cancel := context.WithCancel(parentCtx)

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	return &WebSocket{
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{WebSocketSubprotocol},
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		options: options,
		log:     options.Log,
	}
}

// Handle upgrades the request and runs a session until either side goes
// away.
func (w *WebSocket) Handle(c *gin.Context) {
	if !w.addSession() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	defer w.loopWaiter.Done()

	ws, err := w.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		w.log.Warn("Failed to upgrade websocket", zap.Error(err))
		return
	}

	id := fmt.Sprintf("ws-%d", atomic.AddUint64(&w.nextID, 1))
	log := w.log.Named("conn").With(zap.String("session", id))

	loop, err := newSessionLoop(id, "websocket", &wsConn{ws}, w.options)
	if err != nil {
		log.Error("Failed to create session", zap.Error(err))
		w.closeWithReason(ws, websocket.CloseInternalServerErr, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()

	// Closing the socket is the only way to unblock a pending read
	stop := context.AfterFunc(ctx, func() {
		ws.Close()
	})
	defer stop()

	if err := loop.Run(ctx); err != nil {
		log.Warn("Session ended with an error", zap.Error(err))
		w.closeWithReason(ws, websocket.CloseProtocolError, err.Error())
	} else {
		log.Info("Session ended")
		w.closeWithReason(ws, websocket.CloseNormalClosure, "")
	}

	ws.Close()
}

// addSession registers a session with loopWaiter unless Close has been
// called.
func (w *WebSocket) addSession() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}

	w.loopWaiter.Add(1)
	return true
}

func (w *WebSocket) closeWithReason(ws *websocket.Conn, code int, reason string) {
	// Control frames are limited to 125 bytes, the code takes 2 of them
	if len(reason) > 123 {
		reason = reason[:123]
	}

	msg := websocket.FormatCloseMessage(code, reason)
	if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		w.log.Debug("Failed to send close message", zap.Error(err))
	}
}

// Close ends every session and waits for them to finish.
func (w *WebSocket) Close() error {
	w.log.Info("Stopping WebSocket sessions")

	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.loopWaiter.Wait()
	return nil
}

type wsConn struct {
	conn *websocket.Conn
}

// ReadChunk returns the payload of the next binary message. Text messages
// are not part of the byte stream and are skipped.
func (c *wsConn) ReadChunk() ([]byte, error) {
	for {
		t, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return nil, ErrConnClosed
			}

			return nil, err
		}

		if t == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteChunk(data []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

var _ chunkConn = (*wsConn)(nil)
