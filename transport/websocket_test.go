package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/jrwilson/substrate/protocol"
	"github.com/jrwilson/substrate/session"
	"github.com/jrwilson/substrate/transport"
)

type wsStream struct {
	conn *websocket.Conn
}

func (w *wsStream) read() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsStream) write(b []byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, b)
}

var _ = Describe("WebSocket", func() {
	var (
		ws       *transport.WebSocket
		server   *httptest.Server
		observer *countingObserver
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		observer = newCountingObserver()

		ws = transport.NewWebSocket(context.Background(), transport.Options{
			Session: session.ServerOptions{
				Width:   8,
				Height:  8,
				Name:    "ws test",
				Version: protocol.Version37,
			},
			Source:         "pattern",
			UpdateInterval: 10 * time.Millisecond,
			Observer:       observer,
			Log:            zap.NewNop(),
		})

		router := gin.New()
		router.GET("/ws", ws.Handle)
		server = httptest.NewServer(router)
	})

	AfterEach(func() {
		Expect(ws.Close()).To(Succeed())
		server.Close()
	})

	dial := func() *websocket.Conn {
		dialer := websocket.Dialer{
			Subprotocols:     []string{transport.WebSocketSubprotocol},
			HandshakeTimeout: 5 * time.Second,
		}

		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		conn, _, err := dialer.Dial(url, nil)
		Expect(err).To(Succeed())
		Expect(conn.SetReadDeadline(time.Now().Add(10 * time.Second))).To(Succeed())

		return conn
	}

	It("negotiates the binary subprotocol", func() {
		conn := dial()
		defer conn.Close()

		Expect(conn.Subprotocol()).To(Equal(transport.WebSocketSubprotocol))
	})

	It("runs a session over binary messages", func() {
		conn := dial()
		defer conn.Close()

		client := session.NewClient(session.ClientOptions{})
		Expect(handshake(&wsStream{conn}, client, func() bool {
			return client.Status().Updates >= 2
		})).To(Succeed())

		Expect(client.Version()).To(Equal(protocol.Version37))
		Expect(client.Name()).To(Equal("ws test"))
		Expect(observer.Started("websocket")).To(Equal(1))
	})

	It("ignores text messages", func() {
		conn := dial()
		defer conn.Close()

		Expect(conn.WriteMessage(websocket.TextMessage, []byte("hello"))).To(Succeed())

		client := session.NewClient(session.ClientOptions{})
		Expect(handshake(&wsStream{conn}, client, func() bool {
			return client.State() == session.ClientNormal
		})).To(Succeed())
	})

	It("sends a close message after a protocol error", func() {
		conn := dial()
		defer conn.Close()

		_, version, err := conn.ReadMessage()
		Expect(err).To(Succeed())
		Expect(string(version)).To(Equal("RFB 003.007\n"))

		Expect(conn.WriteMessage(websocket.BinaryMessage, []byte("RFB 002.000\n"))).To(Succeed())

		for {
			_, _, err = conn.ReadMessage()
			if err != nil {
				break
			}
		}

		Expect(websocket.IsCloseError(err, websocket.CloseProtocolError)).To(BeTrue())
		Eventually(func() int { return observer.Ended("websocket") }).Should(Equal(1))
	})

	It("ends sessions on Close", func() {
		conn := dial()
		defer conn.Close()

		client := session.NewClient(session.ClientOptions{})
		Expect(handshake(&wsStream{conn}, client, func() bool {
			return client.State() == session.ClientNormal
		})).To(Succeed())

		Expect(ws.Close()).To(Succeed())

		// Close only returns once every session has ended
		Expect(observer.Ended("websocket")).To(Equal(1))

		var err error
		for err == nil {
			_, _, err = conn.ReadMessage()
		}
	})

	It("turns away connections after Close", func() {
		Expect(ws.Close()).To(Succeed())

		dialer := websocket.Dialer{
			Subprotocols:     []string{transport.WebSocketSubprotocol},
			HandshakeTimeout: 5 * time.Second,
		}

		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		_, resp, err := dialer.Dial(url, nil)
		Expect(err).To(MatchError(websocket.ErrBadHandshake))
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		Expect(observer.Started("websocket")).To(Equal(0))
	})
})
