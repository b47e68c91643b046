package transport_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/jrwilson/substrate/protocol"
	"github.com/jrwilson/substrate/session"
	"github.com/jrwilson/substrate/storage"
	"github.com/jrwilson/substrate/transport"
)

type tcpStream struct {
	conn net.Conn
}

func (t *tcpStream) read() ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := t.conn.Read(buf)
	return buf[:n], err
}

func (t *tcpStream) write(b []byte) error {
	_, err := t.conn.Write(b)
	return err
}

var _ = Describe("TCP", func() {
	var (
		tcp      *transport.TCP
		store    *storage.InmemoryStore
		observer *countingObserver
		options  transport.Options
	)

	BeforeEach(func() {
		store = storage.NewInmemoryStore(zap.NewNop())
		observer = newCountingObserver()

		options = transport.Options{
			Host: "127.0.0.1",
			Port: 0,
			Session: session.ServerOptions{
				Width:   32,
				Height:  16,
				Name:    "tcp test",
				Version: protocol.Version38,
			},
			Source:   "noise",
			Store:    store,
			Observer: observer,
			Log:      zap.NewNop(),
		}
	})

	start := func() {
		tcp = transport.NewTCP(options)
		Expect(tcp.Start(context.Background())).To(Succeed())
	}

	AfterEach(func() {
		if tcp != nil {
			Expect(tcp.Close()).To(Succeed())
		}

		Expect(store.Close()).To(Succeed())
	})

	dial := func() net.Conn {
		conn, err := net.Dial("tcp", tcp.Addr().String())
		Expect(err).To(Succeed())
		Expect(conn.SetDeadline(time.Now().Add(10 * time.Second))).To(Succeed())
		return conn
	}

	It("listens on the desired address", func() {
		start()

		conn := dial()
		defer conn.Close()

		Expect(tcp.Addr().(*net.TCPAddr).IP.String()).To(Equal("127.0.0.1"))
	})

	It("fails to start on an address in use", func() {
		start()

		options.Port = tcp.Addr().(*net.TCPAddr).Port
		other := transport.NewTCP(options)
		Expect(other.Start(context.Background())).NotTo(Succeed())
	})

	It("starts several listeners on one port with reuseport", func() {
		options.Reuseport = true
		options.NumListeners = 2
		start()

		conn := dial()
		defer conn.Close()
	})

	It("serves the version and a framebuffer", func() {
		start()

		conn := dial()
		defer conn.Close()

		client := session.NewClient(session.ClientOptions{})
		Expect(handshake(&tcpStream{conn}, client, func() bool {
			return client.Status().Updates > 0
		})).To(Succeed())

		Expect(client.State()).To(Equal(session.ClientNormal))
		Expect(client.Name()).To(Equal("tcp test"))
		Expect(client.Framebuffer().Width).To(Equal(32))
	})

	It("publishes session status while connected", func() {
		start()

		conn := dial()

		client := session.NewClient(session.ClientOptions{})
		Expect(handshake(&tcpStream{conn}, client, func() bool {
			return client.State() == session.ClientNormal
		})).To(Succeed())

		Eventually(func() string {
			value, err := store.Get(context.Background(), "tcp-1")
			if err != nil {
				return ""
			}

			return gjson.GetBytes(value, "state").String()
		}).Should(Equal("NORMAL"))

		Expect(observer.Started("tcp")).To(Equal(1))

		conn.Close()

		Eventually(func() error {
			_, err := store.Get(context.Background(), "tcp-1")
			return err
		}).Should(MatchError(storage.ErrNotFound))

		Eventually(func() int { return observer.Ended("tcp") }).Should(Equal(1))
	})

	It("closes the connection after a protocol error", func() {
		start()

		conn := dial()
		defer conn.Close()

		buf := make([]byte, protocol.ProtocolVersionLength)
		_, err := conn.Read(buf)
		Expect(err).To(Succeed())
		Expect(string(buf)).To(Equal("RFB 003.008\n"))

		_, err = conn.Write([]byte("RFB 004.000\n"))
		Expect(err).To(Succeed())

		waitForClose(conn)
	})

	It("refuses connections when the image source is unknown", func() {
		options.Source = "nope"
		start()

		conn := dial()
		defer conn.Close()

		waitForClose(conn)
	})

	It("closes active connections on Close", func() {
		start()

		conn := dial()
		defer conn.Close()

		client := session.NewClient(session.ClientOptions{})
		Expect(handshake(&tcpStream{conn}, client, func() bool {
			return client.State() == session.ClientNormal
		})).To(Succeed())

		Expect(tcp.Close()).To(Succeed())
		tcp = nil

		waitForClose(conn)
	})
})

// waitForClose reads until the server closes conn.
func waitForClose(conn net.Conn) {
	Expect(conn.SetReadDeadline(time.Now().Add(10 * time.Second))).To(Succeed())

	buf := make([]byte, 4096)
	for {
		_, err := conn.Read(buf)
		if err == nil {
			continue
		}

		timeoutErr, ok := err.(net.Error)
		if ok && timeoutErr.Timeout() {
			Fail("The client was never closed by the server")
		}

		return
	}
}
