package transport_test

import (
	"sync"

	"github.com/jrwilson/substrate/session"
)

// stream is the client side of a connection under test.
type stream interface {
	read() ([]byte, error)
	write(b []byte) error
}

// handshake drives client over s until done reports true or the stream
// fails.
func handshake(s stream, client *session.Client, done func() bool) error {
	for !done() {
		for {
			b, ok := client.Poll()
			if !ok {
				break
			}

			if err := s.write(b); err != nil {
				return err
			}
		}

		if done() {
			return nil
		}

		chunk, err := s.read()
		if err != nil {
			return err
		}

		if err := client.Deliver(chunk); err != nil {
			return err
		}
	}

	return nil
}

type countingObserver struct {
	mu      sync.Mutex
	started map[string]int
	ended   map[string]int
	bytes   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		started: make(map[string]int),
		ended:   make(map[string]int),
	}
}

func (c *countingObserver) BytesReceived(role string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes += n
}

func (c *countingObserver) MessageDecoded(string, string) {}
func (c *countingObserver) UpdateSent(int, int)           {}
func (c *countingObserver) ProtocolError(string, error)   {}

func (c *countingObserver) SessionStarted(transport string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[transport]++
}

func (c *countingObserver) SessionEnded(transport string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended[transport]++
}

func (c *countingObserver) Started(transport string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started[transport]
}

func (c *countingObserver) Ended(transport string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended[transport]
}
