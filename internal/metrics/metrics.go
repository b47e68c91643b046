package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jrwilson/substrate/protocol"
	"github.com/jrwilson/substrate/session"
)

const namespace = "rfb"

// Metrics collects session traffic for Prometheus. It implements
// session.Observer.
type Metrics struct {
	bytesReceived   *prometheus.CounterVec
	messagesDecoded *prometheus.CounterVec
	updatesSent     prometheus.Counter
	pixelsSent      prometheus.Counter
	protocolErrors  *prometheus.CounterVec
	activeSessions  *prometheus.GaugeVec
}

// New registers the collectors with registry. A nil registry means
// prometheus.DefaultRegisterer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		bytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes delivered to session grammars.",
		}, []string{"role"}),
		messagesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_decoded_total",
			Help:      "Messages decoded after the handshake, by type.",
		}, []string{"role", "type"}),
		updatesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "framebuffer_updates_sent_total",
			Help:      "FramebufferUpdate messages queued by servers.",
		}),
		pixelsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixels_sent_total",
			Help:      "Pixels carried by RAW rectangles.",
		}),
		protocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Sessions ended by a protocol error, by kind.",
		}, []string{"role", "kind"}),
		activeSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently connected, by transport.",
		}, []string{"transport"}),
	}
}

func (m *Metrics) BytesReceived(role string, n int) {
	m.bytesReceived.WithLabelValues(role).Add(float64(n))
}

func (m *Metrics) MessageDecoded(role string, t string) {
	m.messagesDecoded.WithLabelValues(role, t).Inc()
}

func (m *Metrics) UpdateSent(rects, pixels int) {
	m.updatesSent.Inc()
	m.pixelsSent.Add(float64(pixels))
}

func (m *Metrics) ProtocolError(role string, err error) {
	m.protocolErrors.WithLabelValues(role, errorKind(err)).Inc()
}

// SessionStarted and SessionEnded track connections per transport.
func (m *Metrics) SessionStarted(transport string) {
	m.activeSessions.WithLabelValues(transport).Inc()
}

func (m *Metrics) SessionEnded(transport string) {
	m.activeSessions.WithLabelValues(transport).Dec()
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{protocol.ErrMalformedVersion, "malformed_version"},
	{protocol.ErrUnsupportedVersion, "unsupported_version"},
	{protocol.ErrUnknownMessage, "unknown_message"},
	{protocol.ErrUnknownEncoding, "unknown_encoding"},
	{session.ErrPixelFormatMismatch, "pixel_format"},
	{session.ErrConnectionFailed, "security"},
	{session.ErrNoSecurityType, "security"},
	{session.ErrSecurityFailed, "security"},
}

// errorKind keeps label cardinality bounded by mapping errors onto a fixed
// set of kinds.
func errorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return "other"
}

var _ session.Observer = (*Metrics)(nil)
