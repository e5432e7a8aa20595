package lounge

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures NewMetrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "lounge").
	Namespace string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// Registry receives the collectors (default: prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
}

// Metrics holds the Prometheus collectors for one or more clients. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	events         *prometheus.CounterVec
	decodeFailures *prometheus.CounterVec
	frames         prometheus.Counter
	commands       *prometheus.CounterVec
	longPolls      *prometheus.CounterVec
	tokenRefreshes *prometheus.CounterVec
	subscriberLags prometheus.Counter
	connected      prometheus.Gauge
}

// NewMetrics registers the lounge collectors with cfg.Registry.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "lounge"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "events_total",
			Help:        "Events emitted to subscribers, by type",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),

		decodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "decode_failures_total",
			Help:        "Frames, tuples or fields that could not be decoded",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),

		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_total",
			Help:        "Frames decoded from bind responses",
			ConstLabels: cfg.ConstLabels,
		}),

		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "commands_total",
			Help:        "Playback commands sent, by command and result",
			ConstLabels: cfg.ConstLabels,
		}, []string{"command", "result"}),

		longPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "long_polls_total",
			Help:        "Long-poll requests, by outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),

		tokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "token_refreshes_total",
			Help:        "Lounge token refreshes, by result",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),

		subscriberLags: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "subscriber_dropped_events_total",
			Help:        "Events dropped because a subscriber fell behind",
			ConstLabels: cfg.ConstLabels,
		}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "connected_sessions",
			Help:        "Clients currently holding a bound session",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

func (m *Metrics) event(t EventType) {
	if m != nil {
		m.events.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) decodeFailure(kind string) {
	if m != nil {
		m.decodeFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) frame() {
	if m != nil {
		m.frames.Inc()
	}
}

func (m *Metrics) command(name string, err error) {
	if m != nil {
		m.commands.WithLabelValues(name, resultLabel(err)).Inc()
	}
}

func (m *Metrics) longPoll(result string) {
	if m != nil {
		m.longPolls.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) tokenRefresh(err error) {
	if m != nil {
		m.tokenRefreshes.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) subscriberLag() {
	if m != nil {
		m.subscriberLags.Inc()
	}
}

func (m *Metrics) setConnected(delta float64) {
	if m != nil {
		m.connected.Add(delta)
	}
}

// resultLabel keeps label cardinality bounded to the error taxonomy.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrConnectionClosed):
		return "connection_closed"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrInvalidFraming):
		return "invalid_framing"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "error"
	}
}
