package lounge

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL is the lounge API host.
	DefaultBaseURL = "https://www.youtube.com"

	// DefaultRequestTimeout bounds pairing, bind and command requests.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultLongPollTimeout outlives the server's ~30 minute keep-alive so the
	// client never races the server's own timeout.
	DefaultLongPollTimeout = 35 * time.Minute

	// DefaultStreamRestartDelay is the pause between a cleanly ended long-poll
	// stream and the next request.
	DefaultStreamRestartDelay = time.Second

	// DefaultSettleDelay is the pause after the terminate request.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultEventBuffer is the per-subscriber queue length.
	DefaultEventBuffer = 256

	tracerName = "github.com/user/loungeremote/pkg/lounge"
)

// Screen identifies a paired device and its current credential.
type Screen struct {
	Name        string `json:"name,omitempty"`
	ScreenID    string `json:"screenId"`
	LoungeToken string `json:"loungeToken"`
}

// TokenRefreshListener is notified after a lounge token is replaced.
type TokenRefreshListener interface {
	OnTokenRefreshed(screenID, token string)
}

// TokenRefreshFunc adapts a function to TokenRefreshListener.
type TokenRefreshFunc func(screenID, token string)

// OnTokenRefreshed calls f.
func (f TokenRefreshFunc) OnTokenRefreshed(screenID, token string) { f(screenID, token) }

// ConnState is the session lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateWaitingToReconnect
	StateFailed
	StateStopping
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateWaitingToReconnect:
		return "waiting_to_reconnect"
	case StateFailed:
		return "failed"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type options struct {
	baseURL            string
	httpClient         *http.Client
	longPollClient     *http.Client
	logger             *slog.Logger
	metrics            *Metrics
	tracerProvider     trace.TracerProvider
	backoff            Backoff
	streamRestartDelay time.Duration
	settleDelay        time.Duration
	eventBuffer        int
	deviceID           string
	listener           TokenRefreshListener
}

func defaultOptions() options {
	return options{
		baseURL:            DefaultBaseURL,
		backoff:            DefaultBackoff(),
		streamRestartDelay: DefaultStreamRestartDelay,
		settleDelay:        DefaultSettleDelay,
		eventBuffer:        DefaultEventBuffer,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if o.longPollClient == nil {
		o.longPollClient = &http.Client{Timeout: DefaultLongPollTimeout}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return o
}

// Option configures a Client or a pairing call.
type Option func(*options)

// WithBaseURL overrides the API host, e.g. for tests.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the transport for short requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLongPollHTTPClient sets the transport for long-poll requests. Its
// timeout must exceed the server keep-alive interval.
func WithLongPollHTTPClient(c *http.Client) Option {
	return func(o *options) { o.longPollClient = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithBackoff sets the long-poll retry backoff.
func WithBackoff(b Backoff) Option {
	return func(o *options) { o.backoff = b }
}

// WithStreamRestartDelay sets the pause between clean long-poll streams.
func WithStreamRestartDelay(d time.Duration) Option {
	return func(o *options) { o.streamRestartDelay = d }
}

// WithSettleDelay sets the pause after the terminate request.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) { o.settleDelay = d }
}

// WithEventBuffer sets the per-subscriber queue length.
func WithEventBuffer(n int) Option {
	return func(o *options) { o.eventBuffer = n }
}

// WithDeviceID reuses a device id so the screen recognises this controller
// across process restarts.
func WithDeviceID(id string) Option {
	return func(o *options) { o.deviceID = id }
}

// WithTokenRefreshListener registers a listener for refreshed tokens.
func WithTokenRefreshListener(l TokenRefreshListener) Option {
	return func(o *options) { o.listener = l }
}

// NewDeviceID returns a fresh controller id.
func NewDeviceID() string {
	return uuid.New().String()
}

// Client controls one paired screen. It may be connected and disconnected
// any number of times; the device id never changes.
type Client struct {
	opts       options
	api        *api
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	screenID   string
	screenName string
	deviceID   string
	deviceName string

	mu        sync.Mutex
	token     string
	session   sessionState
	connected bool
	state     ConnState
	run       *pollRun

	cmdSem    *semaphore.Weighted
	refreshes singleflight.Group
	processor *Processor
	events    *broadcaster
}

// NewClient creates a client for screen. deviceName is shown on the screen.
func NewClient(screen Screen, deviceName string, opts ...Option) *Client {
	o := buildOptions(opts)
	deviceID := o.deviceID
	if deviceID == "" {
		deviceID = NewDeviceID()
	}
	logger := o.logger.With("screen_id", screen.ScreenID)
	return &Client{
		opts:       o,
		api:        newAPI(o),
		logger:     logger,
		metrics:    o.metrics,
		tracer:     o.tracerProvider.Tracer(tracerName),
		screenID:   screen.ScreenID,
		screenName: screen.Name,
		deviceID:   deviceID,
		deviceName: deviceName,
		token:      screen.LoungeToken,
		session:    newSessionState(),
		state:      StateDisconnected,
		cmdSem:     semaphore.NewWeighted(1),
		processor:  NewProcessor(logger, o.metrics),
		events:     newBroadcaster(o.eventBuffer, o.metrics),
	}
}

// ScreenID returns the paired screen id.
func (c *Client) ScreenID() string { return c.screenID }

// DeviceID returns the controller id sent at bind time.
func (c *Client) DeviceID() string { return c.deviceID }

// DeviceName returns the controller name shown on the screen.
func (c *Client) DeviceName() string { return c.deviceName }

// Screen returns the screen with the current token.
func (c *Client) Screen() Screen {
	return Screen{Name: c.screenName, ScreenID: c.screenID, LoungeToken: c.Token()}
}

// Token returns the current lounge token.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// State returns the lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether a session is bound.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribe returns a subscription to all future events.
func (c *Client) Subscribe() *Subscription {
	return c.events.subscribe()
}

// Done is closed when the current long-poll loop exits. It is closed
// immediately when the client has never connected.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.run.done
}

// Err returns why the last long-poll loop exited: ErrSessionExpired,
// ErrTokenExpired or ErrConnectionClosed (which includes Disconnect). It is nil
// while the loop is running.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return nil
	}
	return c.run.err
}

// CheckAvailability reports whether the screen is online, refreshing the
// token once if it has expired.
func (c *Client) CheckAvailability(ctx context.Context) (bool, error) {
	ctx, span := c.startSpan(ctx, "lounge.availability")
	available, err := withRefresh(ctx, c, func(ctx context.Context) (bool, error) {
		return c.api.screenAvailability(ctx, c.Token())
	})
	endSpan(span, err)
	return available, err
}

// Close disconnects and ends every subscription.
func (c *Client) Close(ctx context.Context) error {
	err := c.Disconnect(ctx)
	c.events.close()
	return err
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("lounge.screen_id", c.screenID),
		attribute.String("lounge.device_id", c.deviceID),
	)
	return c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
