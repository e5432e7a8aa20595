package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/loungeremote/internal/state"
	"github.com/user/loungeremote/pkg/lounge"
)

// Status is a snapshot of what a Remote knows about its screen.
type Status struct {
	ScreenID   string                  `json:"screen_id"`
	ScreenName string                  `json:"screen_name"`
	State      string                  `json:"state"`
	Connected  bool                    `json:"connected"`
	Playback   *lounge.PlaybackSession `json:"playback,omitempty"`
	Volume     *int                    `json:"volume,omitempty"`
	Muted      bool                    `json:"muted"`
	Autoplay   string                  `json:"autoplay,omitempty"`
	Devices    []lounge.Device         `json:"devices,omitempty"`
	LastError  string                  `json:"last_error,omitempty"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// recorded lists the event types appended to history.
var recorded = map[lounge.EventType]bool{
	lounge.EventPlaybackSession:     true,
	lounge.EventVolumeChanged:       true,
	lounge.EventAutoplayModeChanged: true,
	lounge.EventPlaylistModified:    true,
	lounge.EventScreenDisconnected:  true,
	lounge.EventSessionEstablished:  true,
}

// Remote keeps one lounge.Client connected to its screen. It reconnects after
// the long-poll loop ends, refreshing the token first when that was the cause,
// and tracks playback state from the event stream.
type Remote struct {
	client  *lounge.Client
	name    string
	history *state.HistoryStore
	retry   *RetryPolicy
	logger  *slog.Logger

	mu     sync.RWMutex
	status Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithHistory records selected events to h.
func WithHistory(h *state.HistoryStore) RemoteOption {
	return func(r *Remote) { r.history = h }
}

// WithReconnectPolicy replaces ReconnectPolicy().
func WithReconnectPolicy(p *RetryPolicy) RemoteOption {
	return func(r *Remote) { r.retry = p }
}

// WithRemoteLogger sets the logger (default: slog.Default()).
func WithRemoteLogger(l *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = l }
}

// NewRemote wraps client. Call Start to connect.
func NewRemote(client *lounge.Client, opts ...RemoteOption) *Remote {
	screen := client.Screen()
	r := &Remote{
		client: client,
		name:   screen.Name,
		retry:  ReconnectPolicy(),
		logger: slog.Default(),
		status: Status{ScreenID: screen.ScreenID, ScreenName: screen.Name},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("screen_id", screen.ScreenID)
	return r
}

// ScreenID returns the screen this remote controls.
func (r *Remote) ScreenID() string { return r.client.ScreenID() }

// Name returns the screen's display name.
func (r *Remote) Name() string { return r.name }

// Client returns the underlying lounge client.
func (r *Remote) Client() *lounge.Client { return r.client }

// Start begins connecting in the background and returns immediately.
func (r *Remote) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return fmt.Errorf("remote for %s already started", r.ScreenID())
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	sub := r.client.Subscribe()
	r.wg.Add(2)
	go r.track(sub)
	go r.supervise()
	return nil
}

// Stop ends supervision and disconnects from the screen.
func (r *Remote) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	return r.client.Close(ctx)
}

// Execute sends cmd to the screen.
func (r *Remote) Execute(ctx context.Context, cmd lounge.Command) error {
	if err := r.client.SendCommand(ctx, cmd); err != nil {
		return fmt.Errorf("%s on %s: %w", cmd.Name(), r.Name(), err)
	}
	r.logger.Debug("command sent", "command", cmd.Name())
	return nil
}

// Subscribe returns a new subscription to the screen's events.
func (r *Remote) Subscribe() *lounge.Subscription {
	return r.client.Subscribe()
}

// Status returns the latest known state of the screen.
func (r *Remote) Status() Status {
	r.mu.RLock()
	st := r.status
	if st.Playback != nil {
		pb := *st.Playback
		st.Playback = &pb
	}
	if st.Volume != nil {
		v := *st.Volume
		st.Volume = &v
	}
	st.Devices = append([]lounge.Device(nil), st.Devices...)
	r.mu.RUnlock()

	st.State = r.client.State().String()
	st.Connected = r.client.Connected()
	return st
}

func (r *Remote) supervise() {
	defer r.wg.Done()

	for {
		err := r.retry.Execute(r.ctx, func(ctx context.Context) error {
			err := r.client.Connect(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn("connect failed", "error", err)
				r.setError(err)
			}
			return err
		})
		if err != nil {
			if r.ctx.Err() == nil {
				r.logger.Error("giving up on screen", "error", err)
				r.setError(err)
			}
			return
		}
		r.setError(nil)

		select {
		case <-r.ctx.Done():
			return
		case <-r.client.Done():
		}
		if r.ctx.Err() != nil {
			return
		}

		cause := r.client.Err()
		r.logger.Warn("lounge session ended", "error", cause)
		r.setError(cause)
		if errors.Is(cause, lounge.ErrTokenExpired) {
			if _, err := r.client.RefreshToken(r.ctx); err != nil {
				r.logger.Warn("token refresh failed", "error", err)
			}
		}
	}
}

func (r *Remote) track(sub *lounge.Subscription) {
	defer r.wg.Done()
	defer sub.Close()

	for {
		ev, err := sub.Recv(r.ctx)
		if err != nil {
			var lagged *lounge.LaggedError
			if errors.As(err, &lagged) {
				r.logger.Warn("status tracker lagged", "missed", lagged.Missed)
				continue
			}
			return
		}
		r.observe(ev)
		r.record(ev)
	}
}

// observe folds ev into the status snapshot. Unparseable numeric fields leave
// the previous value in place.
func (r *Remote) observe(ev lounge.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := &r.status
	switch e := ev.(type) {
	case lounge.PlaybackSession:
		st.Playback = &e
	case lounge.NowPlaying:
		if e.VideoID.IsZero() {
			st.Playback = nil
		}
	case lounge.StateChange:
		if st.Playback == nil {
			break
		}
		if !e.CPN.IsZero() && st.Playback.CPN != "" && e.CPN.String() != st.Playback.CPN {
			break
		}
		if pos, err := e.Position(); err == nil {
			st.Playback.CurrentTime = pos
		}
		if d, err := e.Length(); err == nil {
			st.Playback.Duration = d
		}
		if !e.State.IsZero() {
			st.Playback.State = e.State.String()
		}
	case lounge.VolumeChanged:
		if level, err := e.Level(); err == nil {
			st.Volume = &level
		}
		if muted, err := e.IsMuted(); err == nil {
			st.Muted = muted
		}
	case lounge.AutoplayModeChanged:
		st.Autoplay = e.AutoplayMode.String()
	case lounge.LoungeStatus:
		st.Devices = e.Devices
	case lounge.ScreenDisconnected:
		st.Playback = nil
	default:
		return
	}
	st.UpdatedAt = time.Now().UTC()
}

func (r *Remote) record(ev lounge.Event) {
	if r.history == nil || !recorded[ev.Type()] {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("marshal event for history", "type", ev.Type(), "error", err)
		return
	}
	rec := &state.Record{
		ScreenID: r.ScreenID(),
		Type:     string(ev.Type()),
		Payload:  payload,
	}
	if err := r.history.Append(context.WithoutCancel(r.ctx), rec); err != nil {
		r.logger.Warn("append history", "error", err)
	}
}

func (r *Remote) setError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.status.LastError = ""
		return
	}
	r.status.LastError = err.Error()
}
