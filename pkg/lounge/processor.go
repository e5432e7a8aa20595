package lounge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
)

// stateStopped is the State value NowPlaying carries when playback stops.
const stateStopped = "-1"

// ProcessResult is the outcome of one frame.
type ProcessResult struct {
	Events []Event
	// AID is the id of the last tuple in the frame; valid when HasAID is set.
	AID    int64
	HasAID bool
}

// Processor turns decoded frames into typed events and synthesises
// PlaybackSession events by correlating NowPlaying with StateChange.
//
// A Processor is not safe for concurrent use; the long-poll goroutine owns it.
type Processor struct {
	logger  *slog.Logger
	metrics *Metrics

	// held is the most recent NowPlaying that carried a CPN.
	held *NowPlaying
}

// NewProcessor creates a Processor. A nil logger uses slog.Default.
func NewProcessor(logger *slog.Logger, metrics *Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, metrics: metrics}
}

// Reset forgets the held NowPlaying.
func (p *Processor) Reset() {
	p.held = nil
}

// Process decodes one frame: a JSON array of [eventId, [eventType, payload]]
// tuples. Malformed tuples are logged and skipped; only a frame that is not a
// JSON array at all is an error.
func (p *Processor) Process(frame string) (ProcessResult, error) {
	var res ProcessResult

	var tuples []json.RawMessage
	if err := json.Unmarshal([]byte(frame), &tuples); err != nil {
		p.metrics.decodeFailure("frame")
		return res, fmt.Errorf("%w: frame: %v", ErrDecode, err)
	}

	for _, raw := range tuples {
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) < 2 {
			p.logger.Warn("skipping malformed event tuple", "tuple", string(raw))
			p.metrics.decodeFailure("tuple")
			continue
		}

		var id int64
		if err := json.Unmarshal(tuple[0], &id); err != nil {
			p.logger.Warn("skipping event tuple with bad id", "tuple", string(raw))
			p.metrics.decodeFailure("tuple")
			continue
		}
		res.AID, res.HasAID = id, true

		var inner []json.RawMessage
		if err := json.Unmarshal(tuple[1], &inner); err != nil || len(inner) == 0 {
			p.logger.Warn("skipping event with malformed body", "aid", id)
			p.metrics.decodeFailure("tuple")
			continue
		}
		var name string
		if err := json.Unmarshal(inner[0], &name); err != nil {
			p.logger.Warn("skipping event with non-string type", "aid", id)
			p.metrics.decodeFailure("tuple")
			continue
		}

		switch {
		case name == "noop" && len(inner) == 1:
			continue
		case name == "c" || name == "S":
			// Session identifiers, read by Connect from the raw body.
			continue
		}

		var payload json.RawMessage
		if len(inner) > 1 {
			payload = inner[1]
		}
		res.Events = p.dispatch(res.Events, name, payload)
	}

	for _, e := range res.Events {
		p.metrics.event(e.Type())
	}
	return res, nil
}

func (p *Processor) dispatch(out []Event, name string, payload json.RawMessage) []Event {
	switch EventType(name) {
	case EventStateChange:
		e, ok := decodeEvent[StateChange](p, name, payload)
		if !ok {
			return out
		}
		out = append(out, e)
		if s, ok := p.correlate(e); ok {
			out = append(out, s)
		}
	case EventNowPlaying:
		e, ok := decodeEvent[NowPlaying](p, name, payload)
		if !ok {
			return out
		}
		out = append(out, e)
		prev := p.held
		if !e.CPN.IsZero() {
			held := e
			p.held = &held
		}
		if s, ok := p.synthesize(e, prev); ok {
			out = append(out, s)
		}
	case EventLoungeStatus:
		out = appendDecoded[LoungeStatus](p, out, name, payload)
	case EventScreenDisconnected:
		out = append(out, ScreenDisconnected{})
	case EventAdStateChange:
		out = appendDecoded[AdStateChange](p, out, name, payload)
	case EventSubtitlesTrackChanged:
		out = appendDecoded[SubtitlesTrackChanged](p, out, name, payload)
	case EventAudioTrackChanged:
		out = appendDecoded[AudioTrackChanged](p, out, name, payload)
	case EventAutoplayModeChanged:
		out = appendDecoded[AutoplayModeChanged](p, out, name, payload)
	case EventHasPreviousNextChanged:
		out = appendDecoded[HasPreviousNextChanged](p, out, name, payload)
	case EventVideoQualityChanged:
		out = appendDecoded[VideoQualityChanged](p, out, name, payload)
	case EventVolumeChanged:
		out = appendDecoded[VolumeChanged](p, out, name, payload)
	case EventPlaylistModified:
		out = appendDecoded[PlaylistModified](p, out, name, payload)
	case EventAutoplayUpNext:
		out = appendDecoded[AutoplayUpNext](p, out, name, payload)
	default:
		out = append(out, Unknown{EventName: name, Payload: payload})
	}
	return out
}

func decodeEvent[T Event](p *Processor, name string, payload json.RawMessage) (T, bool) {
	var e T
	body := bytes.TrimSpace(payload)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return e, true
	}
	if err := json.Unmarshal(body, &e); err != nil {
		p.logger.Warn("skipping undecodable event", "type", name, "error", err)
		p.metrics.decodeFailure(name)
		return e, false
	}
	return e, true
}

func appendDecoded[T Event](p *Processor, out []Event, name string, payload json.RawMessage) []Event {
	if e, ok := decodeEvent[T](p, name, payload); ok {
		out = append(out, e)
	}
	return out
}

// correlate builds a session when sc belongs to the held NowPlaying.
func (p *Processor) correlate(sc StateChange) (PlaybackSession, bool) {
	if sc.CPN.IsZero() || p.held == nil || p.held.CPN != sc.CPN {
		return PlaybackSession{}, false
	}
	current, err := sc.CurrentTime.Float()
	if err == nil {
		var duration, loaded float64
		if duration, err = sc.Duration.Float(); err == nil {
			if loaded, err = sc.LoadedTime.Float(); err == nil {
				return newPlaybackSession(p.held.VideoID.String(), current, duration, sc.State.String(),
					loaded, p.held.ListID.String(), sc.CPN.String()), true
			}
		}
	}
	p.logger.Warn("abandoning playback session from state change", "cpn", sc.CPN.String(), "error", err)
	p.metrics.decodeFailure("numeric")
	return PlaybackSession{}, false
}

// synthesize builds a session straight from a NowPlaying. prev is the
// NowPlaying held before np arrived.
func (p *Processor) synthesize(np NowPlaying, prev *NowPlaying) (PlaybackSession, bool) {
	if np.State.String() == stateStopped && np.VideoID.IsZero() {
		if prev == nil {
			return PlaybackSession{}, false
		}
		duration, err := prev.Duration.FloatOr(0)
		if err != nil {
			p.logger.Warn("abandoning stopped playback session", "cpn", prev.CPN.String(), "error", err)
			p.metrics.decodeFailure("numeric")
			return PlaybackSession{}, false
		}
		return newPlaybackSession(prev.VideoID.String(), 0, duration, stateStopped, 0,
			prev.ListID.String(), prev.CPN.String()), true
	}

	if np.VideoID.IsZero() || np.Duration.IsZero() || np.CurrentTime.IsZero() {
		return PlaybackSession{}, false
	}
	current, err := np.CurrentTime.Float()
	if err == nil {
		var duration, loaded float64
		if duration, err = np.Duration.Float(); err == nil {
			if loaded, err = np.LoadedTime.FloatOr(0); err == nil {
				return newPlaybackSession(np.VideoID.String(), current, duration, np.State.String(),
					loaded, np.ListID.String(), np.CPN.String()), true
			}
		}
	}
	p.logger.Warn("abandoning playback session from now playing", "video_id", np.VideoID.String(), "error", err)
	p.metrics.decodeFailure("numeric")
	return PlaybackSession{}, false
}

func newPlaybackSession(videoID string, current, duration float64, state string, loaded float64, listID, cpn string) PlaybackSession {
	s := PlaybackSession{
		VideoID:     videoID,
		CurrentTime: current,
		Duration:    duration,
		State:       state,
		LoadedTime:  loaded,
		ListID:      listID,
		CPN:         cpn,
	}
	if videoID != "" {
		s.VideoData = &VideoData{
			VideoID:      videoID,
			ThumbnailURL: ThumbnailURL(videoID, ThumbnailDefault),
		}
	}
	return s
}
