package lounge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EventType names an event. Wire events use the server's type string;
// synthetic events use names the server never sends.
type EventType string

const (
	EventStateChange            EventType = "onStateChange"
	EventNowPlaying             EventType = "nowPlaying"
	EventLoungeStatus           EventType = "loungeStatus"
	EventScreenDisconnected     EventType = "loungeScreenDisconnected"
	EventAdStateChange          EventType = "onAdStateChange"
	EventSubtitlesTrackChanged  EventType = "onSubtitlesTrackChanged"
	EventAudioTrackChanged      EventType = "onAudioTrackChanged"
	EventAutoplayModeChanged    EventType = "onAutoplayModeChanged"
	EventHasPreviousNextChanged EventType = "onHasPreviousNextChanged"
	EventVideoQualityChanged    EventType = "onVideoQualityChanged"
	EventVolumeChanged          EventType = "onVolumeChanged"
	EventPlaylistModified       EventType = "playlistModified"
	EventAutoplayUpNext         EventType = "autoplayUpNext"

	// Synthetic.
	EventPlaybackSession    EventType = "playbackSession"
	EventSessionEstablished EventType = "sessionEstablished"
	EventUnknown            EventType = "unknown"
)

// Event is one of the types declared in this file. The set is closed.
type Event interface {
	Type() EventType
	isEvent()
}

// PlayerState is the numeric player state carried by StateChange and
// NowPlaying.
type PlayerState int

const (
	PlayerStopped   PlayerState = -1
	PlayerEnded     PlayerState = 0
	PlayerPlaying   PlayerState = 1
	PlayerPaused    PlayerState = 2
	PlayerBuffering PlayerState = 3
	PlayerCued      PlayerState = 5
)

func (s PlayerState) String() string {
	switch s {
	case PlayerStopped:
		return "stopped"
	case PlayerEnded:
		return "ended"
	case PlayerPlaying:
		return "playing"
	case PlayerPaused:
		return "paused"
	case PlayerBuffering:
		return "buffering"
	case PlayerCued:
		return "cued"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

func parsePlayerState(v string) (PlayerState, error) {
	n, err := Value(v).Int()
	if err != nil {
		return 0, err
	}
	return PlayerState(n), nil
}

// StateChange reports the player position for the playback identified by CPN.
type StateChange struct {
	CurrentTime       Value `json:"currentTime"`
	State             Value `json:"state"`
	Duration          Value `json:"duration"`
	CPN               Value `json:"cpn"`
	LoadedTime        Value `json:"loadedTime"`
	SeekableStartTime Value `json:"seekableStartTime"`
	SeekableEndTime   Value `json:"seekableEndTime"`
}

func (StateChange) Type() EventType { return EventStateChange }
func (StateChange) isEvent()        {}

// PlayerState parses the State field.
func (e StateChange) PlayerState() (PlayerState, error) { return parsePlayerState(string(e.State)) }

// Position parses CurrentTime in seconds.
func (e StateChange) Position() (float64, error) { return e.CurrentTime.Float() }

// Length parses Duration in seconds.
func (e StateChange) Length() (float64, error) { return e.Duration.Float() }

// Loaded parses LoadedTime in seconds.
func (e StateChange) Loaded() (float64, error) { return e.LoadedTime.Float() }

// NowPlaying announces the current video. All fields may be empty when
// nothing is loaded.
type NowPlaying struct {
	VideoID           Value `json:"videoId"`
	CurrentTime       Value `json:"currentTime"`
	State             Value `json:"state"`
	Duration          Value `json:"duration"`
	CPN               Value `json:"cpn"`
	ListID            Value `json:"listId"`
	LoadedTime        Value `json:"loadedTime"`
	SeekableStartTime Value `json:"seekableStartTime"`
	SeekableEndTime   Value `json:"seekableEndTime"`
}

func (NowPlaying) Type() EventType { return EventNowPlaying }
func (NowPlaying) isEvent()        {}

// PlayerState parses the State field.
func (e NowPlaying) PlayerState() (PlayerState, error) { return parsePlayerState(string(e.State)) }

// Position parses CurrentTime in seconds.
func (e NowPlaying) Position() (float64, error) { return e.CurrentTime.Float() }

// Length parses Duration in seconds.
func (e NowPlaying) Length() (float64, error) { return e.Duration.Float() }

// VideoData is optional metadata attached to a PlaybackSession.
type VideoData struct {
	VideoID      string `json:"video_id"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// PlaybackSession is synthesised from a NowPlaying and, when available, a
// StateChange sharing its CPN. It is never sent by the server.
type PlaybackSession struct {
	VideoID     string     `json:"video_id"`
	CurrentTime float64    `json:"current_time"`
	Duration    float64    `json:"duration"`
	State       string     `json:"state"`
	LoadedTime  float64    `json:"loaded_time"`
	ListID      string     `json:"list_id,omitempty"`
	CPN         string     `json:"cpn,omitempty"`
	VideoData   *VideoData `json:"video_data,omitempty"`
}

func (PlaybackSession) Type() EventType { return EventPlaybackSession }
func (PlaybackSession) isEvent()        {}

// PlayerState parses the State field.
func (e PlaybackSession) PlayerState() (PlayerState, error) { return parsePlayerState(e.State) }

// Device is one participant listed in a LoungeStatus event.
type Device struct {
	App          string `json:"app"`
	Name         string `json:"name"`
	ID           string `json:"id"`
	Type         string `json:"type"`
	ClientName   string `json:"clientName,omitempty"`
	Capabilities string `json:"capabilities,omitempty"`
	Theme        string `json:"theme,omitempty"`
	DeviceInfo   string `json:"deviceInfo,omitempty"`
}

// LoungeStatus lists the devices in the lounge. The server sends the device
// list as a JSON-encoded string; it is decoded here.
type LoungeStatus struct {
	Devices []Device
	QueueID string
}

func (LoungeStatus) Type() EventType { return EventLoungeStatus }
func (LoungeStatus) isEvent()        {}

func (e *LoungeStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		Devices Value `json:"devices"`
		QueueID Value `json:"queueId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.QueueID = raw.QueueID.String()
	e.Devices = nil
	if raw.Devices.IsZero() {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.Devices), &e.Devices); err != nil {
		return fmt.Errorf("devices: %w", err)
	}
	return nil
}

// ScreenDisconnected means the screen left the lounge or the session died.
type ScreenDisconnected struct{}

func (ScreenDisconnected) Type() EventType { return EventScreenDisconnected }
func (ScreenDisconnected) isEvent()        {}

// SessionEstablished is emitted once Connect succeeds.
type SessionEstablished struct{}

func (SessionEstablished) Type() EventType { return EventSessionEstablished }
func (SessionEstablished) isEvent()        {}

// AdStateChange reports advertisement playback.
type AdStateChange struct {
	AdState        Value `json:"adState"`
	ContentVideoID Value `json:"contentVideoId"`
	CurrentTime    Value `json:"currentTime"`
	IsSkipEnabled  Value `json:"isSkipEnabled"`
	AdVideoID      Value `json:"adVideoId"`
	Duration       Value `json:"duration"`
}

func (AdStateChange) Type() EventType { return EventAdStateChange }
func (AdStateChange) isEvent()        {}

// Skippable parses IsSkipEnabled.
func (e AdStateChange) Skippable() (bool, error) { return e.IsSkipEnabled.Bool() }

// Position parses CurrentTime in seconds.
func (e AdStateChange) Position() (float64, error) { return e.CurrentTime.Float() }

// SubtitlesTrackChanged reports the caption track in use.
type SubtitlesTrackChanged struct {
	VideoID      Value `json:"videoId"`
	TrackName    Value `json:"trackName"`
	LanguageCode Value `json:"languageCode"`
	LanguageName Value `json:"languageName"`
	Kind         Value `json:"kind"`
	VssID        Value `json:"vss_id"`
}

func (SubtitlesTrackChanged) Type() EventType { return EventSubtitlesTrackChanged }
func (SubtitlesTrackChanged) isEvent()        {}

// AudioTrackChanged reports the audio track in use.
type AudioTrackChanged struct {
	VideoID      Value `json:"videoId"`
	AudioTrackID Value `json:"audioTrackId"`
}

func (AudioTrackChanged) Type() EventType { return EventAudioTrackChanged }
func (AudioTrackChanged) isEvent()        {}

// AutoplayModeChanged reports the autoplay setting.
type AutoplayModeChanged struct {
	AutoplayMode Value `json:"autoplayMode"`
}

func (AutoplayModeChanged) Type() EventType { return EventAutoplayModeChanged }
func (AutoplayModeChanged) isEvent()        {}

// Enabled reports whether the mode is "ENABLED".
func (e AutoplayModeChanged) Enabled() bool {
	return strings.EqualFold(e.AutoplayMode.String(), AutoplayEnabled)
}

// HasPreviousNextChanged reports queue navigation availability.
type HasPreviousNextChanged struct {
	HasNext     Value `json:"hasNext"`
	HasPrevious Value `json:"hasPrevious"`
}

func (HasPreviousNextChanged) Type() EventType { return EventHasPreviousNextChanged }
func (HasPreviousNextChanged) isEvent()        {}

// Next parses HasNext.
func (e HasPreviousNextChanged) Next() (bool, error) { return e.HasNext.Bool() }

// Previous parses HasPrevious.
func (e HasPreviousNextChanged) Previous() (bool, error) { return e.HasPrevious.Bool() }

// VideoQualityChanged reports the playback quality.
type VideoQualityChanged struct {
	AvailableQualityLevels Value `json:"availableQualityLevels"`
	QualityLevel           Value `json:"qualityLevel"`
	VideoID                Value `json:"videoId"`
}

func (VideoQualityChanged) Type() EventType { return EventVideoQualityChanged }
func (VideoQualityChanged) isEvent()        {}

// Levels decodes AvailableQualityLevels, which is itself a JSON array encoded
// as a string.
func (e VideoQualityChanged) Levels() ([]string, error) {
	if e.AvailableQualityLevels.IsZero() {
		return nil, nil
	}
	var levels []string
	if err := json.Unmarshal([]byte(e.AvailableQualityLevels), &levels); err != nil {
		return nil, fmt.Errorf("%w: quality levels: %v", ErrDecode, err)
	}
	return levels, nil
}

// VolumeChanged reports the screen volume.
type VolumeChanged struct {
	Volume Value `json:"volume"`
	Muted  Value `json:"muted"`
}

func (VolumeChanged) Type() EventType { return EventVolumeChanged }
func (VolumeChanged) isEvent()        {}

// Level parses Volume (0-100).
func (e VolumeChanged) Level() (int, error) {
	n, err := e.Volume.Int()
	return int(n), err
}

// IsMuted parses Muted.
func (e VolumeChanged) IsMuted() (bool, error) { return e.Muted.Bool() }

// PlaylistModified reports a change to the play queue.
type PlaylistModified struct {
	CurrentIndex Value `json:"currentIndex"`
	FirstVideoID Value `json:"firstVideoId"`
	ListID       Value `json:"listId"`
	VideoID      Value `json:"videoId"`
	VideoIDs     Value `json:"videoIds"`
}

func (PlaylistModified) Type() EventType { return EventPlaylistModified }
func (PlaylistModified) isEvent()        {}

// Index parses CurrentIndex.
func (e PlaylistModified) Index() (int, error) {
	n, err := e.CurrentIndex.Int()
	return int(n), err
}

// Videos splits the comma-separated VideoIDs.
func (e PlaylistModified) Videos() []string {
	if e.VideoIDs.IsZero() {
		return nil
	}
	return strings.Split(e.VideoIDs.String(), ",")
}

// AutoplayUpNext announces the video autoplay will pick next.
type AutoplayUpNext struct {
	VideoID Value `json:"videoId"`
}

func (AutoplayUpNext) Type() EventType { return EventAutoplayUpNext }
func (AutoplayUpNext) isEvent()        {}

// Unknown carries an event type this package does not model.
type Unknown struct {
	EventName string
	Payload   json.RawMessage
}

func (Unknown) Type() EventType { return EventUnknown }
func (Unknown) isEvent()        {}

// Description renders the type and raw payload.
func (e Unknown) Description() string {
	if len(e.Payload) == 0 {
		return e.EventName
	}
	return e.EventName + " " + string(e.Payload)
}
