package lounge

import (
	"net/url"
	"strconv"
)

// Autoplay modes accepted by SetAutoplayMode.
const (
	AutoplayEnabled     = "ENABLED"
	AutoplayDisabled    = "DISABLED"
	AutoplayUnsupported = "UNSUPPORTED"
)

// Command is a playback command. The set of implementations is closed.
type Command interface {
	// Name is the wire command name sent as req0__sc.
	Name() string
	// encode adds variant specific req0_* fields.
	encode(form url.Values)
}

type (
	Play     struct{}
	Pause    struct{}
	Next     struct{}
	Previous struct{}
	SkipAd   struct{}
	Mute     struct{}
	Unmute   struct{}
)

func (Play) Name() string     { return "play" }
func (Pause) Name() string    { return "pause" }
func (Next) Name() string     { return "next" }
func (Previous) Name() string { return "previous" }
func (SkipAd) Name() string   { return "skipAd" }
func (Mute) Name() string     { return "mute" }
func (Unmute) Name() string   { return "unMute" }

func (Play) encode(url.Values)     {}
func (Pause) encode(url.Values)    {}
func (Next) encode(url.Values)     {}
func (Previous) encode(url.Values) {}
func (SkipAd) encode(url.Values)   {}
func (Mute) encode(url.Values)     {}
func (Unmute) encode(url.Values)   {}

// SetPlaylist replaces the queue and starts VideoID. Zero-valued strings and
// nil pointers are omitted from the request.
type SetPlaylist struct {
	VideoID      string
	ListID       string
	CurrentIndex *int
	CurrentTime  *float64
	AudioOnly    *bool
	Params       string
	PlayerParams string
}

func (SetPlaylist) Name() string { return "setPlaylist" }

func (c SetPlaylist) encode(form url.Values) {
	form.Set("req0_videoId", c.VideoID)
	if c.ListID != "" {
		form.Set("req0_listId", c.ListID)
	}
	if c.CurrentIndex != nil {
		form.Set("req0_currentIndex", strconv.Itoa(*c.CurrentIndex))
	}
	if c.CurrentTime != nil {
		form.Set("req0_currentTime", formatSeconds(*c.CurrentTime))
	}
	if c.AudioOnly != nil {
		form.Set("req0_audioOnly", strconv.FormatBool(*c.AudioOnly))
	}
	if c.Params != "" {
		form.Set("req0_params", c.Params)
	}
	if c.PlayerParams != "" {
		form.Set("req0_playerParams", c.PlayerParams)
	}
}

// AddVideo appends a video to the queue.
type AddVideo struct {
	VideoID      string
	VideoSources string
}

func (AddVideo) Name() string { return "addVideo" }

func (c AddVideo) encode(form url.Values) {
	form.Set("req0_videoId", c.VideoID)
	if c.VideoSources != "" {
		form.Set("req0_videoSources", c.VideoSources)
	}
}

// SeekTo moves the playhead to NewTime seconds.
type SeekTo struct {
	NewTime float64
}

func (SeekTo) Name() string { return "seekTo" }

func (c SeekTo) encode(form url.Values) {
	form.Set("req0_newTime", formatSeconds(c.NewTime))
}

// SetAutoplayMode sets autoplay to one of the Autoplay* modes.
type SetAutoplayMode struct {
	Mode string
}

func (SetAutoplayMode) Name() string { return "setAutoplayMode" }

func (c SetAutoplayMode) encode(form url.Values) {
	form.Set("req0_autoplayMode", c.Mode)
}

// SetVolume sets the volume, 0-100.
type SetVolume struct {
	Volume int32
}

func (SetVolume) Name() string { return "setVolume" }

func (c SetVolume) encode(form url.Values) {
	form.Set("req0_volume", strconv.FormatInt(int64(c.Volume), 10))
}

// encodeCommand builds the bind POST body for cmd at the given offset.
func encodeCommand(cmd Command, offset int64) url.Values {
	form := url.Values{}
	form.Set("count", "1")
	form.Set("ofs", strconv.FormatInt(offset, 10))
	form.Set("req0__sc", cmd.Name())
	cmd.encode(form)
	return form
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
