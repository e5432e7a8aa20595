package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/user/loungeremote/pkg/lounge"
)

// CommandNames lists the names accepted by ParseCommand, for help text.
var CommandNames = []string{
	"play", "pause", "next", "previous", "skip-ad", "mute", "unmute",
	"seek <seconds>", "volume <0-100>", "autoplay <on|off>",
	"cast <video> [list]", "queue <video>",
}

// ParseCommand turns a command name and its arguments into a lounge.Command.
// Video arguments may be bare ids or youtube.com / youtu.be URLs.
func ParseCommand(name string, args []string) (lounge.Command, error) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))

	switch name {
	case "play", "resume":
		return lounge.Play{}, nil
	case "pause":
		return lounge.Pause{}, nil
	case "next":
		return lounge.Next{}, nil
	case "previous", "prev":
		return lounge.Previous{}, nil
	case "skip", "skip-ad", "skipad":
		return lounge.SkipAd{}, nil
	case "mute":
		return lounge.Mute{}, nil
	case "unmute":
		return lounge.Unmute{}, nil
	}

	switch name {
	case "seek":
		if len(args) != 1 {
			return nil, fmt.Errorf("seek takes one argument: seconds")
		}
		secs, err := parseSeconds(args[0])
		if err != nil {
			return nil, err
		}
		return lounge.SeekTo{NewTime: secs}, nil

	case "volume", "vol":
		if len(args) != 1 {
			return nil, fmt.Errorf("volume takes one argument: 0-100")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 || v > 100 {
			return nil, fmt.Errorf("invalid volume %q: want 0-100", args[0])
		}
		return lounge.SetVolume{Volume: int32(v)}, nil

	case "autoplay":
		if len(args) != 1 {
			return nil, fmt.Errorf("autoplay takes one argument: on or off")
		}
		mode, err := parseAutoplay(args[0])
		if err != nil {
			return nil, err
		}
		return lounge.SetAutoplayMode{Mode: mode}, nil

	case "cast", "watch":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("cast takes a video and an optional playlist id")
		}
		videoID, listID, err := ParseVideo(args[0])
		if err != nil {
			return nil, err
		}
		if len(args) == 2 {
			listID = args[1]
		}
		return lounge.SetPlaylist{VideoID: videoID, ListID: listID}, nil

	case "queue", "add":
		if len(args) != 1 {
			return nil, fmt.Errorf("queue takes one argument: video")
		}
		videoID, _, err := ParseVideo(args[0])
		if err != nil {
			return nil, err
		}
		return lounge.AddVideo{VideoID: videoID}, nil
	}

	return nil, fmt.Errorf("unknown command: %s", name)
}

// ParseVideo extracts a video id and optional playlist id from a bare id or a
// YouTube watch, short, shorts or youtu.be URL.
func ParseVideo(ref string) (videoID, listID string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", fmt.Errorf("empty video reference")
	}
	if !strings.Contains(ref, "/") && !strings.Contains(ref, "?") {
		return ref, "", nil
	}
	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("parse video url: %w", err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	q := u.Query()
	listID = q.Get("list")

	switch host {
	case "youtu.be":
		videoID = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com":
		switch {
		case q.Get("v") != "":
			videoID = q.Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/live/"), strings.HasPrefix(u.Path, "/embed/"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) >= 2 {
				videoID = parts[1]
			}
		}
	default:
		return "", "", fmt.Errorf("not a youtube url: %s", ref)
	}

	if videoID == "" {
		return "", "", fmt.Errorf("no video id in %s", ref)
	}
	return videoID, listID, nil
}

// parseSeconds accepts plain seconds ("95", "12.5") or m:ss / h:mm:ss.
func parseSeconds(s string) (float64, error) {
	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		return v, nil
	}
	var total float64
	for _, part := range strings.Split(s, ":") {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

func parseAutoplay(s string) (string, error) {
	switch strings.ToLower(s) {
	case "on", "true", "enabled", "enable":
		return lounge.AutoplayEnabled, nil
	case "off", "false", "disabled", "disable":
		return lounge.AutoplayDisabled, nil
	case "unsupported":
		return lounge.AutoplayUnsupported, nil
	}
	return "", fmt.Errorf("invalid autoplay mode %q: want on or off", s)
}
