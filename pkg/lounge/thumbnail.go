package lounge

import (
	"fmt"
	"net/url"
)

// Thumbnail indexes understood by the image host.
const (
	ThumbnailDefault = 0
	ThumbnailFirst   = 1
	ThumbnailSecond  = 2
	ThumbnailThird   = 3
)

// ThumbnailURL returns the still image URL for a video.
func ThumbnailURL(videoID string, index int) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/%d.jpg", url.PathEscape(videoID), index)
}
