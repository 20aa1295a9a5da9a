package backend

import (
	"fmt"
	"regexp"
	"strings"
)

// YouTube URL patterns
var (
	videoParamRegex = regexp.MustCompile(`[?&]v=([^&]+)`)
	shortURLRegex   = regexp.MustCompile(`youtu\.be/([^?&]+)`)
	playlistRegex   = regexp.MustCompile(`[?&]list=([^&]+)`)
)

// videoIDLength is the fixed length of a YouTube video identifier.
const videoIDLength = 11

// ExtractVideoID pulls the 11-character video id out of a watch URL or a
// short youtu.be URL. Returns false when the input is empty or matches
// neither shape.
func ExtractVideoID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}

	if m := videoParamRegex.FindStringSubmatch(rawURL); len(m) > 1 {
		return truncateID(m[1]), true
	}
	if m := shortURLRegex.FindStringSubmatch(rawURL); len(m) > 1 {
		return truncateID(m[1]), true
	}

	return "", false
}

func truncateID(id string) string {
	if len(id) > videoIDLength {
		return id[:videoIDLength]
	}
	return id
}

// ExtractPlaylistID pulls the playlist id from the list= query parameter.
// Playlist ids are opaque tokens of varying length, so no truncation.
func ExtractPlaylistID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}

	if m := playlistRegex.FindStringSubmatch(rawURL); len(m) > 1 {
		return m[1], true
	}

	return "", false
}

// CleanVideoURL normalizes any supported YouTube video URL shape into the
// canonical watch URL. Returns false instead of an error so callers can map
// the failure to a 400-class response without unwinding.
func CleanVideoURL(rawURL string) (string, bool) {
	id, ok := ExtractVideoID(rawURL)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", id), true
}

// CleanPlaylistURL normalizes a playlist URL into the canonical form.
func CleanPlaylistURL(rawURL string) (string, bool) {
	id, ok := ExtractPlaylistID(rawURL)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("https://www.youtube.com/playlist?list=%s", id), true
}

// WatchURL builds the canonical watch URL for a known video id.
func WatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// PlaylistURL builds the canonical playlist URL for a known playlist id.
func PlaylistURL(playlistID string) string {
	return fmt.Sprintf("https://www.youtube.com/playlist?list=%s", playlistID)
}

// ThumbnailURL returns the static maxres thumbnail for a video id. Used when
// metadata discovery fails and only the id is known.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", videoID)
}

// SmallThumbnailURL returns the medium-quality static thumbnail, used for
// playlist entries where the maxres variant is overkill.
func SmallThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/mqdefault.jpg", videoID)
}
