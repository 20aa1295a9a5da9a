package backend

import (
	"fmt"
	"strconv"
)

// Synthetic format catalog, used when real format discovery fails or comes
// back empty. Sizes are estimates from a static bitrate table, not
// measurements.

// defaultDurationSeconds stands in when the video duration is unknown.
const defaultDurationSeconds = 213 // 3:33

// videoBitrates maps quality labels to approximate kbps for size estimation.
var videoBitrates = map[string]int{
	"2160p": 45000,
	"1440p": 16000,
	"1080p": 8000,
	"720p":  5000,
	"480p":  2500,
	"360p":  1000,
	"240p":  600,
	"144p":  300,
}

const fallbackVideoBitrate = 2500
const fallbackAudioBitrate = 128

var syntheticVideoQualities = []string{"2160p", "1440p", "1080p", "720p", "480p", "360p"}
var syntheticVideoContainers = []string{"mp4", "webm", "mkv", "avi", "mov"}

// syntheticAudioCatalog is the fixed audio quality/container matrix.
var syntheticAudioCatalog = []struct {
	quality   string
	container string
}{
	{"1411kbps", "flac"},
	{"1411kbps", "wav"},
	{"256kbps", "aac"},
	{"192kbps", "aac"},
	{"128kbps", "aac"},
	{"320kbps", "mp3"},
	{"256kbps", "mp3"},
	{"192kbps", "mp3"},
	{"128kbps", "mp3"},
	{"96kbps", "mp3"},
	{"256kbps", "ogg"},
	{"192kbps", "ogg"},
	{"128kbps", "ogg"},
}

// SyntheticVideoFormats fabricates the full video quality/container matrix.
// avi and mov are skipped at 4K/1440p where those containers are not
// realistically produced.
func SyntheticVideoFormats(durationSeconds float64) []FormatEntry {
	var formats []FormatEntry
	for _, quality := range syntheticVideoQualities {
		for _, container := range syntheticVideoContainers {
			if (container == "avi" || container == "mov") &&
				(quality == "2160p" || quality == "1440p") {
				continue
			}
			formats = append(formats, FormatEntry{
				Quality: quality,
				Format:  container,
				Size:    EstimateSize(KindVideo, quality, durationSeconds),
				Type:    KindVideo,
			})
		}
	}
	return formats
}

// SyntheticAudioFormats fabricates the fixed audio catalog.
func SyntheticAudioFormats(durationSeconds float64) []FormatEntry {
	formats := make([]FormatEntry, 0, len(syntheticAudioCatalog))
	for _, entry := range syntheticAudioCatalog {
		formats = append(formats, FormatEntry{
			Quality: entry.quality,
			Format:  entry.container,
			Size:    EstimateSize(KindAudio, entry.quality, durationSeconds),
			Type:    KindAudio,
		})
	}
	return formats
}

// EstimateSize renders an estimated file size for a quality at a duration.
// Video sizes come from the bitrate table, audio from the numeric prefix of
// the quality label. A zero duration falls back to the default.
func EstimateSize(kind, quality string, durationSeconds float64) string {
	if durationSeconds <= 0 {
		durationSeconds = defaultDurationSeconds
	}

	var bitrate int
	if kind == KindVideo {
		var ok bool
		bitrate, ok = videoBitrates[quality]
		if !ok {
			bitrate = fallbackVideoBitrate
		}
	} else {
		bitrate = parseBitrate(quality)
	}

	sizeMB := float64(bitrate) * durationSeconds / 8 / 1024

	if kind == KindVideo {
		if sizeMB > 1024 {
			return fmt.Sprintf("~%.1fGB", sizeMB/1024)
		}
		return fmt.Sprintf("~%.1fMB", sizeMB)
	}

	if sizeMB < 1 {
		return fmt.Sprintf("~%.0fKB", sizeMB*1024)
	}
	return fmt.Sprintf("~%.1fMB", sizeMB)
}

// parseBitrate pulls the leading number from labels like "320kbps".
func parseBitrate(quality string) int {
	digits := quality
	for i, r := range quality {
		if r < '0' || r > '9' {
			digits = quality[:i]
			break
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return fallbackAudioBitrate
	}
	return n
}

// FormatDuration renders seconds as M:SS or H:MM:SS. Zero means unknown.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "Unknown duration"
	}

	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
