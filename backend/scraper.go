package backend

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Media kinds used across formats, downloads and the history ledger.
const (
	KindVideo    = "video"
	KindAudio    = "audio"
	KindSubtitle = "subtitle"
)

// FormatEntry is one downloadable rendition offered to the client.
type FormatEntry struct {
	Quality string `json:"quality"`
	Format  string `json:"format"`
	Size    string `json:"size"`
	Type    string `json:"type"`
}

// SubtitleEntry is one subtitle track/format pair.
type SubtitleEntry struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Format   string `json:"format"`
}

// videoQualityOrder is the display ladder for video formats, best first.
var videoQualityOrder = []string{"2160p", "1440p", "1080p", "720p", "480p", "360p", "240p", "144p"}

var (
	resolutionRegex = regexp.MustCompile(`(\d+x\d+|\d+p)`)
	fileSizeRegex   = regexp.MustCompile(`(\d+\.?\d*[KMGT]?iB)`)
	audioKRegex     = regexp.MustCompile(`(\d+)k`)
	subtitleRegex   = regexp.MustCompile(`^([a-z]{2}(?:-[A-Z]{2})?)\s+([^,]+)`)

	playlistTotalRegex   = regexp.MustCompile(`\[download\] Downloading (\d+) videos`)
	playlistVideoRegex   = regexp.MustCompile(`\[download\] Downloading video (\d+) of (\d+)`)
	playlistPercentRegex = regexp.MustCompile(`(\d+\.?\d*)%`)
)

// ParseFormats scrapes yt-dlp's human-readable format table. The parser is
// deliberately forgiving: lines that don't look like format rows are skipped,
// and a text that matches nothing yields an empty slice, never an error.
func ParseFormats(output string) []FormatEntry {
	var formats []FormatEntry

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "mp4") && !strings.Contains(line, "webm") &&
			!strings.Contains(line, "m4a") && !strings.Contains(line, "mkv") {
			continue
		}
		if len(strings.Fields(strings.TrimSpace(line))) < 3 {
			continue
		}

		var quality, size, kind, container string

		// The resolution column can appear more than once (e.g. inside the
		// format note), the last match wins.
		if matches := resolutionRegex.FindAllString(line, -1); len(matches) > 0 {
			res := matches[len(matches)-1]
			if idx := strings.Index(res, "x"); idx >= 0 {
				if height, err := strconv.Atoi(res[idx+1:]); err == nil {
					quality = strconv.Itoa(height) + "p"
				}
			} else {
				quality = res
			}
		}

		if matches := fileSizeRegex.FindAllString(line, -1); len(matches) > 0 {
			size = matches[len(matches)-1]
		}

		switch {
		case strings.Contains(line, "mp4"):
			container = "mp4"
		case strings.Contains(line, "webm"):
			container = "webm"
		case strings.Contains(line, "mkv"):
			container = "mkv"
		case strings.Contains(line, "m4a"):
			container = "m4a"
		}

		if strings.Contains(line, "video only") ||
			(container == "mp4" && !strings.Contains(line, "audio only")) {
			kind = KindVideo
		} else if strings.Contains(line, "audio only") || container == "m4a" {
			kind = KindAudio
			if m := audioKRegex.FindStringSubmatch(line); m != nil {
				quality = m[1] + "kbps"
			}
		}

		if quality == "" || kind == "" || container == "" {
			continue
		}

		duplicate := false
		for _, f := range formats {
			if f.Quality == quality && f.Type == kind && f.Format == container {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		if size == "" {
			size = EstimateSize(kind, quality, defaultDurationSeconds)
		}

		formats = append(formats, FormatEntry{
			Quality: quality,
			Format:  container,
			Size:    size,
			Type:    kind,
		})
	}

	return SortFormats(formats)
}

// SortFormats orders video formats by the quality ladder (unknown labels
// last) followed by audio formats by descending bitrate.
func SortFormats(formats []FormatEntry) []FormatEntry {
	ladderIndex := func(quality string) int {
		for i, q := range videoQualityOrder {
			if q == quality {
				return i
			}
		}
		return len(videoQualityOrder)
	}

	var video, audio []FormatEntry
	for _, f := range formats {
		if f.Type == KindVideo {
			video = append(video, f)
		} else {
			audio = append(audio, f)
		}
	}

	sort.SliceStable(video, func(i, j int) bool {
		return ladderIndex(video[i].Quality) < ladderIndex(video[j].Quality)
	})
	sort.SliceStable(audio, func(i, j int) bool {
		return parseBitrate(audio[i].Quality) > parseBitrate(audio[j].Quality)
	})

	return append(video, audio...)
}

// PlaylistProgress accumulates counters scraped from a playlist download's
// stdout. GlobalPercent blends per-video percent with the video position and
// is clamped to never go backwards, since yt-dlp restarts the percent counter
// for every file it writes.
type PlaylistProgress struct {
	DownloadedCount int
	TotalVideos     int
	CurrentVideo    string
	Percent         float64
	GlobalPercent   int
}

// ParsePlaylistProgress folds one stdout line into the progress state.
// Returns true when the line carried a recognizable counter.
func ParsePlaylistProgress(line string, p *PlaylistProgress) bool {
	matched := false

	if m := playlistTotalRegex.FindStringSubmatch(line); m != nil {
		p.TotalVideos, _ = strconv.Atoi(m[1])
		matched = true
	}

	if m := playlistVideoRegex.FindStringSubmatch(line); m != nil {
		p.DownloadedCount, _ = strconv.Atoi(m[1])
		p.TotalVideos, _ = strconv.Atoi(m[2])
		p.CurrentVideo = "Video " + m[1] + " of " + m[2]
		matched = true
	}

	if m := playlistPercentRegex.FindStringSubmatch(line); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Percent = pct
			matched = true
		}
	}

	if p.TotalVideos > 0 {
		global := int(float64(p.DownloadedCount-1)/float64(p.TotalVideos)*100 +
			p.Percent/float64(p.TotalVideos) + 0.5)
		if global > p.GlobalPercent {
			p.GlobalPercent = global
		}
	}

	return matched
}

// ParseSubtitles scrapes yt-dlp's subtitle listing. Each recognized language
// yields an srt and a vtt entry, deduplicated by (code, format).
func ParseSubtitles(output string) []SubtitleEntry {
	var subtitles []SubtitleEntry
	seen := make(map[string]bool)

	for _, line := range strings.Split(output, "\n") {
		m := subtitleRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		code := m[1]
		language := strings.TrimSpace(m[2])

		for _, format := range []string{"srt", "vtt"} {
			key := code + "/" + format
			if seen[key] {
				continue
			}
			seen[key] = true
			subtitles = append(subtitles, SubtitleEntry{
				Language: language,
				Code:     code,
				Format:   format,
			})
		}
	}

	return subtitles
}
