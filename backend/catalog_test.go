package backend

import (
	"strconv"
	"strings"
	"testing"
)

func TestSyntheticVideoFormats(t *testing.T) {
	formats := SyntheticVideoFormats(213)

	// 6 qualities x 5 containers, minus avi/mov at 2160p and 1440p
	if len(formats) != 26 {
		t.Fatalf("expected 26 synthetic video formats, got %d", len(formats))
	}

	for _, f := range formats {
		if f.Type != KindVideo {
			t.Errorf("format %+v should have type video", f)
		}
		if f.Quality == "" || f.Format == "" || f.Size == "" {
			t.Errorf("format %+v has empty fields", f)
		}
		if (f.Format == "avi" || f.Format == "mov") &&
			(f.Quality == "2160p" || f.Quality == "1440p") {
			t.Errorf("%s should not exist at %s", f.Format, f.Quality)
		}
	}
}

func TestSyntheticAudioFormats(t *testing.T) {
	formats := SyntheticAudioFormats(213)

	if len(formats) != 13 {
		t.Fatalf("expected 13 synthetic audio formats, got %d", len(formats))
	}

	// Lossless entries advertise the CD bitrate
	if formats[0].Quality != "1411kbps" || formats[0].Format != "flac" {
		t.Errorf("first entry should be 1411kbps flac, got %+v", formats[0])
	}

	for _, f := range formats {
		if f.Type != KindAudio {
			t.Errorf("format %+v should have type audio", f)
		}
	}
}

func TestEstimateSize(t *testing.T) {
	tests := []struct {
		kind     string
		quality  string
		duration float64
		want     string
	}{
		// 8000 kbps * 213 s / 8 / 1024 = 208.0 MB
		{KindVideo, "1080p", 213, "~208.0MB"},
		// 45000 kbps * 3600 s / 8 / 1024 = 19775.4 MB -> GB
		{KindVideo, "2160p", 3600, "~19.3GB"},
		// unknown quality falls back to 2500 kbps
		{KindVideo, "333p", 213, "~65.0MB"},
		// 128 kbps * 213 s / 8 / 1024 = 3.3 MB
		{KindAudio, "128kbps", 213, "~3.3MB"},
		// 128 kbps * 30 s / 8 = 480 KB, below 1MB renders as KB
		{KindAudio, "128kbps", 30, "~480KB"},
		// unparseable audio quality falls back to 128 kbps
		{KindAudio, "lossless", 213, "~3.3MB"},
	}

	for _, tt := range tests {
		got := EstimateSize(tt.kind, tt.quality, tt.duration)
		if got != tt.want {
			t.Errorf("EstimateSize(%s, %s, %v) = %q, want %q",
				tt.kind, tt.quality, tt.duration, got, tt.want)
		}
	}
}

func TestEstimateSize_DefaultDuration(t *testing.T) {
	// zero and negative durations use the default instead
	withDefault := EstimateSize(KindVideo, "720p", 0)
	explicit := EstimateSize(KindVideo, "720p", defaultDurationSeconds)
	if withDefault != explicit {
		t.Errorf("zero duration gave %q, default duration gave %q", withDefault, explicit)
	}
}

func TestEstimateSize_MonotonicInDuration(t *testing.T) {
	// For a fixed quality, a longer video never reports a smaller size.
	// parse renders back to KB so sizes across units compare
	parse := func(s string) float64 {
		s = strings.TrimPrefix(s, "~")
		unit := "KB"
		if strings.HasSuffix(s, "GB") {
			unit = "GB"
		} else if strings.HasSuffix(s, "MB") {
			unit = "MB"
		}
		value, err := strconv.ParseFloat(strings.TrimSuffix(s, unit), 64)
		if err != nil {
			t.Fatalf("could not parse size %q: %v", s, err)
		}
		switch unit {
		case "GB":
			return value * 1024 * 1024
		case "MB":
			return value * 1024
		default:
			return value
		}
	}

	prev := 0.0
	for _, duration := range []float64{10, 60, 213, 600, 3600, 7200} {
		size := parse(EstimateSize(KindVideo, "1080p", duration))
		if size < prev {
			t.Errorf("size decreased: duration %v gave %v KB, previous %v KB",
				duration, size, prev)
		}
		prev = size
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "Unknown duration"},
		{-5, "Unknown duration"},
		{42, "0:42"},
		{213, "3:33"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
