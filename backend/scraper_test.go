package backend

import (
	"reflect"
	"testing"
)

// sampleFormatListing mimics yt-dlp -F output closely enough for the parser.
const sampleFormatListing = `[youtube] dQw4w9WgXcQ: Downloading webpage
ID      EXT   RESOLUTION FPS CH |   FILESIZE   TBR PROTO | VCODEC          VBR ACODEC      ABR ASR MORE INFO
--------------------------------------------------------------------------------------------------------
139     m4a   audio only      2 |    3.27MiB   49k https | audio only          mp4a.40.5   49k 22k low, m4a_dash
140     m4a   audio only      2 |    6.52MiB  129k https | audio only          mp4a.40.2  129k 44k medium, m4a_dash
251     webm  audio only      2 |    5.94MiB  118k https | audio only          opus       118k 48k medium, webm_dash
134     mp4   640x360     25    |    8.79MiB  174k https | avc1.4d401e    174k video only
136     mp4   1280x720    25    |   29.33MiB  582k https | avc1.64001f    582k video only
137     mp4   1920x1080   25    |   78.07MiB 1549k https | avc1.640028   1549k video only
248     webm  1920x1080   25    |   70.10MiB 1391k https | vp9           1391k video only
18      mp4   640x360     25  2 |   15.45MiB  306k https | avc1.42001E         mp4a.40.2       44k 360p
`

func TestParseFormats(t *testing.T) {
	formats := ParseFormats(sampleFormatListing)
	if len(formats) == 0 {
		t.Fatal("expected formats from sample listing")
	}

	for _, f := range formats {
		if f.Quality == "" || f.Format == "" || f.Type == "" || f.Size == "" {
			t.Errorf("format %+v has empty fields", f)
		}
	}

	// video formats come first, sorted best quality first
	sawAudio := false
	for _, f := range formats {
		if f.Type == KindAudio {
			sawAudio = true
		} else if sawAudio {
			t.Fatalf("video format %+v after audio formats", f)
		}
	}

	// 1080p appears in both mp4 and webm
	var mp41080, webm1080 bool
	for _, f := range formats {
		if f.Quality == "1080p" && f.Format == "mp4" {
			mp41080 = true
		}
		if f.Quality == "1080p" && f.Format == "webm" {
			webm1080 = true
		}
	}
	if !mp41080 || !webm1080 {
		t.Errorf("expected 1080p in mp4 and webm, got %+v", formats)
	}
}

func TestParseFormats_Dedupe(t *testing.T) {
	// Feeding the same listing twice over must not create duplicates.
	doubled := sampleFormatListing + sampleFormatListing
	once := ParseFormats(sampleFormatListing)
	twice := ParseFormats(doubled)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("parsing doubled input changed the result:\nonce:  %+v\ntwice: %+v", once, twice)
	}

	seen := make(map[string]bool)
	for _, f := range twice {
		key := f.Quality + "/" + f.Type + "/" + f.Format
		if seen[key] {
			t.Errorf("duplicate format %s", key)
		}
		seen[key] = true
	}
}

func TestParseFormats_Empty(t *testing.T) {
	if got := ParseFormats(""); len(got) != 0 {
		t.Errorf("empty input should yield no formats, got %+v", got)
	}
	if got := ParseFormats("ERROR: Video unavailable"); len(got) != 0 {
		t.Errorf("error text should yield no formats, got %+v", got)
	}
}

func TestSortFormats_LadderOrder(t *testing.T) {
	formats := []FormatEntry{
		{Quality: "360p", Format: "mp4", Type: KindVideo},
		{Quality: "999p", Format: "mp4", Type: KindVideo}, // not on the ladder
		{Quality: "2160p", Format: "mp4", Type: KindVideo},
		{Quality: "720p", Format: "webm", Type: KindVideo},
		{Quality: "128kbps", Format: "m4a", Type: KindAudio},
		{Quality: "320kbps", Format: "m4a", Type: KindAudio},
	}

	sorted := SortFormats(formats)

	wantQualities := []string{"2160p", "720p", "360p", "999p", "320kbps", "128kbps"}
	for i, want := range wantQualities {
		if sorted[i].Quality != want {
			t.Errorf("position %d: got %s, want %s", i, sorted[i].Quality, want)
		}
	}
}

func TestParseSubtitles(t *testing.T) {
	listing := `[youtube] dQw4w9WgXcQ: Downloading webpage
Available subtitles for dQw4w9WgXcQ:
Language Name                     Formats
en       English                  vtt, srv3, srv2, srv1
es       Spanish                  vtt, srv3, srv2, srv1
pt-BR    Portuguese (Brazil)      vtt, srv3
`
	subs := ParseSubtitles(listing)

	// three languages, srt and vtt each
	if len(subs) != 6 {
		t.Fatalf("expected 6 subtitle entries, got %d: %+v", len(subs), subs)
	}

	if subs[0].Code != "en" || subs[0].Format != "srt" {
		t.Errorf("first entry should be en/srt, got %+v", subs[0])
	}
	if subs[1].Code != "en" || subs[1].Format != "vtt" {
		t.Errorf("second entry should be en/vtt, got %+v", subs[1])
	}

	var sawRegional bool
	for _, s := range subs {
		if s.Code == "pt-BR" {
			sawRegional = true
		}
	}
	if !sawRegional {
		t.Error("regional code pt-BR should be recognized")
	}
}

func TestParseSubtitles_Dedupe(t *testing.T) {
	listing := "en       English    vtt\nen       English    vtt\n"
	subs := ParseSubtitles(listing)
	if len(subs) != 2 {
		t.Errorf("repeated language should still yield srt+vtt only, got %+v", subs)
	}
}

func TestParsePlaylistProgress(t *testing.T) {
	var p PlaylistProgress

	if ok := ParsePlaylistProgress("[download] Downloading 10 videos", &p); !ok {
		t.Error("total line should match")
	}
	if p.TotalVideos != 10 {
		t.Errorf("TotalVideos = %d, want 10", p.TotalVideos)
	}

	ParsePlaylistProgress("[download] Downloading video 3 of 10", &p)
	if p.DownloadedCount != 3 || p.CurrentVideo != "Video 3 of 10" {
		t.Errorf("unexpected state after video line: %+v", p)
	}

	ParsePlaylistProgress("[download]  50.0% of 10.00MiB at 2.00MiB/s", &p)
	if p.Percent != 50.0 {
		t.Errorf("Percent = %v, want 50", p.Percent)
	}

	// (3-1)/10*100 + 50/10 = 25
	if p.GlobalPercent != 25 {
		t.Errorf("GlobalPercent = %d, want 25", p.GlobalPercent)
	}

	if ok := ParsePlaylistProgress("[youtube] some unrelated line", &p); ok {
		t.Error("unrelated line should not match")
	}
}

func TestParsePlaylistProgress_NonDecreasing(t *testing.T) {
	var p PlaylistProgress
	lines := []string{
		"[download] Downloading 4 videos",
		"[download] Downloading video 1 of 4",
		"[download]  10.0%",
		"[download]  99.5%",
		"[download] Downloading video 2 of 4",
		"[download]   1.0%", // per-video percent resets here
		"[download]  50.0%",
		"[download] Downloading video 4 of 4",
		"[download] 100.0%",
	}

	prev := 0
	for _, line := range lines {
		ParsePlaylistProgress(line, &p)
		if p.GlobalPercent < prev {
			t.Fatalf("global percent went backwards after %q: %d -> %d",
				line, prev, p.GlobalPercent)
		}
		prev = p.GlobalPercent
	}

	if p.GlobalPercent != 100 {
		t.Errorf("final global percent = %d, want 100", p.GlobalPercent)
	}
}
