package backend

import "testing"

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{"watch URL", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"short URL", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"short URL with params", "https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ", true},
		{"watch URL with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123&index=2", "dQw4w9WgXcQ", true},
		{"v param not first", "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"overlong id truncated", "https://www.youtube.com/watch?v=dQw4w9WgXcQextra", "dQw4w9WgXcQ", true},
		{"no scheme", "www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"empty", "", "", false},
		{"not youtube", "https://example.com/video/123", "", false},
		{"garbage", "not a url at all", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVideoID(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("ExtractVideoID(%q) ok = %v, want %v", tt.url, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestCleanVideoURL_Equivalence(t *testing.T) {
	// All shapes referring to the same video normalize to the same URL.
	inputs := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?t=10",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLxyz",
	}

	want := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	for _, in := range inputs {
		got, ok := CleanVideoURL(in)
		if !ok {
			t.Fatalf("CleanVideoURL(%q) unexpectedly failed", in)
		}
		if got != want {
			t.Errorf("CleanVideoURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanVideoURL_Invalid(t *testing.T) {
	for _, in := range []string{"", "https://vimeo.com/123", "hello"} {
		if _, ok := CleanVideoURL(in); ok {
			t.Errorf("CleanVideoURL(%q) should have failed", in)
		}
	}
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/playlist?list=PLabc123", "PLabc123", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLabc123", "PLabc123", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractPlaylistID(tt.url)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ExtractPlaylistID(%q) = (%q, %v), want (%q, %v)",
				tt.url, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCleanPlaylistURL(t *testing.T) {
	got, ok := CleanPlaylistURL("https://www.youtube.com/watch?v=abc&list=PLxyz789")
	if !ok {
		t.Fatal("CleanPlaylistURL unexpectedly failed")
	}
	want := "https://www.youtube.com/playlist?list=PLxyz789"
	if got != want {
		t.Errorf("CleanPlaylistURL = %q, want %q", got, want)
	}
}
