package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// maxPlaylistVideos caps how many entries a playlist analysis returns.
const maxPlaylistVideos = 50

// PlaylistVideo is one entry of an analyzed playlist.
type PlaylistVideo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
	Uploader  string `json:"uploader"`
	Index     int    `json:"index"`
}

// PlaylistInfo is the response for the playlist analyze endpoint.
type PlaylistInfo struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Thumbnail   string          `json:"thumbnail"`
	Uploader    string          `json:"uploader"`
	VideoCount  int             `json:"videoCount"`
	Videos      []PlaylistVideo `json:"videos"`
	PlaylistID  string          `json:"playlistId"`
}

// playlistMeta is the subset of yt-dlp's flat-playlist JSON we read.
type playlistMeta struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Thumbnail   string  `json:"thumbnail"`
	Duration    float64 `json:"duration"`
	Uploader    string  `json:"uploader"`
	Channel     string  `json:"channel"`
	Thumbnails  []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

// PlaylistAnalyzer resolves playlist URLs into metadata and a video listing.
type PlaylistAnalyzer struct {
	Ytdlp *Ytdlp
}

func NewPlaylistAnalyzer(y *Ytdlp) *PlaylistAnalyzer {
	return &PlaylistAnalyzer{Ytdlp: y}
}

// Analyze fetches the playlist head through the strategy chain, then the
// full flat video listing. Unlike video analysis there is no synthetic
// fallback: a playlist whose head cannot be fetched is an error.
func (a *PlaylistAnalyzer) Analyze(ctx context.Context, rawURL string) (*PlaylistInfo, error) {
	cleanURL, ok := CleanPlaylistURL(rawURL)
	if !ok {
		return nil, &ClassifiedError{
			Kind: ErrInvalidInput,
			Err:  fmt.Errorf("not a recognizable YouTube playlist URL: %q", rawURL),
		}
	}
	playlistID, _ := ExtractPlaylistID(cleanURL)

	Logger.Info("analyzing playlist", "url", cleanURL)

	headLine, err := a.Ytdlp.RunJSON(ctx, PlaylistHeadTimeout, PlaylistHeadMaxOutput,
		"--dump-json", "--flat-playlist", "--no-playlist", cleanURL)
	if err != nil {
		return nil, Classify(err)
	}

	var head playlistMeta
	if err := json.Unmarshal([]byte(headLine), &head); err != nil {
		return nil, Classify(fmt.Errorf("playlist metadata did not parse: %w", err))
	}

	listing, err := a.Ytdlp.RunText(ctx, PlaylistVideosTimeout, PlaylistVideosMaxOutput,
		"--dump-json", "--flat-playlist", cleanURL)
	if err != nil {
		return nil, Classify(err)
	}

	videos := a.parseVideos(listing)

	info := &PlaylistInfo{
		Title:       head.Title,
		Description: head.Description,
		Thumbnail:   head.Thumbnail,
		Uploader:    head.Uploader,
		VideoCount:  len(videos),
		Videos:      videos,
		PlaylistID:  playlistID,
	}
	if info.Title == "" {
		info.Title = "YouTube playlist"
	}
	if info.Uploader == "" {
		info.Uploader = head.Channel
	}
	if info.Uploader == "" {
		info.Uploader = "YouTube channel"
	}
	if info.Thumbnail == "" && len(head.Thumbnails) > 0 {
		info.Thumbnail = head.Thumbnails[0].URL
	}
	if info.Thumbnail == "" && len(videos) > 0 {
		info.Thumbnail = videos[0].Thumbnail
	}

	return info, nil
}

// parseVideos reads one JSON object per line, skipping anything that does
// not parse, and caps the result.
func (a *PlaylistAnalyzer) parseVideos(listing string) []PlaylistVideo {
	var videos []PlaylistVideo

	for _, line := range strings.Split(strings.TrimSpace(listing), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}

		var meta playlistMeta
		if err := json.Unmarshal([]byte(line), &meta); err != nil {
			Logger.Debug("skipping unparseable playlist entry", "error", err)
			continue
		}

		index := len(videos) + 1
		video := PlaylistVideo{
			ID:        meta.ID,
			Title:     meta.Title,
			Duration:  FormatDuration(meta.Duration),
			Thumbnail: meta.Thumbnail,
			URL:       WatchURL(meta.ID),
			Uploader:  meta.Uploader,
			Index:     index,
		}
		if video.ID == "" {
			video.ID = fmt.Sprintf("video_%d", index-1)
		}
		if video.Title == "" {
			video.Title = fmt.Sprintf("Video %d", index)
		}
		if video.Thumbnail == "" && len(meta.Thumbnails) > 0 {
			video.Thumbnail = meta.Thumbnails[0].URL
		}
		if video.Thumbnail == "" {
			video.Thumbnail = SmallThumbnailURL(meta.ID)
		}
		if video.Uploader == "" {
			video.Uploader = meta.Channel
		}
		if video.Uploader == "" {
			video.Uploader = "Unknown channel"
		}

		videos = append(videos, video)
		if len(videos) >= maxPlaylistVideos {
			break
		}
	}

	return videos
}

// VideoRange selects a contiguous slice of a playlist by 1-based position.
type VideoRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// PlaylistDownloadRequest describes one playlist download run.
type PlaylistDownloadRequest struct {
	PlaylistID string      `json:"playlistId"`
	Format     string      `json:"format"` // video or audio
	Quality    string      `json:"quality"`
	VideoRange *VideoRange `json:"videoRange"`
}

// ProgressEvent is emitted once per subprocess stdout line.
type ProgressEvent struct {
	Type            string  `json:"type"` // always "progress"
	DownloadedCount int     `json:"downloadedCount"`
	TotalVideos     int     `json:"totalVideos"`
	CurrentVideo    string  `json:"currentVideo"`
	Progress        float64 `json:"progress"`
	GlobalProgress  int     `json:"globalProgress"`
}

// ErrorEvent reports a stderr line or a terminal failure.
type ErrorEvent struct {
	Type    string `json:"type"` // always "error"
	Message string `json:"message"`
}

// CompleteEvent is the successful terminal event.
type CompleteEvent struct {
	Type            string `json:"type"` // always "complete"
	Message         string `json:"message"`
	DownloadedCount int    `json:"downloadedCount"`
	TotalVideos     int    `json:"totalVideos"`
}

// playlistVideoSelectors picks best streams by height; the playlist flow
// always merges to mp4.
var playlistVideoSelectors = map[string]string{
	"2160p": "bestvideo[height<=2160]+bestaudio/best[height<=2160]",
	"1440p": "bestvideo[height<=1440]+bestaudio/best[height<=1440]",
	"1080p": "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	"720p":  "bestvideo[height<=720]+bestaudio/best[height<=720]",
	"480p":  "bestvideo[height<=480]+bestaudio/best[height<=480]",
	"360p":  "bestvideo[height<=360]+bestaudio/best[height<=360]",
}

var playlistAudioBitrates = map[string]string{
	"128kbps": "128",
	"96kbps":  "96",
	"64kbps":  "64",
}

// LineStreamer runs a command and delivers output line by line while it
// runs. The production implementation shells out; tests feed scripted lines.
type LineStreamer interface {
	Stream(ctx context.Context, onStdout, onStderr func(line string), name string, args ...string) error
}

// ExecLineStreamer streams a real subprocess. Cancelling the context kills
// the process via exec.CommandContext.
type ExecLineStreamer struct{}

func (ExecLineStreamer) Stream(ctx context.Context, onStdout, onStderr func(string), name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			onStderr(scanner.Text())
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		onStdout(scanner.Text())
	}

	wg.Wait()
	return cmd.Wait()
}

// PlaylistStreamer runs one long-lived playlist download, translating
// subprocess output into a stream of typed events. Exactly one terminal
// event (complete or error) is emitted per run, always last.
type PlaylistStreamer struct {
	Ytdlp    *Ytdlp
	Streamer LineStreamer
	TempDir  string
}

func NewPlaylistStreamer(y *Ytdlp, tempDir string) *PlaylistStreamer {
	return &PlaylistStreamer{Ytdlp: y, Streamer: ExecLineStreamer{}, TempDir: tempDir}
}

// buildArgs validates the request and assembles the yt-dlp invocation.
func (s *PlaylistStreamer) buildArgs(req PlaylistDownloadRequest) ([]string, error) {
	if req.PlaylistID == "" || req.Format == "" || req.Quality == "" {
		return nil, &ClassifiedError{
			Kind: ErrInvalidInput,
			Err:  fmt.Errorf("playlistId, format and quality are required"),
		}
	}

	var args []string
	switch req.Format {
	case KindVideo:
		selector, ok := playlistVideoSelectors[req.Quality]
		if !ok {
			selector = playlistVideoSelectors["720p"]
		}
		args = append(args, "-f", selector, "--merge-output-format", "mp4")
	case KindAudio:
		bitrate, ok := playlistAudioBitrates[req.Quality]
		if !ok {
			bitrate = "128"
		}
		args = append(args, "-f", "bestaudio/best",
			"--extract-audio", "--audio-format", "mp3", "--audio-quality", bitrate+"K")
	default:
		return nil, &ClassifiedError{
			Kind: ErrInvalidInput,
			Err:  fmt.Errorf("unknown playlist format %q", req.Format),
		}
	}

	if r := req.VideoRange; r != nil && r.Start > 0 && r.End > 0 {
		args = append(args,
			"--playlist-start", fmt.Sprint(r.Start),
			"--playlist-end", fmt.Sprint(r.End))
	}

	template := filepath.Join(s.TempDir, "playlist_%(playlist_index)s_%(title)s.%(ext)s")
	args = append(args,
		"--no-playlist-reverse",
		"--output", template,
		PlaylistURL(req.PlaylistID))

	return args, nil
}

// Stream runs the download, invoking emit once per event. emit is never
// called concurrently and never called again after a terminal event. The
// caller cancels ctx to kill the subprocess (client disconnect).
func (s *PlaylistStreamer) Stream(ctx context.Context, req PlaylistDownloadRequest, emit func(event any)) {
	args, err := s.buildArgs(req)
	if err != nil {
		emit(&ErrorEvent{Type: "error", Message: Classify(err).UserMessage()})
		return
	}

	Logger.Info("starting playlist download",
		"playlist_id", req.PlaylistID, "format", req.Format, "quality", req.Quality)

	runCtx, cancel := context.WithTimeout(ctx, PlaylistDownloadTimeout)
	defer cancel()

	full := append(s.Ytdlp.baseArgs(), strategyArgs("web")...)
	full = append(full, "--user-agent", downloadUserAgent)
	full = append(full, args...)

	var mu sync.Mutex
	var progress PlaylistProgress

	onStdout := func(line string) {
		mu.Lock()
		defer mu.Unlock()

		ParsePlaylistProgress(line, &progress)
		emit(&ProgressEvent{
			Type:            "progress",
			DownloadedCount: progress.DownloadedCount,
			TotalVideos:     progress.TotalVideos,
			CurrentVideo:    progress.CurrentVideo,
			Progress:        progress.Percent,
			GlobalProgress:  progress.GlobalPercent,
		})
	}

	onStderr := func(line string) {
		if strings.Contains(line, "WARNING") || strings.TrimSpace(line) == "" {
			return
		}
		Logger.Warn("yt-dlp stderr", "line", line)

		mu.Lock()
		defer mu.Unlock()
		emit(&ErrorEvent{Type: "error", Message: line})
	}

	runErr := s.Streamer.Stream(runCtx, onStdout, onStderr, s.Ytdlp.Path, full...)

	mu.Lock()
	defer mu.Unlock()

	if runErr != nil {
		Logger.Error("playlist download failed", "error", runErr)
		emit(&ErrorEvent{
			Type:    "error",
			Message: fmt.Sprintf("Download failed: %s", Classify(runErr).UserMessage()),
		})
		return
	}

	Logger.Info("playlist download finished",
		"downloaded", progress.DownloadedCount, "total", progress.TotalVideos)
	emit(&CompleteEvent{
		Type: "complete",
		Message: fmt.Sprintf("Download complete: %d videos downloaded",
			progress.DownloadedCount),
		DownloadedCount: progress.DownloadedCount,
		TotalVideos:     progress.TotalVideos,
	})
}
