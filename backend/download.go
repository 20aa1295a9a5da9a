package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DownloadRequest describes one single-video download.
type DownloadRequest struct {
	URL          string `json:"url"`
	Type         string `json:"type"`
	Quality      string `json:"quality"`
	Format       string `json:"format"`
	SubtitleLang string `json:"subtitleLang"`
}

// DownloadResult carries the fetched file and its response metadata.
type DownloadResult struct {
	Data        []byte
	ContentType string
	Filename    string
}

// videoSelectors maps container → quality → yt-dlp format selector. mkv, avi
// and mov pick the best streams regardless of container and rely on
// --merge-output-format for the final file.
var videoSelectors = map[string]map[string]string{
	"mp4": {
		"2160p": "bestvideo[height<=2160][ext=mp4]+bestaudio[ext=m4a]/best[height<=2160][ext=mp4]",
		"1440p": "bestvideo[height<=1440][ext=mp4]+bestaudio[ext=m4a]/best[height<=1440][ext=mp4]",
		"1080p": "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]",
		"720p":  "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]",
		"480p":  "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]",
		"360p":  "bestvideo[height<=360][ext=mp4]+bestaudio[ext=m4a]/best[height<=360][ext=mp4]",
	},
	"webm": {
		"2160p": "bestvideo[height<=2160][ext=webm]+bestaudio[ext=webm]/best[height<=2160][ext=webm]",
		"1440p": "bestvideo[height<=1440][ext=webm]+bestaudio[ext=webm]/best[height<=1440][ext=webm]",
		"1080p": "bestvideo[height<=1080][ext=webm]+bestaudio[ext=webm]/best[height<=1080][ext=webm]",
		"720p":  "bestvideo[height<=720][ext=webm]+bestaudio[ext=webm]/best[height<=720][ext=webm]",
		"480p":  "bestvideo[height<=480][ext=webm]+bestaudio[ext=webm]/best[height<=480][ext=webm]",
		"360p":  "bestvideo[height<=360][ext=webm]+bestaudio[ext=webm]/best[height<=360][ext=webm]",
	},
	"mkv": {
		"2160p": "bestvideo[height<=2160]+bestaudio/best[height<=2160]",
		"1440p": "bestvideo[height<=1440]+bestaudio/best[height<=1440]",
		"1080p": "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
		"720p":  "bestvideo[height<=720]+bestaudio/best[height<=720]",
		"480p":  "bestvideo[height<=480]+bestaudio/best[height<=480]",
		"360p":  "bestvideo[height<=360]+bestaudio/best[height<=360]",
	},
	"avi": {
		"1080p": "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
		"720p":  "bestvideo[height<=720]+bestaudio/best[height<=720]",
		"480p":  "bestvideo[height<=480]+bestaudio/best[height<=480]",
		"360p":  "bestvideo[height<=360]+bestaudio/best[height<=360]",
	},
	"mov": {
		"1080p": "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
		"720p":  "bestvideo[height<=720]+bestaudio/best[height<=720]",
		"480p":  "bestvideo[height<=480]+bestaudio/best[height<=480]",
		"360p":  "bestvideo[height<=360]+bestaudio/best[height<=360]",
	},
}

// audioBitrates maps quality labels to --audio-quality values.
var audioBitrates = map[string]string{
	"1411kbps": "1411",
	"320kbps":  "320",
	"256kbps":  "256",
	"192kbps":  "192",
	"128kbps":  "128",
	"96kbps":   "96",
	"64kbps":   "64",
}

var contentTypes = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"mp3":  "audio/mpeg",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"srt":  "text/plain",
	"vtt":  "text/vtt",
}

// Downloader fetches single videos, audio tracks and subtitles through
// yt-dlp into a temp dir, returning the file bytes for the HTTP response.
type Downloader struct {
	Ytdlp   *Ytdlp
	TempDir string
}

func NewDownloader(y *Ytdlp, tempDir string) *Downloader {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Downloader{Ytdlp: y, TempDir: tempDir}
}

// VideoSelector resolves the yt-dlp format selector for a container/quality
// pair, falling back to mp4 at the same quality, then mp4 at 720p.
func VideoSelector(container, quality string) string {
	if byQuality, ok := videoSelectors[container]; ok {
		if sel, ok := byQuality[quality]; ok {
			return sel
		}
	}
	if sel, ok := videoSelectors["mp4"][quality]; ok {
		return sel
	}
	return videoSelectors["mp4"]["720p"]
}

// buildArgs assembles the yt-dlp arguments and returns them with the
// expected output path and final extension.
func (d *Downloader) buildArgs(req DownloadRequest, videoID string) (args []string, outputPath, ext string, err error) {
	timestamp := time.Now().UnixMilli()

	switch req.Type {
	case KindVideo:
		ext = req.Format
		if ext == "" {
			ext = "mp4"
		}
		outputPath = filepath.Join(d.TempDir, fmt.Sprintf("video_%s_%d.%s", videoID, timestamp, ext))

		args = []string{"-f", VideoSelector(ext, req.Quality)}
		if ext == "mkv" || ext == "avi" || ext == "mov" {
			args = append(args, "--merge-output-format", ext)
		}

	case KindAudio:
		ext = req.Format
		if ext == "" {
			ext = "mp3"
		}
		outputPath = filepath.Join(d.TempDir, fmt.Sprintf("audio_%s_%d.%s", videoID, timestamp, ext))

		bitrate, ok := audioBitrates[req.Quality]
		if !ok {
			bitrate = "128"
		}

		args = []string{"-f", "bestaudio/best", "--extract-audio"}
		switch ext {
		case "flac":
			args = append(args, "--audio-format", "flac")
		case "wav":
			args = append(args, "--audio-format", "wav")
		case "aac":
			args = append(args, "--audio-format", "aac", "--audio-quality", bitrate+"K")
		case "ogg":
			args = append(args, "--audio-format", "vorbis", "--audio-quality", bitrate+"K")
		default:
			args = append(args, "--audio-format", "mp3", "--audio-quality", bitrate+"K")
		}

	case KindSubtitle:
		ext = req.Format
		if ext == "" {
			ext = "srt"
		}
		outputPath = filepath.Join(d.TempDir, fmt.Sprintf("subtitle_%s_%d.%s", videoID, timestamp, ext))

		lang := req.SubtitleLang
		if lang == "" {
			lang = "en"
		}
		args = []string{"--write-subs", "--sub-langs", lang, "--sub-format", ext, "--skip-download"}

	default:
		return nil, "", "", &ClassifiedError{
			Kind: ErrInvalidInput,
			Err:  fmt.Errorf("unknown download type %q", req.Type),
		}
	}

	return args, outputPath, ext, nil
}

// Download runs the full fetch: build arguments, invoke yt-dlp, locate the
// output file, read it and clean up.
func (d *Downloader) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	if req.URL == "" || req.Type == "" || req.Quality == "" {
		return nil, &ClassifiedError{
			Kind: ErrInvalidInput,
			Err:  fmt.Errorf("url, type and quality are required"),
		}
	}

	cleanURL, ok := CleanVideoURL(req.URL)
	if !ok {
		return nil, &ClassifiedError{
			Kind: ErrInvalidInput,
			Err:  fmt.Errorf("not a recognizable YouTube video URL: %q", req.URL),
		}
	}
	videoID, _ := ExtractVideoID(cleanURL)

	args, outputPath, ext, err := d.buildArgs(req, videoID)
	if err != nil {
		return nil, err
	}
	args = append(args, "--output", outputPath, cleanURL)

	Logger.Info("starting download",
		"type", req.Type, "quality", req.Quality, "format", ext, "video_id", videoID)

	if _, err := d.Ytdlp.RunDownload(ctx, DownloadTimeout, args...); err != nil {
		return nil, Classify(err)
	}

	finalPath, err := d.locateOutput(outputPath, req, ext)
	if err != nil {
		return nil, Classify(err)
	}

	data, err := os.ReadFile(finalPath)
	if err != nil {
		return nil, Classify(err)
	}

	if err := os.Remove(finalPath); err != nil {
		Logger.Warn("could not clean up temp file", "path", finalPath, "error", err)
	}

	contentType, ok := contentTypes[ext]
	if !ok {
		contentType = "application/octet-stream"
	}

	return &DownloadResult{
		Data:        data,
		ContentType: contentType,
		Filename:    fmt.Sprintf("%s_%s.%s", videoID, req.Quality, ext),
	}, nil
}

// locateOutput finds the file yt-dlp actually wrote. Subtitle downloads
// inject the language code before the extension, so that variant is probed
// as well.
func (d *Downloader) locateOutput(outputPath string, req DownloadRequest, ext string) (string, error) {
	if _, err := os.Stat(outputPath); err == nil {
		return outputPath, nil
	}

	if req.Type == KindSubtitle {
		lang := req.SubtitleLang
		if lang == "" {
			lang = "en"
		}
		variant := strings.TrimSuffix(outputPath, "."+ext) + "." + lang + "." + ext
		if _, err := os.Stat(variant); err == nil {
			return variant, nil
		}
	}

	return "", fmt.Errorf("downloaded file not found at %s", outputPath)
}
