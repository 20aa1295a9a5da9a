package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Timeouts and output caps per yt-dlp call site.
const (
	VideoAnalyzeTimeout     = 20 * time.Second
	PlaylistHeadTimeout     = 30 * time.Second
	PlaylistVideosTimeout   = 45 * time.Second
	SubtitleListTimeout     = 15 * time.Second
	DownloadTimeout         = 120 * time.Second
	PlaylistDownloadTimeout = 30 * time.Minute
)

const (
	VideoAnalyzeMaxOutput   = 5 * 1024 * 1024
	PlaylistHeadMaxOutput   = 10 * 1024 * 1024
	PlaylistVideosMaxOutput = 15 * 1024 * 1024
	SubtitleListMaxOutput   = 2 * 1024 * 1024
	DownloadMaxOutput       = 50 * 1024 * 1024
)

// downloadUserAgent is sent with actual download runs.
const downloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// playerClientStrategies are tried in order for metadata extraction. YouTube
// rate-limits per player client, so a 429 on one client often succeeds on the
// next. The empty string means no extractor-args at all.
var playerClientStrategies = []string{"web", "mweb", ""}

var errOutputLimit = errors.New("subprocess output limit exceeded")

// CommandRunner executes a command and returns its captured output. The
// production runner shells out; tests substitute canned output.
type CommandRunner interface {
	Run(ctx context.Context, maxOutput int64, name string, args ...string) (stdout, stderr string, err error)
}

// cappedBuffer accumulates writes up to a limit, then fails the write. A
// failed write aborts the running command, which is what we want for runaway
// output.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int64
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if int64(c.buf.Len())+int64(len(p)) > c.limit {
		return 0, errOutputLimit
	}
	return c.buf.Write(p)
}

// ExecRunner runs commands with exec.CommandContext.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, maxOutput int64, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout := &cappedBuffer{limit: maxOutput}
	stderr := &cappedBuffer{limit: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timeout after command %s: %w", name, ctx.Err())
	}

	return stdout.buf.String(), stderr.buf.String(), err
}

// Ytdlp drives the yt-dlp binary. All invocations go through the injected
// runner so the strategy logic is testable without the binary.
type Ytdlp struct {
	Path           string
	Runner         CommandRunner
	CookiesBrowser string
}

// NewYtdlp builds a Ytdlp from config with the real exec runner.
func NewYtdlp(cfg *Config) *Ytdlp {
	path := cfg.YtdlpPath
	if path == "" {
		path = "yt-dlp"
	}
	return &Ytdlp{
		Path:           path,
		Runner:         ExecRunner{},
		CookiesBrowser: cfg.CookiesBrowser,
	}
}

// baseArgs returns arguments common to every invocation.
func (y *Ytdlp) baseArgs() []string {
	var args []string
	if y.CookiesBrowser != "" {
		if browser, err := ResolveCookiesBrowser(y.CookiesBrowser); err == nil {
			args = append(args, "--cookies-from-browser", browser)
		} else {
			Logger.Warn("cookie browser unavailable, continuing without cookies",
				"browser", y.CookiesBrowser, "error", err)
		}
	}
	return args
}

// strategyArgs returns the extractor-args flags for a player client, or
// nothing for the bare strategy.
func strategyArgs(client string) []string {
	if client == "" {
		return nil
	}
	return []string{"--extractor-args", fmt.Sprintf("youtube:player_client=%s", client)}
}

// firstJSONLine returns the first stdout line that looks like a complete JSON
// object. yt-dlp mixes warnings into stdout on some versions, so scanning for
// the object line is more robust than parsing the whole output.
func firstJSONLine(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			return line, true
		}
	}
	return "", false
}

// RunJSON runs yt-dlp through the strategy chain and returns the first JSON
// object line produced. Strategies run sequentially; each failure is logged
// at debug and the next strategy is tried. Only exhaustion of all strategies
// is an error, carrying the last attempt's failure.
func (y *Ytdlp) RunJSON(ctx context.Context, timeout time.Duration, maxOutput int64, args ...string) (string, error) {
	var lastErr error

	for _, client := range playerClientStrategies {
		attempt := append(y.baseArgs(), strategyArgs(client)...)
		attempt = append(attempt, args...)

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		stdout, stderr, err := y.Runner.Run(runCtx, maxOutput, y.Path, attempt...)
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("%w: %s", err, firstLine(stderr))
			Logger.Debug("yt-dlp strategy failed",
				"player_client", client, "error", err)
			continue
		}

		if line, ok := firstJSONLine(stdout); ok {
			return line, nil
		}

		lastErr = fmt.Errorf("no JSON object in yt-dlp output (player_client=%q)", client)
		Logger.Debug("yt-dlp strategy produced no JSON", "player_client", client)
	}

	return "", fmt.Errorf("all yt-dlp strategies failed: %w", lastErr)
}

// RunText runs yt-dlp once with the web player client and returns raw stdout.
// Used for the human-readable listings (-F, --list-subs).
func (y *Ytdlp) RunText(ctx context.Context, timeout time.Duration, maxOutput int64, args ...string) (string, error) {
	attempt := append(y.baseArgs(), strategyArgs("web")...)
	attempt = append(attempt, args...)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := y.Runner.Run(runCtx, maxOutput, y.Path, attempt...)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, firstLine(stderr))
	}
	return stdout, nil
}

// RunDownload runs an actual download with the web player client and the
// fixed user agent.
func (y *Ytdlp) RunDownload(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	attempt := append(y.baseArgs(), strategyArgs("web")...)
	attempt = append(attempt, "--user-agent", downloadUserAgent)
	attempt = append(attempt, args...)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := y.Runner.Run(runCtx, DownloadMaxOutput, y.Path, attempt...)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, firstLine(stderr))
	}
	return stdout, nil
}

// firstLine trims output to its first non-empty line for error messages.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
