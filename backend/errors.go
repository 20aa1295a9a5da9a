package backend

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind buckets failures from yt-dlp and the Drive API into the
// categories the HTTP layer reports to clients.
type ErrorKind string

const (
	ErrInvalidInput        ErrorKind = "invalid_input"
	ErrUpstreamTimeout     ErrorKind = "upstream_timeout"
	ErrUpstreamRateLimited ErrorKind = "upstream_rate_limited"
	ErrUpstreamUnavailable ErrorKind = "upstream_unavailable"
	ErrSubprocessFailure   ErrorKind = "subprocess_failure"
	ErrStorageExhausted    ErrorKind = "storage_exhausted"
	ErrAuthFailure         ErrorKind = "auth_failure"
	ErrUnknownFailure      ErrorKind = "unknown_failure"
)

// ClassifiedError pairs an ErrorKind with the underlying error so endpoint
// handlers can pick a status code and a user-safe message while the full
// detail goes to the log.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify buckets an error by case-insensitive substring matching against
// its text. yt-dlp and the Drive API report failures as free text, not
// structured codes, so this is the only classification available; if the
// upstream wording changes, errors fall through to ErrUnknownFailure.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	kind := ErrUnknownFailure
	text := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(text, "timeout"),
		strings.Contains(text, "timed out"):
		kind = ErrUpstreamTimeout
	case strings.Contains(text, "429"),
		strings.Contains(text, "too many requests"):
		kind = ErrUpstreamRateLimited
	case strings.Contains(text, "private video"),
		strings.Contains(text, "private playlist"),
		strings.Contains(text, "video unavailable"),
		strings.Contains(text, "playlist unavailable"):
		kind = ErrUpstreamUnavailable
	case strings.Contains(text, "enospc"),
		strings.Contains(text, "no space left"):
		kind = ErrStorageExhausted
	case strings.Contains(text, "no such file"),
		strings.Contains(text, "requested format is not available"),
		strings.Contains(text, "exit status"):
		kind = ErrSubprocessFailure
	case strings.Contains(text, "401"),
		strings.Contains(text, "unauthorized"),
		strings.Contains(text, "invalid_grant"):
		kind = ErrAuthFailure
	}

	return &ClassifiedError{Kind: kind, Err: err}
}

// userMessages are the short, user-safe texts that cross the HTTP boundary.
// The raw error never does.
var userMessages = map[ErrorKind]string{
	ErrInvalidInput:        "Invalid YouTube URL",
	ErrUpstreamTimeout:     "The operation took too long. YouTube may be throttling requests from this server.",
	ErrUpstreamRateLimited: "YouTube is rate-limiting requests from this server. Try again in a few minutes.",
	ErrUpstreamUnavailable: "This content is private, deleted, or otherwise unavailable.",
	ErrSubprocessFailure:   "The requested format is not available for this content.",
	ErrStorageExhausted:    "Not enough disk space to complete the download.",
	ErrAuthFailure:         "Google Drive authorization failed. Reconnect your account.",
	ErrUnknownFailure:      "Temporary YouTube error. The download may still work even if analysis fails.",
}

// UserMessage returns the client-facing message for a classified error.
func (e *ClassifiedError) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return userMessages[ErrUnknownFailure]
}

// StatusCode maps an error kind to the HTTP status the endpoint should
// return: 400 for client input, 500 for everything else.
func (e *ClassifiedError) StatusCode() int {
	if e.Kind == ErrInvalidInput {
		return 400
	}
	return 500
}
