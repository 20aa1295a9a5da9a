package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, ErrUpstreamTimeout},
		{"timeout text", errors.New("timeout after command yt-dlp"), ErrUpstreamTimeout},
		{"timed out text", errors.New("connection timed out"), ErrUpstreamTimeout},
		{"http 429", errors.New("HTTP Error 429: Too Many Requests"), ErrUpstreamRateLimited},
		{"too many requests", errors.New("too many requests, slow down"), ErrUpstreamRateLimited},
		{"private video", errors.New("ERROR: Private video"), ErrUpstreamUnavailable},
		{"video unavailable", errors.New("ERROR: Video unavailable"), ErrUpstreamUnavailable},
		{"private playlist", errors.New("ERROR: This is a private playlist"), ErrUpstreamUnavailable},
		{"disk full", errors.New("write /tmp/x: no space left on device"), ErrStorageExhausted},
		{"enospc", errors.New("ENOSPC: out of space"), ErrStorageExhausted},
		{"missing file", errors.New("open /tmp/x: no such file or directory"), ErrSubprocessFailure},
		{"format unavailable", errors.New("ERROR: Requested format is not available"), ErrSubprocessFailure},
		{"exit status", errors.New("exit status 1"), ErrSubprocessFailure},
		{"http 401", errors.New("token endpoint returned 401: bad"), ErrAuthFailure},
		{"invalid grant", errors.New(`{"error":"invalid_grant"}`), ErrAuthFailure},
		{"unauthorized", errors.New("Unauthorized"), ErrAuthFailure},
		{"anything else", errors.New("mysterious"), ErrUnknownFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got.Kind != tt.want {
				t.Errorf("Classify(%v).Kind = %v, want %v", tt.err, got.Kind, tt.want)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

func TestClassify_PreservesExistingClassification(t *testing.T) {
	// An already-classified error keeps its kind even if its text would
	// otherwise match a different bucket.
	original := &ClassifiedError{
		Kind: ErrInvalidInput,
		Err:  errors.New("timeout looking text but actually bad input"),
	}
	wrapped := fmt.Errorf("handler: %w", original)

	if got := Classify(wrapped); got.Kind != ErrInvalidInput {
		t.Errorf("Classify should preserve the existing kind, got %v", got.Kind)
	}
}

func TestClassifiedError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	ce := Classify(fmt.Errorf("outer: %w", inner))
	if !errors.Is(ce, inner) {
		t.Error("ClassifiedError should unwrap to the original error")
	}
}

func TestUserMessage(t *testing.T) {
	// Every kind has a message, and raw error text never leaks through.
	kinds := []ErrorKind{
		ErrInvalidInput, ErrUpstreamTimeout, ErrUpstreamRateLimited,
		ErrUpstreamUnavailable, ErrSubprocessFailure, ErrStorageExhausted,
		ErrAuthFailure, ErrUnknownFailure,
	}

	secret := "secret internal detail"
	for _, kind := range kinds {
		ce := &ClassifiedError{Kind: kind, Err: errors.New(secret)}
		msg := ce.UserMessage()
		if msg == "" {
			t.Errorf("kind %v has no user message", kind)
		}
		if msg == secret {
			t.Errorf("kind %v leaks the raw error", kind)
		}
	}

	// unknown kinds fall back to the generic message
	ce := &ClassifiedError{Kind: ErrorKind("made-up"), Err: errors.New("x")}
	if ce.UserMessage() != userMessages[ErrUnknownFailure] {
		t.Errorf("unknown kind should use the generic message, got %q", ce.UserMessage())
	}
}

func TestStatusCode(t *testing.T) {
	if got := (&ClassifiedError{Kind: ErrInvalidInput}).StatusCode(); got != 400 {
		t.Errorf("invalid input should map to 400, got %d", got)
	}
	for _, kind := range []ErrorKind{ErrUpstreamTimeout, ErrSubprocessFailure, ErrUnknownFailure} {
		if got := (&ClassifiedError{Kind: kind}).StatusCode(); got != 500 {
			t.Errorf("kind %v should map to 500, got %d", kind, got)
		}
	}
}
