package main

import (
	"testing"

	"voicedesk/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonOpened:             "Listening...",
		domain.SessionReasonAwaitingUtterance:  "Listening...",
		domain.SessionReasonInterpreting:       "Working on it...",
		domain.SessionReasonNavigated:          "Done.",
		domain.SessionReasonTransactionLogged:  "Done.",
		domain.SessionReasonRestarted:          "Let's try that again. Listening...",
		domain.SessionReasonClosed:             "Session closed.",
		domain.SessionReasonCaptureUnavailable: "Voice capture is not available on this system.",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:  "Startup failed",
		domain.ErrorCodeCapture:  "Voice capture failed",
		domain.ErrorCodePlayback: "Audio playback failed",
		domain.ErrorCodeLedger:   "Could not record the transaction",
		domain.ErrorCodeRules:    "Transcript rules failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}
