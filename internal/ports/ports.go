package ports

import (
	"context"
	"errors"

	"voicedesk/internal/domain"
)

// ErrCaptureUnsupported is returned by SpeechCapture.Start when the platform
// lacks the speech capability entirely. The session treats it as fatal and
// sticky; any other start error is a transient failure.
var ErrCaptureUnsupported = errors.New("speech capture is not supported on this platform")

// CaptureSession is a live speech capture session. Events delivers interim
// and final transcripts in arrival order and is closed when the session ends.
// After Events is closed, Err reports the fatal error that ended the session,
// or nil when it was stopped deliberately.
type CaptureSession interface {
	Events() <-chan domain.TranscriptEvent
	Stop() error
	Err() error
}

// SpeechCapture creates speech capture sessions.
type SpeechCapture interface {
	Start(ctx context.Context) (CaptureSession, error)
}

// Synthesizer speaks text back to the user. Speak blocks until playback
// completes, the context is cancelled, or playback fails. CancelAll stops any
// in-flight playback immediately.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
	CancelAll()
}

// Ledger is the host application's transaction store.
type Ledger interface {
	RecentEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error)
	Append(ctx context.Context, entry domain.LedgerEntry) error
}

// Navigator switches the host application to a canonical view.
type Navigator interface {
	NavigateTo(view string)
}

// RulesEngine transforms finalized transcripts using deterministic rules
// before interpretation.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// SessionContext is the read-only snapshot handed to the interpreter for one
// utterance. The interpreter reads the ledger to answer queries but never
// mutates anything through it; Navigate is carried for reference only and is
// invoked by the controller after playback.
type SessionContext struct {
	Ledger      Ledger
	Navigate    Navigator
	RecentLimit int
}

// CommandInterpreter turns one finalized utterance into a CommandResult.
// Implementations must be pure and total: every input, including empty text,
// produces a result with a non-empty message and no error is ever raised for
// business-rule violations.
type CommandInterpreter interface {
	Interpret(ctx context.Context, utterance string, sctx SessionContext) domain.CommandResult
}

// EventSink emits session state and results to the host.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	InterimTranscript(text string)
	CommandInterpreted(result domain.CommandResult)
	SessionError(code domain.ErrorCode, detail string)
}
