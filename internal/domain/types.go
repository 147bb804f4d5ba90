package domain

import "time"

// SessionState models the voice command session lifecycle. Exactly one state
// is active at a time; transitions are applied synchronously by the controller.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateListening  SessionState = "listening"
	SessionStateProcessing SessionState = "processing"
	SessionStateSpeaking   SessionState = "speaking"
	SessionStateError      SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonOpened             SessionStateReason = "session_opened"
	SessionReasonInterpreting       SessionStateReason = "interpreting"
	SessionReasonSpeaking           SessionStateReason = "speaking"
	SessionReasonNavigated          SessionStateReason = "navigated"
	SessionReasonTransactionLogged  SessionStateReason = "transaction_logged"
	SessionReasonAwaitingUtterance  SessionStateReason = "awaiting_utterance"
	SessionReasonCommandFailed      SessionStateReason = "command_failed"
	SessionReasonRestarted          SessionStateReason = "restarted"
	SessionReasonClosed             SessionStateReason = "session_closed"
	SessionReasonCaptureStartFailed SessionStateReason = "capture_start_failed"
	SessionReasonCaptureUnavailable SessionStateReason = "capture_unavailable"
	SessionReasonPlaybackFailed     SessionStateReason = "playback_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup  ErrorCode = "startup"
	ErrorCodeCapture  ErrorCode = "capture"
	ErrorCodePlayback ErrorCode = "playback"
	ErrorCodeLedger   ErrorCode = "ledger"
	ErrorCodeRules    ErrorCode = "rules"
)

// TranscriptKind identifies whether a capture event is interim or final text.
type TranscriptKind string

const (
	TranscriptKindInterim TranscriptKind = "interim"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental speech-to-text output from capture.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// CommandAction classifies the outcome of interpreting one utterance.
type CommandAction string

const (
	ActionNavigate    CommandAction = "navigate"
	ActionTransaction CommandAction = "transaction"
	ActionQuery       CommandAction = "query"
	ActionError       CommandAction = "error"
	ActionNoop        CommandAction = "noop"
)

// TransactionSourceVoice marks ledger entries that originated from the voice
// pipeline so downstream code can distinguish them from manual entries.
const TransactionSourceVoice = "voice"

// TransactionPayload carries the details of a voice-initiated payment.
type TransactionPayload struct {
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Category  string  `json:"category"`
	Source    string  `json:"source"`
}

// CommandResult is the immutable output of interpreting one utterance.
// Message is always non-empty; it is what gets spoken back to the user.
// TargetView is set only for ActionNavigate, Transaction only for
// ActionTransaction.
type CommandResult struct {
	Action      CommandAction       `json:"action"`
	Message     string              `json:"message"`
	TargetView  string              `json:"targetView,omitempty"`
	Transaction *TransactionPayload `json:"transaction,omitempty"`
}

// LedgerEntry is one recorded transaction.
type LedgerEntry struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Description string    `json:"description"`
	Recipient   string    `json:"recipient"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Source      string    `json:"source"`
}

// Status summarizes the current session status for the host.
type Status struct {
	State       SessionState `json:"state"`
	Active      bool         `json:"active"`
	LastMessage string       `json:"lastMessage,omitempty"`
}
