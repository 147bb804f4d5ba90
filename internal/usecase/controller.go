// Package usecase contains the voice command session state machine.
package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicedesk/internal/domain"
	"voicedesk/internal/ports"
)

var (
	ErrSessionActive = errors.New("voice session is already open")
	ErrNotListening  = errors.New("voice session is not listening")
)

// Config controls session timing and query behavior.
type Config struct {
	// RestartDelay is how long the session sits in the error state before
	// automatically listening again after a failed command.
	RestartDelay time.Duration
	// RecentLimit bounds how many ledger entries queries read.
	RecentLimit int
}

// SessionController coordinates speech capture, interpretation, and playback
// for one voice session. Exactly one SessionState is active at a time; every
// asynchronous callback re-checks the session generation before applying a
// transition, so events arriving after close or restart are dropped.
type SessionController struct {
	capture ports.SpeechCapture
	synth   ports.Synthesizer
	interp  ports.CommandInterpreter
	rules   ports.RulesEngine
	ledger  ports.Ledger
	nav     ports.Navigator
	events  ports.EventSink
	cfg     Config
	log     *zap.Logger

	mu          sync.Mutex
	state       domain.SessionState
	generation  uint64
	ctx         context.Context
	cancel      context.CancelFunc
	buffer      string
	lastMessage string

	captureSession ports.CaptureSession
	speakCancel    context.CancelFunc
	restartTimer   *time.Timer
}

func NewSessionController(
	capture ports.SpeechCapture,
	synth ports.Synthesizer,
	interp ports.CommandInterpreter,
	rules ports.RulesEngine,
	ledger ports.Ledger,
	nav ports.Navigator,
	events ports.EventSink,
	cfg Config,
	log *zap.Logger,
) *SessionController {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionController{
		capture: capture,
		synth:   synth,
		interp:  interp,
		rules:   rules,
		ledger:  ledger,
		nav:     nav,
		events:  events,
		cfg:     cfg,
		log:     log,
		state:   domain.SessionStateIdle,
	}
}

// Open starts a new session and begins listening.
func (c *SessionController) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.SessionStateIdle {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.generation++
	gen := c.generation
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	return c.beginListening(gen, domain.SessionReasonOpened)
}

// Close stops capture, cancels playback and pending timers, and returns the
// session to idle. Late callbacks from the closed session are dropped.
func (c *SessionController) Close() error {
	c.mu.Lock()
	if c.state == domain.SessionStateIdle {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	c.mu.Unlock()

	c.finish(gen, domain.SessionReasonClosed)
	return nil
}

// SubmitUtterance feeds text into the session as if it were a final
// transcript, for programmatic invocation without a microphone.
func (c *SessionController) SubmitUtterance(text string) error {
	c.mu.Lock()
	if c.state != domain.SessionStateListening {
		c.mu.Unlock()
		return ErrNotListening
	}
	gen := c.generation
	c.mu.Unlock()

	c.handleFinal(gen, text)
	return nil
}

// Status reports the current session state and the last spoken message.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:       c.state,
		Active:      c.state != domain.SessionStateIdle,
		LastMessage: c.lastMessage,
	}
}

// beginListening clears the transcript buffer and starts speech capture. A
// transient start failure rolls back to idle; an unsupported platform puts
// the session into a sticky error state.
func (c *SessionController) beginListening(gen uint64, reason domain.SessionStateReason) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	c.buffer = ""
	c.state = domain.SessionStateListening
	ctx := c.ctx
	c.mu.Unlock()
	c.events.SessionStateChanged(domain.SessionStateListening, reason)

	session, err := c.capture.Start(ctx)
	if err != nil {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return err
		}
		if errors.Is(err, ports.ErrCaptureUnsupported) {
			c.state = domain.SessionStateError
			c.mu.Unlock()
			c.events.SessionError(domain.ErrorCodeCapture, err.Error())
			c.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonCaptureUnavailable)
			return err
		}
		c.state = domain.SessionStateIdle
		cancel := c.cancel
		c.cancel = nil
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		c.log.Warn("speech capture failed to start", zap.Error(err))
		c.events.SessionError(domain.ErrorCodeCapture, err.Error())
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonCaptureStartFailed)
		return err
	}

	c.mu.Lock()
	if gen != c.generation || c.state != domain.SessionStateListening {
		c.mu.Unlock()
		_ = session.Stop()
		return nil
	}
	c.captureSession = session
	c.mu.Unlock()

	go c.consumeCapture(gen, session)
	return nil
}

func (c *SessionController) consumeCapture(gen uint64, session ports.CaptureSession) {
	for event := range session.Events() {
		switch event.Kind {
		case domain.TranscriptKindInterim:
			c.handleInterim(gen, event.Text)
		case domain.TranscriptKindFinal:
			c.handleFinal(gen, event.Text)
		}
	}
	if err := session.Err(); err != nil {
		c.handleCaptureFatal(gen, err)
	}
}

func (c *SessionController) handleInterim(gen uint64, text string) {
	c.mu.Lock()
	if gen != c.generation || c.state != domain.SessionStateListening {
		c.mu.Unlock()
		return
	}
	c.buffer = text
	c.mu.Unlock()
	c.events.InterimTranscript(text)
}

// handleFinal drives the listening -> processing -> speaking transition. The
// interpreter runs exactly once per finalized transcript.
func (c *SessionController) handleFinal(gen uint64, text string) {
	c.mu.Lock()
	if gen != c.generation || c.state != domain.SessionStateListening {
		c.mu.Unlock()
		return
	}
	if text == "" {
		text = c.buffer
	}
	session := c.captureSession
	c.captureSession = nil
	c.state = domain.SessionStateProcessing
	ctx := c.ctx
	c.mu.Unlock()
	c.events.SessionStateChanged(domain.SessionStateProcessing, domain.SessionReasonInterpreting)

	if session != nil {
		_ = session.Stop()
	}

	result := c.interpretOnce(ctx, text)
	c.events.CommandInterpreted(result)
	c.startSpeaking(gen, result)
}

func (c *SessionController) interpretOnce(ctx context.Context, text string) domain.CommandResult {
	utterance := text
	if c.rules != nil {
		fixed, err := c.rules.Apply(text)
		if err != nil {
			c.log.Warn("transcript rules failed, using raw transcript", zap.Error(err))
			c.events.SessionError(domain.ErrorCodeRules, err.Error())
		} else {
			utterance = fixed
		}
	}

	sctx := ports.SessionContext{
		Ledger:      c.ledger,
		Navigate:    c.nav,
		RecentLimit: c.cfg.RecentLimit,
	}
	result := c.interp.Interpret(ctx, utterance, sctx)

	// The single ledger write for this utterance. The interpreter only
	// produces the payload; it never writes.
	if result.Action == domain.ActionTransaction && result.Transaction != nil {
		if err := c.appendTransaction(ctx, utterance, result.Transaction); err != nil {
			c.events.SessionError(domain.ErrorCodeLedger, err.Error())
			return domain.CommandResult{
				Action:  domain.ActionError,
				Message: "The payment was understood but could not be recorded.",
			}
		}
	}
	return result
}

func (c *SessionController) appendTransaction(ctx context.Context, utterance string, payload *domain.TransactionPayload) error {
	if c.ledger == nil {
		return errors.New("no ledger configured")
	}
	return c.ledger.Append(ctx, domain.LedgerEntry{
		Description: utterance,
		Recipient:   payload.Recipient,
		Amount:      payload.Amount,
		Category:    payload.Category,
		Source:      payload.Source,
	})
}

func (c *SessionController) startSpeaking(gen uint64, result domain.CommandResult) {
	c.mu.Lock()
	if gen != c.generation || c.state != domain.SessionStateProcessing {
		c.mu.Unlock()
		return
	}
	speakCtx, cancel := context.WithCancel(c.ctx)
	c.speakCancel = cancel
	c.lastMessage = result.Message
	c.state = domain.SessionStateSpeaking
	c.mu.Unlock()
	c.events.SessionStateChanged(domain.SessionStateSpeaking, domain.SessionReasonSpeaking)

	go func() {
		err := c.synth.Speak(speakCtx, result.Message)
		cancel()
		c.onPlaybackDone(gen, result, err)
	}()
}

// onPlaybackDone applies the transition that depends on the spoken result's
// action kind.
func (c *SessionController) onPlaybackDone(gen uint64, result domain.CommandResult, playErr error) {
	c.mu.Lock()
	if gen != c.generation || c.state != domain.SessionStateSpeaking {
		c.mu.Unlock()
		return
	}
	c.speakCancel = nil

	if playErr != nil && !errors.Is(playErr, context.Canceled) {
		// Fatal to this utterance, not to the session. The failure text is
		// recorded but not spoken back.
		c.state = domain.SessionStateError
		c.scheduleRestartLocked(gen)
		c.mu.Unlock()
		c.log.Warn("speech playback failed", zap.Error(playErr))
		c.events.SessionError(domain.ErrorCodePlayback, playErr.Error())
		c.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonPlaybackFailed)
		return
	}
	c.mu.Unlock()

	switch result.Action {
	case domain.ActionNavigate:
		if c.nav != nil {
			c.nav.NavigateTo(result.TargetView)
		}
		c.finish(gen, domain.SessionReasonNavigated)
	case domain.ActionTransaction:
		c.finish(gen, domain.SessionReasonTransactionLogged)
	case domain.ActionError:
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.state = domain.SessionStateError
		c.scheduleRestartLocked(gen)
		c.mu.Unlock()
		c.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonCommandFailed)
	default:
		// Queries and no-ops keep the session open for the next utterance.
		_ = c.beginListening(gen, domain.SessionReasonAwaitingUtterance)
	}
}

func (c *SessionController) scheduleRestartLocked(gen uint64) {
	c.restartTimer = time.AfterFunc(c.cfg.RestartDelay, func() {
		c.onRestartTimer(gen)
	})
}

func (c *SessionController) onRestartTimer(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.state != domain.SessionStateError {
		c.mu.Unlock()
		return
	}
	c.restartTimer = nil
	c.mu.Unlock()
	_ = c.beginListening(gen, domain.SessionReasonRestarted)
}

// handleCaptureFatal handles capture sessions that ended on their own with an
// error. The session goes sticky: no auto-restart, an explicit close and
// reopen is required.
func (c *SessionController) handleCaptureFatal(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.captureSession = nil
	c.state = domain.SessionStateError
	c.mu.Unlock()
	c.log.Error("speech capture failed", zap.Error(err))
	c.events.SessionError(domain.ErrorCodeCapture, err.Error())
	c.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonCaptureUnavailable)
}

// finish tears the session down: stop capture, cancel playback, cancel the
// restart timer, then go idle. Bumping the generation first makes any still
// in-flight callback a no-op.
func (c *SessionController) finish(gen uint64, reason domain.SessionStateReason) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.generation++
	session := c.captureSession
	c.captureSession = nil
	speakCancel := c.speakCancel
	c.speakCancel = nil
	timer := c.restartTimer
	c.restartTimer = nil
	cancel := c.cancel
	c.cancel = nil
	c.state = domain.SessionStateIdle
	c.buffer = ""
	c.mu.Unlock()

	if session != nil {
		_ = session.Stop()
	}
	if speakCancel != nil {
		speakCancel()
	}
	c.synth.CancelAll()
	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	c.events.SessionStateChanged(domain.SessionStateIdle, reason)
}
