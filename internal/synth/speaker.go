// Package synth plays spoken feedback through an external text-to-speech
// command such as espeak-ng.
package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Speaker implements ports.Synthesizer by piping text into a TTS command.
// One process per Speak call; CancelAll interrupts whatever is playing.
type Speaker struct {
	command string
	args    []string
	log     *zap.Logger

	mu     sync.Mutex
	active map[*os.Process]struct{}
}

func NewSpeaker(command string, args []string, log *zap.Logger) *Speaker {
	if command == "" {
		command = "espeak-ng"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Speaker{
		command: command,
		args:    args,
		log:     log,
		active:  make(map[*os.Process]struct{}),
	}
}

// Speak synthesizes text and blocks until playback finishes, the context is
// cancelled, or CancelAll interrupts the process.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = strings.NewReader(text)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start speech synthesis: %w", err)
	}

	s.mu.Lock()
	s.active[cmd.Process] = struct{}{}
	s.mu.Unlock()

	err := cmd.Wait()

	s.mu.Lock()
	delete(s.active, cmd.Process)
	s.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
			// Interrupted by CancelAll.
			return nil
		}
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	return nil
}

// CancelAll interrupts every in-flight synthesis process.
func (s *Speaker) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for process := range s.active {
		if err := process.Signal(os.Interrupt); err != nil {
			s.log.Debug("failed to interrupt synthesis process", zap.Error(err))
		}
	}
}

// Null is a Synthesizer that discards all speech. Used when the host has no
// audio output or synthesis is disabled.
type Null struct{}

func (Null) Speak(_ context.Context, _ string) error { return nil }
func (Null) CancelAll()                              {}
