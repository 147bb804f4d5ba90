package synth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestSpeakerSpeaksText(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "spoken.txt")
	script := writeScript(t, "tts.sh", "#!/usr/bin/env bash\ncat > "+out+"\n")
	speaker := NewSpeaker(script, nil, nil)

	if err := speaker.Speak(context.Background(), "Navigating to dashboard."); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !strings.Contains(string(data), "Navigating to dashboard.") {
		t.Fatalf("unexpected spoken text: %q", string(data))
	}
}

func TestSpeakerEmptyTextIsNoop(t *testing.T) {
	t.Parallel()

	speaker := NewSpeaker("/nonexistent/tts", nil, nil)
	if err := speaker.Speak(context.Background(), "   "); err != nil {
		t.Fatalf("expected no-op for empty text, got %v", err)
	}
}

func TestSpeakerMissingCommandFails(t *testing.T) {
	t.Parallel()

	speaker := NewSpeaker("/nonexistent/tts", nil, nil)
	if err := speaker.Speak(context.Background(), "hello"); err == nil {
		t.Fatalf("expected start failure")
	}
}

func TestSpeakerContextCancellation(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "slow.sh", "#!/usr/bin/env bash\ncat > /dev/null\nsleep 5\n")
	speaker := NewSpeaker(script, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := speaker.Speak(ctx, "hello")
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("cancellation took too long")
	}
}

func TestSpeakerCancelAllInterruptsPlayback(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "slow.sh", "#!/usr/bin/env bash\ncat > /dev/null\nexec sleep 5\n")
	speaker := NewSpeaker(script, nil, nil)

	done := make(chan error, 1)
	go func() {
		done <- speaker.Speak(context.Background(), "hello")
	}()

	time.Sleep(100 * time.Millisecond)
	speaker.CancelAll()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected interrupted playback to report nil, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("speak did not return after CancelAll")
	}
}

func TestNullSynthesizer(t *testing.T) {
	t.Parallel()

	var n Null
	if err := n.Speak(context.Background(), "anything"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n.CancelAll()
}
