// Package deepgram implements speech capture over the Deepgram streaming
// transcription websocket, fed by a local microphone source.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voicedesk/internal/domain"
	"voicedesk/internal/ports"
)

// MicSource produces raw PCM audio for one capture session.
type MicSource interface {
	Start(ctx context.Context) (io.ReadCloser, error)
}

// Config controls the Deepgram websocket connection and audio framing.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool

	Encoding   string
	SampleRate int
	Channels   int
	ChunkSize  int
}

// Capture implements ports.SpeechCapture.
type Capture struct {
	cfg Config
	mic MicSource
	log *zap.Logger
}

func NewCapture(cfg Config, mic MicSource, log *zap.Logger) *Capture {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Capture{cfg: cfg, mic: mic, log: log}
}

// Start connects to Deepgram and begins streaming microphone audio. A missing
// API key or microphone source means capture cannot work on this host at all,
// which is reported as ports.ErrCaptureUnsupported.
func (c *Capture) Start(ctx context.Context) (ports.CaptureSession, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: DEEPGRAM_API_KEY is not configured", ports.ErrCaptureUnsupported)
	}
	if c.mic == nil {
		return nil, fmt.Errorf("%w: no microphone source configured", ports.ErrCaptureUnsupported)
	}

	wsURL, err := buildListenURL(c.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	mic, err := c.mic.Start(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to start microphone capture: %w", err)
	}

	session := &captureSession{
		conn:   conn,
		mic:    mic,
		log:    c.log,
		events: make(chan domain.TranscriptEvent, 64),
		audio:  make(chan []byte, 32),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	// Only the websocket loops gate done. The pump can be blocked in a mic
	// read or a send to a full audio buffer; it is released through the stop
	// channel rather than waited on, so teardown never depends on it.
	session.wg.Add(2)
	go session.pumpLoop(c.cfg.ChunkSize)
	go session.writeLoop()
	go session.readLoop()
	go func() {
		session.wg.Wait()
		session.signalStop()
		_ = conn.Close()
		_ = mic.Close()
		close(session.events)
		close(session.done)
	}()

	go func() {
		<-ctx.Done()
		_ = session.Stop()
	}()

	c.log.Debug("deepgram capture started", zap.String("model", c.cfg.Model))
	return session, nil
}

type captureSession struct {
	conn *websocket.Conn
	mic  io.ReadCloser
	log  *zap.Logger

	events chan domain.TranscriptEvent
	audio  chan []byte
	stop   chan struct{}
	done   chan struct{}

	wg sync.WaitGroup

	errMu   sync.Mutex
	err     error
	stopped bool

	stopOnce   sync.Once
	signalOnce sync.Once
}

func (s *captureSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

// Stop tears the session down deliberately. The stopped flag goes up first so
// the teardown noise from closing the mic and the socket is never reported as
// a fatal session error.
func (s *captureSession) Stop() error {
	s.stopOnce.Do(func() {
		s.errMu.Lock()
		s.stopped = true
		s.errMu.Unlock()
		s.signalStop()
		_ = s.mic.Close()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *captureSession) signalStop() {
	s.signalOnce.Do(func() { close(s.stop) })
}

// Err reports the first fatal transport error, or nil when the session was
// stopped deliberately. Valid once the events channel has closed.
func (s *captureSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.stopped {
		return nil
	}
	return s.err
}

func (s *captureSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// pumpLoop reads PCM chunks from the microphone and queues them for the
// websocket writer. EOF from the mic ends the audio stream cleanly; the stop
// channel releases a send blocked on a full buffer once the writer is gone.
func (s *captureSession) pumpLoop(chunkSize int) {
	defer close(s.audio)

	buf := make([]byte, chunkSize)
	for {
		n, err := s.mic.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case s.audio <- chunk:
			case <-s.stop:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.setErr(fmt.Errorf("microphone read failed: %w", err))
			}
			return
		}
	}
}

// writeLoop owns all websocket writes. The CloseStream marker goes out after
// the audio channel drains so it never races a binary frame.
func (s *captureSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *captureSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read transcription event: %w", err))
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}

		event := domain.TranscriptEvent{Text: transcript, Kind: domain.TranscriptKindInterim}
		if response.IsFinal || response.SpeechFinal {
			event.Kind = domain.TranscriptKindFinal
		}
		s.emit(event)
	}
}

// emit delivers a transcript event. Finals block until the consumer takes
// them so an utterance cannot be lost under load; interims are disposable and
// are dropped when the buffer is full.
func (s *captureSession) emit(event domain.TranscriptEvent) {
	if event.Kind == domain.TranscriptKindFinal {
		select {
		case s.events <- event:
		case <-s.stop:
		}
		return
	}
	select {
	case s.events <- event:
	default:
		s.log.Warn("dropping interim transcript, consumer too slow")
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", cfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", cfg.Channels))
	query.Set("interim_results", "true")
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
