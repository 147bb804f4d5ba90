// voicedesk runs the voice command session daemon for the finance dashboard.
// It owns the session controller and exposes a small line-based console:
// open, close, status, quit, and anything else is submitted as an utterance.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"voicedesk/internal/bootstrap"
	"voicedesk/internal/domain"
	"voicedesk/internal/ports"
	"voicedesk/internal/usecase"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "env file path")
	logLevel := cli.StringP("log", "l", "info", "log level (debug, info, warn, error)")
	cli.Parse()

	_ = godotenv.Load(*envFile)

	log, err := buildLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	sink := &consoleSink{log: log.Named("session")}
	services, err := bootstrap.Build(sink, &consoleNavigator{log: log.Named("navigator")}, log)
	if err != nil {
		sink.SessionError(domain.ErrorCodeStartup, err.Error())
		log.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer services.Ledger.Close()

	log.Info("voicedesk ready",
		zap.String("model", services.Config.Deepgram.Model),
		zap.String("ledger", services.Config.Ledger.Path),
		zap.String("rules", services.Config.Rules.Path),
	)

	run(services.Controller, sink, log)
}

func run(controller *usecase.SessionController, sink *consoleSink, log *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		_ = controller.Close()
		os.Exit(0)
	}()

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: open | close | status | quit, anything else is an utterance")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			_ = controller.Close()
			return
		case "open":
			if err := controller.Open(ctx); err != nil {
				log.Warn("open failed", zap.Error(err))
			}
		case "close":
			if err := controller.Close(); err != nil {
				log.Warn("close failed", zap.Error(err))
			}
		case "status":
			status := controller.Status()
			fmt.Printf("state=%s active=%t message=%q\n", status.State, status.Active, status.LastMessage)
		default:
			if err := controller.SubmitUtterance(line); err != nil {
				log.Warn("utterance rejected", zap.Error(err))
			}
		}
	}

	_ = controller.Close()
}

func buildLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	return cfg.Build()
}

// consoleSink renders session events for the terminal surface.
type consoleSink struct {
	log *zap.Logger
}

var _ ports.EventSink = (*consoleSink)(nil)

func (s *consoleSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.log.Info("session state changed",
		zap.String("state", string(state)),
		zap.String("reason", string(reason)),
	)
	if message := sessionReasonMessage(reason); message != "" {
		fmt.Println(message)
	}
}

func (s *consoleSink) InterimTranscript(text string) {
	fmt.Printf("... %s\r", text)
}

func (s *consoleSink) CommandInterpreted(result domain.CommandResult) {
	s.log.Debug("command interpreted",
		zap.String("action", string(result.Action)),
		zap.String("view", result.TargetView),
	)
	if result.Message != "" {
		fmt.Println(result.Message)
	}
}

func (s *consoleSink) SessionError(code domain.ErrorCode, detail string) {
	s.log.Warn("session error",
		zap.String("code", string(code)),
		zap.String("detail", detail),
	)
	fmt.Println(errorMessage(code, detail))
}

type consoleNavigator struct {
	log *zap.Logger
}

func (n *consoleNavigator) NavigateTo(view string) {
	n.log.Info("navigating", zap.String("view", view))
	fmt.Printf("-> %s\n", view)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonOpened:
		return "Listening..."
	case domain.SessionReasonInterpreting:
		return "Working on it..."
	case domain.SessionReasonAwaitingUtterance:
		return "Listening..."
	case domain.SessionReasonNavigated, domain.SessionReasonTransactionLogged:
		return "Done."
	case domain.SessionReasonRestarted:
		return "Let's try that again. Listening..."
	case domain.SessionReasonClosed:
		return "Session closed."
	case domain.SessionReasonCaptureUnavailable:
		return "Voice capture is not available on this system."
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Voice capture failed"
	case domain.ErrorCodePlayback:
		return "Audio playback failed"
	case domain.ErrorCodeLedger:
		return "Could not record the transaction"
	case domain.ErrorCodeRules:
		return "Transcript rules failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
