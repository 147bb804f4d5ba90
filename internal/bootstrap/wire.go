package bootstrap

import (
	"go.uber.org/zap"

	"voicedesk/internal/audio"
	"voicedesk/internal/config"
	"voicedesk/internal/interpret"
	"voicedesk/internal/ledger"
	"voicedesk/internal/ports"
	"voicedesk/internal/providers/deepgram"
	"voicedesk/internal/rules"
	"voicedesk/internal/synth"
	"voicedesk/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Ledger     *ledger.Store
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime. The event
// sink and navigator come from the host surface, everything else from
// configuration.
func Build(eventSink ports.EventSink, navigator ports.Navigator, log *zap.Logger) (Services, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	views, err := interpret.LoadViewRegistry(cfg.Views.Path)
	if err != nil {
		return Services{}, err
	}

	store, err := ledger.Open(cfg.Ledger.Path, log.Named("ledger"))
	if err != nil {
		return Services{}, err
	}

	mic := audio.NewMic(audio.Config{
		Command:     cfg.Audio.RecorderCommand,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
	})

	capture := deepgram.NewCapture(deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		APIBaseURL:  cfg.Deepgram.APIBaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Deepgram.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		ChunkSize:   cfg.Audio.ChunkSize,
	}, mic, log.Named("deepgram"))

	var speaker ports.Synthesizer
	if cfg.Synth.Enabled {
		speaker = synth.NewSpeaker(cfg.Synth.Command, nil, log.Named("synth"))
	} else {
		speaker = synth.Null{}
	}

	controller := usecase.NewSessionController(
		capture,
		speaker,
		interpret.New(views),
		rulesEngine,
		store,
		navigator,
		eventSink,
		usecase.Config{
			RestartDelay: cfg.Session.RestartDelay,
			RecentLimit:  cfg.Session.RecentLimit,
		},
		log.Named("session"),
	)

	return Services{Controller: controller, Ledger: store, Config: cfg}, nil
}
