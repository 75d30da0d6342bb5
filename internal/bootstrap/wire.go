package bootstrap

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"dictation/internal/audio"
	"dictation/internal/config"
	"dictation/internal/domain"
	"dictation/internal/logging"
	"dictation/internal/ports"
	"dictation/internal/providers/azure"
	"dictation/internal/providers/deepgram"
	"dictation/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config  config.Config
	Logger  *logrus.Logger
	Factory ports.EngineFactory
}

// Build loads configuration from path (or the environment) and wires the
// engine factory selected by engine.backend.
func Build(path string) (Services, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return Services{}, err
	}

	logger := logging.NewLogger(cfg.Log)
	factory, err := newFactory(cfg, logger)
	if err != nil {
		return Services{}, err
	}

	logger.WithField("backend", cfg.Engine.Backend).Debug("engine factory ready")
	return Services{Config: cfg, Logger: logger, Factory: factory}, nil
}

func newFactory(cfg config.Config, logger *logrus.Logger) (ports.EngineFactory, error) {
	entry := logger.WithField("component", "engine")

	switch cfg.Engine.Backend {
	case config.BackendDeepgram:
		return deepgram.NewFactory(
			deepgram.NewProvider(deepgram.Config{
				APIKey:           cfg.Deepgram.APIKey,
				APIBaseURL:       cfg.Deepgram.APIBaseURL,
				Model:            cfg.Deepgram.Model,
				Language:         cfg.Deepgram.Language,
				SmartFormat:      cfg.Deepgram.SmartFormat,
				HandshakeTimeout: cfg.Session.StartTimeout,
			}),
			audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
			deepgram.EngineConfig{
				Audio: ports.AudioConfig{
					SampleRate:  cfg.Audio.SampleRate,
					Channels:    cfg.Audio.Channels,
					InputFormat: cfg.Audio.InputFormat,
					InputDevice: cfg.Audio.InputDevice,
				},
				Streaming: ports.StreamingConfig{
					SampleRate:     cfg.Audio.SampleRate,
					Channels:       cfg.Audio.Channels,
					Encoding:       "linear16",
					InterimResults: true,
				},
				ChunkSize:      cfg.Session.ChunkSize,
				StreamingGrace: cfg.Session.StreamingGrace,
				Logger:         entry,
			},
		), nil
	case config.BackendAzure:
		return azure.NewFactory(azure.Config{
			SubscriptionKey: cfg.Azure.SubscriptionKey,
			Region:          cfg.Azure.Region,
			Language:        cfg.Azure.Language,
			StartTimeout:    cfg.Session.StartTimeout,
			Logger:          entry,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported engine backend %q", cfg.Engine.Backend)
	}
}

// NewSession creates a dictation session on a fresh engine. Configured
// grammar phrases replace the default dictation grammar.
func (s Services) NewSession() (*usecase.DictationSession, error) {
	sessionCfg := usecase.Config{Logger: s.Logger.WithField("component", "session")}

	if len(s.Config.Session.GrammarPhrases) == 0 {
		return usecase.NewDictationSession(s.Factory, sessionCfg)
	}
	grammar := domain.NewPhraseGrammar("configured", s.Config.Session.GrammarPhrases...)
	return usecase.NewDictationSessionWithGrammar(s.Factory, grammar, sessionCfg)
}
