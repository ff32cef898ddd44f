package bootstrap

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	"speakcheck/internal/audio"
	"speakcheck/internal/config"
	"speakcheck/internal/ports"
	"speakcheck/internal/providers/scoring"
	"speakcheck/internal/rules"
	"speakcheck/internal/store"
	"speakcheck/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Store      ports.ResultStore
	// Archive is nil when no archive directory is configured.
	Archive ports.ResultArchive
	Config  config.Config

	closers []io.Closer
}

// Close releases external connections.
func (s Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Build wires all backend dependencies for the given configuration.
func Build(cfg config.Config, logger zerolog.Logger, eventSink ports.EventSink) (Services, error) {
	normalizer, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}
	logger.Info().Str("rules", cfg.Rules.Path).Int("count", normalizer.Len()).Msg("phrase rules loaded")

	services := Services{Config: cfg}

	if cfg.Handoff.RedisURL != "" {
		redisStore, err := store.NewRedisStore(cfg.Handoff.RedisURL, cfg.Handoff.Key, cfg.Handoff.TTL, logger)
		if err != nil {
			return Services{}, err
		}
		services.Store = redisStore
		services.closers = append(services.closers, redisStore)
	} else {
		services.Store = store.NewMemoryStore()
	}

	if cfg.Archive.Dir != "" {
		services.Archive = store.NewFileArchive(cfg.Archive.Dir)
		logger.Info().Str("dir", cfg.Archive.Dir).Msg("archiving results")
	}

	services.Controller = usecase.NewSessionController(
		audio.NewFFMPEGDevice(cfg.Audio.RecorderCommand),
		scoring.NewClient(scoring.Config{
			BaseURL:    cfg.Scoring.BaseURL,
			PhrasePath: cfg.Scoring.PhrasePath,
			PromptPath: cfg.Scoring.PromptPath,
			Timeout:    cfg.Scoring.Timeout,
		}, logger.With().Str("component", "scoring").Logger()),
		services.Store,
		services.Archive,
		normalizer,
		eventSink,
		logger.With().Str("component", "session").Logger(),
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Encoding:    "s16le",
			MaxDuration: cfg.Session.MaxDuration,
			ChunkSize:   cfg.Session.ChunkSize,
			Language:    cfg.Scoring.Language,
		},
	)

	return services, nil
}
