package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"speakcheck/internal/domain"
	"speakcheck/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrSessionActive   = errors.New("a recording session is already in progress")
	ErrMissingPhrase   = errors.New("missing 'phrase'")
	ErrUnknownMode     = errors.New("unknown assessment mode")
)

// Config controls recording and upload behavior.
type Config struct {
	Audio       ports.AudioConfig
	Encoding    string
	MaxDuration time.Duration
	ChunkSize   int
	Language    string
}

// StartRequest is what the page submits when the record button is pressed.
type StartRequest struct {
	Mode     domain.Mode   `json:"mode"`
	Language string        `json:"language"`
	Phrase   string        `json:"phrase"`
	Prompt   domain.Prompt `json:"prompt"`
}

// SessionController drives one recording session at a time through capture, upload and handoff.
type SessionController struct {
	device     ports.CaptureDevice
	normalizer ports.PhraseNormalizer
	events     ports.EventSink
	finalizer  resultFinalizer
	cfg        Config
	log        zerolog.Logger
	newID      func() string

	mu       sync.Mutex
	current  *RecordingSession
	phase    domain.Phase
	message  string
	resultID string
	uploads  sync.WaitGroup
}

func NewSessionController(
	device ports.CaptureDevice,
	scorer ports.Scorer,
	store ports.ResultStore,
	archive ports.ResultArchive,
	normalizer ports.PhraseNormalizer,
	events ports.EventSink,
	logger zerolog.Logger,
	cfg Config,
) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "en-US"
	}
	return &SessionController{
		device:     device,
		normalizer: normalizer,
		events:     events,
		finalizer:  newResultFinalizer(scorer, store, archive, events),
		cfg:        cfg,
		log:        logger,
		newID:      func() string { return ulid.Make().String() },
		phase:      domain.PhaseIdle,
	}
}

// Start begins a new capture. ctx must outlive the recording and its upload.
func (c *SessionController) Start(ctx context.Context, req StartRequest) error {
	score, err := c.prepare(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrSessionActive
	}

	var session *RecordingSession
	session = NewRecordingSession(c.device, SessionOptions{
		ID:            c.newID(),
		Audio:         c.cfg.Audio,
		Encoding:      c.cfg.Encoding,
		MaxDuration:   c.cfg.MaxDuration,
		ChunkSize:     c.cfg.ChunkSize,
		OnStateChange: c.events.SessionStateChanged,
		OnError:       c.events.SessionError,
		OnFinished: func(artifact domain.Artifact) {
			c.handleFinished(ctx, session, score, artifact)
		},
	})
	c.current = session
	c.phase = domain.PhaseRecording
	c.message = ""
	c.resultID = ""
	c.uploads.Add(1)
	c.mu.Unlock()

	c.log.Info().Str("session", session.ID()).Str("mode", string(score.Mode)).Str("language", score.Language).Msg("recording requested")

	if err := session.Start(ctx); err != nil {
		c.uploads.Done()
		code := domain.ErrorCodeDeviceUnavailable
		if errors.Is(err, domain.ErrPermissionDenied) {
			code = domain.ErrorCodePermissionDenied
		}
		c.setOutcome(session, domain.PhaseError, err.Error(), "")
		c.events.SessionError(code, err.Error())
		c.log.Warn().Err(err).Str("session", session.ID()).Msg("capture acquisition failed")
		return err
	}
	return nil
}

// Stop ends the current recording. Repeated calls are no-ops.
func (c *SessionController) Stop(_ context.Context) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return ErrNoActiveSession
	}
	if current.Stop() {
		c.log.Info().Str("session", current.ID()).Msg("recording stopped")
	}
	return nil
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return domain.Status{
			State:    domain.SessionStateIdle,
			Phase:    domain.PhaseIdle,
			Controls: domain.Controls{CanRecord: true},
		}
	}

	state := c.current.State()
	status := domain.Status{
		SessionID:      c.current.ID(),
		State:          state,
		Phase:          c.phase,
		Message:        c.message,
		ElapsedSeconds: c.current.Elapsed(),
		ResultID:       c.resultID,
	}
	switch state {
	case domain.SessionStateAcquiring, domain.SessionStateStopping:
		status.Phase = domain.PhaseRecording
	case domain.SessionStateRecording:
		status.Phase = domain.PhaseRecording
		status.Controls.CanStop = true
	case domain.SessionStateFailed:
		status.Phase = domain.PhaseError
		status.Controls.CanRecord = true
	case domain.SessionStateFinished:
		if c.phase == domain.PhaseRecording {
			status.Phase = domain.PhaseUploading
		}
		status.Controls.CanRecord = c.phase == domain.PhaseReady || c.phase == domain.PhaseError
	}
	return status
}

// Wait blocks until in-flight sessions have been uploaded or have failed.
func (c *SessionController) Wait() {
	c.uploads.Wait()
}

func (c *SessionController) prepare(req StartRequest) (ports.ScoreRequest, error) {
	if req.Mode == "" {
		req.Mode = domain.ModePrompt
	}
	if !req.Mode.Valid() {
		return ports.ScoreRequest{}, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = c.cfg.Language
	}

	phrase := strings.TrimSpace(req.Phrase)
	if req.Mode == domain.ModePhrase {
		if c.normalizer != nil && phrase != "" {
			normalized, err := c.normalizer.Normalize(phrase)
			if err != nil {
				c.events.SessionError(domain.ErrorCodeRules, err.Error())
				return ports.ScoreRequest{}, fmt.Errorf("normalize phrase: %w", err)
			}
			phrase = normalized
		}
		if phrase == "" {
			return ports.ScoreRequest{}, ErrMissingPhrase
		}
	} else {
		phrase = ""
	}

	return ports.ScoreRequest{
		Mode:     req.Mode,
		Language: language,
		Phrase:   phrase,
		Prompt:   req.Prompt,
	}, nil
}

func (c *SessionController) busyLocked() bool {
	if c.current == nil {
		return false
	}
	if !c.current.State().Terminal() {
		return true
	}
	// A finished session stays busy until its upload has settled.
	return c.phase != domain.PhaseReady && c.phase != domain.PhaseError
}

func (c *SessionController) handleFinished(ctx context.Context, session *RecordingSession, req ports.ScoreRequest, artifact domain.Artifact) {
	c.setOutcome(session, domain.PhaseUploading, "", "")
	c.events.SessionStateChanged(domain.SessionStateFinished, domain.SessionReasonUploading)

	go func() {
		defer c.uploads.Done()

		if artifact.Size == 0 {
			c.setOutcome(session, domain.PhaseError, "No audio captured. Try again.", "")
			c.events.SessionStateChanged(domain.SessionStateFinished, domain.SessionReasonNoAudio)
			return
		}

		req.Artifact = artifact
		started := time.Now()
		resultID, reason, err := c.finalizer.Finalize(ctx, req)
		if err != nil {
			c.log.Error().Err(err).Str("session", session.ID()).Str("reason", string(reason)).Msg("scoring failed")
			c.setOutcome(session, domain.PhaseError, err.Error(), resultID)
			c.events.SessionStateChanged(domain.SessionStateFinished, reason)
			return
		}

		c.log.Info().
			Str("session", session.ID()).
			Str("result", resultID).
			Int("bytes", artifact.Size).
			Int("seconds", artifact.DurationSeconds).
			Dur("elapsed", time.Since(started)).
			Msg("report ready")
		c.setOutcome(session, domain.PhaseReady, "", resultID)
		c.events.SessionStateChanged(domain.SessionStateFinished, reason)
	}()
}

func (c *SessionController) setOutcome(session *RecordingSession, phase domain.Phase, message string, resultID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != session {
		return
	}
	c.phase = phase
	c.message = message
	c.resultID = resultID
}
