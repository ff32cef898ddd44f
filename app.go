package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"speakcheck/internal/bootstrap"
	"speakcheck/internal/config"
	"speakcheck/internal/domain"
	"speakcheck/internal/ports"
	"speakcheck/internal/report"
	"speakcheck/internal/server"
	"speakcheck/internal/usecase"
)

const (
	eventSession = "session"
	eventError   = "error"
	eventReport  = "report"
)

type broadcaster interface {
	Broadcast(ev server.Event)
}

// App is the backend facade driven by the HTTP surface. It is also the session event sink.
type App struct {
	events broadcaster
	log    zerolog.Logger
	now    func() time.Time

	controller *usecase.SessionController
	store      ports.ResultStore
	archive    ports.ResultArchive
	cfg        config.Config
	bootErr    error
}

func NewApp(events broadcaster, logger zerolog.Logger) *App {
	return &App{events: events, log: logger, now: time.Now}
}

func (a *App) startup(cfg config.Config) (bootstrap.Services, error) {
	services, err := bootstrap.Build(cfg, a.log, a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return services, err
	}

	a.cfg = cfg
	a.controller = services.Controller
	a.store = services.Store
	a.archive = services.Archive
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonMicCold)
	return services, nil
}

// StartRecording starts a capture. ctx must outlive the recording and its upload.
func (a *App) StartRecording(ctx context.Context, req usecase.StartRequest) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(ctx, req); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopRecording stops the current capture; the upload continues in the background.
func (a *App) StopRecording(ctx context.Context) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Stop(ctx); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateFailed, Phase: domain.PhaseError, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Phase: domain.PhaseIdle}
	}
	return a.controller.Status()
}

// TakeReport consumes the handed-over result. A missing result renders the no-data view.
func (a *App) TakeReport(ctx context.Context) (report.View, error) {
	if err := a.requireReady(); err != nil {
		return report.View{}, err
	}
	raw, ok, err := a.store.Take(ctx)
	if err != nil {
		return report.View{}, fmt.Errorf("take result: %w", err)
	}
	if !ok {
		return report.NoData(), nil
	}
	return report.Render(raw, a.now()), nil
}

// ArchivedReport renders a previously archived result.
func (a *App) ArchivedReport(ctx context.Context, id string) (report.View, error) {
	if err := a.requireReady(); err != nil {
		return report.View{}, err
	}
	if a.archive == nil {
		return report.View{}, domain.ErrResultNotFound
	}
	raw, err := a.archive.Get(ctx, id)
	if err != nil {
		return report.View{}, err
	}
	return report.Render(raw, a.now()), nil
}

// ArchivedRaw returns an archived result exactly as stored.
func (a *App) ArchivedRaw(ctx context.Context, id string) ([]byte, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	if a.archive == nil {
		return nil, domain.ErrResultNotFound
	}
	return a.archive.Get(ctx, id)
}

// ArchivedPDF renders an archived result as a PDF document.
func (a *App) ArchivedPDF(ctx context.Context, id string) ([]byte, error) {
	view, err := a.ArchivedReport(ctx, id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, view); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// GetRuntimeInfo returns non-sensitive config for the page.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	handoff := "memory"
	if a.cfg.Handoff.RedisURL != "" {
		handoff = "redis"
	}
	return map[string]string{
		"scoringUrl":       a.cfg.Scoring.BaseURL,
		"language":         a.cfg.Scoring.Language,
		"maxDuration":      a.cfg.Session.MaxDuration.String(),
		"rulesFile":        a.cfg.Rules.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"handoff":          handoff,
		"archiveDir":       a.cfg.Archive.Dir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged pushes session lifecycle updates to the page.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.log.Debug().Str("state", string(state)).Str("reason", string(reason)).Msg("session state")
	a.broadcast(server.Event{
		Type:    eventSession,
		State:   string(state),
		Reason:  string(reason),
		Message: sessionReasonMessage(reason),
	})
}

// SessionError pushes backend errors to the page.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.log.Warn().Str("code", string(code)).Str("detail", detail).Msg("session error")
	a.broadcast(server.Event{
		Type:    eventError,
		Code:    string(code),
		Message: errorMessage(code, detail),
		Detail:  detail,
	})
}

// ReportReady tells the page a result is waiting for it.
func (a *App) ReportReady(resultID string) {
	a.log.Info().Str("result", resultID).Msg("report ready")
	a.broadcast(server.Event{Type: eventReport, ResultID: resultID, Message: "Report ready"})
}

func (a *App) broadcast(ev server.Event) {
	if a.events == nil {
		return
	}
	a.events.Broadcast(ev)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonMicCold:
		return "Ready"
	case domain.SessionReasonAcquiring:
		return "Requesting microphone..."
	case domain.SessionReasonRecordingStarted:
		return "Recording... (auto-stops ~65s)"
	case domain.SessionReasonStoppedManually:
		return "Stopped. Uploading..."
	case domain.SessionReasonAutoStopped:
		return "Auto-stopped. Uploading..."
	case domain.SessionReasonCaptureEnded:
		return "Capture ended. Uploading..."
	case domain.SessionReasonUploading:
		return "Uploading..."
	case domain.SessionReasonReportReady:
		return "Report ready"
	case domain.SessionReasonNoAudio:
		return "No audio captured. Try again."
	case domain.SessionReasonMicBlocked:
		return "Microphone blocked. Please allow access."
	case domain.SessionReasonDeviceUnavailable:
		return "Microphone unavailable"
	case domain.SessionReasonUploadFailed:
		return "Upload/scoring failed"
	case domain.SessionReasonMalformedResponse:
		return "Scoring service returned an unreadable response"
	case domain.SessionReasonHandoffFailed:
		return "Result could not be handed to the report page"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermissionDenied:
		return "Please allow microphone access."
	case domain.ErrorCodeDeviceUnavailable:
		return "Microphone unavailable"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeUploadFailed:
		if detail == "" {
			return "Upload/scoring failed"
		}
		return "Upload/scoring failed: " + detail
	case domain.ErrorCodeMalformedResponse:
		return "Scoring response was malformed"
	case domain.ErrorCodeHandoff:
		return "Result handoff failed"
	case domain.ErrorCodeRules:
		return "Phrase rules failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
