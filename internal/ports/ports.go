package ports

import (
	"context"
	"io"

	"speakcheck/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// CaptureStream is a granted, live capture. Reads deliver encoded fragments in order;
// Stop asks the capture to flush, after which Read drains the remainder and returns io.EOF.
type CaptureStream interface {
	io.ReadCloser
	Stop() error
}

// CaptureDevice acquires audio-only capture streams from the host.
type CaptureDevice interface {
	Acquire(ctx context.Context, cfg AudioConfig) (CaptureStream, error)
}

// ScoreRequest is one upload to the scoring endpoint.
type ScoreRequest struct {
	Mode     domain.Mode
	Language string
	Phrase   string
	Prompt   domain.Prompt
	Artifact domain.Artifact
}

// Scorer uploads a finished artifact and returns the raw scoring JSON.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) ([]byte, error)
}

// ResultStore is the read-once handoff between the recorder and the report page.
type ResultStore interface {
	Save(ctx context.Context, raw []byte) error
	Take(ctx context.Context) ([]byte, bool, error)
}

// ResultArchive keeps every scoring result addressable by id.
type ResultArchive interface {
	Put(ctx context.Context, raw []byte) (string, []byte, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

// PhraseNormalizer cleans a reference phrase before it is sent for comparison.
type PhraseNormalizer interface {
	Normalize(phrase string) (string, error)
}

// EventSink emits backend state/events to the page.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	SessionError(code domain.ErrorCode, detail string)
	ReportReady(resultID string)
}
