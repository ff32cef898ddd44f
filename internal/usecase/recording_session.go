package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"speakcheck/internal/domain"
	"speakcheck/internal/ports"
)

// DefaultMaxDuration is the safety cutoff applied when none is configured.
const DefaultMaxDuration = 65 * time.Second

// ErrSessionNotIdle is returned when Start is called on a used session.
var ErrSessionNotIdle = errors.New("recording session already started")

// SessionOptions configures a single RecordingSession.
type SessionOptions struct {
	ID          string
	Audio       ports.AudioConfig
	Encoding    string
	MaxDuration time.Duration
	ChunkSize   int

	// Callbacks run outside the session lock, on the goroutine that caused the transition.
	OnStateChange func(state domain.SessionState, reason domain.SessionStateReason)
	OnFinished    func(artifact domain.Artifact)
	OnError       func(code domain.ErrorCode, detail string)
}

// RecordingSession owns exactly one capture-to-artifact lifecycle.
// Instances are not reusable once Finished or Failed.
type RecordingSession struct {
	device ports.CaptureDevice
	opts   SessionOptions

	clock     func() time.Time
	afterFunc func(d time.Duration, f func()) (stop func() bool)

	mu         sync.Mutex
	state      domain.SessionState
	stopReason domain.SessionStateReason
	startedAt  time.Time
	chunks     [][]byte
	artifact   *domain.Artifact
	stream     ports.CaptureStream
	disarm     func() bool
	done       chan struct{}
}

func NewRecordingSession(device ports.CaptureDevice, opts SessionOptions) *RecordingSession {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.ChunkSize < 256 {
		opts.ChunkSize = 4096
	}
	if opts.Encoding == "" {
		opts.Encoding = "s16le"
	}
	return &RecordingSession{
		device:    device,
		opts:      opts,
		clock:     time.Now,
		afterFunc: realAfterFunc,
		state:     domain.SessionStateIdle,
		done:      make(chan struct{}),
	}
}

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// ID returns the identifier the session was created with.
func (s *RecordingSession) ID() string {
	return s.opts.ID
}

// Start acquires the capture device and begins recording.
func (s *RecordingSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != domain.SessionStateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrSessionNotIdle, state)
	}
	s.state = domain.SessionStateAcquiring
	s.mu.Unlock()
	s.notify(domain.SessionStateAcquiring, domain.SessionReasonAcquiring)

	stream, err := s.device.Acquire(ctx, s.opts.Audio)
	if err != nil {
		err = classifyAcquireError(err)
		reason := domain.SessionReasonDeviceUnavailable
		if errors.Is(err, domain.ErrPermissionDenied) {
			reason = domain.SessionReasonMicBlocked
		}
		s.mu.Lock()
		s.state = domain.SessionStateFailed
		close(s.done)
		s.mu.Unlock()
		s.notify(domain.SessionStateFailed, reason)
		return err
	}

	s.mu.Lock()
	s.state = domain.SessionStateRecording
	s.chunks = nil
	s.startedAt = s.clock()
	s.stream = stream
	s.mu.Unlock()
	s.notify(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)

	s.mu.Lock()
	if s.state == domain.SessionStateRecording {
		remaining := s.opts.MaxDuration - s.clock().Sub(s.startedAt)
		if remaining < 0 {
			remaining = 0
		}
		s.disarm = s.afterFunc(remaining, s.onDeadline)
	}
	s.mu.Unlock()

	go pumpFragments(stream, s, s.opts.ChunkSize)
	return nil
}

// OnDataAvailable appends a fragment. Empty fragments and calls outside Recording/Stopping are ignored.
func (s *RecordingSession) OnDataAvailable(fragment []byte) {
	if len(fragment) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionStateRecording && s.state != domain.SessionStateStopping {
		return
	}
	s.chunks = append(s.chunks, append([]byte(nil), fragment...))
}

// Stop asks the capture to flush and finalize. It reports whether this call performed the transition;
// calls outside Recording are no-ops.
func (s *RecordingSession) Stop() bool {
	return s.stop(domain.SessionReasonStoppedManually)
}

func (s *RecordingSession) onDeadline() {
	s.stop(domain.SessionReasonAutoStopped)
}

func (s *RecordingSession) stop(reason domain.SessionStateReason) bool {
	s.mu.Lock()
	if s.state != domain.SessionStateRecording {
		s.mu.Unlock()
		return false
	}
	s.state = domain.SessionStateStopping
	s.stopReason = reason
	if s.disarm != nil {
		s.disarm()
		s.disarm = nil
	}
	stream := s.stream
	s.mu.Unlock()

	s.notify(domain.SessionStateStopping, reason)
	if err := stream.Stop(); err != nil {
		s.reportError(domain.ErrorCodeAudioStop, fmt.Sprintf("failed to stop audio capture cleanly: %v", err))
	}
	return true
}

// captureEnded is called by the pump once the stream is drained.
func (s *RecordingSession) captureEnded() {
	s.mu.Lock()
	if s.state == domain.SessionStateRecording {
		s.state = domain.SessionStateStopping
		s.stopReason = domain.SessionReasonCaptureEnded
		if s.disarm != nil {
			s.disarm()
			s.disarm = nil
		}
		s.mu.Unlock()
		s.notify(domain.SessionStateStopping, domain.SessionReasonCaptureEnded)
	} else {
		s.mu.Unlock()
	}
	s.OnFinalized()
}

// OnFinalized concatenates the buffered fragments into the artifact. It runs at most once.
func (s *RecordingSession) OnFinalized() {
	s.mu.Lock()
	if s.state != domain.SessionStateStopping {
		s.mu.Unlock()
		return
	}

	size := 0
	for _, chunk := range s.chunks {
		size += len(chunk)
	}
	data := make([]byte, 0, size)
	for _, chunk := range s.chunks {
		data = append(data, chunk...)
	}

	elapsed := s.clock().Sub(s.startedAt)
	seconds := int(math.Round(float64(elapsed.Milliseconds()) / 1000))
	if seconds < 1 {
		seconds = 1
	}

	artifact := domain.Artifact{
		Data:            data,
		Size:            len(data),
		DurationSeconds: seconds,
		Encoding:        s.opts.Encoding,
		SampleRate:      s.opts.Audio.SampleRate,
		Channels:        s.opts.Audio.Channels,
	}
	s.artifact = &artifact
	s.chunks = nil
	s.state = domain.SessionStateFinished
	stream := s.stream
	s.stream = nil
	reason := s.stopReason
	close(s.done)
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	s.notify(domain.SessionStateFinished, reason)
	if s.opts.OnFinished != nil {
		s.opts.OnFinished(artifact)
	}
}

// State returns the current state.
func (s *RecordingSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StopReason returns what moved the session out of Recording, if anything has.
func (s *RecordingSession) StopReason() domain.SessionStateReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopReason
}

// finalArtifact returns the finalized artifact; ok is false before Finished.
func (s *RecordingSession) finalArtifact() (domain.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return domain.Artifact{}, false
	}
	return *s.artifact, true
}

// Elapsed returns whole seconds spent recording so far.
func (s *RecordingSession) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact != nil {
		return s.artifact.DurationSeconds
	}
	if s.startedAt.IsZero() {
		return 0
	}
	return int(s.clock().Sub(s.startedAt) / time.Second)
}

// Done is closed once the session reaches Finished or Failed.
func (s *RecordingSession) Done() <-chan struct{} {
	return s.done
}

func (s *RecordingSession) notify(state domain.SessionState, reason domain.SessionStateReason) {
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state, reason)
	}
}

func (s *RecordingSession) reportError(code domain.ErrorCode, detail string) {
	if s.opts.OnError != nil {
		s.opts.OnError(code, detail)
	}
}

func classifyAcquireError(err error) error {
	if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
}
