package domain

// SessionState models the capture lifecycle of one recording session.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateAcquiring SessionState = "acquiring"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
	SessionStateFinished  SessionState = "finished"
	SessionStateFailed    SessionState = "failed"
)

// Terminal reports whether no transition can leave the state.
func (s SessionState) Terminal() bool {
	return s == SessionStateFinished || s == SessionStateFailed
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonMicCold           SessionStateReason = "mic_cold"
	SessionReasonAcquiring         SessionStateReason = "acquiring"
	SessionReasonRecordingStarted  SessionStateReason = "recording_started"
	SessionReasonStoppedManually   SessionStateReason = "stopped_manually"
	SessionReasonAutoStopped       SessionStateReason = "auto_stopped"
	SessionReasonCaptureEnded      SessionStateReason = "capture_ended"
	SessionReasonUploading         SessionStateReason = "uploading"
	SessionReasonReportReady       SessionStateReason = "report_ready"
	SessionReasonNoAudio           SessionStateReason = "no_audio"
	SessionReasonMicBlocked        SessionStateReason = "mic_blocked"
	SessionReasonDeviceUnavailable SessionStateReason = "device_unavailable"
	SessionReasonUploadFailed      SessionStateReason = "upload_failed"
	SessionReasonMalformedResponse SessionStateReason = "malformed_response"
	SessionReasonHandoffFailed     SessionStateReason = "handoff_failed"
)

// ErrorCode identifies errors surfaced to the page.
type ErrorCode string

const (
	ErrorCodeStartup           ErrorCode = "startup"
	ErrorCodePermissionDenied  ErrorCode = "permission_denied"
	ErrorCodeDeviceUnavailable ErrorCode = "device_unavailable"
	ErrorCodeAudioStream       ErrorCode = "audio_stream"
	ErrorCodeAudioStop         ErrorCode = "audio_stop"
	ErrorCodeUploadFailed      ErrorCode = "upload_failed"
	ErrorCodeMalformedResponse ErrorCode = "malformed_response"
	ErrorCodeHandoff           ErrorCode = "handoff"
	ErrorCodeRules             ErrorCode = "rules"
)

// Mode selects what the scoring endpoint compares the speech against.
type Mode string

const (
	// ModePhrase compares against a literal phrase supplied by the caller.
	ModePhrase Mode = "phrase"
	// ModePrompt relies on server-side transcription as the reference.
	ModePrompt Mode = "prompt"
)

// Valid reports whether the mode is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModePhrase || m == ModePrompt
}

// Prompt carries the optional test-bank context sent along with prompt-mode uploads.
type Prompt struct {
	TestType   string `json:"testType,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	Text       string `json:"promptText,omitempty"`
}

// Artifact is the finalized capture of one session.
type Artifact struct {
	Data            []byte `json:"-"`
	Size            int    `json:"size"`
	DurationSeconds int    `json:"durationSeconds"`
	Encoding        string `json:"encoding"`
	SampleRate      int    `json:"sampleRate"`
	Channels        int    `json:"channels"`
}

// Phase summarizes the controller's position in the capture-upload flow.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhaseUploading Phase = "uploading"
	PhaseReady     Phase = "ready"
	PhaseError     Phase = "error"
)

// Controls says which page controls should be enabled.
type Controls struct {
	CanRecord bool `json:"canRecord"`
	CanStop   bool `json:"canStop"`
}

// Status summarizes the current runtime status.
type Status struct {
	SessionID      string       `json:"sessionId,omitempty"`
	State          SessionState `json:"state"`
	Phase          Phase        `json:"phase"`
	Message        string       `json:"message,omitempty"`
	ElapsedSeconds int          `json:"elapsedSeconds"`
	ResultID       string       `json:"resultId,omitempty"`
	Controls       Controls     `json:"controls"`
}
