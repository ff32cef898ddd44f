package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the host refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable means no usable capture device could be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrResultNotFound means an archived result id is unknown.
	ErrResultNotFound = errors.New("result not found")
)

// UploadError reports a network failure or a non-success answer from the scoring endpoint.
type UploadError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Request failed (%d)", e.StatusCode)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a scoring response that is not JSON or lacks a status.
type MalformedResponseError struct {
	StatusCode int
	Reason     string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed scoring response (%d): %s", e.StatusCode, e.Reason)
}
