package usecase

import (
	"errors"
	"fmt"
	"io"
	"os"

	"speakcheck/internal/domain"
	"speakcheck/internal/ports"
)

// pumpFragments forwards captured fragments to the session in read order and
// finalizes the session once the stream is drained.
func pumpFragments(stream ports.CaptureStream, session *RecordingSession, chunkSize int) {
	defer session.captureEnded()

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			session.OnDataAvailable(buf[:n])
		}
		if err != nil {
			if !isEndOfCapture(err) {
				session.reportError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func isEndOfCapture(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
