package usecase

import (
	"context"
	"errors"
	"fmt"

	"speakcheck/internal/domain"
	"speakcheck/internal/ports"
)

type resultFinalizer struct {
	scorer  ports.Scorer
	store   ports.ResultStore
	archive ports.ResultArchive
	events  ports.EventSink
}

func newResultFinalizer(scorer ports.Scorer, store ports.ResultStore, archive ports.ResultArchive, events ports.EventSink) resultFinalizer {
	return resultFinalizer{scorer: scorer, store: store, archive: archive, events: events}
}

// Finalize uploads one artifact and hands the scoring result to the report page.
func (f resultFinalizer) Finalize(ctx context.Context, req ports.ScoreRequest) (string, domain.SessionStateReason, error) {
	raw, err := f.scorer.Score(ctx, req)
	if err != nil {
		var malformed *domain.MalformedResponseError
		if errors.As(err, &malformed) {
			f.events.SessionError(domain.ErrorCodeMalformedResponse, err.Error())
			return "", domain.SessionReasonMalformedResponse, err
		}
		f.events.SessionError(domain.ErrorCodeUploadFailed, err.Error())
		return "", domain.SessionReasonUploadFailed, err
	}

	resultID := ""
	if f.archive != nil {
		id, stamped, archiveErr := f.archive.Put(ctx, raw)
		if archiveErr != nil {
			f.events.SessionError(domain.ErrorCodeHandoff, fmt.Sprintf("result archive failed: %v", archiveErr))
		} else {
			resultID = id
			raw = stamped
		}
	}

	if err := f.store.Save(ctx, raw); err != nil {
		f.events.SessionError(domain.ErrorCodeHandoff, fmt.Sprintf("result handoff failed: %v", err))
		return resultID, domain.SessionReasonHandoffFailed, err
	}

	f.events.ReportReady(resultID)
	return resultID, domain.SessionReasonReportReady, nil
}
