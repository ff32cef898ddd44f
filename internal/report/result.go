package report

import (
	"github.com/tidwall/gjson"

	"speakcheck/internal/domain"
)

// Scores holds the four headline scores. A nil field was absent or not a number.
type Scores struct {
	Pronunciation *float64 `json:"pronunciation,omitempty"`
	Accuracy      *float64 `json:"accuracy,omitempty"`
	Fluency       *float64 `json:"fluency,omitempty"`
	Completeness  *float64 `json:"completeness,omitempty"`
}

// Metrics holds the speaking metrics as display strings. A nil field was absent.
type Metrics struct {
	DurationFormatted *string `json:"durationFormatted,omitempty"`
	WordCount         *string `json:"wordCount,omitempty"`
	WPM               *string `json:"wpm,omitempty"`
	FillerCount       *string `json:"fillerCount,omitempty"`
}

// ScoringResult is the scoring endpoint's answer. Every field may be absent.
type ScoringResult struct {
	Status                    string
	Message                   string
	Language                  string
	Scores                    Scores
	RecognizedText            string
	ReferenceText             string
	TranscriptUsedAsReference string
	Detail                    gjson.Result
	Metrics                   Metrics
	ResultID                  string
}

// Succeeded reports whether the endpoint considered the assessment successful.
func (r ScoringResult) Succeeded() bool {
	return r.Status != "" && r.Status != "error"
}

// Parse reads raw scoring JSON. Only a non-JSON body or a missing status is an error;
// every other field degrades to absent.
func Parse(raw []byte) (ScoringResult, error) {
	if !gjson.ValidBytes(raw) {
		return ScoringResult{}, &domain.MalformedResponseError{Reason: "body is not JSON"}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return ScoringResult{}, &domain.MalformedResponseError{Reason: "body is not a JSON object"}
	}
	status := root.Get("status")
	if status.Type != gjson.String || status.Str == "" {
		return ScoringResult{}, &domain.MalformedResponseError{Reason: "missing status"}
	}

	scores := root.Get("scores")
	metrics := root.Get("metrics")
	return ScoringResult{
		Status:                    status.Str,
		Message:                   text(root.Get("message")),
		Language:                  text(root.Get("language")),
		RecognizedText:            text(root.Get("recognizedText")),
		ReferenceText:             text(root.Get("referenceText")),
		TranscriptUsedAsReference: text(root.Get("transcriptUsedAsReference")),
		ResultID:                  text(root.Get("result_id")),
		Detail:                    root.Get("detail"),
		Scores: Scores{
			Pronunciation: number(scores.Get("pronunciation")),
			Accuracy:      number(scores.Get("accuracy")),
			Fluency:       number(scores.Get("fluency")),
			Completeness:  number(scores.Get("completeness")),
		},
		Metrics: Metrics{
			DurationFormatted: scalar(firstOf(metrics, "durationFormatted", "duration_mmss")),
			WordCount:         scalar(firstOf(metrics, "wordCount", "word_count")),
			WPM:               scalar(firstOf(metrics, "wpm")),
			FillerCount:       scalar(firstOf(metrics, "fillerCount", "fillers_total")),
		},
	}, nil
}

func firstOf(v gjson.Result, keys ...string) gjson.Result {
	if !v.IsObject() {
		return gjson.Result{}
	}
	for _, key := range keys {
		field := v.Get(gjson.Escape(key))
		if field.Exists() && field.Type != gjson.Null {
			return field
		}
	}
	return gjson.Result{}
}

func number(v gjson.Result) *float64 {
	if v.Type != gjson.Number {
		return nil
	}
	f := v.Num
	return &f
}

func text(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

func scalar(v gjson.Result) *string {
	switch v.Type {
	case gjson.String, gjson.Number:
		s := v.String()
		return &s
	default:
		return nil
	}
}
