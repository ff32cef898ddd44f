package report

import (
	"math"
	"time"
)

const (
	summaryRunes   = 160
	referenceRunes = 60

	defaultLanguage = "en-US"

	noDataTitle   = "No report data"
	noDataMessage = "Go back and submit a recording first."
	noWordsText   = "No word-level details."
	wordNote      = "Rows flagged indicate likely issues (error or low accuracy)."

	placeholderDuration = "--:--"
	placeholderCount    = "-"
	placeholderFillers  = "none"
)

// Badge is one headline score with its bucket.
type Badge struct {
	Label  string `json:"label"`
	Value  int    `json:"value"`
	Bucket Bucket `json:"bucket"`
}

// Bar is a progress bar clamped to 0..100.
type Bar struct {
	Label   string `json:"label"`
	Percent int    `json:"percent"`
	Bucket  Bucket `json:"bucket"`
}

// Estimate is the score expressed on one external scale.
type Estimate struct {
	Scale Scale  `json:"scale"`
	Text  string `json:"text"`
}

// MetricsView is the metrics block with placeholders for absent values.
type MetricsView struct {
	Duration    string `json:"duration"`
	WordCount   string `json:"wordCount"`
	WPM         string `json:"wpm"`
	FillerCount string `json:"fillerCount"`
}

// View is everything the report page displays.
type View struct {
	NoData  bool   `json:"noData"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`

	ResultID      string      `json:"resultId,omitempty"`
	Status        string      `json:"status,omitempty"`
	Mode          string      `json:"mode,omitempty"`
	Language      string      `json:"language,omitempty"`
	GeneratedAt   time.Time   `json:"generatedAt"`
	Overall       int         `json:"overall"`
	Badges        []Badge     `json:"badges"`
	Rubric        Rubric      `json:"rubric"`
	Estimates     []Estimate  `json:"estimates"`
	Recognized    string      `json:"recognized,omitempty"`
	Summary       string      `json:"summary,omitempty"`
	Reference     string      `json:"reference,omitempty"`
	AutoReference string      `json:"autoReference,omitempty"`
	ReferencePill string      `json:"referencePill,omitempty"`
	Bars          []Bar       `json:"bars"`
	Metrics       MetricsView `json:"metrics"`
	Words         []WordRow   `json:"words"`
	WordsEmpty    string      `json:"wordsEmpty,omitempty"`
	Note          string      `json:"note,omitempty"`
}

// NoData is the empty state shown when no result was handed over.
func NoData() View {
	return View{NoData: true, Title: noDataTitle, Message: noDataMessage}
}

// Render parses raw and summarizes it. Empty, unusable or failed results render as NoData.
func Render(raw []byte, now time.Time) View {
	if len(raw) == 0 {
		return NoData()
	}
	result, err := Parse(raw)
	if err != nil {
		return NoData()
	}
	if !result.Succeeded() {
		view := NoData()
		if result.Message != "" {
			view.Message = result.Message
		}
		return view
	}
	view := Summarize(result)
	view.GeneratedAt = now
	return view
}

// Summarize assembles the report view. It never fails; absent fields become placeholders.
func Summarize(r ScoringResult) View {
	overall := 0.0
	if finite(r.Scores.Pronunciation) {
		overall = *r.Scores.Pronunciation
	}

	view := View{
		ResultID:      r.ResultID,
		Status:        r.Status,
		Mode:          modeLabel(r),
		Language:      orDefault(r.Language, defaultLanguage),
		Overall:       int(math.Round(overall)),
		Badges:        badges(r.Scores),
		Rubric:        RubricFor(overall),
		Recognized:    orDefault(r.RecognizedText, "(empty)"),
		Summary:       orDefault(truncate(r.RecognizedText, summaryRunes, ""), "(no recognized text)"),
		Reference:     r.ReferenceText,
		AutoReference: r.TranscriptUsedAsReference,
		ReferencePill: referencePill(r),
		Bars: []Bar{
			bar("Accuracy", r.Scores.Accuracy),
			bar("Fluency", r.Scores.Fluency),
			bar("Completeness", r.Scores.Completeness),
		},
		Metrics: MetricsView{
			Duration:    deref(r.Metrics.DurationFormatted, placeholderDuration),
			WordCount:   deref(r.Metrics.WordCount, placeholderCount),
			WPM:         deref(r.Metrics.WPM, placeholderCount),
			FillerCount: deref(r.Metrics.FillerCount, placeholderFillers),
		},
		Words: BuildWordRows(ExtractWords(r.Detail)),
		Note:  wordNote,
	}
	for _, scale := range Scales {
		view.Estimates = append(view.Estimates, Estimate{Scale: scale, Text: EstimateFor(scale, overall)})
	}
	if len(view.Words) == 0 {
		view.WordsEmpty = noWordsText
	}
	return view
}

func badges(s Scores) []Badge {
	entries := []struct {
		label string
		value *float64
	}{
		{"Overall", s.Pronunciation},
		{"Accuracy", s.Accuracy},
		{"Fluency", s.Fluency},
		{"Completeness", s.Completeness},
	}
	out := make([]Badge, 0, len(entries))
	for _, e := range entries {
		if !finite(e.value) {
			continue
		}
		out = append(out, Badge{Label: e.label, Value: int(math.Round(*e.value)), Bucket: ClassifyScore(e.value)})
	}
	return out
}

func bar(label string, value *float64) Bar {
	if !finite(value) {
		return Bar{Label: label, Bucket: BucketUnknown}
	}
	pct := int(math.Round(math.Max(0, math.Min(100, *value))))
	v := float64(pct)
	return Bar{Label: label, Percent: pct, Bucket: ClassifyScore(&v)}
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func modeLabel(r ScoringResult) string {
	if r.TranscriptUsedAsReference != "" {
		return "Prompt Response"
	}
	return "Phrase Practice"
}

func referencePill(r ScoringResult) string {
	ref := orDefault(r.ReferenceText, r.TranscriptUsedAsReference)
	if ref == "" {
		return "Ref: (none)"
	}
	return "Ref: " + truncate(ref, referenceRunes, "…")
}

func truncate(s string, limit int, ellipsis string) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func deref(s *string, placeholder string) string {
	if s == nil {
		return placeholder
	}
	return *s
}
