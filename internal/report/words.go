package report

import (
	"strings"

	"github.com/tidwall/gjson"
)

const flagAccuracyBelow = 60

// WordRow is one word of the per-word table.
type WordRow struct {
	Word      string   `json:"word"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	ErrorType string   `json:"errorType"`
	Offset    *int64   `json:"offset,omitempty"`
	Duration  *int64   `json:"duration,omitempty"`
	Flagged   bool     `json:"flagged"`
}

// ExtractWords finds the word list of the best recognition candidate. NBest/Words is tried first;
// when it yields no words, nBest/words is tried. Any other shape yields nil.
func ExtractWords(detail gjson.Result) []gjson.Result {
	for _, key := range []string{"NBest", "nBest"} {
		best := detail.Get(key + ".0")
		if !best.IsObject() {
			continue
		}
		words := firstOf(best, "Words", "words")
		if words.IsArray() && len(words.Array()) > 0 {
			return words.Array()
		}
	}
	return nil
}

// BuildWordRows resolves each entry into a row, flagging errors and low accuracy.
func BuildWordRows(words []gjson.Result) []WordRow {
	rows := make([]WordRow, 0, len(words))
	for _, w := range words {
		assessment := firstOf(w, "PronunciationAssessment", "pronunciationAssessment")

		accuracy := number(firstOf(assessment, "AccuracyScore", "accuracyScore"))
		if accuracy == nil {
			accuracy = number(firstOf(w, "AccuracyScore", "accuracyScore"))
		}

		errorType := text(firstOf(w, "ErrorType", "errorType"))
		if errorType == "" {
			errorType = text(firstOf(assessment, "ErrorType", "errorType"))
		}
		if errorType == "" {
			errorType = "none"
		}

		word := firstOf(w, "Word", "word")
		row := WordRow{
			Accuracy:  accuracy,
			ErrorType: errorType,
			Offset:    ticks(firstOf(w, "Offset", "offset")),
			Duration:  ticks(firstOf(w, "Duration", "duration")),
		}
		if word.Type == gjson.String || word.Type == gjson.Number {
			row.Word = word.String()
		}
		row.Flagged = !strings.EqualFold(errorType, "none") || (accuracy != nil && *accuracy < flagAccuracyBelow)
		rows = append(rows, row)
	}
	return rows
}

func ticks(v gjson.Result) *int64 {
	if v.Type != gjson.Number {
		return nil
	}
	n := v.Int()
	return &n
}
