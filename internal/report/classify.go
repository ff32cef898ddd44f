package report

import "math"

// Bucket is the qualitative class of a score.
type Bucket string

const (
	BucketGood    Bucket = "good"
	BucketWarn    Bucket = "warn"
	BucketBad     Bucket = "bad"
	BucketUnknown Bucket = "unknown"
)

// ClassifyScore buckets a 0..100 score. Absent, non-finite or out-of-range values are unknown.
func ClassifyScore(value *float64) Bucket {
	if value == nil {
		return BucketUnknown
	}
	v := *value
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
		return BucketUnknown
	}
	switch {
	case v >= 80:
		return BucketGood
	case v >= 60:
		return BucketWarn
	default:
		return BucketBad
	}
}

// Rubric is the one-sentence verdict for an overall pronunciation score.
type Rubric struct {
	Level Bucket `json:"level"`
	Text  string `json:"text"`
}

// Scale names an external proficiency framework.
type Scale string

const (
	ScaleIELTS Scale = "IELTS"
	ScaleEIKEN Scale = "EIKEN"
)

// Scales lists the supported frameworks in display order.
var Scales = []Scale{ScaleIELTS, ScaleEIKEN}

// bracketThresholds are lower bounds, highest first. Anything below the last one is the final bracket.
var bracketThresholds = [...]float64{85, 75, 65, 55}

const bracketCount = len(bracketThresholds) + 1

var rubrics = [bracketCount]Rubric{
	{Level: BucketGood, Text: "Excellent pronunciation control and consistency."},
	{Level: BucketGood, Text: "Strong overall. Minor issues with specific sounds or rhythm."},
	{Level: BucketWarn, Text: "Fair. Work on clarity, stress, and pacing for consistency."},
	{Level: BucketWarn, Text: "Needs improvement. Practice core sounds and sentence rhythm."},
	{Level: BucketBad, Text: "Weak. Focus on foundational sounds and slow, clear delivery."},
}

var estimates = map[Scale][bracketCount]string{
	ScaleIELTS: {
		"≈ IELTS 7.0–7.5 (pronunciation component)",
		"≈ IELTS 6.5–7.0 (pronunciation component)",
		"≈ IELTS 6.0–6.5 (pronunciation component)",
		"≈ IELTS 5.5–6.0 (pronunciation component)",
		"≈ IELTS ≤5.0–5.5 (pronunciation component)",
	},
	ScaleEIKEN: {
		"≈ EIKEN Pre-1 range (pronunciation)",
		"≈ EIKEN 2–Pre-1 (pronunciation)",
		"≈ EIKEN 2 (pronunciation)",
		"≈ EIKEN Pre-2–2 (pronunciation)",
		"≈ EIKEN 3–Pre-2 (pronunciation)",
	},
}

func bracketFor(overall float64) int {
	for i, threshold := range bracketThresholds {
		if overall >= threshold {
			return i
		}
	}
	return len(bracketThresholds)
}

// RubricFor returns the verdict for the bracket containing overall.
func RubricFor(overall float64) Rubric {
	return rubrics[bracketFor(overall)]
}

// EstimateFor maps overall onto scale. Unknown scales yield "".
func EstimateFor(scale Scale, overall float64) string {
	table, ok := estimates[scale]
	if !ok {
		return ""
	}
	return table[bracketFor(overall)]
}
