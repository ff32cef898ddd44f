package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	pdfTitle    = "Speaking Assessment Report"
	pdfMaxWords = 20
	pdfFont     = "Helvetica"

	ticksPerMillisecond = 10_000
)

// WritePDF renders v as a printable report.
func WritePDF(w io.Writer, v View) error {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetMargins(36, 36, 36)
	doc.SetAutoPageBreak(true, 36)
	doc.SetTitle(pdfTitle, true)
	doc.SetCreator("speakcheck", true)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	doc.SetFont(pdfFont, "B", 18)
	doc.CellFormat(0, 26, pdfTitle, "", 1, "L", false, 0, "")
	doc.SetFont(pdfFont, "", 10)
	line := func(s string) {
		doc.MultiCell(0, 14, tr(s), "", "L", false)
	}

	if v.NoData {
		line(v.Title)
		line(v.Message)
		return doc.Output(w)
	}

	line("Result ID: " + orDefault(v.ResultID, "-"))
	line("Generated: " + v.GeneratedAt.UTC().Format(time.RFC3339))
	line("Language: " + v.Language)
	line("Mode: " + v.Mode)
	line("Reference Text: " + pdfReference(v))
	line("Recognized Text: " + v.Recognized)
	line(fmt.Sprintf("Overall: %d. %s", v.Overall, v.Rubric.Text))
	for _, e := range v.Estimates {
		line(e.Text)
	}

	doc.Ln(8)
	pdfTable(doc, tr, []float64{160, 100}, append([][]string{{"Metric", "Score"}}, scoreRows(v.Badges)...))

	doc.Ln(8)
	pdfTable(doc, tr, []float64{160, 100}, [][]string{
		{"Metric", "Value"},
		{"Duration", v.Metrics.Duration},
		{"Total Words", v.Metrics.WordCount},
		{"Words Per Minute", v.Metrics.WPM},
		{"Filler Words (total)", v.Metrics.FillerCount},
	})

	doc.Ln(8)
	doc.SetFont(pdfFont, "B", 12)
	doc.CellFormat(0, 18, fmt.Sprintf("Word-level Details (first %d)", pdfMaxWords), "", 1, "L", false, 0, "")
	if len(v.Words) == 0 {
		doc.SetFont(pdfFont, "", 10)
		line(orDefault(v.WordsEmpty, noWordsText))
		return doc.Output(w)
	}
	rows := [][]string{{"Word", "Accuracy", "ErrorType", "Offset(ms)", "Duration(ms)"}}
	for i, row := range v.Words {
		if i == pdfMaxWords {
			break
		}
		rows = append(rows, []string{row.Word, formatAccuracy(row.Accuracy), orDefault(row.ErrorType, "-"), ticksToMillis(row.Offset), ticksToMillis(row.Duration)})
	}
	pdfTable(doc, tr, []float64{150, 80, 110, 90, 90}, rows)
	return doc.Output(w)
}

func pdfReference(v View) string {
	if v.Reference != "" {
		return v.Reference
	}
	if v.AutoReference != "" {
		return v.AutoReference
	}
	return "(none)"
}

func scoreRows(badges []Badge) [][]string {
	byLabel := make(map[string]int, len(badges))
	for _, b := range badges {
		byLabel[b.Label] = b.Value
	}
	rows := make([][]string, 0, 4)
	for _, m := range []struct{ name, label string }{
		{"Accuracy", "Accuracy"},
		{"Fluency", "Fluency"},
		{"Completeness", "Completeness"},
		{"Pronunciation", "Overall"},
	} {
		val := placeholderCount
		if n, ok := byLabel[m.label]; ok {
			val = strconv.Itoa(n)
		}
		rows = append(rows, []string{m.name, val})
	}
	return rows
}

// pdfTable draws rows as bordered cells; the first row is the header.
func pdfTable(doc *fpdf.Fpdf, tr func(string) string, widths []float64, rows [][]string) {
	for i, row := range rows {
		header := i == 0
		if header {
			doc.SetFont(pdfFont, "B", 10)
			doc.SetFillColor(211, 211, 211)
		} else {
			doc.SetFont(pdfFont, "", 10)
		}
		for j, cell := range row {
			doc.CellFormat(widths[j], 16, tr(cell), "1", 0, "L", header, 0, "")
		}
		doc.Ln(-1)
	}
}

func formatAccuracy(v *float64) string {
	if !finite(v) {
		return placeholderCount
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func ticksToMillis(v *int64) string {
	if v == nil {
		return placeholderCount
	}
	return strconv.FormatInt(*v/ticksPerMillisecond, 10)
}
