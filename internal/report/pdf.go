package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

const (
	pageWidth   = 190.0
	lineHeight  = 6.0
	timeLayout  = "2006-01-02 15:04:05 MST"
	reportTitle = "Assessment Report"
)

// PDFRenderer writes one PDF per session into dir.
type PDFRenderer struct {
	dir    string
	logger zerolog.Logger
}

func NewPDFRenderer(dir string, logger zerolog.Logger) (*PDFRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &PDFRenderer{
		dir:    dir,
		logger: logger.With().Str("component", "pdf_report").Logger(),
	}, nil
}

// Render writes the report and returns its file path.
func (r *PDFRenderer) Render(_ context.Context, snap quiz.ReportSnapshot) (string, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("report_%s.pdf", snap.Session.ID))

	pdf := build(snap)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	r.logger.Info().Str("session_id", snap.Session.ID).Str("path", path).Msg("report rendered")
	return path, nil
}

func build(snap quiz.ReportSnapshot) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	sess := snap.Session
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(pageWidth, 10, tr(reportTitle), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 13)
	pdf.CellFormat(pageWidth, 8, tr(sess.Title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, tr, "Summary")
	rows := [][2]string{
		{"Session", sess.ID},
		{"Date", sess.CreatedAt.Format(timeLayout)},
		{"Score", fmt.Sprintf("%.0f / %.0f", sess.TotalScore, sess.MaxScore)},
		{"Accuracy", fmt.Sprintf("%.2f%%", sess.Accuracy)},
		{"Status", string(sess.Status)},
	}
	for _, d := range sortedBuckets(sess.DifficultyStats) {
		st := sess.DifficultyStats[d]
		rows = append(rows, [2]string{strings.ToUpper(d[:1]) + d[1:], fmt.Sprintf("%d / %d", st.Score, st.Total)})
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 7, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(pageWidth-45, 7, tr(row[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, tr, "Proctoring Log")
	pdf.SetFont("Helvetica", "", 10)
	if len(snap.Incidents) == 0 {
		pdf.MultiCell(pageWidth, lineHeight, tr("No violations recorded. Integrity maintained."), "", "L", false)
	}
	for _, in := range snap.Incidents {
		pdf.MultiCell(pageWidth, lineHeight, tr(fmt.Sprintf("%s  %s", in.Timestamp.Format(timeLayout), in.ViolationType)), "", "L", false)
	}
	pdf.Ln(4)

	section(pdf, tr, "Question Analysis")
	answers := make(map[int64]quiz.StudentResponse, len(snap.Responses))
	for _, resp := range snap.Responses {
		answers[resp.QuestionID] = resp
	}
	for i, q := range snap.Questions {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(pageWidth, lineHeight, tr(fmt.Sprintf("Q%d [%s] %s", i+1, strings.ToUpper(q.Difficulty), q.QuestionText)), "", "L", false)

		pdf.SetFont("Helvetica", "", 10)
		for _, key := range quiz.OptionKeys {
			pdf.MultiCell(pageWidth, lineHeight, tr(fmt.Sprintf("   %s) %s", key, q.Options[key])), "", "L", false)
		}

		verdict := "Not answered"
		if resp, ok := answers[q.ID]; ok && resp.SelectedAnswer != nil {
			mark := "Incorrect"
			if resp.IsCorrect {
				mark = "Correct"
			}
			verdict = fmt.Sprintf("%s (%s)", *resp.SelectedAnswer, mark)
		}
		pdf.MultiCell(pageWidth, lineHeight, tr("Your answer: "+verdict), "", "L", false)
		pdf.MultiCell(pageWidth, lineHeight, tr("Correct answer: "+q.CorrectAnswer), "", "L", false)
		if q.Explanation != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(pageWidth, lineHeight, tr("Explanation: "+q.Explanation), "", "L", false)
		}
		if q.ReferenceContext != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(pageWidth, lineHeight, tr("Reference: "+q.ReferenceContext), "", "L", false)
		}
		pdf.Ln(3)
	}
	return pdf
}

func section(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetFillColor(230, 236, 245)
	pdf.CellFormat(pageWidth, 8, tr(title), "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

// sortedBuckets orders difficulty names easy, medium, hard, then anything else alphabetically.
func sortedBuckets(stats map[string]quiz.BucketStat) []string {
	rank := map[string]int{}
	for i, d := range quiz.Difficulties {
		rank[d] = i + 1
	}
	out := make([]string, 0, len(stats))
	for d := range stats {
		if d != "" {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank[out[i]], rank[out[j]]
		if ri == 0 {
			ri = len(rank) + 1
		}
		if rj == 0 {
			rj = len(rank) + 1
		}
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}
