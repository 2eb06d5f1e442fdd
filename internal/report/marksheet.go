package report

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/exam-engine/internal/model"
)

// Product review thresholds: a mark below either floor goes to a human.
const (
	reviewConfidenceFloor = 0.7
	reviewMarksFraction   = 0.4
)

// NeedsReview reports whether a graded answer should be routed to manual
// review: low consensus confidence, or an award below 40% of the maximum.
func NeedsReview(confidence, awarded, maxMarks float64) bool {
	return confidence < reviewConfidenceFloor || awarded < reviewMarksFraction*maxMarks
}

// BuildMarkRecord shapes one consensus result into a persisted mark record.
// A degraded result carries zero marks and is always flagged for review.
func BuildMarkRecord(batchID string, row AnswerRow, result model.ConsensusResult) model.MarkRecord {
	rec := model.MarkRecord{
		BatchID:    batchID,
		StudentID:  row.StudentID,
		Subject:    row.Subject,
		Question:   row.Question,
		MaxMarks:   row.MaxMarks,
		Confidence: result.Confidence,
		Agreement:  result.AgreementScore,
		CreatedAt:  time.Now().UTC(),
	}
	if ev := result.Evaluation; ev != nil {
		rec.Awarded = ev.AwardedMarks
		rec.Percentage = ev.Percentage
		rec.Grade = ev.Grade
	}
	rec.NeedsReview = result.Degraded() || NeedsReview(result.Confidence, rec.Awarded, row.MaxMarks)
	return rec
}

var markSheetHeader = []string{
	"Student", "Subject", "Question", "Max Marks", "Awarded",
	"Percentage", "Grade", "Confidence", "Agreement", "Needs Review",
}

// WriteMarkSheet writes the graded records to an XLSX mark sheet with one
// header row and one row per answer.
func WriteMarkSheet(path string, records []model.MarkRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Marks")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range markSheetHeader {
		header.AddCell().SetString(h)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.StudentID)
		row.AddCell().SetString(rec.Subject)
		row.AddCell().SetString(rec.Question)
		row.AddCell().SetFloat(rec.MaxMarks)
		row.AddCell().SetFloat(rec.Awarded)
		row.AddCell().SetFloat(rec.Percentage)
		row.AddCell().SetString(rec.Grade)
		row.AddCell().SetFloat(rec.Confidence)
		row.AddCell().SetFloat(rec.Agreement)
		row.AddCell().SetBool(rec.NeedsReview)
	}

	return eris.Wrapf(f.Save(path), "report: save mark sheet %s", path)
}
