// Package report handles the batch grading surfaces: reading answer sheets,
// writing XLSX mark sheets, and mapping mark records to Notion rows.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// AnswerRow is one student answer read from an answer sheet.
type AnswerRow struct {
	StudentID     string
	Subject       string
	Question      string
	ModelAnswer   string
	StudentAnswer string
	MaxMarks      float64
}

// Required answer sheet columns. Header names are matched after lowercasing
// and replacing spaces with underscores, so "Student ID" and "student_id"
// both bind.
var requiredColumns = []string{"student_id", "subject", "question", "student_answer", "max_marks"}

// ReadAnswerSheet reads an answer sheet in XLSX or CSV format. The first row
// must be a header naming the columns; model_answer is optional.
func ReadAnswerSheet(path string) ([]AnswerRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSXAnswers(path)
	case ".csv":
		return readCSVAnswers(path)
	default:
		return nil, eris.Errorf("report: unsupported answer sheet format %q", filepath.Ext(path))
	}
}

func readXLSXAnswers(path string) ([]AnswerRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open answer sheet")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("report: answer sheet has no sheets")
	}

	rows := make([][]string, 0, len(f.Sheets[0].Rows))
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return parseAnswerRows(rows)
}

func readCSVAnswers(path string) ([]AnswerRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open answer sheet")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "report: read answer sheet row")
		}
		rows = append(rows, record)
	}
	return parseAnswerRows(rows)
}

func parseAnswerRows(rows [][]string) ([]AnswerRow, error) {
	if len(rows) == 0 {
		return nil, eris.New("report: answer sheet is empty")
	}

	index := headerIndex(rows[0])
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, eris.Errorf("report: answer sheet missing column %q", col)
		}
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	answers := make([]AnswerRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}

		maxMarks, err := strconv.ParseFloat(get(row, "max_marks"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "report: row %d: bad max_marks", i+2)
		}

		answers = append(answers, AnswerRow{
			StudentID:     get(row, "student_id"),
			Subject:       get(row, "subject"),
			Question:      get(row, "question"),
			ModelAnswer:   get(row, "model_answer"),
			StudentAnswer: get(row, "student_answer"),
			MaxMarks:      maxMarks,
		})
	}
	return answers, nil
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		if key != "" {
			index[key] = i
		}
	}
	return index
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
