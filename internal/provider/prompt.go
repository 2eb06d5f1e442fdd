package provider

import (
	"fmt"
	"strings"

	"github.com/sells-group/exam-engine/internal/model"
)

// extractionSystemPrompt is the shared instruction for vision extraction.
const extractionSystemPrompt = `You are an expert exam digitization assistant. You are reading a scanned exam paper page and extracting every question on it.

Rules:
- Extract ONLY questions actually printed on the page
- Return valid JSON for every response, with no surrounding prose
- Preserve the question numbering printed on the paper
- Confidence should be 0.0-1.0 based on how legible the question is
- Include multiple-choice options verbatim when present
- Set hasVisualElements true when a question references a diagram, figure, or table`

// extractionContract is the JSON shape providers must produce for
// extraction tasks.
const extractionContract = `{
  "questions": [
    {
      "questionNumber": 1,
      "questionText": "...",
      "options": ["..."],
      "subject": "...",
      "topic": "...",
      "difficulty": "easy|medium|hard",
      "questionType": "mcq|descriptive|numerical|diagram",
      "language": "...",
      "confidence": 0.95,
      "hasVisualElements": false
    }
  ]
}`

// evaluationSystemPrompt is the shared instruction for answer grading.
const evaluationSystemPrompt = `You are an experienced examiner grading a student's written answer. Grade strictly against the question and, when provided, the model answer.

Rules:
- Return valid JSON for every response, with no surrounding prose
- Award partial marks for partially correct reasoning
- Confidence should be 0.0-1.0 based on how unambiguous the grading is
- Keep every feedback item short and specific`

// evaluationContract is the JSON shape providers must produce for
// evaluation tasks.
const evaluationContract = `{
  "evaluation": {"totalMarks": 10, "awardedMarks": 7.5, "percentage": 75, "grade": "B+", "confidence": 0.9},
  "analysis": {"strengths": ["..."], "weaknesses": ["..."], "missingPoints": ["..."], "incorrectPoints": ["..."]},
  "suggestions": {"immediate": ["..."], "longTerm": ["..."], "resources": ["..."]}
}`

// ExtractionSystem returns the system instruction for extraction requests.
func ExtractionSystem() string {
	return extractionSystemPrompt
}

// ExtractionPrompt composes the user instruction for one exam page.
func ExtractionPrompt(pageNumber int) string {
	return fmt.Sprintf(`Extract every question from this exam page (page %d).

Respond with JSON matching exactly this shape:
%s`, pageNumber, extractionContract)
}

// EvaluationSystem returns the system instruction for evaluation requests.
func EvaluationSystem() string {
	return evaluationSystemPrompt
}

// EvaluationPrompt composes the grading instruction for one student answer.
func EvaluationPrompt(task model.EvaluationTask) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Subject: %s\nMaximum marks: %g\n\n", task.Subject, task.MaxMarks)
	fmt.Fprintf(&sb, "Question:\n%s\n\n", task.QuestionText)
	if task.ModelAnswer != "" {
		fmt.Fprintf(&sb, "Model answer:\n%s\n\n", task.ModelAnswer)
	}
	fmt.Fprintf(&sb, "Student answer:\n%s\n\n", task.StudentAnswerText)
	fmt.Fprintf(&sb, "Grade the student answer out of %g marks. Respond with JSON matching exactly this shape:\n%s", task.MaxMarks, evaluationContract)
	return sb.String()
}
