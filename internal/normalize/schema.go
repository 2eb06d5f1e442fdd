package normalize

import "github.com/santhosh-tekuri/jsonschema/v5"

// Wire contracts the providers are instructed to produce. Validation runs
// before decoding so shape violations surface as parse failures instead of
// zero-valued structs.

const extractionSchemaJSON = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["questionNumber", "questionText"],
        "properties": {
          "questionNumber": {"type": "number"},
          "questionText": {"type": "string", "minLength": 1},
          "options": {"type": "array", "items": {"type": "string"}},
          "subject": {"type": "string"},
          "topic": {"type": "string"},
          "difficulty": {"type": "string"},
          "questionType": {"type": "string"},
          "language": {"type": "string"},
          "confidence": {"type": "number"},
          "hasVisualElements": {"type": "boolean"}
        }
      }
    }
  }
}`

const evaluationSchemaJSON = `{
  "type": "object",
  "required": ["evaluation"],
  "properties": {
    "evaluation": {
      "type": "object",
      "required": ["totalMarks", "awardedMarks", "grade"],
      "properties": {
        "totalMarks": {"type": "number", "minimum": 0},
        "awardedMarks": {"type": "number", "minimum": 0},
        "percentage": {"type": "number"},
        "grade": {"type": "string", "minLength": 1},
        "confidence": {"type": "number"}
      }
    },
    "analysis": {
      "type": "object",
      "properties": {
        "strengths": {"type": "array", "items": {"type": "string"}},
        "weaknesses": {"type": "array", "items": {"type": "string"}},
        "missingPoints": {"type": "array", "items": {"type": "string"}},
        "incorrectPoints": {"type": "array", "items": {"type": "string"}}
      }
    },
    "suggestions": {
      "type": "object",
      "properties": {
        "immediate": {"type": "array", "items": {"type": "string"}},
        "longTerm": {"type": "array", "items": {"type": "string"}},
        "resources": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var (
	extractionSchema = jsonschema.MustCompileString("extraction.json", extractionSchemaJSON)
	evaluationSchema = jsonschema.MustCompileString("evaluation.json", evaluationSchemaJSON)
)
