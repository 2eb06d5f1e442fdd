package report

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/pkg/notion"
)

// NotionPageRequest maps one mark record to a page-create request for the
// mark-sheet database. Property names follow the database schema.
func NotionPageRequest(databaseID string, rec model.MarkRecord) *notionapi.PageCreateRequest {
	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: notionapi.Properties{
			"Student":      notionapi.TitleProperty{Title: richText(rec.StudentID)},
			"Subject":      notionapi.SelectProperty{Select: notionapi.Option{Name: rec.Subject}},
			"Question":     notionapi.RichTextProperty{RichText: richText(rec.Question)},
			"Max Marks":    notionapi.NumberProperty{Number: rec.MaxMarks},
			"Awarded":      notionapi.NumberProperty{Number: rec.Awarded},
			"Percentage":   notionapi.NumberProperty{Number: rec.Percentage},
			"Grade":        notionapi.SelectProperty{Select: notionapi.Option{Name: rec.Grade}},
			"Confidence":   notionapi.NumberProperty{Number: rec.Confidence},
			"Needs Review": notionapi.CheckboxProperty{Checkbox: rec.NeedsReview},
		},
	}
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}
}

// SyncMarkRecord pushes one mark record to the Notion mark-sheet database.
// An existing row for the same student and question is updated in place so
// re-grading a batch does not create duplicates.
func SyncMarkRecord(ctx context.Context, client notion.Client, databaseID string, rec model.MarkRecord) error {
	existing, err := notion.FindMarkPages(ctx, client, databaseID, rec.StudentID, rec.Question)
	if err != nil {
		return err
	}

	req := NotionPageRequest(databaseID, rec)
	if len(existing) > 0 {
		_, err = client.UpdatePage(ctx, string(existing[0].ID), &notionapi.PageUpdateRequest{
			Properties: req.Properties,
		})
		return eris.Wrapf(err, "report: update mark row for %s", rec.StudentID)
	}

	_, err = client.CreatePage(ctx, req)
	return eris.Wrapf(err, "report: create mark row for %s", rec.StudentID)
}
