package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page a database query matches, following cursors
// until the API reports no more results. The Client throttles each request,
// so a large database paginates at the configured rate.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}

		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// FindMarkPages fetches the pages in a mark-sheet database for one graded
// answer, matching on the Student title and the Question text. Re-grading a
// batch updates these pages instead of creating duplicates.
func FindMarkPages(ctx context.Context, c Client, dbID, studentID, question string) ([]notionapi.Page, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.AndCompoundFilter{
			notionapi.PropertyFilter{
				Property: "Student",
				Title:    &notionapi.TextFilterCondition{Equals: studentID},
			},
			notionapi.PropertyFilter{
				Property: "Question",
				RichText: &notionapi.TextFilterCondition{Equals: question},
			},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "notion: find mark pages")
	}
	return pages, nil
}
