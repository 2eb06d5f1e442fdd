package main

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/report"
	"github.com/sells-group/exam-engine/pkg/notion"
)

type fakeEvaluator struct {
	mu      sync.Mutex
	inFlight int32
	peak    int32
	fn      func(task model.EvaluationTask) (model.ConsensusResult, error)
}

func (f *fakeEvaluator) EvaluateConsensus(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()

	return f.fn(task)
}

func answerRows() []report.AnswerRow {
	return []report.AnswerRow{
		{StudentID: "stu-1", Subject: "Biology", Question: "Q1", StudentAnswer: "a1", MaxMarks: 5},
		{StudentID: "stu-2", Subject: "Biology", Question: "Q1", StudentAnswer: "a2", MaxMarks: 5},
		{StudentID: "stu-1", Subject: "Biology", Question: "Q2", StudentAnswer: "a3", MaxMarks: 3},
	}
}

func TestGradeAnswers_OrderPreserved(t *testing.T) {
	eng := &fakeEvaluator{
		fn: func(task model.EvaluationTask) (model.ConsensusResult, error) {
			return model.ConsensusResult{
				Evaluation:      &model.AnswerEvaluation{AwardedMarks: task.MaxMarks, Percentage: 100, Grade: "A+"},
				Confidence:      0.9,
				PrimaryProvider: "anthropic",
			}, nil
		},
	}

	records := gradeAnswers(context.Background(), eng, "batch-1", answerRows(), 2)

	require.Len(t, records, 3)
	assert.Equal(t, "stu-1", records[0].StudentID)
	assert.Equal(t, "Q1", records[0].Question)
	assert.Equal(t, "Q2", records[2].Question)
	for _, rec := range records {
		assert.Equal(t, "batch-1", rec.BatchID)
		assert.Equal(t, rec.MaxMarks, rec.Awarded)
		assert.False(t, rec.NeedsReview)
	}
}

func TestGradeAnswers_FailedRowIsDegradedNotFatal(t *testing.T) {
	eng := &fakeEvaluator{
		fn: func(task model.EvaluationTask) (model.ConsensusResult, error) {
			if task.StudentAnswerText == "a2" {
				return model.ConsensusResult{}, assert.AnError
			}
			return model.ConsensusResult{
				Evaluation:      &model.AnswerEvaluation{AwardedMarks: 4},
				Confidence:      0.8,
				PrimaryProvider: "openai",
			}, nil
		},
	}

	records := gradeAnswers(context.Background(), eng, "batch-1", answerRows(), 1)

	require.Len(t, records, 3)
	assert.False(t, records[0].NeedsReview)
	assert.True(t, records[1].NeedsReview)
	assert.Zero(t, records[1].Awarded)
	assert.False(t, records[2].NeedsReview)
}

func TestGradeAnswers_ConcurrencyBounded(t *testing.T) {
	block := make(chan struct{})
	eng := &fakeEvaluator{
		fn: func(task model.EvaluationTask) (model.ConsensusResult, error) {
			<-block
			return model.ConsensusResult{PrimaryProvider: "anthropic", Confidence: 1}, nil
		},
	}

	done := make(chan []model.MarkRecord)
	go func() {
		done <- gradeAnswers(context.Background(), eng, "batch-1", answerRows(), 2)
	}()
	close(block)
	records := <-done

	require.Len(t, records, 3)
	eng.mu.Lock()
	defer eng.mu.Unlock()
	assert.LessOrEqual(t, eng.peak, int32(2))
}

type stubNotion struct {
	created int
	fail    bool
}

func (s *stubNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if s.fail {
		return nil, assert.AnError
	}
	return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{}}, nil
}

func (s *stubNotion) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	s.created++
	return &notionapi.Page{ID: "p"}, nil
}

func (s *stubNotion) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

var _ notion.Client = (*stubNotion)(nil)

func TestSyncToNotion(t *testing.T) {
	records := []model.MarkRecord{
		{StudentID: "stu-1", Question: "Q1"},
		{StudentID: "stu-2", Question: "Q1"},
	}

	client := &stubNotion{}
	assert.Equal(t, 2, syncToNotion(context.Background(), client, "db-1", records))
	assert.Equal(t, 2, client.created)

	assert.Zero(t, syncToNotion(context.Background(), &stubNotion{fail: true}, "db-1", records))
}
