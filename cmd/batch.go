package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/report"
	"github.com/sells-group/exam-engine/pkg/notion"
)

var (
	batchInput    string
	batchOutput   string
	batchID       string
	batchNotionDB string
)

// evaluator is the slice of the engine the batch path needs.
type evaluator interface {
	EvaluateConsensus(ctx context.Context, task model.EvaluationTask) (model.ConsensusResult, error)
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Grade every answer in an answer sheet",
	Long:  "Reads an XLSX or CSV answer sheet, grades each answer through provider consensus with bounded concurrency, persists the mark records, and writes an XLSX mark sheet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := report.ReadAnswerSheet(batchInput)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("batch: answer sheet %s has no rows", batchInput)
		}

		id := batchID
		if id == "" {
			id = uuid.NewString()
		}

		zap.L().Info("batch started",
			zap.String("batch_id", id),
			zap.Int("answers", len(rows)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentAnswers),
		)

		records := gradeAnswers(ctx, env.engine, id, rows, cfg.Batch.MaxConcurrentAnswers)

		if err := env.store.SaveMarkRecords(ctx, records); err != nil {
			return err
		}
		if err := report.WriteMarkSheet(batchOutput, records); err != nil {
			return err
		}

		notionDB := batchNotionDB
		if notionDB == "" {
			notionDB = cfg.Notion.MarkSheetDB
		}
		synced := 0
		if notionDB != "" && cfg.Notion.Token != "" {
			synced = syncToNotion(ctx, notion.NewClient(cfg.Notion.Token), notionDB, records)
		}

		review := 0
		for _, rec := range records {
			if rec.NeedsReview {
				review++
			}
		}
		zap.L().Info("batch complete",
			zap.String("batch_id", id),
			zap.Int("answers", len(records)),
			zap.Int("needs_review", review),
			zap.Int("notion_synced", synced),
			zap.String("mark_sheet", batchOutput),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"batchId":     id,
			"answers":     len(records),
			"needsReview": review,
			"markSheet":   batchOutput,
		})
	},
}

// gradeAnswers evaluates every row with bounded concurrency. A failed row is
// recorded as a degraded mark flagged for review; it never aborts the batch.
func gradeAnswers(ctx context.Context, eng evaluator, batchID string, rows []report.AnswerRow, concurrency int) []model.MarkRecord {
	if concurrency <= 0 {
		concurrency = 1
	}

	records := make([]model.MarkRecord, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, row := range rows {
		g.Go(func() error {
			result, err := eng.EvaluateConsensus(gctx, model.EvaluationTask{
				QuestionText:      row.Question,
				StudentAnswerText: row.StudentAnswer,
				ModelAnswer:       row.ModelAnswer,
				Subject:           row.Subject,
				MaxMarks:          row.MaxMarks,
			})
			if err != nil {
				zap.L().Error("batch: answer failed",
					zap.String("student", row.StudentID),
					zap.String("question", row.Question),
					zap.Error(err),
				)
				result = model.ConsensusResult{PrimaryProvider: model.PrimaryNone}
			}
			records[i] = report.BuildMarkRecord(batchID, row, result)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// syncToNotion pushes records to the mark-sheet database, best effort.
func syncToNotion(ctx context.Context, client notion.Client, databaseID string, records []model.MarkRecord) int {
	synced := 0
	for _, rec := range records {
		if err := report.SyncMarkRecord(ctx, client, databaseID, rec); err != nil {
			zap.L().Warn("batch: notion sync failed",
				zap.String("student", rec.StudentID),
				zap.Error(err),
			)
			continue
		}
		synced++
	}
	return synced
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "answer sheet path, .xlsx or .csv (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "marks.xlsx", "mark sheet output path")
	batchCmd.Flags().StringVar(&batchID, "batch-id", "", "batch identifier (default: random)")
	batchCmd.Flags().StringVar(&batchNotionDB, "notion-db", "", "Notion mark-sheet database ID (default from config)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}
