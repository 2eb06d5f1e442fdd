package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/report"
)

var (
	evalQuestion    string
	evalAnswer      string
	evalModelAnswer string
	evalSubject     string
	evalMaxMarks    float64
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Grade one student answer through provider consensus",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		task := model.EvaluationTask{
			QuestionText:      evalQuestion,
			StudentAnswerText: evalAnswer,
			ModelAnswer:       evalModelAnswer,
			Subject:           evalSubject,
			MaxMarks:          evalMaxMarks,
		}

		result, err := env.engine.EvaluateConsensus(ctx, task)
		if err != nil {
			return err
		}

		needsReview := result.Degraded()
		if ev := result.Evaluation; ev != nil {
			needsReview = report.NeedsReview(result.Confidence, ev.AwardedMarks, evalMaxMarks)
		}

		zap.L().Info("evaluation complete",
			zap.Float64("confidence", result.Confidence),
			zap.String("primary", result.PrimaryProvider),
			zap.Bool("needs_review", needsReview),
		)

		out := struct {
			model.ConsensusResult
			NeedsReview bool `json:"needsReview"`
		}{result, needsReview}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evalQuestion, "question", "", "question text (required)")
	evaluateCmd.Flags().StringVar(&evalAnswer, "answer", "", "student answer text (required)")
	evaluateCmd.Flags().StringVar(&evalModelAnswer, "model-answer", "", "reference answer for the grader")
	evaluateCmd.Flags().StringVar(&evalSubject, "subject", "", "subject the question belongs to")
	evaluateCmd.Flags().Float64Var(&evalMaxMarks, "max-marks", 0, "maximum marks for the question (required)")
	_ = evaluateCmd.MarkFlagRequired("question")
	_ = evaluateCmd.MarkFlagRequired("answer")
	_ = evaluateCmd.MarkFlagRequired("max-marks")
	rootCmd.AddCommand(evaluateCmd)
}
