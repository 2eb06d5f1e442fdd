package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	extractImage string
	extractPage  int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract questions from one exam page image",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		imageBytes, err := os.ReadFile(extractImage)
		if err != nil {
			return eris.Wrapf(err, "read image %s", extractImage)
		}

		result, err := env.engine.ExtractConsensus(ctx, imageBytes, extractPage)
		if err != nil {
			return err
		}

		questions := 0
		if result.Extraction != nil {
			questions = len(result.Extraction.Questions)
		}
		zap.L().Info("extraction complete",
			zap.Int("page", extractPage),
			zap.Int("questions", questions),
			zap.Float64("confidence", result.Confidence),
			zap.String("primary", result.PrimaryProvider),
			zap.Bool("degraded", result.Degraded()),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractImage, "image", "", "path to the page image (required)")
	extractCmd.Flags().IntVar(&extractPage, "page", 1, "page number for question ordering")
	_ = extractCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(extractCmd)
}
