package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/exam-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "exam-engine",
	Short: "Multi-provider consensus grading engine",
	Long:  "Fans exam extraction and grading tasks out to anthropic, openai and gemini in parallel, normalizes the replies, and merges them into a single consensus result with confidence scoring.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
