package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/internal/store"
)

var (
	runsKind     string
	runsDegraded bool
	runsSince    int
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted consensus runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.RunFilter{
			Kind:         model.TaskKind(runsKind),
			DegradedOnly: runsDegraded,
			Limit:        runsLimit,
		}
		if runsSince > 0 {
			filter.CreatedAfter = time.Now().UTC().Add(-time.Duration(runsSince) * time.Hour)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsKind, "kind", "", "filter by task kind (extraction|evaluation)")
	runsCmd.Flags().BoolVar(&runsDegraded, "degraded", false, "only runs where every provider failed")
	runsCmd.Flags().IntVar(&runsSince, "since", 0, "only runs from the last N hours")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
