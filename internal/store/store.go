// Package store persists consensus runs, batch mark records and provider
// usage counters behind a driver-neutral interface. SQLite serves local CLI
// use; Postgres serves the long-running server.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exam-engine/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind         model.TaskKind `json:"kind,omitempty"`
	DegradedOnly bool           `json:"degraded_only,omitempty"`
	CreatedAfter time.Time      `json:"created_after,omitempty"`
	Limit        int            `json:"limit,omitempty"`
	Offset       int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the consensus engine.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *model.ConsensusRun) error
	GetRun(ctx context.Context, runID string) (*model.ConsensusRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ConsensusRun, error)

	// Batch marks
	SaveMarkRecords(ctx context.Context, records []model.MarkRecord) error
	ListMarkRecords(ctx context.Context, batchID string) ([]model.MarkRecord, error)

	// Usage counters
	IncrementUsage(ctx context.Context, usage model.ProviderUsage) error
	ListUsage(ctx context.Context, sinceDay string) ([]model.ProviderUsage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the given driver. Supported drivers are
// "sqlite" and "postgres".
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
