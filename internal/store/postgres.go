package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/exam-engine/internal/db"
	"github.com/sells-group/exam-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (id, kind, subject, page_number, confidence, agreement_score, primary_provider, result, input_tokens, output_tokens, cost_usd, elapsed_ms, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	"get_run": `SELECT id, kind, subject, page_number, confidence, agreement_score, primary_provider, result, input_tokens, output_tokens, cost_usd, elapsed_ms, created_at
	 FROM runs WHERE id = $1`,
	"increment_usage": `INSERT INTO provider_usage (provider, day, successes, failures, timeouts, tokens, cost_usd)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)
	 ON CONFLICT (provider, day) DO UPDATE SET
	   successes = provider_usage.successes + EXCLUDED.successes,
	   failures  = provider_usage.failures + EXCLUDED.failures,
	   timeouts  = provider_usage.timeouts + EXCLUDED.timeouts,
	   tokens    = provider_usage.tokens + EXCLUDED.tokens,
	   cost_usd  = provider_usage.cost_usd + EXCLUDED.cost_usd`,
	"list_mark_records": `SELECT batch_id, student_id, subject, question, max_marks, awarded, percentage, grade, confidence, agreement, needs_review, created_at
	 FROM mark_records WHERE batch_id = $1 ORDER BY student_id, question`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	subject          TEXT NOT NULL DEFAULT '',
	page_number      INTEGER NOT NULL DEFAULT 0,
	confidence       DOUBLE PRECISION NOT NULL,
	agreement_score  DOUBLE PRECISION NOT NULL,
	primary_provider TEXT NOT NULL,
	result           JSONB,
	input_tokens     BIGINT NOT NULL DEFAULT 0,
	output_tokens    BIGINT NOT NULL DEFAULT 0,
	cost_usd         DOUBLE PRECISION NOT NULL DEFAULT 0,
	elapsed_ms       BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mark_records (
	batch_id     TEXT NOT NULL,
	student_id   TEXT NOT NULL,
	subject      TEXT NOT NULL DEFAULT '',
	question     TEXT NOT NULL,
	max_marks    DOUBLE PRECISION NOT NULL,
	awarded      DOUBLE PRECISION NOT NULL,
	percentage   DOUBLE PRECISION NOT NULL,
	grade        TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	agreement    DOUBLE PRECISION NOT NULL,
	needs_review BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (batch_id, student_id, question)
);

CREATE TABLE IF NOT EXISTS provider_usage (
	provider  TEXT NOT NULL,
	day       TEXT NOT NULL,
	successes INTEGER NOT NULL DEFAULT 0,
	failures  INTEGER NOT NULL DEFAULT 0,
	timeouts  INTEGER NOT NULL DEFAULT 0,
	tokens    BIGINT NOT NULL DEFAULT 0,
	cost_usd  DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (provider, day)
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_primary_provider ON runs(primary_provider);
CREATE INDEX IF NOT EXISTS idx_mark_records_batch ON mark_records(batch_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.ConsensusRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var resultJSON []byte
	if run.Result != nil {
		b, err := json.Marshal(run.Result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal result")
		}
		resultJSON = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, subject, page_number, confidence, agreement_score, primary_provider, result, input_tokens, output_tokens, cost_usd, elapsed_ms, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, string(run.Kind), run.Subject, run.PageNumber,
		run.Confidence, run.AgreementScore, run.PrimaryProvider, resultJSON,
		run.Usage.InputTokens, run.Usage.OutputTokens, run.CostUSD, run.ElapsedMS, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ConsensusRun, error) {
	var r model.ConsensusRun
	var kind string
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, subject, page_number, confidence, agreement_score, primary_provider, result, input_tokens, output_tokens, cost_usd, elapsed_ms, created_at
	 FROM runs WHERE id = $1`,
		runID,
	).Scan(
		&r.ID, &kind, &r.Subject, &r.PageNumber,
		&r.Confidence, &r.AgreementScore, &r.PrimaryProvider, &resultJSON,
		&r.Usage.InputTokens, &r.Usage.OutputTokens, &r.CostUSD, &r.ElapsedMS, &r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	r.Kind = model.TaskKind(kind)
	if len(resultJSON) > 0 {
		r.Result = &model.ConsensusResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ConsensusRun, error) {
	query := `SELECT id, kind, subject, page_number, confidence, agreement_score, primary_provider, result, input_tokens, output_tokens, cost_usd, elapsed_ms, created_at
	 FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.DegradedOnly {
		query += fmt.Sprintf(` AND primary_provider = $%d`, argIdx)
		args = append(args, model.PrimaryNone)
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ConsensusRun
	for rows.Next() {
		var r model.ConsensusRun
		var kind string
		var resultJSON []byte

		if err := rows.Scan(
			&r.ID, &kind, &r.Subject, &r.PageNumber,
			&r.Confidence, &r.AgreementScore, &r.PrimaryProvider, &resultJSON,
			&r.Usage.InputTokens, &r.Usage.OutputTokens, &r.CostUSD, &r.ElapsedMS, &r.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = model.TaskKind(kind)
		if len(resultJSON) > 0 {
			r.Result = &model.ConsensusResult{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// markRecordColumns is the column order used for the bulk upsert of mark
// records. Must stay in sync with rowForMarkRecord.
var markRecordColumns = []string{
	"batch_id", "student_id", "subject", "question",
	"max_marks", "awarded", "percentage", "grade",
	"confidence", "agreement", "needs_review", "created_at",
}

func rowForMarkRecord(rec model.MarkRecord) []any {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return []any{
		rec.BatchID, rec.StudentID, rec.Subject, rec.Question,
		rec.MaxMarks, rec.Awarded, rec.Percentage, rec.Grade,
		rec.Confidence, rec.Agreement, rec.NeedsReview, createdAt,
	}
}

func (s *PostgresStore) SaveMarkRecords(ctx context.Context, records []model.MarkRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rowForMarkRecord(rec))
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "mark_records",
		Columns:      markRecordColumns,
		ConflictKeys: []string{"batch_id", "student_id", "question"},
	}, rows)
	return eris.Wrap(err, "postgres: save mark records")
}

func (s *PostgresStore) ListMarkRecords(ctx context.Context, batchID string) ([]model.MarkRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT batch_id, student_id, subject, question, max_marks, awarded, percentage, grade, confidence, agreement, needs_review, created_at
	 FROM mark_records WHERE batch_id = $1 ORDER BY student_id, question`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mark records")
	}
	defer rows.Close()

	var records []model.MarkRecord
	for rows.Next() {
		var rec model.MarkRecord
		if err := rows.Scan(
			&rec.BatchID, &rec.StudentID, &rec.Subject, &rec.Question,
			&rec.MaxMarks, &rec.Awarded, &rec.Percentage, &rec.Grade,
			&rec.Confidence, &rec.Agreement, &rec.NeedsReview, &rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mark record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list mark records iterate")
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, usage model.ProviderUsage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_usage (provider, day, successes, failures, timeouts, tokens, cost_usd)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)
	 ON CONFLICT (provider, day) DO UPDATE SET
	   successes = provider_usage.successes + EXCLUDED.successes,
	   failures  = provider_usage.failures + EXCLUDED.failures,
	   timeouts  = provider_usage.timeouts + EXCLUDED.timeouts,
	   tokens    = provider_usage.tokens + EXCLUDED.tokens,
	   cost_usd  = provider_usage.cost_usd + EXCLUDED.cost_usd`,
		usage.Provider, usage.Day, usage.Successes, usage.Failures, usage.Timeouts, usage.Tokens, usage.CostUSD,
	)
	return eris.Wrapf(err, "postgres: increment usage %s/%s", usage.Provider, usage.Day)
}

func (s *PostgresStore) ListUsage(ctx context.Context, sinceDay string) ([]model.ProviderUsage, error) {
	query := `SELECT provider, day, successes, failures, timeouts, tokens, cost_usd FROM provider_usage`
	args := []any{}
	if sinceDay != "" {
		query += ` WHERE day >= $1`
		args = append(args, sinceDay)
	}
	query += ` ORDER BY day DESC, provider`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list usage")
	}
	defer rows.Close()

	var usages []model.ProviderUsage
	for rows.Next() {
		var u model.ProviderUsage
		if err := rows.Scan(&u.Provider, &u.Day, &u.Successes, &u.Failures, &u.Timeouts, &u.Tokens, &u.CostUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan usage")
		}
		usages = append(usages, u)
	}
	return usages, eris.Wrap(rows.Err(), "postgres: list usage iterate")
}
