package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/exam-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	subject          TEXT NOT NULL DEFAULT '',
	page_number      INTEGER NOT NULL DEFAULT 0,
	confidence       REAL NOT NULL,
	agreement_score  REAL NOT NULL,
	primary_provider TEXT NOT NULL,
	result           TEXT,
	input_tokens     INTEGER NOT NULL DEFAULT 0,
	output_tokens    INTEGER NOT NULL DEFAULT 0,
	cost_usd         REAL NOT NULL DEFAULT 0,
	elapsed_ms       INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS mark_records (
	batch_id     TEXT NOT NULL,
	student_id   TEXT NOT NULL,
	subject      TEXT NOT NULL DEFAULT '',
	question     TEXT NOT NULL,
	max_marks    REAL NOT NULL,
	awarded      REAL NOT NULL,
	percentage   REAL NOT NULL,
	grade        TEXT NOT NULL,
	confidence   REAL NOT NULL,
	agreement    REAL NOT NULL,
	needs_review INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (batch_id, student_id, question)
);

CREATE TABLE IF NOT EXISTS provider_usage (
	provider  TEXT NOT NULL,
	day       TEXT NOT NULL,
	successes INTEGER NOT NULL DEFAULT 0,
	failures  INTEGER NOT NULL DEFAULT 0,
	timeouts  INTEGER NOT NULL DEFAULT 0,
	tokens    INTEGER NOT NULL DEFAULT 0,
	cost_usd  REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (provider, day)
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_primary_provider ON runs(primary_provider);
CREATE INDEX IF NOT EXISTS idx_mark_records_batch ON mark_records(batch_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.ConsensusRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var resultJSON any
	if run.Result != nil {
		b, err := json.Marshal(run.Result)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal result")
		}
		resultJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, subject, page_number, confidence, agreement_score, primary_provider, result, input_tokens, output_tokens, cost_usd, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Subject, run.PageNumber,
		run.Confidence, run.AgreementScore, run.PrimaryProvider, resultJSON,
		run.Usage.InputTokens, run.Usage.OutputTokens, run.CostUSD, run.ElapsedMS, run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ConsensusRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, subject, page_number, confidence, agreement_score, primary_provider, result, input_tokens, output_tokens, cost_usd, elapsed_ms, created_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ConsensusRun, error) {
	query := `SELECT id, kind, subject, page_number, confidence, agreement_score, primary_provider, result, input_tokens, output_tokens, cost_usd, elapsed_ms, created_at
	 FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.DegradedOnly {
		query += ` AND primary_provider = ?`
		args = append(args, model.PrimaryNone)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ConsensusRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveMarkRecords(ctx context.Context, records []model.MarkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO mark_records (batch_id, student_id, subject, question, max_marks, awarded, percentage, grade, confidence, agreement, needs_review, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare mark record insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			rec.BatchID, rec.StudentID, rec.Subject, rec.Question,
			rec.MaxMarks, rec.Awarded, rec.Percentage, rec.Grade,
			rec.Confidence, rec.Agreement, rec.NeedsReview, createdAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert mark record %s/%s", rec.StudentID, rec.Question)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit mark records")
}

func (s *SQLiteStore) ListMarkRecords(ctx context.Context, batchID string) ([]model.MarkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, student_id, subject, question, max_marks, awarded, percentage, grade, confidence, agreement, needs_review, created_at
		 FROM mark_records WHERE batch_id = ? ORDER BY student_id, question`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mark records")
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
			return nil, eris.Wrap(err, "sqlite: scan mark record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list mark records iterate")
}

func (s *SQLiteStore) IncrementUsage(ctx context.Context, usage model.ProviderUsage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_usage (provider, day, successes, failures, timeouts, tokens, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, day) DO UPDATE SET
		   successes = successes + excluded.successes,
		   failures  = failures + excluded.failures,
		   timeouts  = timeouts + excluded.timeouts,
		   tokens    = tokens + excluded.tokens,
		   cost_usd  = cost_usd + excluded.cost_usd`,
		usage.Provider, usage.Day, usage.Successes, usage.Failures, usage.Timeouts, usage.Tokens, usage.CostUSD,
	)
	return eris.Wrapf(err, "sqlite: increment usage %s/%s", usage.Provider, usage.Day)
}

func (s *SQLiteStore) ListUsage(ctx context.Context, sinceDay string) ([]model.ProviderUsage, error) {
	query := `SELECT provider, day, successes, failures, timeouts, tokens, cost_usd FROM provider_usage`
	var args []any
	if sinceDay != "" {
		query += ` WHERE day >= ?`
		args = append(args, sinceDay)
	}
	query += ` ORDER BY day DESC, provider`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list usage")
	}
	defer rows.Close()

	var usages []model.ProviderUsage
	for rows.Next() {
		var u model.ProviderUsage
		if err := rows.Scan(&u.Provider, &u.Day, &u.Successes, &u.Failures, &u.Timeouts, &u.Tokens, &u.CostUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan usage")
		}
		usages = append(usages, u)
	}
	return usages, eris.Wrap(rows.Err(), "sqlite: list usage iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ConsensusRun, error) {
	var r model.ConsensusRun
	var kind string
	var resultJSON sql.NullString

	err := row.Scan(
		&r.ID, &kind, &r.Subject, &r.PageNumber,
		&r.Confidence, &r.AgreementScore, &r.PrimaryProvider, &resultJSON,
		&r.Usage.InputTokens, &r.Usage.OutputTokens, &r.CostUSD, &r.ElapsedMS, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Kind = model.TaskKind(kind)
	if resultJSON.Valid {
		r.Result = &model.ConsensusResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
