package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/climateburdentract/cbi-pipeline/internal/db"
	"github.com/climateburdentract/cbi-pipeline/internal/fuse"
)

// PostgresStore implements Store using pgxpool. It is the serving store for
// shared deployments; score loads use the COPY protocol.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tract_scores (
	geoid                TEXT PRIMARY KEY,
	run_id               TEXT NOT NULL,
	climate_burden_score DOUBLE PRECISION NOT NULL,
	vulnerability_score  DOUBLE PRECISION NOT NULL,
	cbi                  DOUBLE PRECISION NOT NULL,
	cbi_normalized       DOUBLE PRECISION NOT NULL,
	svi_composite        DOUBLE PRECISION,
	heat_annual_mean     DOUBLE PRECISION,
	pm25_mean            DOUBLE PRECISION,
	ozone_mean           DOUBLE PRECISION,
	loaded_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quality_audit (
	run_id     TEXT NOT NULL,
	source     TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	note       TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, source)
);

CREATE INDEX IF NOT EXISTS idx_tract_scores_cbi ON tract_scores(cbi_normalized);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var scoreInsertColumns = []string{
	"geoid", "run_id", "climate_burden_score", "vulnerability_score", "cbi", "cbi_normalized",
	"svi_composite", "heat_annual_mean", "pm25_mean", "ozone_mean", "loaded_at",
}

func (s *PostgresStore) ReplaceScores(ctx context.Context, runID string, rows []fuse.FeatureRow) error {
	now := time.Now().UTC()
	copyRows := make([][]any, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		if r.ClimateBurdenScore == nil || r.VulnerabilityScore == nil ||
			r.ClimateBurdenIndex == nil || r.ClimateBurdenIndexNormalized == nil {
			return eris.Errorf("postgres: tract %s is unscored", r.GEOID)
		}
		copyRows = append(copyRows, []any{
			r.GEOID, runID,
			*r.ClimateBurdenScore, *r.VulnerabilityScore,
			*r.ClimateBurdenIndex, *r.ClimateBurdenIndexNormalized,
			nullable(r.SVIComposite), nullable(r.HeatAnnualMean),
			nullable(r.PM25Mean), nullable(r.OzoneMean),
			now,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tract_scores`); err != nil {
		return eris.Wrap(err, "postgres: clear scores")
	}
	if _, err := db.CopyFrom(ctx, tx, "tract_scores", scoreInsertColumns, copyRows); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace")
}

const pgScoreColumns = `geoid, run_id, climate_burden_score, vulnerability_score, cbi, cbi_normalized,
	svi_composite, heat_annual_mean, pm25_mean, ozone_mean, loaded_at`

func (s *PostgresStore) GetScore(ctx context.Context, geoid string) (*TractScore, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgScoreColumns+` FROM tract_scores WHERE geoid = $1`, geoid)
	ts, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get score %s", geoid)
	}
	return ts, nil
}

func (s *PostgresStore) ListScores(ctx context.Context, method RankMethod, limit int) ([]TractScore, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(
		`SELECT %s FROM tract_scores ORDER BY %s DESC LIMIT $1`,
		pgScoreColumns, method.Column())
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scores")
	}
	defer rows.Close()

	var out []TractScore
	for rows.Next() {
		ts, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		out = append(out, *ts)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scores rows")
}

func (s *PostgresStore) Percentile(ctx context.Context, method RankMethod, geoid string) (float64, error) {
	col := method.Column()
	query := fmt.Sprintf(`
		SELECT (SELECT COUNT(*) FROM tract_scores b WHERE b.%s <= a.%s)::float8
			 / (SELECT COUNT(*) FROM tract_scores)
		FROM tract_scores a WHERE a.geoid = $1`, col, col)

	var pct float64
	err := s.pool.QueryRow(ctx, query, geoid).Scan(&pct)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: percentile %s", geoid)
	}
	return pct, nil
}

func (s *PostgresStore) ClusterSummaries(ctx context.Context, method RankMethod) ([]ClusterSummary, error) {
	query := fmt.Sprintf(`
		SELECT bucket, COUNT(*), AVG(cbi_normalized), AVG(climate_burden_score), AVG(vulnerability_score)
		FROM (
			SELECT *, NTILE(4) OVER (ORDER BY %s) AS bucket FROM tract_scores
		) t
		GROUP BY bucket ORDER BY bucket`, method.Column())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cluster summaries")
	}
	defer rows.Close()

	var out []ClusterSummary
	for rows.Next() {
		var c ClusterSummary
		var count int64
		if err := rows.Scan(&c.Bucket, &count, &c.MeanCBINormalized, &c.MeanBurden, &c.MeanVulnerability); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster summary")
		}
		c.TractCount = int(count)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: cluster summary rows")
}

// RecordQuality upserts audit rows keyed by (run_id, source) so a retried
// pipeline stage overwrites its own entry instead of duplicating it.
func (s *PostgresStore) RecordQuality(ctx context.Context, recs []QualityRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []any{rec.RunID, rec.Source, rec.RowCount, rec.Note, rec.CreatedAt.UTC()})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "quality_audit",
		Columns:      []string{"run_id", "source", "row_count", "note", "created_at"},
		ConflictKeys: []string{"run_id", "source"},
	}, rows)
	return err
}

func (s *PostgresStore) ListQuality(ctx context.Context, runID string) ([]QualityRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, source, row_count, COALESCE(note, ''), created_at
		 FROM quality_audit WHERE run_id = $1 ORDER BY source`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list quality")
	}
	defer rows.Close()

	var out []QualityRecord
	for rows.Next() {
		var rec QualityRecord
		if err := rows.Scan(&rec.RunID, &rec.Source, &rec.RowCount, &rec.Note, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quality record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: quality rows")
}
