package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/climateburdentract/cbi-pipeline/internal/fuse"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// serving store for single-node deployments.
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
CREATE TABLE IF NOT EXISTS tract_scores (
	geoid                TEXT PRIMARY KEY,
	run_id               TEXT NOT NULL,
	climate_burden_score REAL NOT NULL,
	vulnerability_score  REAL NOT NULL,
	cbi                  REAL NOT NULL,
	cbi_normalized       REAL NOT NULL,
	svi_composite        REAL,
	heat_annual_mean     REAL,
	pm25_mean            REAL,
	ozone_mean           REAL,
	loaded_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS quality_audit (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	source     TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	note       TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tract_scores_cbi ON tract_scores(cbi_normalized);
CREATE INDEX IF NOT EXISTS idx_quality_audit_run_id ON quality_audit(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceScores(ctx context.Context, runID string, rows []fuse.FeatureRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tract_scores`); err != nil {
		return eris.Wrap(err, "sqlite: clear scores")
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tract_scores
			(geoid, run_id, climate_burden_score, vulnerability_score, cbi, cbi_normalized,
			 svi_composite, heat_annual_mean, pm25_mean, ozone_mean, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		if r.ClimateBurdenScore == nil || r.VulnerabilityScore == nil ||
			r.ClimateBurdenIndex == nil || r.ClimateBurdenIndexNormalized == nil {
			return eris.Errorf("sqlite: tract %s is unscored", r.GEOID)
		}
		_, err := stmt.ExecContext(ctx,
			r.GEOID, runID,
			*r.ClimateBurdenScore, *r.VulnerabilityScore,
			*r.ClimateBurdenIndex, *r.ClimateBurdenIndexNormalized,
			nullable(r.SVIComposite), nullable(r.HeatAnnualMean),
			nullable(r.PM25Mean), nullable(r.OzoneMean),
			now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert tract %s", r.GEOID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace")
}

const scoreColumns = `geoid, run_id, climate_burden_score, vulnerability_score, cbi, cbi_normalized,
	svi_composite, heat_annual_mean, pm25_mean, ozone_mean, loaded_at`

func (s *SQLiteStore) GetScore(ctx context.Context, geoid string) (*TractScore, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM tract_scores WHERE geoid = ?`, geoid)
	ts, err := scanScore(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get score %s", geoid)
	}
	return ts, nil
}

func (s *SQLiteStore) ListScores(ctx context.Context, method RankMethod, limit int) ([]TractScore, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(
		`SELECT %s FROM tract_scores ORDER BY %s DESC LIMIT ?`,
		scoreColumns, method.Column())
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scores")
	}
	defer rows.Close()

	var out []TractScore
	for rows.Next() {
		ts, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		out = append(out, *ts)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scores rows")
}

func (s *SQLiteStore) Percentile(ctx context.Context, method RankMethod, geoid string) (float64, error) {
	col := method.Column()
	query := fmt.Sprintf(`
		SELECT CAST(
			(SELECT COUNT(*) FROM tract_scores b
			 WHERE b.%s <= a.%s) AS REAL
		) / (SELECT COUNT(*) FROM tract_scores)
		FROM tract_scores a WHERE a.geoid = ?`, col, col)

	var pct float64
	err := s.db.QueryRowContext(ctx, query, geoid).Scan(&pct)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: percentile %s", geoid)
	}
	return pct, nil
}

func (s *SQLiteStore) ClusterSummaries(ctx context.Context, method RankMethod) ([]ClusterSummary, error) {
	query := fmt.Sprintf(`
		SELECT bucket, COUNT(*), AVG(cbi_normalized), AVG(climate_burden_score), AVG(vulnerability_score)
		FROM (
			SELECT *, NTILE(4) OVER (ORDER BY %s) AS bucket FROM tract_scores
		)
		GROUP BY bucket ORDER BY bucket`, method.Column())

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: cluster summaries")
	}
	defer rows.Close()

	var out []ClusterSummary
	for rows.Next() {
		var c ClusterSummary
		if err := rows.Scan(&c.Bucket, &c.TractCount, &c.MeanCBINormalized, &c.MeanBurden, &c.MeanVulnerability); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cluster summary")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: cluster summary rows")
}

func (s *SQLiteStore) RecordQuality(ctx context.Context, recs []QualityRecord) error {
	for _, rec := range recs {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO quality_audit (run_id, source, row_count, note, created_at) VALUES (?, ?, ?, ?, ?)`,
			rec.RunID, rec.Source, rec.RowCount, rec.Note, rec.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: record quality %s/%s", rec.RunID, rec.Source)
		}
	}
	return nil
}

func (s *SQLiteStore) ListQuality(ctx context.Context, runID string) ([]QualityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, source, row_count, COALESCE(note, ''), created_at
		 FROM quality_audit WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list quality")
	}
	defer rows.Close()

	var out []QualityRecord
	for rows.Next() {
		var rec QualityRecord
		if err := rows.Scan(&rec.RunID, &rec.Source, &rec.RowCount, &rec.Note, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quality record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: quality rows")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*TractScore, error) {
	var ts TractScore
	var svi, heat, pm25, ozone sql.NullFloat64
	err := row.Scan(
		&ts.GEOID, &ts.RunID,
		&ts.BurdenScore, &ts.Vulnerability, &ts.CBI, &ts.CBINormalized,
		&svi, &heat, &pm25, &ozone,
		&ts.LoadedAt,
	)
	if err != nil {
		return nil, err
	}
	ts.SVIComposite = floatPtr(svi)
	ts.HeatAnnualMean = floatPtr(heat)
	ts.PM25Mean = floatPtr(pm25)
	ts.OzoneMean = floatPtr(ozone)
	return &ts, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
