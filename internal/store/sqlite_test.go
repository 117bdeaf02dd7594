package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climateburdentract/cbi-pipeline/internal/fuse"
)

func f(v float64) *float64 { return &v }

func scoredRow(geoid string, burden, vuln, norm float64) fuse.FeatureRow {
	r := fuse.NewFeatureRow(geoid)
	r.ClimateBurdenScore = f(burden)
	r.VulnerabilityScore = f(vuln)
	idx := burden * vuln
	r.ClimateBurdenIndex = &idx
	r.ClimateBurdenIndexNormalized = f(norm)
	r.SVIComposite = f(vuln)
	return r
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cbi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedScores(t *testing.T, s *SQLiteStore, runID string) {
	t.Helper()
	rows := []fuse.FeatureRow{
		scoredRow("04013300100", 0.2, 0.9, 30),
		scoredRow("04013300200", 0.8, 0.5, 90),
		scoredRow("04013300300", 0.5, 0.5, 60),
		scoredRow("04013300400", 0.1, 0.1, 10),
	}
	require.NoError(t, s.ReplaceScores(context.Background(), runID, rows))
}

func TestSQLiteStoreScores(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedScores(t, s, "run-1")

	t.Run("get score by geoid", func(t *testing.T) {
		ts, err := s.GetScore(ctx, "04013300200")
		require.NoError(t, err)
		assert.Equal(t, "run-1", ts.RunID)
		assert.InDelta(t, 0.8, ts.BurdenScore, 1e-9)
		assert.InDelta(t, 90.0, ts.CBINormalized, 1e-9)
		require.NotNil(t, ts.SVIComposite)
		assert.InDelta(t, 0.5, *ts.SVIComposite, 1e-9)
		assert.Nil(t, ts.HeatAnnualMean)
	})

	t.Run("unknown geoid is not found", func(t *testing.T) {
		_, err := s.GetScore(ctx, "99999999999")
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("list ranks descending under each method", func(t *testing.T) {
		byCBI, err := s.ListScores(ctx, RankCBI, 2)
		require.NoError(t, err)
		require.Len(t, byCBI, 2)
		assert.Equal(t, "04013300200", byCBI[0].GEOID)
		assert.Equal(t, "04013300300", byCBI[1].GEOID)

		byVuln, err := s.ListScores(ctx, RankVulnerability, 1)
		require.NoError(t, err)
		require.Len(t, byVuln, 1)
		assert.Equal(t, "04013300100", byVuln[0].GEOID)
	})

	t.Run("percentile is fraction at or below", func(t *testing.T) {
		pct, err := s.Percentile(ctx, RankCBI, "04013300300")
		require.NoError(t, err)
		assert.InDelta(t, 0.75, pct, 1e-9)

		top, err := s.Percentile(ctx, RankCBI, "04013300200")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, top, 1e-9)

		_, err = s.Percentile(ctx, RankCBI, "99999999999")
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("cluster summaries cover the population", func(t *testing.T) {
		clusters, err := s.ClusterSummaries(ctx, RankCBI)
		require.NoError(t, err)
		require.Len(t, clusters, 4)

		total := 0
		for i, c := range clusters {
			assert.Equal(t, i+1, c.Bucket)
			total += c.TractCount
		}
		assert.Equal(t, 4, total)
		assert.Less(t, clusters[0].MeanCBINormalized, clusters[3].MeanCBINormalized)
	})

	t.Run("replace swaps the full table", func(t *testing.T) {
		require.NoError(t, s.ReplaceScores(ctx, "run-2",
			[]fuse.FeatureRow{scoredRow("06037110300", 0.3, 0.3, 50)}))

		_, err := s.GetScore(ctx, "04013300200")
		assert.True(t, eris.Is(err, ErrNotFound))

		ts, err := s.GetScore(ctx, "06037110300")
		require.NoError(t, err)
		assert.Equal(t, "run-2", ts.RunID)
	})

	t.Run("unscored row rejects the whole load", func(t *testing.T) {
		err := s.ReplaceScores(ctx, "run-3",
			[]fuse.FeatureRow{fuse.NewFeatureRow("04013300100")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unscored")
	})
}

func TestSQLiteStoreQuality(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.RecordQuality(ctx, []QualityRecord{
		{RunID: "run-1", Source: "temperature", RowCount: 120, CreatedAt: now},
		{RunID: "run-1", Source: "svi", RowCount: 0, Note: "source absent", CreatedAt: now},
		{RunID: "run-2", Source: "temperature", RowCount: 5, CreatedAt: now},
	}))

	recs, err := s.ListQuality(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "temperature", recs[0].Source)
	assert.Equal(t, 120, recs[0].RowCount)
	assert.Equal(t, "source absent", recs[1].Note)

	none, err := s.ListQuality(ctx, "run-9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseRankMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    RankMethod
		wantErr bool
	}{
		{"", RankCBI, false},
		{"cbi", RankCBI, false},
		{"burden", RankBurden, false},
		{"vulnerability", RankVulnerability, false},
		{"sql injection", "", true},
	}
	for _, tt := range tests {
		m, err := ParseRankMethod(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, m)
	}
}
