package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/climateburdentract/cbi-pipeline/internal/fuse"
)

// ErrNotFound is returned when a requested tract has no stored score.
var ErrNotFound = eris.New("store: not found")

// RankMethod selects the score column used for ordering and percentiles.
// Methods map to fixed column names; request input never reaches SQL text
// directly.
type RankMethod string

const (
	RankCBI           RankMethod = "cbi"
	RankBurden        RankMethod = "burden"
	RankVulnerability RankMethod = "vulnerability"
)

// rankColumns maps each allowed method onto its score column.
var rankColumns = map[RankMethod]string{
	RankCBI:           "cbi_normalized",
	RankBurden:        "climate_burden_score",
	RankVulnerability: "vulnerability_score",
}

// ParseRankMethod validates a request-supplied method name. Empty input
// defaults to RankCBI.
func ParseRankMethod(s string) (RankMethod, error) {
	if s == "" {
		return RankCBI, nil
	}
	m := RankMethod(s)
	if _, ok := rankColumns[m]; !ok {
		return "", eris.Errorf("store: unknown rank method %q", s)
	}
	return m, nil
}

// Column returns the score column backing the method.
func (m RankMethod) Column() string {
	return rankColumns[m]
}

// TractScore is one tract's stored composite scores plus the headline
// features behind them.
type TractScore struct {
	GEOID          string    `json:"geoid"`
	RunID          string    `json:"run_id"`
	BurdenScore    float64   `json:"climate_burden_score"`
	Vulnerability  float64   `json:"vulnerability_score"`
	CBI            float64   `json:"climate_burden_index"`
	CBINormalized  float64   `json:"climate_burden_index_normalized"`
	SVIComposite   *float64  `json:"svi_composite,omitempty"`
	HeatAnnualMean *float64  `json:"heat_annual_mean,omitempty"`
	PM25Mean       *float64  `json:"pm25_mean,omitempty"`
	OzoneMean      *float64  `json:"ozone_mean,omitempty"`
	LoadedAt       time.Time `json:"loaded_at"`
}

// ClusterSummary is one quartile bucket of the tract population under a rank
// method.
type ClusterSummary struct {
	Bucket            int     `json:"bucket"`
	TractCount        int     `json:"tract_count"`
	MeanCBINormalized float64 `json:"mean_cbi_normalized"`
	MeanBurden        float64 `json:"mean_burden"`
	MeanVulnerability float64 `json:"mean_vulnerability"`
}

// QualityRecord is one data-quality audit entry for a pipeline run.
type QualityRecord struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	RowCount  int       `json:"row_count"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists scored tracts for the query API.
type Store interface {
	Migrate(ctx context.Context) error

	// ReplaceScores atomically swaps the full scored table for a run.
	ReplaceScores(ctx context.Context, runID string, rows []fuse.FeatureRow) error
	GetScore(ctx context.Context, geoid string) (*TractScore, error)
	ListScores(ctx context.Context, method RankMethod, limit int) ([]TractScore, error)
	// Percentile reports the fraction of tracts at or below the given
	// tract's value under the method, in [0, 1].
	Percentile(ctx context.Context, method RankMethod, geoid string) (float64, error)
	ClusterSummaries(ctx context.Context, method RankMethod) ([]ClusterSummary, error)

	RecordQuality(ctx context.Context, recs []QualityRecord) error
	ListQuality(ctx context.Context, runID string) ([]QualityRecord, error)

	Close() error
}
