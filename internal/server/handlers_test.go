package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/climateburdentract/cbi-pipeline/internal/config"
	"github.com/climateburdentract/cbi-pipeline/internal/extract"
	"github.com/climateburdentract/cbi-pipeline/internal/fuse"
	"github.com/climateburdentract/cbi-pipeline/internal/insights"
	"github.com/climateburdentract/cbi-pipeline/internal/reconcile"
	"github.com/climateburdentract/cbi-pipeline/internal/store"
)

// fakeStore serves a fixed score set keyed by GEOID.
type fakeStore struct {
	scores map[string]store.TractScore
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func (f *fakeStore) ReplaceScores(context.Context, string, []fuse.FeatureRow) error { return nil }

func (f *fakeStore) GetScore(_ context.Context, geoid string) (*store.TractScore, error) {
	ts, ok := f.scores[geoid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ts, nil
}

func (f *fakeStore) ListScores(_ context.Context, _ store.RankMethod, limit int) ([]store.TractScore, error) {
	out := make([]store.TractScore, 0, len(f.scores))
	for _, ts := range f.scores {
		if len(out) == limit {
			break
		}
		out = append(out, ts)
	}
	return out, nil
}

func (f *fakeStore) Percentile(_ context.Context, _ store.RankMethod, geoid string) (float64, error) {
	if _, ok := f.scores[geoid]; !ok {
		return 0, store.ErrNotFound
	}
	return 0.9, nil
}

func (f *fakeStore) ClusterSummaries(context.Context, store.RankMethod) ([]store.ClusterSummary, error) {
	return []store.ClusterSummary{{Bucket: 1, TractCount: len(f.scores)}}, nil
}

func (f *fakeStore) RecordQuality(context.Context, []store.QualityRecord) error { return nil }

func (f *fakeStore) ListQuality(context.Context, string) ([]store.QualityRecord, error) {
	return nil, nil
}

func testTract(t *testing.T, id string) extract.TractGeometry {
	t.Helper()
	poly := geom.NewPolygonFlat(geom.XY,
		[]float64{-112.2, 33.3, -112.0, 33.3, -112.0, 33.5, -112.2, 33.5, -112.2, 33.3},
		[]int{10})
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	require.NoError(t, mp.Push(poly))
	return extract.TractGeometry{GEOID: id, Geom: mp}
}

func newTestServer(t *testing.T, locator *reconcile.TractLocator) *httptest.Server {
	t.Helper()
	st := &fakeStore{scores: map[string]store.TractScore{
		"04013300200": {GEOID: "04013300200", RunID: "run-1", BurdenScore: 0.8, Vulnerability: 0.5, CBI: 0.4, CBINormalized: 90},
	}}
	s := New(config.ServerConfig{Port: 0}, st, locator, &insights.StaticGenerator{})
	srv := httptest.NewServer(s.http.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHandleScoreByTract(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("known tract", func(t *testing.T) {
		var ts store.TractScore
		code := getJSON(t, srv.URL+"/scores/04013300200", &ts)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "04013300200", ts.GEOID)
		assert.InDelta(t, 90.0, ts.CBINormalized, 1e-9)
	})

	t.Run("unscored tract", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/scores/06037110300", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("malformed geoid", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/scores/xyz", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestHandleScoreByPoint(t *testing.T) {
	loc := reconcile.NewTractLocator([]extract.TractGeometry{testTract(t, "04013300200")})

	t.Run("point resolves to scored tract", func(t *testing.T) {
		srv := newTestServer(t, loc)
		var ts store.TractScore
		code := getJSON(t, srv.URL+"/score?lat=33.45&lon=-112.07", &ts)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "04013300200", ts.GEOID)
	})

	t.Run("point outside every tract", func(t *testing.T) {
		srv := newTestServer(t, loc)
		code := getJSON(t, srv.URL+"/score?lat=40.0&lon=-100.0", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("non-numeric coordinates", func(t *testing.T) {
		srv := newTestServer(t, loc)
		code := getJSON(t, srv.URL+"/score?lat=abc&lon=-112.07", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("no geometries loaded", func(t *testing.T) {
		srv := newTestServer(t, nil)
		code := getJSON(t, srv.URL+"/score?lat=33.45&lon=-112.07", nil)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})
}

func TestHandleListScores(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("default sort", func(t *testing.T) {
		var body struct {
			Sort  string `json:"sort"`
			Count int    `json:"count"`
		}
		code := getJSON(t, srv.URL+"/scores", &body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "cbi", body.Sort)
		assert.Equal(t, 1, body.Count)
	})

	t.Run("unknown sort rejected", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/scores?sort=sneaky", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("limit bounds enforced", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/scores?limit=0", nil))
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/scores?limit=5000", nil))
		assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/scores?limit=10", nil))
	})
}

func TestHandleClusters(t *testing.T) {
	srv := newTestServer(t, nil)

	var body struct {
		Method   string                 `json:"method"`
		Clusters []store.ClusterSummary `json:"clusters"`
	}
	code := getJSON(t, srv.URL+"/clusters", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cbi", body.Method)
	require.Len(t, body.Clusters, 1)
	assert.Equal(t, 1, body.Clusters[0].TractCount)
}

func TestHandleInsights(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("scored tract gets a summary", func(t *testing.T) {
		var body struct {
			GEOID      string  `json:"geoid"`
			Percentile float64 `json:"percentile"`
			Summary    string  `json:"summary"`
		}
		code := getJSON(t, srv.URL+"/nlp-insights/04013300200", &body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "04013300200", body.GEOID)
		assert.InDelta(t, 0.9, body.Percentile, 1e-9)
		assert.NotEmpty(t, body.Summary)
	})

	t.Run("unscored tract", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/nlp-insights/06037110300", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	var body map[string]string
	code := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
