package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/geoid"
	"github.com/climateburdentract/cbi-pipeline/internal/store"
)

const maxListLimit = 1000

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScoreByTract serves GET /scores/{geoid}.
func (s *Server) handleScoreByTract(w http.ResponseWriter, r *http.Request) {
	g, err := geoid.Normalize(chi.URLParam(r, "geoid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tract identifier")
		return
	}

	score, err := s.store.GetScore(r.Context(), g)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tract not scored")
		return
	}
	if err != nil {
		zap.L().Error("get score failed", zap.String("geoid", g), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// handleScoreByPoint serves GET /score?lat=..&lon=.. by resolving the point
// to a tract and returning its score.
func (s *Server) handleScoreByPoint(w http.ResponseWriter, r *http.Request) {
	if s.locator == nil || s.locator.Len() == 0 {
		writeError(w, http.StatusServiceUnavailable, "tract geometries not loaded")
		return
	}

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required numeric parameters")
		return
	}

	g, ok := s.locator.Locate(lon, lat)
	if !ok {
		writeError(w, http.StatusNotFound, "no tract contains this point")
		return
	}

	score, err := s.store.GetScore(r.Context(), g)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tract not scored")
		return
	}
	if err != nil {
		zap.L().Error("get score failed", zap.String("geoid", g), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// handleListScores serves GET /scores?sort=cbi&limit=100, highest first.
func (s *Server) handleListScores(w http.ResponseWriter, r *http.Request) {
	method, err := store.ParseRankMethod(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "sort must be one of cbi, burden, vulnerability")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxListLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
	}

	scores, err := s.store.ListScores(r.Context(), method, limit)
	if err != nil {
		zap.L().Error("list scores failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sort":   string(method),
		"count":  len(scores),
		"scores": scores,
	})
}

// handleClusters serves GET /clusters?method=cbi with quartile summaries.
func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	method, err := store.ParseRankMethod(r.URL.Query().Get("method"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "method must be one of cbi, burden, vulnerability")
		return
	}

	clusters, err := s.store.ClusterSummaries(r.Context(), method)
	if err != nil {
		zap.L().Error("cluster summaries failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "clustering failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"method":   string(method),
		"clusters": clusters,
	})
}

// handleInsights serves GET /nlp-insights/{geoid}.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	g, err := geoid.Normalize(chi.URLParam(r, "geoid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tract identifier")
		return
	}

	score, err := s.store.GetScore(r.Context(), g)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tract not scored")
		return
	}
	if err != nil {
		zap.L().Error("get score failed", zap.String("geoid", g), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	pct, err := s.store.Percentile(r.Context(), store.RankCBI, g)
	if err != nil {
		zap.L().Error("percentile failed", zap.String("geoid", g), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	summary, err := s.insights.Summarize(r.Context(), score, pct)
	if err != nil {
		zap.L().Error("insight generation failed", zap.String("geoid", g), zap.Error(err))
		writeError(w, http.StatusBadGateway, "summary generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"geoid":      g,
		"percentile": pct,
		"summary":    summary,
	})
}
