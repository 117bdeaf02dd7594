// Package workflow schedules the weekly scoring pipeline on Temporal.
package workflow

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/pipeline"
)

// Activities wraps pipeline stages as Temporal activities. Each activity
// maps to one pipeline stage so retries re-execute whole stages.
type Activities struct {
	Pipeline *pipeline.Pipeline
}

// heartbeatInterval must stay well under the workflow's heartbeat timeout.
const heartbeatInterval = time.Minute

// startHeartbeat records an immediate activity heartbeat, then keeps
// heartbeating in the background until the returned stop function is called.
// National extracts run far past the heartbeat timeout, so an activity that
// stops pulsing is failed by the server.
func startHeartbeat(ctx context.Context) (stop func()) {
	activity.RecordHeartbeat(ctx)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}

// ExtractSources runs all five extractors and returns per-source row counts.
func (a *Activities) ExtractSources(ctx context.Context) (map[string]int, error) {
	defer startHeartbeat(ctx)()
	return a.Pipeline.Extract(ctx)
}

// FuseAndScore builds and scores the feature table, returning the tract
// count and the wholly absent feature columns.
func (a *Activities) FuseAndScore(ctx context.Context) (FuseResult, error) {
	defer startHeartbeat(ctx)()
	rows, report, err := a.Pipeline.FuseAndScore(ctx)
	if err != nil {
		return FuseResult{}, err
	}
	return FuseResult{TractCount: len(rows), AbsentColumns: report.Absent}, nil
}

// LoadScores re-reads the processed table and replaces the serving store's
// contents. It reloads from disk rather than passing rows through Temporal
// payloads, which have a size ceiling well below a national tract table.
func (a *Activities) LoadScores(ctx context.Context, runID string, sourceRows map[string]int) error {
	defer startHeartbeat(ctx)()
	zap.L().Info("loading scores from processed table", zap.String("run_id", runID))
	return a.Pipeline.LoadProcessed(ctx, runID, sourceRows)
}

// FuseResult is the FuseAndScore activity payload.
type FuseResult struct {
	TractCount    int      `json:"tract_count"`
	AbsentColumns []string `json:"absent_columns,omitempty"`
}
