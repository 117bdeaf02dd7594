package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ScoringResult is the workflow's final payload.
type ScoringResult struct {
	RunID         string         `json:"run_id"`
	TractCount    int            `json:"tract_count"`
	SourceRows    map[string]int `json:"source_rows"`
	AbsentColumns []string       `json:"absent_columns,omitempty"`
}

// ScoringPipeline is the weekly run: extract all sources, fuse and score,
// then load the serving store. Each stage retries up to three times; a stage
// that still fails fails the run.
func ScoringPipeline(ctx workflow.Context) (*ScoringResult, error) {
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Minute,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, opts)
	logger := workflow.GetLogger(ctx)

	runID := workflow.GetInfo(ctx).WorkflowExecution.RunID
	logger.Info("scoring pipeline starting", "run_id", runID)

	var a *Activities

	var sourceRows map[string]int
	if err := workflow.ExecuteActivity(ctx, a.ExtractSources).Get(ctx, &sourceRows); err != nil {
		return nil, err
	}

	var fused FuseResult
	if err := workflow.ExecuteActivity(ctx, a.FuseAndScore).Get(ctx, &fused); err != nil {
		return nil, err
	}

	if err := workflow.ExecuteActivity(ctx, a.LoadScores, runID, sourceRows).Get(ctx, nil); err != nil {
		return nil, err
	}

	logger.Info("scoring pipeline complete", "tracts", fused.TractCount)
	return &ScoringResult{
		RunID:         runID,
		TractCount:    fused.TractCount,
		SourceRows:    sourceRows,
		AbsentColumns: fused.AbsentColumns,
	}, nil
}
