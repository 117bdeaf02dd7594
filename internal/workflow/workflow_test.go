package workflow

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/climateburdentract/cbi-pipeline/internal/config"
	"github.com/climateburdentract/cbi-pipeline/internal/pipeline"
)

// emptyConfig points every data dir at an empty temp root, so all five
// extractors report absent sources.
func emptyConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Data: config.DataConfig{
			RawDir:       filepath.Join(root, "raw"),
			InterimDir:   filepath.Join(root, "interim"),
			ProcessedDir: filepath.Join(root, "processed"),
		},
	}
}

func TestScoringPipeline(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	a := &Activities{}
	env.RegisterActivity(a)
	env.OnActivity(a.ExtractSources, mock.Anything).
		Return(map[string]int{"svi": 3, "heat": 1, "air": 0, "tiger": 0, "esg": 0}, nil)
	env.OnActivity(a.FuseAndScore, mock.Anything).
		Return(FuseResult{TractCount: 3, AbsentColumns: []string{"pm25_mean"}}, nil)
	env.OnActivity(a.LoadScores, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	env.ExecuteWorkflow(ScoringPipeline)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ScoringResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.TractCount)
	assert.Equal(t, 3, result.SourceRows["svi"])
	assert.Equal(t, []string{"pm25_mean"}, result.AbsentColumns)
	env.AssertExpectations(t)
}

func TestScoringPipelineExtractFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	a := &Activities{}
	env.RegisterActivity(a)
	env.OnActivity(a.ExtractSources, mock.Anything).
		Return(nil, errors.New("source fetch failed"))

	env.ExecuteWorkflow(ScoringPipeline)
	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source fetch failed")
}

// Activities must heartbeat on their own, because the workflow's activity
// options carry a heartbeat timeout and the server fails silent activities.
func TestExtractSourcesHeartbeats(t *testing.T) {
	a := &Activities{Pipeline: pipeline.New(emptyConfig(t), nil)}

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterActivity(a)

	var beats atomic.Int32
	env.SetOnActivityHeartbeatListener(func(_ *activity.Info, _ converter.EncodedValues) {
		beats.Add(1)
	})

	env.ExecuteWorkflow(func(ctx workflow.Context) (map[string]int, error) {
		ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			HeartbeatTimeout:    30 * time.Second,
		})
		var out map[string]int
		err := workflow.ExecuteActivity(ctx, a.ExtractSources).Get(ctx, &out)
		return out, err
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out map[string]int
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, 0, out["heat"])
	assert.Equal(t, 0, out["svi"])
	assert.GreaterOrEqual(t, beats.Load(), int32(1))
}
