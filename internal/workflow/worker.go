package workflow

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/climateburdentract/cbi-pipeline/internal/config"
	"github.com/climateburdentract/cbi-pipeline/internal/pipeline"
)

// RunWorker registers the scoring workflow and its activities and serves the
// configured task queue until the context is cancelled.
func RunWorker(ctx context.Context, cfg config.TemporalConfig, p *pipeline.Pipeline) error {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return eris.Wrap(err, "workflow: dial temporal")
	}
	defer c.Close()

	w := worker.New(c, cfg.TaskQueue, worker.Options{})
	w.RegisterWorkflow(ScoringPipeline)
	w.RegisterActivity(&Activities{Pipeline: p})

	if err := w.Run(interruptFrom(ctx)); err != nil {
		return eris.Wrap(err, "workflow: run worker")
	}
	return nil
}

// interruptFrom adapts a context to the worker's interrupt channel.
func interruptFrom(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
