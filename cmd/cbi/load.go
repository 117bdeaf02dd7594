package main

import (
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the processed feature table into the serving store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runID := uuid.New().String()
		p := pipeline.New(cfg, st)
		if err := p.LoadProcessed(ctx, runID, nil); err != nil {
			return err
		}

		zap.L().Info("load complete", zap.String("run_id", runID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
