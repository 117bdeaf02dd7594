package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/pipeline"
)

var runSkipLoad bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: extract, fuse, score, load",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p := pipeline.New(cfg, nil)
		if !runSkipLoad {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			p = pipeline.New(cfg, st)
		}

		result, err := p.Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("run complete",
			zap.String("run_id", result.RunID),
			zap.Int("tracts", result.TractCount),
			zap.Strings("absent_columns", result.AbsentColumns),
			zap.Duration("duration", result.Duration),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSkipLoad, "skip-load", false, "write the processed table but do not load the serving store")
	rootCmd.AddCommand(runCmd)
}
