package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusRunID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the data-quality audit for a pipeline run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if statusRunID == "" {
			return eris.New("--run is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListQuality(ctx, statusRunID)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return eris.Errorf("no audit records for run %s", statusRunID)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "pipeline run ID")
	rootCmd.AddCommand(statusCmd)
}
