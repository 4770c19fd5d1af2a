package commands

import (
	"github.com/spf13/cobra"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/services/workflow"
)

func NewSnapshotCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect stored snapshots",
	}
	cmd.AddCommand(newSnapshotShowCmd(env))
	cmd.AddCommand(newSnapshotDiffCmd(env))
	return cmd
}

func newSnapshotShowCmd(env *Env) *cobra.Command {
	var (
		connectionID string
		runID        string
		detailed     bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the latest snapshot of a connection, or the snapshot of a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				snap domain.Snapshot
				err  error
			)
			if runID != "" {
				snap, err = env.Backend.Snapshots.Get(cmd.Context(), runID)
			} else {
				snap, err = env.Backend.Snapshots.Latest(cmd.Context(), connectionID)
			}
			if err != nil {
				return err
			}
			return env.Reporter.Snapshot(snap, detailed)
		},
	}

	cmd.Flags().StringVar(&connectionID, "connection", "", "Connection whose latest snapshot to show")
	cmd.Flags().StringVar(&runID, "run", "", "Run whose snapshot to show")
	cmd.Flags().BoolVar(&detailed, "resources", false, "List every resource")
	cmd.MarkFlagsOneRequired("connection", "run")
	cmd.MarkFlagsMutuallyExclusive("connection", "run")

	return cmd
}

func newSnapshotDiffCmd(env *Env) *cobra.Command {
	var connectionID string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the latest snapshot of a connection with the one before it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			delta, err := workflow.LatestDiff(cmd.Context(), env.Backend.Snapshots, connectionID)
			if err != nil {
				return err
			}
			return env.Reporter.Delta(delta)
		},
	}

	cmd.Flags().StringVar(&connectionID, "connection", "", "Connection to compare")
	_ = cmd.MarkFlagRequired("connection")

	return cmd
}
