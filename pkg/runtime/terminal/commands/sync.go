package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type SyncCmd struct {
	env          *Env
	connectionID string
	detailed     bool
}

func NewSyncCmd(env *Env) *cobra.Command {
	sc := &SyncCmd{env: env}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Discover and price the resources of a connection",
		RunE:  sc.run,
	}

	cmd.Flags().StringVar(&sc.connectionID, "connection", "", "Connection to synchronize")
	cmd.Flags().BoolVar(&sc.detailed, "resources", false, "List every resource of the new snapshot")

	_ = cmd.MarkFlagRequired("connection")

	return cmd
}

func (sc *SyncCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	handle, err := sc.env.Backend.Controller.RunSync(ctx, sc.connectionID)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("run_id", handle.RunID).Str("connection", handle.ConnectionID).Msg("sync started")

	select {
	case <-handle.Done():
	case <-ctx.Done():
		handle.Cancel()
		<-handle.Done()
	}

	res := handle.Result()
	if err := sc.env.Reporter.Run(res.Run); err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("sync %s failed: %w", res.Run.ID, res.Err)
	}
	if res.Snapshot == nil {
		return nil
	}
	if err := sc.env.Reporter.Snapshot(*res.Snapshot, sc.detailed); err != nil {
		return err
	}
	if res.Run.Delta != nil {
		return sc.env.Reporter.Delta(*res.Run.Delta)
	}
	return nil
}
