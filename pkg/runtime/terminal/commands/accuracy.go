package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/de-tools/inventory-atlas/pkg/adapters"
	"github.com/de-tools/inventory-atlas/pkg/models/api"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

type AccuracyCmd struct {
	env          *Env
	runID        string
	actual       string
	currency     string
	byType       map[string]string
	fromProvider bool
	from         string
	to           string
}

func NewAccuracyCmd(env *Env) *cobra.Command {
	ac := &AccuracyCmd{env: env}
	cmd := &cobra.Command{
		Use:   "accuracy",
		Short: "Compare a snapshot's daily estimate with an actual bill",
		Example: `  atlas accuracy --run 5f1c... --actual 5402.27
  atlas accuracy --run 5f1c... --actual 120 --by-type compute_instance=100,block_volume=20
  atlas accuracy --run 5f1c... --from-provider --from 2026-10-01 --to 2026-10-02`,
		RunE: ac.run,
	}

	cmd.Flags().StringVar(&ac.runID, "run", "", "Run whose snapshot to reconcile")
	cmd.Flags().StringVar(&ac.actual, "actual", "", "Actual daily cost")
	cmd.Flags().StringVar(&ac.currency, "currency", "", "Currency of the actual cost (defaults to the snapshot's)")
	cmd.Flags().StringToStringVar(&ac.byType, "by-type", nil, "Actual daily cost per resource type (type=amount)")
	cmd.Flags().BoolVar(&ac.fromProvider, "from-provider", false, "Read the actual cost from the provider's billing API")
	cmd.Flags().StringVar(&ac.from, "from", "", "First billing day (YYYY-MM-DD), with --from-provider")
	cmd.Flags().StringVar(&ac.to, "to", "", "Day after the last billing day (YYYY-MM-DD), with --from-provider")

	_ = cmd.MarkFlagRequired("run")
	cmd.MarkFlagsOneRequired("actual", "from-provider")
	cmd.MarkFlagsMutuallyExclusive("actual", "from-provider")
	cmd.MarkFlagsRequiredTogether("from", "to")

	return cmd
}

func (ac *AccuracyCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var (
		report domain.AccuracyReport
		err    error
	)
	if ac.fromProvider {
		period, perr := adapters.ParsePeriod(ac.from, ac.to)
		if perr != nil {
			return perr
		}
		report, err = ac.env.Backend.Reconciler.ReconcileFromProvider(ctx, ac.runID, period)
	} else {
		if ac.from != "" {
			return fmt.Errorf("--from and --to require --from-provider")
		}
		bill, perr := adapters.MapApiAccuracyRequestToDomain(api.AccuracyRequest{
			Actual:   ac.actual,
			ByType:   ac.byType,
			Currency: ac.currency,
		})
		if perr != nil {
			return perr
		}
		report, err = ac.env.Backend.Reconciler.Reconcile(ctx, ac.runID, bill)
	}
	if err != nil {
		return err
	}
	return ac.env.Reporter.Accuracy(report)
}
