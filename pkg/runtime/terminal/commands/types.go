package commands

import (
	"github.com/spf13/cobra"
)

func NewTypesCmd(env *Env) *cobra.Command {
	var connectionID string
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the resource types a sync of the connection discovers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			types, err := env.Backend.Types.ResourceTypes(cmd.Context(), connectionID)
			if err != nil {
				return err
			}
			return env.Reporter.Types(connectionID, types)
		},
	}

	cmd.Flags().StringVar(&connectionID, "connection", "", "Connection to inspect")
	_ = cmd.MarkFlagRequired("connection")

	return cmd
}
