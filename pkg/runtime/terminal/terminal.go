package terminal

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/inventory-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/inventory-atlas/pkg/runtime/terminal/export"
)

// OpenFunc builds the command backend from the config file at path. The
// returned closer is called once the command has finished.
type OpenFunc func(ctx context.Context, configPath string) (commands.Backend, io.Closer, error)

// CLI represents the command-line interface
type CLI struct {
	open    OpenFunc
	output  io.Writer
	logger  zerolog.Logger
	env     *commands.Env
	closer  io.Closer
	rootCmd *cobra.Command

	configPath string
	format     string
}

// Options contain configuration for the CLI
type Options struct {
	Open   OpenFunc
	Output io.Writer
	Logger *zerolog.Logger
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	cli := &CLI{
		open:   opts.Open,
		output: opts.Output,
		logger: logger,
		env:    &commands.Env{},
	}

	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute(ctx context.Context) error {
	err := cli.rootCmd.ExecuteContext(ctx)
	if cli.closer != nil {
		err = errors.Join(err, cli.closer.Close())
	}
	return err
}

// SetArgs overrides os.Args, mainly for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "atlas",
		Short:             "Multi-cloud inventory and daily cost estimation",
		SilenceUsage:      true,
		PersistentPreRunE: cli.prepare,
	}

	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to atlas.yaml (default ./atlas.yaml or $HOME/.atlas/atlas.yaml)")
	cmd.PersistentFlags().StringVarP(&cli.format, "output", "o", export.FormatText, "Output format: text or json")
	cmd.SetOut(cli.output)

	cmd.AddCommand(commands.NewSyncCmd(cli.env))
	cmd.AddCommand(commands.NewSnapshotCmd(cli.env))
	cmd.AddCommand(commands.NewAccuracyCmd(cli.env))
	cmd.AddCommand(commands.NewTypesCmd(cli.env))

	return cmd
}

func (cli *CLI) prepare(cmd *cobra.Command, _ []string) error {
	reporter, err := export.NewReporter(cli.format, cli.output)
	if err != nil {
		return err
	}
	cli.env.Reporter = reporter

	ctx := cli.logger.WithContext(cmd.Context())
	cmd.SetContext(ctx)

	backend, closer, err := cli.open(ctx, cli.configPath)
	if err != nil {
		return err
	}
	cli.env.Backend = backend
	cli.closer = closer
	return nil
}
