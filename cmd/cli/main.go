package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/de-tools/inventory-atlas/pkg/runtime/bootstrap"
	"github.com/de-tools/inventory-atlas/pkg/runtime/logging"
	"github.com/de-tools/inventory-atlas/pkg/runtime/terminal"
	"github.com/de-tools/inventory-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/inventory-atlas/pkg/services/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	logger := logging.New(os.Stderr, os.Getenv("ATLAS_LOG_LEVEL"), true)
	cli := terminal.NewCLI(terminal.Options{
		Open:   open,
		Output: os.Stdout,
		Logger: &logger,
	})

	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func open(ctx context.Context, configPath string) (commands.Backend, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return commands.Backend{}, nil, err
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return commands.Backend{}, nil, err
	}

	return commands.Backend{
		Controller: app.Controller,
		Snapshots:  app.Snapshots,
		Reconciler: app.Reconciler,
		Types:      app,
	}, app, nil
}
