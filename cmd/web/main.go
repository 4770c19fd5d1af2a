package main

import (
	"fmt"
	"net"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/de-tools/inventory-atlas/pkg/runtime/bootstrap"
	"github.com/de-tools/inventory-atlas/pkg/runtime/logging"
	"github.com/de-tools/inventory-atlas/pkg/server"
	"github.com/de-tools/inventory-atlas/pkg/services/config"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for Inventory Atlas",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to atlas.yaml (default is ./atlas.yaml or $HOME/.atlas/atlas.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, false)
	ctx := logger.WithContext(cmd.Context())

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info().Msgf("Found the following connections:")
	for _, conn := range app.Connections.Connections() {
		logger.Info().Msgf("Name: `%s`, Provider: `%s`", conn.ID, conn.Provider)
	}

	api := server.NewWebAPI(logger, server.Config{
		Addr: net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Dependencies: server.Dependencies{
			Controller: app.Controller,
			Snapshots:  app.Snapshots,
			Reconciler: app.Reconciler,
		},
	})
	return api.Start()
}
