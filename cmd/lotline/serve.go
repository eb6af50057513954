package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lotline/lotline/internal/dashboard"
	"github.com/lotline/lotline/internal/sweeper"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Lotline API server",
		Long:  "Launches the JSON API with the TTL sweeper and any configured escalation notifiers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Lotline config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sw := sweeper.New(a.inv, a.cfg.Sweep.Cron, a.log)
	if err := sw.Start(); err != nil {
		return err
	}
	defer sw.Stop()

	srv, err := dashboard.New(dashboard.Opts{
		Inventory:   a.inv,
		Leads:       a.eng,
		Analytics:   a.rep,
		Sales:       a.rec,
		Escalations: a.esc,
		Geo:         a.geo,
		Logger:      a.log,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Lotline API listening on http://localhost:%d\n", port)
	return srv.Start(ctx, port)
}
