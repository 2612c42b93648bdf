package main

import (
	"context"
	"fmt"

	"github.com/ethpandaops/llmsentinel/pkg/dashboard"
	"github.com/ethpandaops/llmsentinel/pkg/store"
	"github.com/spf13/cobra"
)

var dashboardListen string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the evaluation dashboard",
	Long:  `Start a read-only web dashboard over the stored evaluations.`,
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringVar(&dashboardListen, "listen", "",
		"listen address (default dashboard.listen)")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if dashboardListen != "" {
		cfg.Dashboard.Listen = dashboardListen
	}

	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh, stopSignals := notifyShutdown()
	defer stopSignals()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() { _ = st.Stop() }()

	srv := dashboard.NewServer(log, &cfg.Dashboard, st)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting dashboard server: %w", err)
	}

	// Wait for shutdown signal.
	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down dashboard server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping dashboard server: %w", err)
	}

	return nil
}
