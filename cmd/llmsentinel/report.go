package main

import (
	"fmt"

	"github.com/ethpandaops/llmsentinel/pkg/dashboard"
	"github.com/ethpandaops/llmsentinel/pkg/report"
	"github.com/ethpandaops/llmsentinel/pkg/store"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print mean scores per model",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() { _ = st.Stop() }()

	rows, err := st.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("reading evaluations: %w", err)
	}

	table := report.ModelTable(dashboard.MeanByModel(rows))
	if table == "" {
		fmt.Println("No evaluation data found. Run evaluations first.")

		return nil
	}

	fmt.Print(table)

	return nil
}
