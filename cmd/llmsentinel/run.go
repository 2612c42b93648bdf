package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/acquire"
	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/ethpandaops/llmsentinel/pkg/judge"
	"github.com/ethpandaops/llmsentinel/pkg/llm"
	"github.com/ethpandaops/llmsentinel/pkg/metrics"
	"github.com/ethpandaops/llmsentinel/pkg/report"
	"github.com/ethpandaops/llmsentinel/pkg/runner"
	"github.com/ethpandaops/llmsentinel/pkg/store"
	"github.com/ethpandaops/llmsentinel/pkg/tracing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	sampleQuery = "Explain the concept of quantum entanglement in simple terms, " +
		"but do NOT use the word 'spooky'."

	sampleContext = "Quantum entanglement is a phenomenon where two or more particles become " +
		"linked, or correlated, in such a way that measuring a property of one " +
		"instantaneously influences the corresponding property of the others, " +
		"regardless of the distance separating them."

	tracingShutdownTimeout = 5 * time.Second
)

var (
	runMode      string
	runModelName string
	runSampleID  string
	runAPIURL    string
	runQuery     string
	runContext   string
	runSummary   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single evaluation",
	Long: `Obtain one answer from the model under test, score it with the judge
model, report the scores to the tracing service and store them locally.`,
	RunE: runEvaluation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	modes := make([]string, 0, len(acquire.Modes()))
	for _, m := range acquire.Modes() {
		modes = append(modes, string(m))
	}

	runCmd.Flags().StringVar(&runMode, "mode", string(acquire.ModeLocalModel),
		"how the answer is obtained ("+strings.Join(modes, ", ")+")")
	runCmd.Flags().StringVar(&runModelName, "model-name", "",
		"name recorded for the evaluated model (default runner.default_model_name)")
	runCmd.Flags().StringVar(&runSampleID, "sample-id", "",
		"sample identifier (default runner.default_sample_id)")
	runCmd.Flags().StringVar(&runAPIURL, "api-url", "",
		"endpoint of the model under test, required for remote-endpoint mode")
	runCmd.Flags().StringVar(&runQuery, "query", sampleQuery, "query sent to the model")
	runCmd.Flags().StringVar(&runContext, "context", sampleContext, "reference context")
	runCmd.Flags().BoolVar(&runSummary, "summary", true, "print a summary table after the run")
}

func runEvaluation(cmd *cobra.Command, args []string) error {
	mode, err := acquire.ParseMode(runMode)
	if err != nil {
		return err
	}

	if mode == acquire.ModeRemoteEndpoint && strings.TrimSpace(runAPIURL) == "" {
		return fmt.Errorf("--api-url is required when --mode is %s", acquire.ModeRemoteEndpoint)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	modelName := runModelName
	if modelName == "" {
		modelName = cfg.Runner.DefaultModelName
	}

	sampleID := runSampleID
	if sampleID == "" {
		sampleID = cfg.Runner.DefaultSampleID
	}

	// Setup context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh, stopSignals := notifyShutdown()
	defer stopSignals()

	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdownTracing, err := tracing.NewTracerProvider(ctx, log, &cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer shutdownCancel()

		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to flush traces")
		}
	}()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	strategy, err := buildStrategy(mode, cfg)
	if err != nil {
		return err
	}

	judgeClient, err := llm.New(log, &cfg.Judge)
	if err != nil {
		return fmt.Errorf("creating judge client: %w", err)
	}

	j := judge.New(log, judgeClient, judge.Options{
		CallTimeout: config.MustDuration(cfg.Judge.Timeout, 0),
	})

	reporter := tracing.NewReporter(log, &cfg.Tracing, &http.Client{})

	r := runner.NewRunner(log, &runner.Config{
		ModelName:   modelName,
		SampleID:    sampleID,
		TracingHost: cfg.Tracing.Host,
		Project:     cfg.Tracing.Project,
	}, strategy, j, reporter, st, os.Stdout)

	log.WithFields(logrus.Fields{
		"mode":      mode,
		"model":     modelName,
		"sample_id": sampleID,
	}).Info("Starting evaluation")

	summary, err := r.Run(ctx, runQuery, runContext)

	pushMetrics(&cfg.Metrics)

	if err != nil {
		return fmt.Errorf("running evaluation: %w", err)
	}

	if runSummary {
		fmt.Println()
		fmt.Print(report.SummaryTable(summary))
	}

	return nil
}

// pushMetrics hands the run's counters to the Pushgateway, if one is
// configured. The process exits right after, so this is the only way they
// leave it. Failures are logged.
func pushMetrics(cfg *config.MetricsConfig) {
	if cfg.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		config.MustDuration(cfg.PushTimeout, 10*time.Second))
	defer cancel()

	instance, err := os.Hostname()
	if err != nil {
		instance = ""
	}

	if err := metrics.Push(ctx, nil, cfg.PushgatewayURL, cfg.Job, instance); err != nil {
		log.WithError(err).Warn("Failed to push run metrics")

		return
	}

	log.WithField("pushgateway", cfg.PushgatewayURL).Debug("Pushed run metrics")
}

// buildStrategy wires the collaborators the selected mode needs.
func buildStrategy(mode acquire.Mode, cfg *config.Config) (acquire.Strategy, error) {
	deps := acquire.Deps{
		APIURL:        runAPIURL,
		HTTPClient:    &http.Client{},
		RemoteTimeout: config.MustDuration(cfg.Runner.RemoteTimeout, acquire.DefaultRemoteTimeout),
		In:            os.Stdin,
		Out:           os.Stdout,
	}

	if mode == acquire.ModeLocalModel {
		target, err := llm.New(log, &cfg.Target)
		if err != nil {
			return nil, fmt.Errorf("creating target model client: %w", err)
		}

		deps.Target = target
	}

	strategy, err := acquire.New(log, mode, deps)
	if err != nil {
		return nil, fmt.Errorf("creating %s strategy: %w", mode, err)
	}

	return strategy, nil
}
