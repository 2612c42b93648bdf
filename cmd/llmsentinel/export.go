package main

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/llmsentinel/pkg/export"
	"github.com/ethpandaops/llmsentinel/pkg/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	exportOutputDir string
	exportUpload    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export evaluations as CSV and SVG charts",
	Long: `Write the evaluations table as CSV together with the average-score and
score-trend charts, optionally uploading them to S3-compatible storage.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOutputDir, "output-dir", "",
		"output directory (default export.output_dir)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false,
		"upload the exported files using the export.s3 settings")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if exportUpload && !cfg.Export.S3.Enabled {
		return fmt.Errorf("--upload requires export.s3.enabled")
	}

	dir := exportOutputDir
	if dir == "" {
		dir = cfg.Export.OutputDir
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

	var uploader export.Uploader
	if exportUpload {
		uploader = export.NewS3Uploader(log, &cfg.Export.S3)

		if err := uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("s3 preflight: %w", err)
		}
	}

	paths, err := export.Export(ctx, rows, dir)
	if errors.Is(err, export.ErrNoData) {
		log.Warn("No evaluation data found, nothing exported")

		return nil
	}

	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	log.WithFields(logrus.Fields{
		"dir":   dir,
		"files": len(paths),
		"rows":  len(rows),
	}).Info("Export written")

	if uploader == nil {
		return nil
	}

	keys, err := uploader.Upload(ctx, dir)
	if err != nil {
		return fmt.Errorf("uploading export: %w", err)
	}

	for _, key := range keys {
		fmt.Printf("s3://%s/%s\n", cfg.Export.S3.Bucket, key)
	}

	return nil
}
