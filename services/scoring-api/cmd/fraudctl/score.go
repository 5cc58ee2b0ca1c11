package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/app"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/configs"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func scoreCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <file.csv>",
		Short: "Score a CSV file offline and store the results",
		Long: `Runs the same validation, chunking and storage as POST /predict_batch
and writes the scored rows as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			contentType, _ := cmd.Flags().GetString("content-type")
			return runScore(cmd, logger, args[0], out, contentType)
		},
	}

	cmd.Flags().StringP("out", "o", "", "Write predictions to this file instead of stdout")
	cmd.Flags().String("content-type", "text/csv", "Media type to validate the file as")

	return cmd
}

func runScore(cmd *cobra.Command, logger *zap.Logger, path, out, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	cfg, err := configs.Load(logger)
	if err != nil {
		return err
	}
	components, cleanup, err := app.NewComponents(cmd.Context(), logger, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	traceID := uuid.NewString()
	rows, err := components.Pipeline.ProcessUpload(cmd.Context(), traceID, services.Upload{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        f,
	})
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}

	flagged := 0
	for _, row := range rows {
		if row.ManualReview {
			flagged++
		}
	}
	logger.Info("file_scored",
		zap.String(pkg.TraceId, traceID),
		zap.String("file", path),
		zap.Int("rows", len(rows)),
		zap.Int("manual_review", flagged))
	return nil
}
