package main

import (
	"fmt"
	"os"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/database"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/configs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:           "fraudctl",
		Short:         "Operator tooling for the fraud scoring pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd(logger))
	rootCmd.AddCommand(scoreCmd(logger))
	rootCmd.AddCommand(reviewsCmd(logger))
	rootCmd.AddCommand(generateCmd(logger))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configs.Load(logger)
			if err != nil {
				return err
			}
			return database.RunMigrations(logger, cfg.PrimaryDbAddr)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1, got %d", steps)
			}
			cfg, err := configs.Load(logger)
			if err != nil {
				return err
			}
			return database.RollbackMigrations(logger, cfg.PrimaryDbAddr, steps)
		},
	}
	down.Flags().IntP("steps", "n", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
