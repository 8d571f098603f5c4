package cmd

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/logger"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Execute the matching pipeline for one queued run, without the worker loop",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runOnce(args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runOnce is the operator's escape hatch: re-drive a queued run directly,
// for example after fixing a bad credential.
func runOnce(rawID string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	runID, err := uuid.Parse(rawID)
	if err != nil {
		logger.Fatal("invalid run id", zap.String("run_id", rawID), zap.Error(err))
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	pool, err := store.NewPostgresPool(ctx, config.DatabaseURL)
	if err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err))
	}
	defer pool.Close()

	runs := store.NewRunStore(pool)

	providers, _, err := buildProviders(config, logger)
	if err != nil {
		logger.Fatal("building providers", zap.Error(err))
	}

	coordinator, err := buildCoordinator(ctx, config, logger, runs, providers)
	if err != nil {
		logger.Fatal("building pipeline", zap.Error(err))
	}

	if err := coordinator.Run(ctx, runID); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}
