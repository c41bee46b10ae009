package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/camden-git/sitephotosync/config"
)

var (
	verbose bool
	envFile string

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sitephotosync",
	Short: "Sort site photos by location and upload them to the inspection forms",
	Long: `sitephotosync moves photos exported from the site chat into the OCR inbox,
sorts them into per-location folders by the code painted next to each plot,
and walks the quality plan of the inspection site uploading every photo the
remote form does not already hold.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := godotenv.Load(envFile); err != nil {
			logger.Info("no env file loaded", zap.String("path", envFile), zap.Error(err))
		}
		cfg, err = config.LoadConfig(logger)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading configuration")

	rootCmd.AddCommand(sortCmd, runCmd, syncCmd, watchCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
