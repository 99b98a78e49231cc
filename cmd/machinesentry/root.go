package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"machinesentry/internal/config"
	"machinesentry/internal/logging"
)

var (
	cfgPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "machinesentry",
	Short: "Industrial sensor anomaly detection",
	Long: `machinesentry ingests industrial sensor telemetry, trains an
Isolation Forest on historical operating data, and serves real-time
NORMAL/ALERT anomaly decisions for a stream of incoming readings.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.File)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to the YAML configuration file")
}
