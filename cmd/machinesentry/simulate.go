package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"machinesentry/internal/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Stream synthetic sensor readings to a running scoring service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		gen := simulator.NewGenerator(cfg.Simulator.Seed, cfg.Simulator.AnomalyEvery)
		runner := simulator.NewRunner(gen, cfg.Simulator.TargetURL, cfg.Simulator.Interval.Std(), logger)

		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}
