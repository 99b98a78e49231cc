package main

import (
	"github.com/spf13/cobra"

	"machinesentry/internal/trainer"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the anomaly model from the historical dataset and persist it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dataset, _ := cmd.Flags().GetString("dataset"); dataset != "" {
			cfg.Dataset.Path = dataset
		}
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			cfg.Model.ArtifactPath = out
		}
		_, err := trainer.Run(cfg, logger)
		return err
	},
}

func init() {
	trainCmd.Flags().String("dataset", "", "override the dataset path")
	trainCmd.Flags().String("out", "", "override the artifact output path")
	rootCmd.AddCommand(trainCmd)
}
