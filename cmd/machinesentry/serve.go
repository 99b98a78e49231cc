package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"machinesentry/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve real-time anomaly scores over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(cfg, logger)
		if err != nil {
			// Missing or corrupt artifact: fatal before any request is
			// accepted.
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-quit:
			return srv.Stop()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
