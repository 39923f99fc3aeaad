package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"copycraft/internal/app"
	"copycraft/internal/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		application, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- application.Run()
		}()

		logger.Info("copycraft started", map[string]any{
			"port":         cfg.AppPort,
			"access_store": cfg.Access.Store,
		})

		select {
		case <-ctx.Done(): // wait for Ctrl+C
			logger.Info("shutdown signal received", nil)
		case err := <-errCh:
			if err != nil {
				logger.Error("http server failed", map[string]any{
					"error": err.Error(),
				})
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()

		if err := application.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", map[string]any{
				"error": err.Error(),
			})
			return err
		}

		logger.Info("copycraft stopped cleanly", nil)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
