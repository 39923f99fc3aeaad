package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"copycraft/internal/db"
	"copycraft/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the postgres allow-list schema",
	Long: `Create the access_records table used by the postgres access store.
The migration is idempotent. serve runs it as well on startup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is required")
		}

		database, err := db.Open(cmd.Context(), cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.RunAccessMigration(cmd.Context(), database); err != nil {
			return err
		}

		logger.Info("access migration applied", nil)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
