package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"copycraft/internal/config"
	"copycraft/internal/logger"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "copycraft",
	Short: "Social media copywriting service",
	Long: `copycraft serves the copywriting web API behind identity-provider sign-in
and an administrator managed allow-list.

Configuration is read from COPYCRAFT_* environment variables and, with
--config, from a YAML file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		// stdout is reserved for command output
		logger.Init(logger.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: os.Stderr,
		})
		return nil
	},
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// SIGINT or SIGTERM.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
}
