package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hdb-fairness/internal/config"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "hdb-fairness",
	Short:         "Fair-price estimates for HDB resale flats",
	Long:          "Estimates the fair resale price of an HDB flat from comparable transactions and labels an asking price as Fair, Advantageous or Disadvantageous.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		applyOverrides(c)
		cfg = c

		return eris.Wrap(config.InitLogger(cfg.Log), "init logger")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// applyOverrides layers persistent flags over the loaded config.
func applyOverrides(c *config.Config) {
	if logLevel != "" {
		c.Log.Level = logLevel
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
