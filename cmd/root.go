package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gurisko/sentryctl/internal/config"
	"github.com/gurisko/sentryctl/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sentryctl",
	Short: "sentryctl - control front-end for sentry monitoring projects",
	Long: `sentryctl manages the sentry projects of a local monitoring backend.

Every project operation is one backend invocation. Dropping folders and files
with "sentryctl drop" starts, stops, updates or registers projects. A session
daemon can keep the drop state in memory and watch an inbox directory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		level := c.Log.Level
		if strings.TrimSpace(logLevel) != "" {
			level = logLevel
		}
		cfg = c
		logger = logging.New(os.Stderr, logging.ParseLevel(level))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

func Execute() error {
	// Silence usage and errors to avoid cluttering output with Cobra defaults
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd.Execute()
}
