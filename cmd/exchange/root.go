package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/config"
)

var version = "dev"

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "exchange",
		Short:         "In-person currency exchange coordinator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(cleanupCmd())
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
