// Package cmd provides the command-line interface of qnetsim.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Environment variables that provide flag defaults. They can be set in a
// .env file in the working directory.
const (
	EnvConfig   = "QNETSIM_CONFIG"
	EnvLogLevel = "QNETSIM_LOG_LEVEL"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qnetsim",
	Short: "qnetsim simulates quantum repeater networks.",
	Long: `qnetsim simulates quantum repeater networks as discrete events. ` +
		`A topology file describes the nodes, the quantum and classical ` +
		`channels between them and the traffic to run.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadEnv)
}

func loadEnv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		logrus.Warnf("cannot load .env: %v", err)
	}
}

func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return os.Getenv(EnvConfig)
}
