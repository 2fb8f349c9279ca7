package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/qnetsim/topology"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a topology file without running it",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := validate(configPath(validateConfigPath), cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "",
		"Topology file, YAML or JSON (default $"+EnvConfig+")")
	rootCmd.AddCommand(validateCmd)
}

func validate(path string, out io.Writer) error {
	if path == "" {
		return fmt.Errorf("no topology file given")
	}

	cfg, err := topology.Load(path)
	if err != nil {
		return err
	}

	// Building also checks that every route has a classical channel.
	if _, err := topology.Build(cfg); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%s: %d nodes, %d quantum channels, %d classical channels\n",
		path, len(cfg.Nodes), len(cfg.QuantumChannels), len(cfg.ClassicalChannels))

	return err
}
