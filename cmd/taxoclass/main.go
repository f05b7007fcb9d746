package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/taxoclass/internal/config"
	"github.com/kailas-cloud/taxoclass/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "taxoclass",
		Short:         "Semantic product classification against a category taxonomy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML config (default: config/$ENV.yaml)")

	load := func() (config.Config, string, error) {
		env := config.GetEnv()
		if configPath != "" {
			cfg, err := config.LoadFile(configPath)
			return cfg, env, err //nolint:wrapcheck // already descriptive
		}
		cfg, err := config.Load(env)
		return cfg, env, err //nolint:wrapcheck // already descriptive
	}

	root.AddCommand(
		newServeCommand(load),
		newRebuildCommand(load),
		newClassifyCommand(load),
		newVersionCommand(),
	)
	return root
}

// configLoader resolves the config file from --config or ENV.
type configLoader func() (config.Config, string, error)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
