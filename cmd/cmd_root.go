// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/gimi9/geocode-web/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	v   = config.New()
	cfg *config.Config

	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "geocode-web",
	Short: "batch geocoder with a map viewer",
	Long: `
geocode-web sends blocks of Korean addresses to the geocoding backend, shows
the results on a map and exports them as CSV, JSON lines, GeoJSON or KML.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if configFile != "" {
			v.SetConfigFile(configFile)
		}

		var err error
		if cfg, err = config.Load(v); err != nil {
			return err
		}

		return config.InitLogger(cfg.Log)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./"+config.FileName+".yaml)")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("log-format", "console", "console or json")
	flags.String("backend-url", "", "geocoding backend base URL")
	flags.String("store-path", "", "DuckDB file keeping the geocoded batches")

	bindFlag("log.level", flags.Lookup("log-level"))
	bindFlag("log.format", flags.Lookup("log-format"))
	bindFlag("backend.url", flags.Lookup("backend-url"))
	bindFlag("store.path", flags.Lookup("store-path"))
}
