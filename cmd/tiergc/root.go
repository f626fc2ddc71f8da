package main

import (
	"github.com/spf13/cobra"

	"tiergc/infra/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tiergc",
	Short: "Generational reference-counting registry",
	Long: "tiergc tracks reference-counted objects in young, middle and old " +
		"generations, sweeps unreferenced objects and promotes survivors.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
