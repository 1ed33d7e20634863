package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

const serviceName = "operino-hub"

// build is set at link time.
var build = "develop"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Operino provisioning service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd(&cfgFile))
	rootCmd.AddCommand(workerCmd(&cfgFile))
	rootCmd.AddCommand(migrateCmd(&cfgFile))
	return rootCmd
}
