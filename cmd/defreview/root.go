// SPDX-License-Identifier: Apache-2.0

// defreview reviews extracted loan documents against an underwriting
// condition catalog and reports scored deficiencies.
//
// Usage:
//
//	defreview review -f <report.json> [--config <config.yaml>] [--catalog <catalog.yaml>]
//	defreview serve [--config <config.yaml>] [--catalog <catalog.yaml>]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	flagConfig   string
	flagCatalog  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "defreview",
	Short: "Deficiency review for extracted loan documents",
	Long: "Defreview checks a loan application's extracted documents against an\n" +
		"underwriting condition catalog, detects deficiencies with an LLM oracle,\n" +
		"and ranks them by confidence and priority.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "path to condition catalog YAML (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
