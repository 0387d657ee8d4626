// Package cmd implements the parcelgate command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parcelgate/parcelgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "parcelgate",
	Short: "Access policy engine for the listing platform",
	Long: `Parcelgate evaluates document and storage access requests against
per-collection rule tables and returns allow or deny decisions.

Every decision is written to an audit trail with the matched rule and
reason; clients only ever see the boolean outcome.

Quick start:
  parcelgate serve --dev            start the decision API locally
  parcelgate check request.yaml     evaluate a single request and exit

Configuration is read from parcelgate.yaml in the current directory,
~/.parcelgate, or /etc/parcelgate, unless --config points elsewhere.
Any setting can be overridden with a PARCELGATE_ environment variable,
for example PARCELGATE_SERVER_HTTP_ADDR=0.0.0.0:8080.

Commands:
  serve       run the HTTP decision API
  check       evaluate one request from a file
  hash-key    hash an API key for the config file
  version     print version information`,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default parcelgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
