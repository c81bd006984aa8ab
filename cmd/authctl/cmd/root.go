// Package cmd implements the authctl subcommands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	masterSecret64 string
	masterIV64     string
)

var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Operator tool for the authentication server",
	Long: `authctl encrypts configuration secrets under the master key and
mints and inspects API access keys.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&masterSecret64, "master-secret", "",
		"base64-encoded master passphrase (defaults to the built-in development passphrase)")
	rootCmd.PersistentFlags().StringVar(&masterIV64, "master-iv", "",
		"base64-encoded IV seed (defaults to a value derived from the passphrase)")
}
