// Package cli implements arkvctl, the operator command line for arkv.
package cli

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X arkv/internal/cli.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "arkvctl",
	Short: "Operate an arkv notarization service",
	Long: `arkvctl computes fingerprints locally, checks domain attestations
against DNS and queries a running arkv server.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("arkvctl version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
