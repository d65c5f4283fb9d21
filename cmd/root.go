package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "AI-response action pipeline",
	Long: `Loom applies the actions embedded in an AI model response to a local
project: file writes, renames and deletes, dependency installs, SQL against a
linked database project, remote function deploys, a speculative compile check,
and a git commit of the result.

Available commands:
  apply    - Apply a stored response's actions to its project
  extract  - Parse a response and print the extracted actions
  check    - Run the compile-check sandbox against a response without applying it
  version  - Print the version`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}
