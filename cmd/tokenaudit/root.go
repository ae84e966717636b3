package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"

	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:   "tokenaudit",
	Short: "Audit GitLab access tokens and email an expiration report",
	Long: "tokenaudit lists personal, project and group access tokens on a GitLab instance, " +
		"classifies them by expiry and emails an HTML report to the configured recipients.\n\n" +
		"Configuration comes from the environment (GITLAB_URL, GITLAB_ADMIN_TOKEN, SMTP_SERVER, ...) " +
		"and an optional YAML file passed with --config.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tokenaudit %s\n", Version)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a YAML config file (optional)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}
