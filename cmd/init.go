package cmd

import (
	"github.com/spf13/cobra"

	"github.com/example/triage/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize triage configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to pick an escalation posture and backends, then writes a .triage.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
