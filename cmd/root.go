package cmd

import (
	"github.com/spf13/cobra"

	"github.com/example/triage/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Similarity-based triage for customer support questions",
	Long: `Triage routes incoming customer questions between automated replies
and human agents. It retrieves the most similar historical tickets from a
vector index, scores how well they agree, and escalates anything the
evidence cannot carry. Every decision lands in an immutable log that the
feedback loop uses to recalibrate the escalation threshold.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
