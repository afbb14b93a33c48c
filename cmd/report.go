package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize decision history and calibration drift",
	Long: `Collects the decision log, outcome labels, policy history, and queue
state into a calibration report. Markdown goes to stdout by default;
--html renders a standalone page instead.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().Bool("html", false, "render the report as a standalone HTML page")
	reportCmd.Flags().String("out", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	htmlOut, _ := cmd.Flags().GetBool("html")
	outPath, _ := cmd.Flags().GetString("out")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := report.NewBuilder(s.decisions, s.labels, s.policies, s.queue).Collect(ctx)
	if err != nil {
		return fmt.Errorf("collecting report data: %w", err)
	}

	var out []byte
	if htmlOut {
		if out, err = report.HTML(data); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
	} else {
		out = []byte(report.Markdown(data))
	}

	if outPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", outPath)
	return nil
}
