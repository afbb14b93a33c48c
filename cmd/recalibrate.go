package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/feedback"
)

var recalibrateCmd = &cobra.Command{
	Use:   "recalibrate",
	Short: "Recompute the escalation threshold from labeled outcomes",
	Long: `Evaluates the labeled decisions in the calibration window and installs
a new policy version when the threshold needs to move. Decisions are
labeled through the server API or the MCP tools as agents review them.`,
	RunE: runRecalibrate,
}

func init() {
	rootCmd.AddCommand(recalibrateCmd)
}

func runRecalibrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := newFeedbackService(s, cfg).Run(ctx)
	if err != nil {
		return fmt.Errorf("recalibration failed: %w", err)
	}

	printRecalibration(res)
	return nil
}

func printRecalibration(res *feedback.Result) {
	if res.Changed {
		fmt.Printf("Threshold %.3f -> %.3f (policy v%d installed)\n",
			res.Previous.Threshold, res.Parameters.Threshold, res.Parameters.Version)
	} else {
		fmt.Printf("Threshold unchanged at %.3f (policy v%d)\n",
			res.Parameters.Threshold, res.Parameters.Version)
	}

	st := res.Stats
	fmt.Printf("   Window:           %d decisions (%d labeled auto-responses, %d labeled escalations)\n",
		st.WindowSize, st.LabeledAutoResponses, st.LabeledEscalations)
	fmt.Printf("   Rejection rate:   %.1f%% (%d rejected replies)\n", st.RejectionRate*100, st.Rejected)
	fmt.Printf("   Unnecessary rate: %.1f%% (%d unnecessary escalations)\n", st.UnnecessaryRate*100, st.Unnecessary)
	fmt.Printf("   Reason:           %s\n", st.Reason)
}
