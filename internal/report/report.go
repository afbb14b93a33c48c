// Package report builds calibration reports over the decision log,
// outcome labels, policy history, and escalation queue.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/triage/internal/agentqueue"
	"github.com/example/triage/internal/decisionlog"
	"github.com/example/triage/internal/feedback"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/triage"
)

// Builder collects report data from the triage stores.
type Builder struct {
	log      *decisionlog.Store
	labels   *feedback.LabelStore
	policies *policy.Store
	queue    *agentqueue.Store
}

// NewBuilder creates a Builder reading from the given stores.
func NewBuilder(log *decisionlog.Store, labels *feedback.LabelStore, policies *policy.Store, queue *agentqueue.Store) *Builder {
	return &Builder{log: log, labels: labels, policies: policies, queue: queue}
}

// Data is one report snapshot.
type Data struct {
	GeneratedAt time.Time               `json:"generated_at"`
	HasPolicy   bool                    `json:"has_policy"`
	Current     policy.Parameters       `json:"current"`
	History     []policy.VersionRecord  `json:"history"`
	Decisions   decisionlog.Stats       `json:"decisions"`
	Recent      []triage.DecisionRecord `json:"recent"`
	Labels      map[triage.Label]int    `json:"labels"`
	Queue       agentqueue.Stats        `json:"queue"`
}

// Collect gathers a snapshot. History and the recent-decision list are
// capped at ten entries each.
func (b *Builder) Collect(ctx context.Context) (*Data, error) {
	d := &Data{GeneratedAt: time.Now().UTC()}

	current, ok, err := b.policies.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading current policy: %w", err)
	}
	d.Current = current
	d.HasPolicy = ok

	if d.History, err = b.policies.History(ctx, 10); err != nil {
		return nil, fmt.Errorf("loading policy history: %w", err)
	}

	stats, err := b.log.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading decision stats: %w", err)
	}
	d.Decisions = *stats

	if d.Recent, err = b.log.Recent(ctx, 10); err != nil {
		return nil, fmt.Errorf("loading recent decisions: %w", err)
	}

	if d.Labels, err = b.labels.Summary(ctx); err != nil {
		return nil, fmt.Errorf("loading label summary: %w", err)
	}

	queueStats, err := b.queue.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading queue stats: %w", err)
	}
	d.Queue = *queueStats

	return d, nil
}

// Markdown renders the report as a GFM document.
func Markdown(d *Data) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Triage Calibration Report\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04 UTC"))

	b.WriteString("## Policy\n\n")
	if d.HasPolicy {
		fmt.Fprintf(&b, "Active threshold **%.3f** (version %d, calibration window %d).\n\n",
			d.Current.Threshold, d.Current.Version, d.Current.CalibrationWindow)
	} else {
		b.WriteString("No policy versions recorded yet.\n\n")
	}

	if len(d.History) > 0 {
		b.WriteString("| Version | Threshold | Window | Created |\n")
		b.WriteString("|---------|-----------|--------|---------|\n")
		for _, v := range d.History {
			fmt.Fprintf(&b, "| %d | %.3f | %d | %s |\n",
				v.Version, v.Threshold, v.CalibrationWindow, v.CreatedAt.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Decisions\n\n")
	fmt.Fprintf(&b, "%d decisions recorded: %d auto-responses, %d escalations.\n\n",
		d.Decisions.Total,
		d.Decisions.ByRoute[policy.RouteAutoRespond],
		d.Decisions.ByRoute[policy.RouteEscalate])

	if len(d.Recent) > 0 {
		b.WriteString("| Query | Route | Confidence | Threshold | When |\n")
		b.WriteString("|-------|-------|------------|-----------|------|\n")
		for _, rec := range d.Recent {
			fmt.Fprintf(&b, "| %s | %s | %.3f | %.3f | %s |\n",
				rec.QueryID, rec.Route, rec.Confidence, rec.ThresholdUsed,
				rec.Timestamp.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Outcome labels\n\n")
	if len(d.Labels) == 0 {
		b.WriteString("No outcome labels recorded yet.\n\n")
	} else {
		b.WriteString("| Label | Count |\n")
		b.WriteString("|-------|-------|\n")
		for _, label := range []triage.Label{
			triage.LabelAccepted,
			triage.LabelRejected,
			triage.LabelEscalationCorrect,
			triage.LabelEscalationUnnecessary,
		} {
			if count, ok := d.Labels[label]; ok {
				fmt.Fprintf(&b, "| %s | %d |\n", label, count)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Escalation queue\n\n")
	fmt.Fprintf(&b, "%d pending, %d claimed, %d resolved.\n",
		d.Queue.Pending, d.Queue.Claimed, d.Queue.Resolved)
	if d.Queue.OldestPending != nil {
		fmt.Fprintf(&b, "Oldest pending since %s.\n", d.Queue.OldestPending.Format("2006-01-02 15:04"))
	}

	return b.String()
}
