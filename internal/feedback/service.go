package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/triage/internal/decisionlog"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/policy"
)

// Service runs recalibration end to end: it gathers the labeled window,
// derives new parameters, persists the version, and swaps it into the live
// policy engine.
type Service struct {
	log      *decisionlog.Store
	labels   *LabelStore
	store    *policy.Store
	engine   *policy.Engine
	notifier *notify.Dispatcher
	cfg      CalibrationConfig
}

// NewService creates a recalibration service.
func NewService(log *decisionlog.Store, labels *LabelStore, store *policy.Store, engine *policy.Engine, cfg CalibrationConfig) *Service {
	if cfg == (CalibrationConfig{}) {
		cfg = DefaultCalibrationConfig()
	}
	return &Service{log: log, labels: labels, store: store, engine: engine, cfg: cfg}
}

// SetNotifier makes the service announce each recalibration. Every trigger
// path (HTTP, MCP, cron, CLI) runs through here, so this is the one place
// the event fires.
func (s *Service) SetNotifier(d *notify.Dispatcher) {
	s.notifier = d
}

// Result describes one completed recalibration.
type Result struct {
	Previous   policy.Parameters `json:"previous"`
	Parameters policy.Parameters `json:"parameters"`
	Stats      CalibrationStats  `json:"stats"`
	Changed    bool              `json:"changed"`
}

// Run executes a single recalibration round. The new version is persisted
// before it is installed, so a crash between the two leaves the database
// ahead of the running engine, never behind it.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	current := s.engine.Current()

	records, err := s.log.Recent(ctx, current.CalibrationWindow)
	if err != nil {
		return nil, fmt.Errorf("loading calibration window: %w", err)
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.QueryID
	}
	labels, err := s.labels.ForQueryIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading outcome labels: %w", err)
	}

	next, stats := Recalibrate(current, records, labels, s.cfg)

	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("encoding calibration stats: %w", err)
	}
	if err := s.store.Save(ctx, next, statsJSON); err != nil {
		return nil, fmt.Errorf("persisting policy version %d: %w", next.Version, err)
	}
	if err := s.engine.Reload(next); err != nil {
		return nil, fmt.Errorf("installing policy version %d: %w", next.Version, err)
	}

	if s.notifier != nil {
		if _, err := s.notifier.Dispatch(ctx, notify.RecalibrationEvent(current, next, stats.Reason)); err != nil {
			log.Printf("feedback: notifying recalibration v%d: %v", next.Version, err)
		}
	}

	return &Result{
		Previous:   current,
		Parameters: next,
		Stats:      stats,
		Changed:    next.Threshold != current.Threshold,
	}, nil
}
