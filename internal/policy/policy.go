package policy

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// Route is the binary outcome of a triage decision.
type Route string

const (
	RouteAutoRespond Route = "auto_respond"
	RouteEscalate    Route = "escalate"
)

var (
	// ErrInvalidScore reports a confidence value outside [0,1].
	ErrInvalidScore = errors.New("confidence score out of range")

	// ErrStaleParameters reports a reload whose version does not advance
	// past the installed one.
	ErrStaleParameters = errors.New("stale policy parameters")
)

// Parameters is one immutable policy snapshot. Recalibration produces a new
// snapshot with a higher version; nothing mutates a snapshot in place.
type Parameters struct {
	Threshold         float64 `json:"threshold"`
	CalibrationWindow int     `json:"calibration_window"`
	Version           int64   `json:"version"`
}

// Decision pairs the route with the threshold that produced it, so the
// decision stays reproducible after the live threshold moves.
type Decision struct {
	Route         Route   `json:"route"`
	ThresholdUsed float64 `json:"threshold_used"`
}

// Engine applies the live policy snapshot to confidence scores. Every Decide
// reads one atomic snapshot and Reload swaps the whole snapshot, so a
// concurrent recalibration can never expose a half-updated parameter set.
type Engine struct {
	current atomic.Pointer[Parameters]
}

// NewEngine creates an engine seeded with the given parameters.
func NewEngine(initial Parameters) *Engine {
	e := &Engine{}
	p := initial
	e.current.Store(&p)
	return e
}

// Decide routes a confidence score: Escalate when the score falls below the
// threshold, AutoRespond otherwise (a score exactly at the threshold
// auto-responds).
func (e *Engine) Decide(score float64) (Decision, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}

	p := e.current.Load()
	route := RouteAutoRespond
	if score < p.Threshold {
		route = RouteEscalate
	}
	return Decision{Route: route, ThresholdUsed: p.Threshold}, nil
}

// Current returns a copy of the installed parameters.
func (e *Engine) Current() Parameters {
	return *e.current.Load()
}

// Reload installs new parameters. The version must advance; reloads never
// block concurrent decisions.
func (e *Engine) Reload(p Parameters) error {
	for {
		cur := e.current.Load()
		if p.Version <= cur.Version {
			return fmt.Errorf("%w: version %d does not advance past %d", ErrStaleParameters, p.Version, cur.Version)
		}
		next := p
		if e.current.CompareAndSwap(cur, &next) {
			return nil
		}
	}
}
