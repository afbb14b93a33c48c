package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/respond"
	"github.com/example/triage/internal/retrieval"
	"github.com/example/triage/internal/triage"
)

type triageRequest struct {
	Question string `json:"question"`
}

type triageResponse struct {
	QueryID    string             `json:"query_id"`
	Route      policy.Route       `json:"route"`
	Confidence float64            `json:"confidence"`
	Signals    map[string]float64 `json:"signals"`
	Threshold  float64            `json:"threshold"`
	Escalated  bool               `json:"escalated"`
	Response   string             `json:"response,omitempty"`
	Band       respond.Band       `json:"band,omitempty"`
}

func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	rec, err := s.deps.Orchestrator.Triage(r.Context(), req.Question)
	if err != nil {
		http.Error(w, err.Error(), triageStatus(err))
		return
	}

	out := s.completeDecision(r.Context(), rec)

	resp := triageResponse{
		QueryID:    rec.QueryID,
		Route:      rec.Route,
		Confidence: rec.Confidence,
		Signals:    rec.Signals,
		Threshold:  rec.ThresholdUsed,
		Escalated:  out.Escalated,
	}
	if out.Reply != nil {
		resp.Response = out.Reply.Text
		resp.Band = out.Reply.Band
	}
	writeJSON(w, http.StatusOK, resp)
}

// triageStatus maps pipeline failures onto HTTP status codes. An unreachable
// index is a 503 so callers know to retry, a failed embedding call is the
// upstream's fault.
func triageStatus(err error) int {
	switch {
	case errors.Is(err, index.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, retrieval.ErrEmbeddingFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// triageOutcome pairs the stored decision with what the customer sees.
// Escalated covers both routes to a human: an escalate decision and an
// auto-respond whose draft failed.
type triageOutcome struct {
	Record    triage.DecisionRecord
	Reply     *respond.Reply
	Escalated bool
}

// completeDecision drafts the reply and runs the escalation side effects.
// The decision record is already appended; everything here is best effort
// and never fails the request.
func (s *Server) completeDecision(ctx context.Context, rec triage.DecisionRecord) triageOutcome {
	out := triageOutcome{Record: rec, Escalated: rec.Route == policy.RouteEscalate}

	if s.deps.Generator != nil {
		reply, err := s.deps.Generator.Generate(ctx, rec)
		if err != nil {
			// The record keeps its auto-respond route; only the delivered
			// reply degrades to a hand-off.
			log.Printf("server: drafting reply for %s: %v", rec.QueryID, err)
			out.Escalated = true
		} else {
			out.Reply = reply
		}
	}

	if out.Escalated {
		if _, err := s.deps.Queue.Enqueue(ctx, rec); err != nil {
			log.Printf("server: enqueueing %s: %v", rec.QueryID, err)
		}
		if _, err := s.deps.Dispatcher.Dispatch(ctx, notify.EscalationEvent(rec)); err != nil {
			log.Printf("server: notifying for %s: %v", rec.QueryID, err)
		}
		if out.Reply == nil {
			out.Reply = respond.Handoff(rec.QueryID)
		}
	}

	return out
}
