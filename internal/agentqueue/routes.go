package agentqueue

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/triage/internal/feedback"
	"github.com/example/triage/internal/triage"
)

// RegisterRoutes mounts the escalation queue API routes.
func RegisterRoutes(r chi.Router, store *Store, labels *feedback.LabelStore) {
	r.Route("/api/queue", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Get("/stats", handleStats(store))
		r.Get("/{id}", handleGetByID(store))
		r.Post("/{id}/claim", handleClaim(store))
		r.Post("/{id}/resolve", handleResolve(store, labels))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{}
		if v := r.URL.Query().Get("status"); v != "" {
			filter.Status = Status(v)
		}
		if v := r.URL.Query().Get("agent"); v != "" {
			filter.Agent = v
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		items, err := store.List(r.Context(), filter)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []Item{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	}
}

func handleStats(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats(r.Context())
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func handleGetByID(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		item, err := store.GetByID(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if item == nil {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(item)
	}
}

type claimRequest struct {
	Agent string `json:"agent"`
}

func handleClaim(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req claimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Agent == "" {
			http.Error(w, `{"error":"agent is required"}`, http.StatusBadRequest)
			return
		}

		if err := store.Claim(r.Context(), id, req.Agent); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "claimed"})
	}
}

type resolveRequest struct {
	Agent      string `json:"agent"`
	Resolution string `json:"resolution"`
	Label      string `json:"label"`
}

func handleResolve(store *Store, labels *feedback.LabelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Agent == "" {
			req.Agent = "anonymous"
		}

		label := triage.Label(req.Label)
		if label != triage.LabelEscalationCorrect && label != triage.LabelEscalationUnnecessary {
			http.Error(w, `{"error":"label must be escalation_correct or escalation_unnecessary"}`, http.StatusBadRequest)
			return
		}

		item, err := store.Resolve(r.Context(), id, req.Agent, req.Resolution)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
			return
		}

		if _, err := labels.Append(r.Context(), triage.OutcomeLabel{
			QueryID: item.QueryID,
			Label:   label,
			Comment: req.Resolution,
		}); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(item)
	}
}
