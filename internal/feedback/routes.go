package feedback

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/triage/internal/decisionlog"
	"github.com/example/triage/internal/triage"
)

// RegisterRoutes mounts the feedback and recalibration API routes.
func RegisterRoutes(r chi.Router, svc *Service, labels *LabelStore, log *decisionlog.Store) {
	r.Route("/api/feedback", func(r chi.Router) {
		r.Post("/", handleSubmit(labels, log))
		r.Get("/summary", handleSummary(labels))
		r.Get("/export", handleExport(labels))
	})
	r.Post("/api/recalibrate", handleRecalibrate(svc))
}

type submitRequest struct {
	QueryID string `json:"query_id"`
	Label   string `json:"label"`
	Comment string `json:"comment"`
}

func handleSubmit(labels *LabelStore, log *decisionlog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.QueryID == "" {
			http.Error(w, `{"error":"query_id is required"}`, http.StatusBadRequest)
			return
		}
		label := triage.Label(req.Label)
		if !label.Valid() {
			http.Error(w, `{"error":"unknown label"}`, http.StatusBadRequest)
			return
		}

		rec, err := log.Get(r.Context(), req.QueryID)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, `{"error":"no decision record for query_id"}`, http.StatusNotFound)
			return
		}

		created, err := labels.Append(r.Context(), triage.OutcomeLabel{
			QueryID: req.QueryID,
			Label:   label,
			Comment: req.Comment,
		})
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func handleSummary(labels *LabelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := labels.Stats(r.Context())
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func handleExport(labels *LabelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := labels.List(r.Context(), time.Time{})
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="outcome_labels.csv"`)

		cw := csv.NewWriter(w)
		cw.Write([]string{"id", "query_id", "label", "comment", "observed_at"})
		for _, l := range all {
			cw.Write([]string{l.ID, l.QueryID, string(l.Label), l.Comment, l.ObservedAt.Format(time.RFC3339)})
		}
		cw.Flush()
	}
}

func handleRecalibrate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Run(r.Context())
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
