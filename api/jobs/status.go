package jobs

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/factoryccu/core/jobstatus"
	"github.com/kilianp07/factoryccu/core/model"
)

// NewStatusHandler returns an HTTP handler exposing job status data via GET /api/jobs.
func NewStatusHandler(store jobstatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := jobstatus.Filter{
			Status:        model.Status(r.URL.Query().Get("status")),
			WorkpieceType: model.WorkpieceType(r.URL.Query().Get("workpiece_type")),
			Type:          model.JobType(r.URL.Query().Get("order_type")),
		}
		entries := store.List(f)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
