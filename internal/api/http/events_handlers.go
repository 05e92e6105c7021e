package http

import (
	"net/http"

	"github.com/clubhub/clubhub-backend/internal/audit"
)

// GET /events?after=0&limit=100 — the grading audit trail, oldest
// first. Admin only.
func ListEventsHandler(rec audit.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		events, err := rec.Since(r.Context(),
			parseInt64Default(q.Get("after"), 0),
			parseIntDefault(q.Get("limit"), 100))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []audit.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}
