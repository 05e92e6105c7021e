package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/clubhub/clubhub-backend/internal/auth/middleware"
	"github.com/clubhub/clubhub-backend/internal/review"
)

type finalizeReq struct {
	// Force finalizes even when fewer reviews than the minimum came in.
	Force           bool  `json:"force"`
	ExpectedVersion int64 `json:"expected_version"`
	// MinimumReviewers and Method override the configured policy for
	// this call only; zero values keep the defaults.
	MinimumReviewers int    `json:"minimum_reviewers"`
	Method           string `json:"method"` // mean | median | trimmed_mean
}

// POST /submissions/{submissionID}/finalize
func FinalizeGradeHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The body is optional; a bare POST uses the defaults.
		var req finalizeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, sub, err := svc.FinalizeGrade(r.Context(),
			chi.URLParam(r, "submissionID"),
			authmw.SubjectFromContext(r.Context()),
			review.FinalizeOpts{
				Force:            req.Force,
				ExpectedVersion:  req.ExpectedVersion,
				MinimumReviewers: req.MinimumReviewers,
				Method:           req.Method,
			})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"outcome":    out,
			"submission": sub,
		})
	}
}

type overrideReq struct {
	Points          float64 `json:"points" validate:"gte=0"`
	Feedback        string  `json:"feedback"`
	ExpectedVersion int64   `json:"expected_version"`
}

// POST /submissions/{submissionID}/override
func OverrideGradeHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req overrideReq
		if !decodeJSON(w, r, &req) {
			return
		}
		sub, err := svc.OverrideGrade(r.Context(),
			chi.URLParam(r, "submissionID"),
			req.Points, req.Feedback,
			authmw.SubjectFromContext(r.Context()),
			req.ExpectedVersion)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// POST /submissions/{submissionID}/release
func ReleaseGradeHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := svc.ReleaseGrade(r.Context(),
			chi.URLParam(r, "submissionID"),
			authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}
