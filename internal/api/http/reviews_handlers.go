package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clubhub/clubhub-backend/internal/assignment"
	authmw "github.com/clubhub/clubhub-backend/internal/auth/middleware"
	"github.com/clubhub/clubhub-backend/internal/review"
)

type allocateReq struct {
	// Seed makes the draw reproducible; omitted means "draw fresh".
	Seed           *int64   `json:"seed"`
	ExtraReviewers []string `json:"extra_reviewers"`
}

// POST /assignments/{assignmentID}/allocate
func AllocateHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The body is optional; a bare POST draws a fresh seed.
		var req allocateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		seed := time.Now().UnixNano()
		if req.Seed != nil {
			seed = *req.Seed
		}
		round, err := svc.Allocate(r.Context(),
			chi.URLParam(r, "assignmentID"), seed, req.ExtraReviewers,
			authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, round)
	}
}

// GET /reviews/queue
func QueueHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queue, err := svc.Queue(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if queue == nil {
			queue = []review.QueueItem{}
		}
		writeJSON(w, http.StatusOK, queue)
	}
}

type reviewReq struct {
	SubmissionID string             `json:"submission_id" validate:"required"`
	Scores       map[string]float64 `json:"scores" validate:"required"`
	Comment      string             `json:"comment"`
}

// POST /reviews
func SubmitReviewHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewReq
		if !decodeJSON(w, r, &req) {
			return
		}
		rv, err := svc.SubmitReview(r.Context(), review.ReviewInput{
			SubmissionID: req.SubmissionID,
			ReviewerID:   authmw.SubjectFromContext(r.Context()),
			Scores:       req.Scores,
			Comment:      req.Comment,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rv)
	}
}

type amendReviewReq struct {
	Scores  map[string]float64 `json:"scores" validate:"required"`
	Comment string             `json:"comment"`
}

// PUT /reviews/{reviewID}
func AmendReviewHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amendReviewReq
		if !decodeJSON(w, r, &req) {
			return
		}
		rv, err := svc.AmendReview(r.Context(),
			chi.URLParam(r, "reviewID"),
			authmw.SubjectFromContext(r.Context()),
			req.Scores, req.Comment)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rv)
	}
}

// GET /assignments/{assignmentID}/queue — the caller's pending reviews
// for one assignment.
func AssignmentQueueHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID := chi.URLParam(r, "assignmentID")
		queue, err := svc.Queue(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := []review.QueueItem{}
		for _, item := range queue {
			if item.AssignmentID == assignmentID {
				out = append(out, item)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /assignments/{assignmentID}/reviews — the reviews written on the
// caller's own submission.
func MyReviewsHandler(svc *review.Service, store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := store.SubmissionByAuthor(r.Context(),
			chi.URLParam(r, "assignmentID"),
			authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		list, err := svc.ReviewsForSubmission(r.Context(), sub.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if list == nil {
			list = []review.Review{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /submissions/{submissionID}/reviews
func ListReviewsHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ReviewsForSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if list == nil {
			list = []review.Review{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
