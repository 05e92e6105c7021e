package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/clubhub/clubhub-backend/internal/assignment"
	"github.com/clubhub/clubhub-backend/internal/club"
	"github.com/clubhub/clubhub-backend/internal/review"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes and validates a request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeDomainError maps workflow errors onto HTTP statuses. Unknown
// errors become a 500 with a generic body.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		ve     *assignment.ValidationError
		dl     *assignment.DeadlinePassedError
		cm     *assignment.ConcurrentModificationError
		tr     *assignment.TransitionError
		unauth *review.UnauthorizedReviewError
		dup    *review.DuplicateReviewError
	)
	switch {
	case errors.Is(err, assignment.ErrAssignmentNotFound),
		errors.Is(err, assignment.ErrSubmissionNotFound),
		errors.Is(err, review.ErrReviewNotFound),
		errors.Is(err, review.ErrNoActiveRound),
		errors.Is(err, club.ErrClubNotFound),
		errors.Is(err, club.ErrMemberNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &ve):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &dl):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &cm):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &tr):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &dup):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &unauth):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, assignment.ErrAssignmentRetired):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func parseInt64Default(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
