package http

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clubhub/clubhub-backend/internal/assignment"
	"github.com/clubhub/clubhub-backend/internal/audit"
	authmw "github.com/clubhub/clubhub-backend/internal/auth/middleware"
	"github.com/clubhub/clubhub-backend/internal/club"
	"github.com/clubhub/clubhub-backend/internal/rbac"
)

type submissionReq struct {
	Content string `json:"content"`
	FileRef string `json:"file_ref"`
	// AcceptLate is honored only for callers with the accept-late
	// permission; authors cannot use it to skip the deadline.
	AcceptLate bool `json:"accept_late,omitempty"`
}

// PUT /assignments/{assignmentID}/draft
func SaveDraftHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submissionReq
		if !decodeJSON(w, r, &req) {
			return
		}
		sub, err := store.SaveDraft(r.Context(),
			chi.URLParam(r, "assignmentID"),
			authmw.SubjectFromContext(r.Context()),
			req.Content, req.FileRef)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// POST /assignments/{assignmentID}/submit
func SubmitHandler(store assignment.Store, rec audit.Recorder) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		var req submissionReq
		if !decodeJSON(w, r, &req) {
			return
		}
		author := authmw.SubjectFromContext(r.Context())
		override := req.AcceptLate &&
			checker.Has(rbac.RoleFromContext(r.Context()), "submission:accept-late")
		sub, err := store.Submit(r.Context(), assignment.SubmitInput{
			AssignmentID:  chi.URLParam(r, "assignmentID"),
			AuthorID:      author,
			Content:       req.Content,
			FileRef:       req.FileRef,
			OwnerOverride: override,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := rec.Append(r.Context(), audit.Event{
			Type:     audit.TypeSubmissionReceived,
			Key:      sub.ID,
			Actor:    author,
			DataJSON: fmt.Sprintf(`{"assignment_id":%q}`, sub.AssignmentID),
		}); err != nil {
			log.Printf("audit append failed: type=%s key=%s err=%v", audit.TypeSubmissionReceived, sub.ID, err)
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

// GET /submissions/{submissionID}
// Authors see their own submission; organizers see all.
func GetSubmissionHandler(store assignment.Store, dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := store.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		caller := authmw.SubjectFromContext(r.Context())
		if sub.AuthorID != caller {
			a, err := store.GetAssignment(r.Context(), sub.AssignmentID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			if !canManageClub(r, dir, a.ClubID) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// GET /assignments/{assignmentID}/submissions
func ListSubmissionsHandler(store assignment.Store, dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID := chi.URLParam(r, "assignmentID")
		a, err := store.GetAssignment(r.Context(), assignmentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !canManageClub(r, dir, a.ClubID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		q := r.URL.Query()
		list, err := store.ListSubmissions(r.Context(), assignment.SubmissionListOpts{
			AssignmentID: assignmentID,
			Status:       assignment.Status(q.Get("status")),
			Limit:        parseIntDefault(q.Get("limit"), 100),
			Offset:       parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if list == nil {
			list = []assignment.Submission{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /assignments/{assignmentID}/submission
func MySubmissionHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := store.SubmissionByAuthor(r.Context(),
			chi.URLParam(r, "assignmentID"),
			authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// GET /submissions/{submissionID}/grades
func GradeHistoryHandler(store assignment.Store, dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := store.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		caller := authmw.SubjectFromContext(r.Context())
		if sub.AuthorID != caller {
			a, err := store.GetAssignment(r.Context(), sub.AssignmentID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			if !canManageClub(r, dir, a.ClubID) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		hist, err := store.GradeHistory(r.Context(), sub.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if hist == nil {
			hist = []assignment.GradeRecord{}
		}
		writeJSON(w, http.StatusOK, hist)
	}
}
