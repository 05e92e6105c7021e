package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clubhub/clubhub-backend/internal/assignment"
	authmw "github.com/clubhub/clubhub-backend/internal/auth/middleware"
	"github.com/clubhub/clubhub-backend/internal/club"
	"github.com/clubhub/clubhub-backend/internal/grading"
	"github.com/clubhub/clubhub-backend/internal/rbac"
)

// canManageClub allows platform admins everywhere, otherwise requires
// an organizer-or-better membership in the club.
func canManageClub(r *http.Request, dir club.Directory, clubID string) bool {
	if rbac.RoleFromContext(r.Context()) == "admin" {
		return true
	}
	sub := authmw.SubjectFromContext(r.Context())
	if sub == "" {
		return false
	}
	m, err := dir.GetMember(r.Context(), clubID, sub)
	if err != nil {
		return false
	}
	return club.CanManage(m.Role)
}

type createAssignmentReq struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	LessonID    string          `json:"lesson_id"`
	DueAt       *time.Time      `json:"due_at"`
	MaxPoints   float64         `json:"max_points" validate:"required,gt=0"`
	Rubric      json.RawMessage `json:"rubric"`
}

// POST /clubs/{clubID}/assignments
func CreateAssignmentHandler(store assignment.Store, dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clubID := chi.URLParam(r, "clubID")
		if !canManageClub(r, dir, clubID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req createAssignmentReq
		if !decodeJSON(w, r, &req) {
			return
		}
		rubricJSON := ""
		if len(req.Rubric) > 0 {
			if _, err := grading.ParseRubric(string(req.Rubric)); err != nil {
				http.Error(w, "bad rubric: "+err.Error(), http.StatusBadRequest)
				return
			}
			rubricJSON = string(req.Rubric)
		}
		a := assignment.Assignment{
			ID:          uuid.NewString(),
			ClubID:      clubID,
			LessonID:    req.LessonID,
			Title:       req.Title,
			Description: req.Description,
			DueAt:       req.DueAt,
			MaxPoints:   req.MaxPoints,
			RubricJSON:  rubricJSON,
			CreatedBy:   authmw.SubjectFromContext(r.Context()),
		}
		if err := store.PutAssignment(r.Context(), a); err != nil {
			writeDomainError(w, err)
			return
		}
		created, err := store.GetAssignment(r.Context(), a.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// GET /clubs/{clubID}/assignments
func ListAssignmentsHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := store.ListAssignments(r.Context(), assignment.ListOpts{
			ClubID:         chi.URLParam(r, "clubID"),
			IncludeRetired: q.Get("include_retired") == "true",
			Limit:          parseIntDefault(q.Get("limit"), 50),
			Offset:         parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if list == nil {
			list = []assignment.Assignment{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /assignments/{assignmentID}
func GetAssignmentHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAssignment(r.Context(), chi.URLParam(r, "assignmentID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		rubric, err := grading.ParseRubric(a.RubricJSON)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"assignment": a,
			"rubric":     rubric,
		})
	}
}

type updateAssignmentReq struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	DueAt       *time.Time      `json:"due_at"`
	MaxPoints   float64         `json:"max_points" validate:"required,gt=0"`
	Rubric      json.RawMessage `json:"rubric"`
}

// PUT /assignments/{assignmentID}
func UpdateAssignmentHandler(store assignment.Store, dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		a, err := store.GetAssignment(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !canManageClub(r, dir, a.ClubID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req updateAssignmentReq
		if !decodeJSON(w, r, &req) {
			return
		}
		a.Title = req.Title
		a.Description = req.Description
		a.DueAt = req.DueAt
		a.MaxPoints = req.MaxPoints
		if len(req.Rubric) > 0 {
			if _, err := grading.ParseRubric(string(req.Rubric)); err != nil {
				http.Error(w, "bad rubric: "+err.Error(), http.StatusBadRequest)
				return
			}
			a.RubricJSON = string(req.Rubric)
		}
		if err := store.PutAssignment(r.Context(), a); err != nil {
			writeDomainError(w, err)
			return
		}
		updated, err := store.GetAssignment(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// POST /assignments/{assignmentID}/retire marks the assignment retired;
// existing submissions and grades stay readable.
func RetireAssignmentHandler(store assignment.Store, dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		a, err := store.GetAssignment(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !canManageClub(r, dir, a.ClubID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := store.RetireAssignment(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
