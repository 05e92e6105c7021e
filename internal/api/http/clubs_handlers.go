package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/clubhub/clubhub-backend/internal/auth/middleware"
	"github.com/clubhub/clubhub-backend/internal/club"
)

type createClubReq struct {
	Name string `json:"name" validate:"required"`
}

// POST /clubs
// The creator becomes the club's first admin member.
func CreateClubHandler(dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createClubReq
		if !decodeJSON(w, r, &req) {
			return
		}
		creator := authmw.SubjectFromContext(r.Context())
		c, err := dir.PutClub(r.Context(), club.Club{Name: req.Name, CreatedBy: creator})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := dir.AddMember(r.Context(), club.Member{ClubID: c.ID, UserID: creator, Role: club.RoleAdmin}); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// GET /clubs
func ListClubsHandler(dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := dir.ListClubs(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if list == nil {
			list = []club.Club{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type addMemberReq struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=member organizer admin"`
}

// POST /clubs/{clubID}/members
func AddMemberHandler(dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clubID := chi.URLParam(r, "clubID")
		if !canManageClub(r, dir, clubID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req addMemberReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := dir.AddMember(r.Context(), club.Member{ClubID: clubID, UserID: req.UserID, Role: req.Role}); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /clubs/{clubID}/members/{userID}
func RemoveMemberHandler(dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clubID := chi.URLParam(r, "clubID")
		if !canManageClub(r, dir, clubID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := dir.RemoveMember(r.Context(), clubID, chi.URLParam(r, "userID")); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /clubs/{clubID}/members
func ListMembersHandler(dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := dir.ListMembers(r.Context(), chi.URLParam(r, "clubID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if list == nil {
			list = []club.Member{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
