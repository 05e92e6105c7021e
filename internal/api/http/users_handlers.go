package http

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clubhub/clubhub-backend/internal/club"
)

// rosterEntry is one row of a club roster import. ID is optional for
// new accounts; Password is plaintext and only accepted on the LAN
// deployment path.
type rosterEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"` // member | organizer | admin
	Password string `json:"password,omitempty"`
}

func validRole(role string) bool {
	return role == "member" || role == "organizer" || role == "admin"
}

// POST /users/bulk — onboard a roster in one call. The body is a JSON
// array or a multipart file= upload (CSV or JSON). With ?club_id= the
// whole roster is also enrolled in that club as members.
func BulkUpsertUsersHandler(db *sql.DB, dir club.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roster, err := decodeRoster(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		inserted, updated := 0, 0
		for i := range roster {
			if roster[i].ID == "" {
				roster[i].ID = uuid.NewString()
			}
			if roster[i].Role == "" {
				roster[i].Role = "member"
			}
		}
		if len(roster) > 0 {
			inserted, updated, err = upsertRoster(r.Context(), db, roster)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		enrolled := 0
		if clubID := r.URL.Query().Get("club_id"); clubID != "" {
			if _, err := dir.GetClub(r.Context(), clubID); err != nil {
				writeDomainError(w, err)
				return
			}
			for _, e := range roster {
				if err := dir.AddMember(r.Context(), club.Member{
					ClubID: clubID, UserID: e.ID, Role: club.RoleMember,
				}); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				enrolled++
			}
		}
		writeJSON(w, http.StatusOK, map[string]int{
			"inserted": inserted,
			"updated":  updated,
			"enrolled": enrolled,
		})
	}
}

func decodeRoster(r *http.Request) ([]rosterEntry, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		var roster []rosterEntry
		if err := json.NewDecoder(r.Body).Decode(&roster); err != nil {
			return nil, errors.New("expected a JSON array or a multipart file upload")
		}
		return roster, nil
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file required")
	}
	defer f.Close()
	if strings.HasSuffix(strings.ToLower(hdr.Filename), ".json") {
		var roster []rosterEntry
		if err := json.NewDecoder(f).Decode(&roster); err != nil {
			return nil, errors.New("bad json roster")
		}
		return roster, nil
	}
	return parseRosterCSV(f)
}

// parseRosterCSV reads a header row then entries. Only username is
// mandatory per row; a missing id means a fresh account.
func parseRosterCSV(r io.Reader) ([]rosterEntry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, errors.New("empty csv")
	}
	col := map[string]int{}
	for i, h := range hdr {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["username"]; !ok {
		return nil, errors.New("missing column: username")
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	var roster []rosterEntry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		roster = append(roster, rosterEntry{
			ID:       field(rec, "id"),
			Username: field(rec, "username"),
			Role:     strings.ToLower(field(rec, "role")),
			Password: field(rec, "password"),
		})
	}
	return roster, nil
}

func upsertRoster(ctx context.Context, db *sql.DB, roster []rosterEntry) (inserted, updated int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	for i := range roster {
		e := &roster[i]
		if e.Username == "" {
			return inserted, updated, errors.New("username required")
		}
		if !validRole(e.Role) {
			return inserted, updated, errors.New("invalid role: " + e.Role)
		}
		var phash string
		if e.Password != "" {
			var b []byte
			if b, err = bcrypt.GenerateFromPassword([]byte(e.Password), 12); err != nil {
				return inserted, updated, err
			}
			phash = string(b)
		}

		var existingID string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE id=$1 OR username=$2`, e.ID, e.Username).Scan(&existingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if phash == "" {
				return inserted, updated, errors.New("password required for new user: " + e.Username)
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
				e.ID, e.Username, phash, e.Role, now); err != nil {
				return inserted, updated, err
			}
			inserted++
		case err != nil:
			return inserted, updated, err
		default:
			// Existing account: keep its id so a later enrollment hits
			// the right user, refresh username and role, and touch the
			// password only when the import carries one.
			e.ID = existingID
			if phash != "" {
				_, err = tx.ExecContext(ctx, `UPDATE users SET username=$1, role=$2, password_hash=$3 WHERE id=$4`,
					e.Username, e.Role, phash, existingID)
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE users SET username=$1, role=$2 WHERE id=$3`,
					e.Username, e.Role, existingID)
			}
			if err != nil {
				return inserted, updated, err
			}
			updated++
		}
	}
	return
}

type userInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// GET /users?role=
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows *sql.Rows
		var err error
		if role := r.URL.Query().Get("role"); role != "" {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, role FROM users WHERE role=$1 ORDER BY username`, role)
		} else {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, role FROM users ORDER BY username`)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []userInfo{}
		for rows.Next() {
			var u userInfo
			if err := rows.Scan(&u.ID, &u.Username, &u.Role); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
