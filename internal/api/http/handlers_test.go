package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/clubhub/clubhub-backend/internal/assignment"
	"github.com/clubhub/clubhub-backend/internal/audit"
	authmw "github.com/clubhub/clubhub-backend/internal/auth/middleware"
	"github.com/clubhub/clubhub-backend/internal/club"
	"github.com/clubhub/clubhub-backend/internal/notify"
	"github.com/clubhub/clubhub-backend/internal/rbac"
	"github.com/clubhub/clubhub-backend/internal/review"
)

type apiEnv struct {
	router *chi.Mux
	subs   assignment.Store
	dir    club.Directory
	svc    *review.Service
	log    *audit.MemoryLog
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	subs := assignment.NewInMemoryStore()
	dir := club.NewInMemoryDirectory()
	logr := audit.NewMemoryLog()
	svc := review.NewService(subs, review.NewInMemoryStore(), logr, notify.NopNotifier{},
		review.Options{PerReviewer: 3, MinReviewers: 2})

	r := chi.NewRouter()
	r.Post("/clubs/{clubID}/assignments", CreateAssignmentHandler(subs, dir))
	r.Get("/assignments/{assignmentID}", GetAssignmentHandler(subs))
	r.Post("/assignments/{assignmentID}/submit", SubmitHandler(subs, logr))
	r.Post("/assignments/{assignmentID}/allocate", AllocateHandler(svc))
	r.Get("/reviews/queue", QueueHandler(svc))
	r.Post("/reviews", SubmitReviewHandler(svc))
	r.Post("/submissions/{submissionID}/finalize", FinalizeGradeHandler(svc))
	return &apiEnv{router: r, subs: subs, dir: dir, svc: svc, log: logr}
}

// do issues a request as the given user and role, the way the auth
// middleware would present it.
func (e *apiEnv) do(t *testing.T, method, path, user, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	ctx := authmw.WithSubject(req.Context(), user)
	ctx = rbac.WithRole(ctx, role)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func (e *apiEnv) seedClub(t *testing.T, organizer string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.dir.PutClub(ctx, club.Club{ID: "club-1", Name: "Chess", CreatedBy: organizer}); err != nil {
		t.Fatalf("PutClub: %v", err)
	}
	if err := e.dir.AddMember(ctx, club.Member{ClubID: "club-1", UserID: organizer, Role: club.RoleOrganizer}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
}

func TestCreateAssignmentEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.seedClub(t, "olga")

	body := map[string]any{"title": "Opening study", "description": "Annotate one game.", "max_points": 100}

	// A plain member of no standing in the club is refused.
	rec := env.do(t, "POST", "/clubs/club-1/assignments", "marek", "member", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member create: status = %d, want 403", rec.Code)
	}

	rec = env.do(t, "POST", "/clubs/club-1/assignments", "olga", "member", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("organizer create: status = %d, body %s", rec.Code, rec.Body)
	}
	var created assignment.Assignment
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.ClubID != "club-1" {
		t.Fatalf("created = %+v", created)
	}

	// Validation failures surface as 400.
	rec = env.do(t, "POST", "/clubs/club-1/assignments", "olga", "member",
		map[string]any{"title": "x", "description": "y", "max_points": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero max_points: status = %d", rec.Code)
	}

	rec = env.do(t, "GET", "/assignments/"+created.ID, "marek", "member", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	var got struct {
		Rubric struct {
			Criteria []struct{ ID string } `json:"criteria"`
		} `json:"rubric"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if len(got.Rubric.Criteria) != 4 {
		t.Fatalf("default rubric criteria = %d, want 4", len(got.Rubric.Criteria))
	}
}

func TestReviewFlowEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.seedClub(t, "olga")

	rec := env.do(t, "POST", "/clubs/club-1/assignments", "olga", "member",
		map[string]any{"title": "Essay", "description": "On openings.", "max_points": 50})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var a assignment.Assignment
	_ = json.Unmarshal(rec.Body.Bytes(), &a)

	subIDs := map[string]string{} // author -> submissionID
	for _, author := range []string{"alice", "bob", "carol"} {
		rec = env.do(t, "POST", "/assignments/"+a.ID+"/submit", author, "member",
			map[string]any{"content": "work by " + author})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit %s: %d %s", author, rec.Code, rec.Body)
		}
		var s assignment.Submission
		_ = json.Unmarshal(rec.Body.Bytes(), &s)
		subIDs[author] = s.ID
	}

	// Each accepted submission lands in the audit trail.
	events, err := env.log.Since(context.Background(), 0, 50)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	received := 0
	for _, e := range events {
		if e.Type == audit.TypeSubmissionReceived {
			received++
		}
	}
	if received != 3 {
		t.Fatalf("SubmissionReceived events = %d, want 3", received)
	}

	// Duplicate submit is a conflict.
	rec = env.do(t, "POST", "/assignments/"+a.ID+"/submit", "alice", "member",
		map[string]any{"content": "again"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("resubmit: status = %d, want 409", rec.Code)
	}

	rec = env.do(t, "POST", "/assignments/"+a.ID+"/allocate", "olga", "organizer",
		map[string]any{"seed": 7})
	if rec.Code != http.StatusCreated {
		t.Fatalf("allocate: %d %s", rec.Code, rec.Body)
	}
	var round review.Round
	_ = json.Unmarshal(rec.Body.Bytes(), &round)
	if round.Seed != 7 || len(round.Pairs) == 0 {
		t.Fatalf("round = %+v", round)
	}

	rec = env.do(t, "GET", "/reviews/queue", "alice", "member", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("queue: %d", rec.Code)
	}
	var queue []review.QueueItem
	_ = json.Unmarshal(rec.Body.Bytes(), &queue)
	if len(queue) != 2 {
		t.Fatalf("queue = %+v, want alice's two peers", queue)
	}

	scores := map[string]float64{"content": 20, "understanding": 20, "organization": 20, "presentation": 20}

	// Reviewing your own submission is forbidden.
	rec = env.do(t, "POST", "/reviews", "alice", "member",
		map[string]any{"submission_id": subIDs["alice"], "scores": scores})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("self review: status = %d, want 403", rec.Code)
	}

	for _, reviewer := range []string{"bob", "carol"} {
		rec = env.do(t, "POST", "/reviews", reviewer, "member",
			map[string]any{"submission_id": subIDs["alice"], "scores": scores})
		if rec.Code != http.StatusCreated {
			t.Fatalf("review by %s: %d %s", reviewer, rec.Code, rec.Body)
		}
	}

	// Second review by the same reviewer conflicts.
	rec = env.do(t, "POST", "/reviews", "bob", "member",
		map[string]any{"submission_id": subIDs["alice"], "scores": scores})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate review: status = %d, want 409", rec.Code)
	}

	rec = env.do(t, "POST", "/submissions/"+subIDs["alice"]+"/finalize", "olga", "organizer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize: %d %s", rec.Code, rec.Body)
	}
	var result struct {
		Outcome struct {
			Finalized   bool    `json:"finalized"`
			FinalPoints float64 `json:"final_points"`
		} `json:"outcome"`
		Submission assignment.Submission `json:"submission"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode finalize: %v", err)
	}
	// 80/100 rubric points rescaled onto a 50-point assignment.
	if !result.Outcome.Finalized || result.Outcome.FinalPoints != 40 {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if result.Submission.Status != assignment.StatusGraded {
		t.Fatalf("status = %s", result.Submission.Status)
	}

	// A submission with too few reviews stays put and reports the gap.
	rec = env.do(t, "POST", "/submissions/"+subIDs["bob"]+"/finalize", "olga", "organizer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize bob: %d %s", rec.Code, rec.Body)
	}
	var insufficient struct {
		Outcome struct {
			InsufficientReviews bool `json:"insufficient_reviews"`
		} `json:"outcome"`
		Submission assignment.Submission `json:"submission"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &insufficient)
	if !insufficient.Outcome.InsufficientReviews || insufficient.Submission.Status != assignment.StatusSubmitted {
		t.Fatalf("insufficient = %+v", insufficient)
	}

	// Unknown submissions map to 404.
	rec = env.do(t, "POST", fmt.Sprintf("/submissions/%s/finalize", "nope"), "olga", "organizer", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing submission: status = %d, want 404", rec.Code)
	}
}
