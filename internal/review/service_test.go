package review

import (
	"context"
	"errors"
	"testing"

	"github.com/clubhub/clubhub-backend/internal/assignment"
	"github.com/clubhub/clubhub-backend/internal/audit"
	"github.com/clubhub/clubhub-backend/internal/notify"
)

type testEnv struct {
	svc   *Service
	subs  assignment.Store
	byUsr map[string]string // author -> submissionID
	log   *audit.MemoryLog
}

// newTestEnv seeds one assignment with four submitted peers and runs an
// allocation round. With three reviews per reviewer and four peers,
// every non-self pair is allocated.
func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	ctx := context.Background()
	subs := assignment.NewInMemoryStore()
	logr := audit.NewMemoryLog()
	svc := NewService(subs, NewInMemoryStore(), logr, notify.NopNotifier{}, opts)

	if err := subs.PutAssignment(ctx, assignment.Assignment{
		ID:          "a1",
		ClubID:      "club-1",
		Title:       "Essay",
		Description: "Write about the reading.",
		MaxPoints:   100,
		CreatedBy:   "organizer-1",
	}); err != nil {
		t.Fatalf("PutAssignment: %v", err)
	}
	env := &testEnv{svc: svc, subs: subs, byUsr: map[string]string{}, log: logr}
	for _, author := range []string{"alice", "bob", "carol", "dave"} {
		s, err := subs.Submit(ctx, assignment.SubmitInput{AssignmentID: "a1", AuthorID: author, Content: "work by " + author})
		if err != nil {
			t.Fatalf("Submit %s: %v", author, err)
		}
		env.byUsr[author] = s.ID
	}
	if _, err := svc.Allocate(ctx, "a1", 1, nil, "organizer-1"); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	return env
}

func fourScores(a, b, c, d float64) map[string]float64 {
	return map[string]float64{"content": a, "understanding": b, "organization": c, "presentation": d}
}

func TestSubmitReviewAuthorization(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 2})

	// Self-review is never allowed.
	_, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: env.byUsr["alice"], ReviewerID: "alice", Scores: fourScores(20, 20, 20, 20),
	})
	var unauth *UnauthorizedReviewError
	if !errors.As(err, &unauth) {
		t.Fatalf("self review err = %v, want UnauthorizedReviewError", err)
	}

	// An outsider never allocated the submission is rejected too.
	_, err = env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: env.byUsr["alice"], ReviewerID: "mallory", Scores: fourScores(20, 20, 20, 20),
	})
	if !errors.As(err, &unauth) {
		t.Fatalf("outsider err = %v, want UnauthorizedReviewError", err)
	}

	if _, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: env.byUsr["alice"], ReviewerID: "bob", Scores: fourScores(20, 20, 20, 20),
	}); err != nil {
		t.Fatalf("allocated reviewer rejected: %v", err)
	}
}

func TestSubmitReviewScoreBounds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 2})

	for _, bad := range []map[string]float64{
		fourScores(-1, 20, 20, 20),
		fourScores(26, 20, 20, 20),
		{"content": 20, "understanding": 20, "organization": 20}, // missing criterion
	} {
		_, err := env.svc.SubmitReview(ctx, ReviewInput{
			SubmissionID: env.byUsr["alice"], ReviewerID: "bob", Scores: bad,
		})
		var ve *assignment.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("scores %v: err = %v, want ValidationError", bad, err)
		}
	}

	// Boundary values are fine.
	if _, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: env.byUsr["alice"], ReviewerID: "bob", Scores: fourScores(0, 25, 0, 25),
	}); err != nil {
		t.Fatalf("boundary scores rejected: %v", err)
	}
}

func TestSubmitReviewDuplicate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 2})

	in := ReviewInput{SubmissionID: env.byUsr["alice"], ReviewerID: "bob", Scores: fourScores(20, 20, 20, 20)}
	if _, err := env.svc.SubmitReview(ctx, in); err != nil {
		t.Fatalf("first review: %v", err)
	}
	_, err := env.svc.SubmitReview(ctx, in)
	var dup *DuplicateReviewError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateReviewError", err)
	}
}

func TestAmendReview(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 1})
	subID := env.byUsr["alice"]

	rv, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: subID, ReviewerID: "bob", Scores: fourScores(10, 10, 10, 10), Comment: "first pass",
	})
	if err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}

	// Only the author of the review may amend it.
	if _, err := env.svc.AmendReview(ctx, rv.ID, "carol", fourScores(5, 5, 5, 5), ""); err == nil {
		t.Fatal("amend by another reviewer should fail")
	}

	amended, err := env.svc.AmendReview(ctx, rv.ID, "bob", fourScores(15, 15, 15, 15), "second pass")
	if err != nil {
		t.Fatalf("AmendReview: %v", err)
	}
	if amended.ID == rv.ID {
		t.Fatal("amendment reused the old review id")
	}

	live, err := env.svc.ReviewsForSubmission(ctx, subID)
	if err != nil {
		t.Fatalf("ReviewsForSubmission: %v", err)
	}
	if len(live) != 1 || live[0].ID != amended.ID || live[0].Scores["content"] != 15 {
		t.Fatalf("live reviews = %+v", live)
	}

	// The superseded review survives with a pointer to its successor.
	old, err := env.svc.reviews.GetReview(ctx, rv.ID)
	if err != nil {
		t.Fatalf("GetReview old: %v", err)
	}
	if old.SupersededBy != amended.ID {
		t.Fatalf("old.SupersededBy = %q, want %q", old.SupersededBy, amended.ID)
	}

	// After grading, the window closes.
	if _, _, err := env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{}); err != nil {
		t.Fatalf("FinalizeGrade: %v", err)
	}
	if _, err := env.svc.AmendReview(ctx, amended.ID, "bob", fourScores(1, 1, 1, 1), ""); err == nil {
		t.Fatal("amend after grading should fail")
	}
}

func TestFinalizeGrade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 2})
	subID := env.byUsr["alice"]

	if _, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: subID, ReviewerID: "bob", Scores: fourScores(20, 22, 25, 18), Comment: "well argued",
	}); err != nil {
		t.Fatalf("review 1: %v", err)
	}

	// One review against a minimum of two: no grade yet.
	out, sub, err := env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{})
	if err != nil {
		t.Fatalf("FinalizeGrade: %v", err)
	}
	if !out.InsufficientReviews || out.Finalized {
		t.Fatalf("outcome = %+v, want insufficient", out)
	}
	if sub.Status != assignment.StatusSubmitted {
		t.Fatalf("submission moved to %s on insufficient reviews", sub.Status)
	}

	if _, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: subID, ReviewerID: "carol", Scores: fourScores(24, 20, 23, 20),
	}); err != nil {
		t.Fatalf("review 2: %v", err)
	}

	out, sub, err = env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{})
	if err != nil {
		t.Fatalf("FinalizeGrade: %v", err)
	}
	if !out.Finalized || out.FinalPoints != 86 {
		t.Fatalf("outcome = %+v, want 86 points", out)
	}
	if sub.Status != assignment.StatusGraded || sub.PointsEarned == nil || *sub.PointsEarned != 86 {
		t.Fatalf("submission = %+v", sub)
	}

	// Finalizing again over the same reviews is a regrade to the same
	// value.
	out2, sub2, err := env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{})
	if err != nil {
		t.Fatalf("re-finalize: %v", err)
	}
	if out2.FinalPoints != out.FinalPoints || *sub2.PointsEarned != 86 {
		t.Fatalf("re-finalize diverged: %+v", out2)
	}
	hist, err := env.subs.GradeHistory(ctx, subID)
	if err != nil || len(hist) != 2 {
		t.Fatalf("history = %v, %v", hist, err)
	}
}

func TestFinalizeGradeForced(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 2})
	subID := env.byUsr["alice"]

	if _, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: subID, ReviewerID: "bob", Scores: fourScores(20, 20, 20, 20),
	}); err != nil {
		t.Fatalf("review: %v", err)
	}
	out, sub, err := env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{Force: true})
	if err != nil {
		t.Fatalf("forced finalize: %v", err)
	}
	if !out.Finalized || out.FinalPoints != 80 {
		t.Fatalf("outcome = %+v", out)
	}
	if sub.Status != assignment.StatusGraded {
		t.Fatalf("status = %s", sub.Status)
	}
}

func TestFinalizeGradePolicyPerCall(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 1})
	subID := env.byUsr["alice"]

	for reviewer, s := range map[string]map[string]float64{
		"bob":   fourScores(10, 10, 10, 10),
		"carol": fourScores(20, 20, 20, 20),
		"dave":  fourScores(24, 24, 24, 24),
	} {
		if _, err := env.svc.SubmitReview(ctx, ReviewInput{
			SubmissionID: subID, ReviewerID: reviewer, Scores: s,
		}); err != nil {
			t.Fatalf("review by %s: %v", reviewer, err)
		}
	}

	// A stricter minimum for this call trumps the configured one.
	out, sub, err := env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{MinimumReviewers: 4})
	if err != nil {
		t.Fatalf("FinalizeGrade: %v", err)
	}
	if !out.InsufficientReviews || sub.Status != assignment.StatusSubmitted {
		t.Fatalf("outcome = %+v, status = %s; want insufficient", out, sub.Status)
	}

	// The median of 10/20/24 per criterion is 20, so 80 of 100.
	out, sub, err = env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{Method: "median"})
	if err != nil {
		t.Fatalf("median finalize: %v", err)
	}
	if !out.Finalized || out.Method != "median" || out.FinalPoints != 80 {
		t.Fatalf("outcome = %+v, want median 80", out)
	}
	if sub.Status != assignment.StatusGraded {
		t.Fatalf("status = %s", sub.Status)
	}

	_, _, err = env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{Method: "mode"})
	var ve *assignment.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("unknown method err = %v, want ValidationError", err)
	}
}

func TestOverrideAndRelease(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 1})
	subID := env.byUsr["alice"]

	if _, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: subID, ReviewerID: "bob", Scores: fourScores(10, 10, 10, 10),
	}); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, _, err := env.svc.FinalizeGrade(ctx, subID, "organizer-1", FinalizeOpts{}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	sub, err := env.svc.OverrideGrade(ctx, subID, 95, "regrade on appeal", "organizer-1", 0)
	if err != nil {
		t.Fatalf("OverrideGrade: %v", err)
	}
	if *sub.PointsEarned != 95 {
		t.Fatalf("points = %v", *sub.PointsEarned)
	}

	released, err := env.svc.ReleaseGrade(ctx, subID, "organizer-1")
	if err != nil {
		t.Fatalf("ReleaseGrade: %v", err)
	}
	if released.Status != assignment.StatusReturned {
		t.Fatalf("status = %s", released.Status)
	}

	hist, err := env.subs.GradeHistory(ctx, subID)
	if err != nil {
		t.Fatalf("GradeHistory: %v", err)
	}
	if len(hist) != 2 || !hist[1].Override {
		t.Fatalf("history = %+v", hist)
	}

	events, err := env.log.Since(ctx, 0, 50)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Type)
	}
	want := map[string]bool{
		audit.TypeRoundAllocated:  false,
		audit.TypeReviewSubmitted: false,
		audit.TypeGradeFinalized:  false,
		audit.TypeGradeOverridden: false,
		audit.TypeGradeReleased:   false,
	}
	for _, k := range kinds {
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("audit log missing %s (got %v)", k, kinds)
		}
	}
}

func TestQueue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{PerReviewer: 3, MinReviewers: 1})

	queue, err := env.svc.Queue(ctx, "bob")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(queue))
	}
	for _, item := range queue {
		if item.Done {
			t.Fatalf("fresh queue item marked done: %+v", item)
		}
		if item.SubmissionID == env.byUsr["bob"] {
			t.Fatal("bob queued for his own submission")
		}
	}

	if _, err := env.svc.SubmitReview(ctx, ReviewInput{
		SubmissionID: queue[0].SubmissionID, ReviewerID: "bob", Scores: fourScores(20, 20, 20, 20),
	}); err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}
	queue, err = env.svc.Queue(ctx, "bob")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	done := 0
	for _, item := range queue {
		if item.Done {
			done++
		}
	}
	if done != 1 {
		t.Fatalf("done count = %d, want 1", done)
	}
}
