package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/clubhub/clubhub-backend/internal/assignment"
	"github.com/clubhub/clubhub-backend/internal/audit"
	"github.com/clubhub/clubhub-backend/internal/grading"
	"github.com/clubhub/clubhub-backend/internal/notify"
)

// Options are the allocation and grading knobs, normally sourced from
// configuration.
type Options struct {
	PerReviewer   int
	PerSubmission int
	MinReviewers  int
}

// Service runs the peer-review workflow over the assignment and review
// stores. All grade math lives in the grading package; the service
// owns authorization, sequencing, and the audit trail.
type Service struct {
	subs    assignment.Store
	reviews Store
	auditor audit.Recorder
	notif   notify.Notifier
	opts    Options
}

func NewService(subs assignment.Store, reviews Store, auditor audit.Recorder, notif notify.Notifier, opts Options) *Service {
	if opts.PerReviewer <= 0 {
		opts.PerReviewer = 3
	}
	if opts.MinReviewers <= 0 {
		opts.MinReviewers = 1
	}
	return &Service{subs: subs, reviews: reviews, auditor: auditor, notif: notif, opts: opts}
}

// Allocate runs a review round for an assignment. Reviewers are the
// authors of submitted work plus any extra reviewers the organizer
// names. Re-running replaces the active round; reviews already written
// stay valid.
func (s *Service) Allocate(ctx context.Context, assignmentID string, seed int64, extraReviewers []string, actor string) (Round, error) {
	if _, err := s.subs.GetAssignment(ctx, assignmentID); err != nil {
		return Round{}, err
	}
	subs, err := s.subs.ListSubmissions(ctx, assignment.SubmissionListOpts{
		AssignmentID: assignmentID,
		Status:       assignment.StatusSubmitted,
	})
	if err != nil {
		return Round{}, err
	}

	candidates := make([]Candidate, 0, len(subs))
	seen := make(map[string]struct{})
	var reviewers []string
	for _, sub := range subs {
		candidates = append(candidates, Candidate{SubmissionID: sub.ID, AuthorID: sub.AuthorID})
		if _, ok := seen[sub.AuthorID]; !ok {
			seen[sub.AuthorID] = struct{}{}
			reviewers = append(reviewers, sub.AuthorID)
		}
	}
	for _, r := range extraReviewers {
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			reviewers = append(reviewers, r)
		}
	}

	alloc := Allocate(candidates, reviewers, seed, AllocOpts{
		PerReviewer:      s.opts.PerReviewer,
		PerSubmission:    s.opts.PerSubmission,
		MinPerSubmission: 1,
	})
	round, err := s.reviews.SaveRound(ctx, Round{
		AssignmentID: assignmentID,
		Seed:         seed,
		Shortfall:    alloc.Shortfall,
		Pairs:        alloc.Pairs,
	})
	if err != nil {
		return Round{}, err
	}
	s.record(ctx, audit.TypeRoundAllocated, round.ID, actor, map[string]any{
		"assignment_id": assignmentID,
		"seed":          seed,
		"pairs":         len(round.Pairs),
		"shortfall":     round.Shortfall,
	})
	for _, r := range reviewers {
		if countPairs(round.Pairs, r) == 0 {
			continue
		}
		s.send(ctx, notify.Notification{
			UserID: r,
			Kind:   "review_assigned",
			Title:  "Peer reviews assigned",
			Body:   fmt.Sprintf("You have %d submissions to review.", countPairs(round.Pairs, r)),
		})
	}
	return round, nil
}

// Queue lists the reviewer's pending and completed allocations across
// active rounds.
func (s *Service) Queue(ctx context.Context, reviewerID string) ([]QueueItem, error) {
	rounds, err := s.reviews.RoundsForReviewer(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	done, err := s.reviews.ReviewsByReviewer(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	reviewed := make(map[string]struct{}, len(done))
	for _, rv := range done {
		reviewed[rv.SubmissionID] = struct{}{}
	}
	var out []QueueItem
	for _, round := range rounds {
		for _, p := range round.Pairs {
			if p.ReviewerID != reviewerID {
				continue
			}
			_, ok := reviewed[p.SubmissionID]
			out = append(out, QueueItem{
				SubmissionID: p.SubmissionID,
				AssignmentID: round.AssignmentID,
				Done:         ok,
			})
		}
	}
	return out, nil
}

// ReviewInput is one reviewer's scored assessment.
type ReviewInput struct {
	SubmissionID string
	ReviewerID   string
	Scores       map[string]float64
	Comment      string
}

// SubmitReview records a review after checking the reviewer was
// allocated the submission and the scores fit the assignment's rubric.
func (s *Service) SubmitReview(ctx context.Context, in ReviewInput) (Review, error) {
	sub, a, rubric, err := s.loadSubmission(ctx, in.SubmissionID)
	if err != nil {
		return Review{}, err
	}
	if sub.AuthorID == in.ReviewerID {
		return Review{}, &UnauthorizedReviewError{ReviewerID: in.ReviewerID, SubmissionID: in.SubmissionID}
	}
	if err := s.checkAllocated(ctx, a.ID, in.ReviewerID, in.SubmissionID); err != nil {
		return Review{}, err
	}
	if err := rubric.CheckScores(in.Scores); err != nil {
		return Review{}, &assignment.ValidationError{Reason: err.Error()}
	}
	rv, err := s.reviews.InsertReview(ctx, Review{
		SubmissionID: in.SubmissionID,
		ReviewerID:   in.ReviewerID,
		Scores:       in.Scores,
		Comment:      in.Comment,
	})
	if err != nil {
		return Review{}, err
	}
	s.record(ctx, audit.TypeReviewSubmitted, rv.ID, in.ReviewerID, map[string]any{
		"submission_id": in.SubmissionID,
	})
	s.send(ctx, notify.Notification{
		UserID: sub.AuthorID,
		Kind:   "review_received",
		Title:  "New peer review",
		Body:   fmt.Sprintf("Your submission for %q received a review.", a.Title),
	})
	return rv, nil
}

// AmendReview supersedes the reviewer's earlier review with new scores.
// The old review is kept for the audit trail. Amending closes once the
// submission has been graded.
func (s *Service) AmendReview(ctx context.Context, reviewID, reviewerID string, scores map[string]float64, comment string) (Review, error) {
	old, err := s.reviews.GetReview(ctx, reviewID)
	if err != nil {
		return Review{}, err
	}
	if old.ReviewerID != reviewerID {
		return Review{}, &UnauthorizedReviewError{ReviewerID: reviewerID, SubmissionID: old.SubmissionID}
	}
	if old.SupersededBy != "" {
		return Review{}, ErrReviewNotFound
	}
	sub, _, rubric, err := s.loadSubmission(ctx, old.SubmissionID)
	if err != nil {
		return Review{}, err
	}
	if sub.Status != assignment.StatusSubmitted {
		return Review{}, &assignment.ValidationError{Reason: "submission already graded; review can no longer change"}
	}
	if err := rubric.CheckScores(scores); err != nil {
		return Review{}, &assignment.ValidationError{Reason: err.Error()}
	}
	rv, err := s.reviews.SupersedeReview(ctx, reviewID, Review{
		SubmissionID: old.SubmissionID,
		ReviewerID:   reviewerID,
		Scores:       scores,
		Comment:      comment,
	})
	if err != nil {
		return Review{}, err
	}
	s.record(ctx, audit.TypeReviewAmended, rv.ID, reviewerID, map[string]any{
		"supersedes":    reviewID,
		"submission_id": old.SubmissionID,
	})
	return rv, nil
}

func (s *Service) ReviewsForSubmission(ctx context.Context, submissionID string) ([]Review, error) {
	if _, err := s.subs.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.reviews.LiveReviews(ctx, submissionID)
}

// FinalizeOpts is the per-call grading policy. Zero values defer to the
// service configuration: the configured minimum reviewer count and the
// mean aggregation method.
type FinalizeOpts struct {
	Force            bool
	ExpectedVersion  int64
	MinimumReviewers int
	Method           string
}

// FinalizeGrade aggregates the live reviews into a grade. With too few
// reviews and force unset, the submission is left untouched and the
// outcome reports the gap. Finalizing is idempotent over an unchanged
// review set.
func (s *Service) FinalizeGrade(ctx context.Context, submissionID, actor string, o FinalizeOpts) (grading.Outcome, assignment.Submission, error) {
	sub, a, rubric, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return grading.Outcome{}, assignment.Submission{}, err
	}
	live, err := s.reviews.LiveReviews(ctx, submissionID)
	if err != nil {
		return grading.Outcome{}, assignment.Submission{}, err
	}
	scores := make([]grading.ReviewScores, 0, len(live))
	for _, rv := range live {
		scores = append(scores, grading.ReviewScores{ReviewerID: rv.ReviewerID, Scores: rv.Scores, Comment: rv.Comment})
	}
	min := s.opts.MinReviewers
	if o.MinimumReviewers > 0 {
		min = o.MinimumReviewers
	}
	out, err := grading.Aggregate(rubric, scores, a.MaxPoints, grading.Policy{
		MinimumReviewers: min,
		Method:           o.Method,
		Force:            o.Force,
	})
	if err != nil {
		// Aggregate only fails on a policy it cannot interpret, which
		// is caller input here.
		return grading.Outcome{}, assignment.Submission{}, &assignment.ValidationError{Reason: err.Error()}
	}
	if out.InsufficientReviews {
		return out, sub, nil
	}
	graded, err := s.subs.ApplyGrade(ctx, assignment.GradeInput{
		SubmissionID:    submissionID,
		Points:          out.FinalPoints,
		Feedback:        out.Feedback,
		GradedBy:        actor,
		ExpectedVersion: o.ExpectedVersion,
	})
	if err != nil {
		return grading.Outcome{}, assignment.Submission{}, err
	}
	s.record(ctx, audit.TypeGradeFinalized, submissionID, actor, map[string]any{
		"points":  out.FinalPoints,
		"reviews": out.ReviewsCounted,
		"method":  out.Method,
		"forced":  o.Force,
	})
	return out, graded, nil
}

// OverrideGrade lets an organizer set the grade directly, bypassing
// aggregation. The override lands in the same grade history.
func (s *Service) OverrideGrade(ctx context.Context, submissionID string, points float64, feedback, actor string, expectedVersion int64) (assignment.Submission, error) {
	graded, err := s.subs.ApplyGrade(ctx, assignment.GradeInput{
		SubmissionID:    submissionID,
		Points:          points,
		Feedback:        feedback,
		GradedBy:        actor,
		Override:        true,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return assignment.Submission{}, err
	}
	s.record(ctx, audit.TypeGradeOverridden, submissionID, actor, map[string]any{
		"points": points,
	})
	return graded, nil
}

// ReleaseGrade returns the graded submission to its author.
func (s *Service) ReleaseGrade(ctx context.Context, submissionID, actor string) (assignment.Submission, error) {
	sub, err := s.subs.Release(ctx, submissionID)
	if err != nil {
		return assignment.Submission{}, err
	}
	s.record(ctx, audit.TypeGradeReleased, submissionID, actor, nil)
	s.send(ctx, notify.Notification{
		UserID: sub.AuthorID,
		Kind:   "grade_released",
		Title:  "Grade released",
		Body:   "Your submission has been graded and returned.",
	})
	return sub, nil
}

func (s *Service) loadSubmission(ctx context.Context, submissionID string) (assignment.Submission, assignment.Assignment, grading.Rubric, error) {
	sub, err := s.subs.GetSubmission(ctx, submissionID)
	if err != nil {
		return assignment.Submission{}, assignment.Assignment{}, grading.Rubric{}, err
	}
	a, err := s.subs.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return assignment.Submission{}, assignment.Assignment{}, grading.Rubric{}, err
	}
	rubric, err := grading.ParseRubric(a.RubricJSON)
	if err != nil {
		return assignment.Submission{}, assignment.Assignment{}, grading.Rubric{}, err
	}
	return sub, a, rubric, nil
}

func (s *Service) checkAllocated(ctx context.Context, assignmentID, reviewerID, submissionID string) error {
	round, err := s.reviews.ActiveRound(ctx, assignmentID)
	if err != nil {
		return err
	}
	for _, p := range round.Pairs {
		if p.ReviewerID == reviewerID && p.SubmissionID == submissionID {
			return nil
		}
	}
	return &UnauthorizedReviewError{ReviewerID: reviewerID, SubmissionID: submissionID}
}

// record appends to the audit log; the workflow does not roll back on
// audit failure, it logs and moves on.
func (s *Service) record(ctx context.Context, typ, key, actor string, data map[string]any) {
	raw := "{}"
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = string(b)
		}
	}
	if err := s.auditor.Append(ctx, audit.Event{Type: typ, Key: key, Actor: actor, DataJSON: raw}); err != nil {
		log.Printf("audit append failed: type=%s key=%s err=%v", typ, key, err)
	}
}

func (s *Service) send(ctx context.Context, n notify.Notification) {
	if err := s.notif.Notify(ctx, n); err != nil {
		log.Printf("notification failed: user=%s kind=%s err=%v", n.UserID, n.Kind, err)
	}
}

func countPairs(pairs []Pair, reviewerID string) int {
	n := 0
	for _, p := range pairs {
		if p.ReviewerID == reviewerID {
			n++
		}
	}
	return n
}
