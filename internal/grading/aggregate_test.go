package grading

import (
	"strings"
	"testing"
)

func scores(content, understanding, organization, presentation float64) map[string]float64 {
	return map[string]float64{
		"content":       content,
		"understanding": understanding,
		"organization":  organization,
		"presentation":  presentation,
	}
}

func TestAggregateMean(t *testing.T) {
	rubric := DefaultRubric()
	reviews := []ReviewScores{
		{ReviewerID: "r1", Scores: scores(20, 22, 25, 18), Comment: "solid work"},
		{ReviewerID: "r2", Scores: scores(24, 20, 23, 20)},
	}
	out, err := Aggregate(rubric, reviews, 100, Policy{MinimumReviewers: 2})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !out.Finalized || out.InsufficientReviews {
		t.Fatalf("outcome = %+v, want finalized", out)
	}
	want := map[string]float64{"content": 22, "understanding": 21, "organization": 24, "presentation": 19}
	for id, w := range want {
		if got := out.PerCriterion[id]; got != w {
			t.Errorf("PerCriterion[%s] = %v, want %v", id, got, w)
		}
	}
	if out.RubricTotal != 86 || out.FinalPoints != 86 {
		t.Fatalf("total = %v, final = %v, want 86", out.RubricTotal, out.FinalPoints)
	}
	if !strings.Contains(out.Feedback, "[r1] solid work") {
		t.Fatalf("feedback = %q", out.Feedback)
	}
}

func TestAggregateInsufficientReviews(t *testing.T) {
	rubric := DefaultRubric()
	reviews := []ReviewScores{{ReviewerID: "r1", Scores: scores(20, 20, 20, 20)}}

	out, err := Aggregate(rubric, reviews, 100, Policy{MinimumReviewers: 2})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if out.Finalized || !out.InsufficientReviews {
		t.Fatalf("outcome = %+v, want insufficient", out)
	}
	if out.FinalPoints != 0 {
		t.Fatalf("FinalPoints = %v, want 0", out.FinalPoints)
	}

	// Force overrides the minimum.
	out, err = Aggregate(rubric, reviews, 100, Policy{MinimumReviewers: 2, Force: true})
	if err != nil {
		t.Fatalf("Aggregate force: %v", err)
	}
	if !out.Finalized || out.FinalPoints != 80 {
		t.Fatalf("forced outcome = %+v", out)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	rubric := DefaultRubric()
	reviews := []ReviewScores{
		{ReviewerID: "r1", Scores: scores(13, 17, 19, 23)},
		{ReviewerID: "r2", Scores: scores(11, 25, 7, 18)},
		{ReviewerID: "r3", Scores: scores(22, 9, 14, 25)},
	}
	first, err := Aggregate(rubric, reviews, 60, Policy{MinimumReviewers: 1})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Aggregate(rubric, reviews, 60, Policy{MinimumReviewers: 1})
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if again.FinalPoints != first.FinalPoints || again.RubricTotal != first.RubricTotal {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestAggregateMedianAndTrimmed(t *testing.T) {
	rubric := Rubric{Criteria: []Criterion{{ID: "only", Name: "Only", MaxPoints: 10}}}
	reviews := []ReviewScores{
		{ReviewerID: "r1", Scores: map[string]float64{"only": 2}},
		{ReviewerID: "r2", Scores: map[string]float64{"only": 9}},
		{ReviewerID: "r3", Scores: map[string]float64{"only": 8}},
	}
	out, err := Aggregate(rubric, reviews, 10, Policy{Method: "median"})
	if err != nil {
		t.Fatalf("median: %v", err)
	}
	if out.PerCriterion["only"] != 8 {
		t.Fatalf("median = %v, want 8", out.PerCriterion["only"])
	}
	out, err = Aggregate(rubric, reviews, 10, Policy{Method: "trimmed_mean"})
	if err != nil {
		t.Fatalf("trimmed: %v", err)
	}
	if out.PerCriterion["only"] != 8 {
		t.Fatalf("trimmed mean = %v, want 8", out.PerCriterion["only"])
	}
	if _, err := Aggregate(rubric, reviews, 10, Policy{Method: "mode"}); err == nil {
		t.Fatal("unknown method should error")
	}
}

func TestAggregateIncompleteCriterion(t *testing.T) {
	rubric := DefaultRubric()
	partial := map[string]float64{"content": 20, "understanding": 20, "organization": 20}
	out, err := Aggregate(rubric, []ReviewScores{{ReviewerID: "r1", Scores: partial}}, 100, Policy{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(out.Incomplete) != 1 || out.Incomplete[0] != "presentation" {
		t.Fatalf("Incomplete = %v", out.Incomplete)
	}
	if out.RubricTotal != 60 {
		t.Fatalf("RubricTotal = %v, want 60", out.RubricTotal)
	}
}

func TestRescale(t *testing.T) {
	cases := []struct {
		total, max, points, want float64
	}{
		{80, 100, 50, 40},
		{86, 100, 100, 86},
		{85, 100, 50, 42}, // 42.5 rounds half to even
		{87, 100, 50, 44}, // 43.5 rounds half to even
		{0, 100, 50, 0},
		{100, 100, 50, 50},
		{50, 0, 50, 0}, // degenerate rubric
	}
	for _, c := range cases {
		if got := Rescale(c.total, c.max, c.points); got != c.want {
			t.Errorf("Rescale(%v, %v, %v) = %v, want %v", c.total, c.max, c.points, got, c.want)
		}
	}
}
