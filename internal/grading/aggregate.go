package grading

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ReviewScores is a minimal view of one review needed for aggregation.
type ReviewScores struct {
	ReviewerID string
	Scores     map[string]float64
	Comment    string
}

// Policy controls how reviews combine into a final grade.
type Policy struct {
	MinimumReviewers int    `json:"minimum_reviewers"`
	Method           string `json:"method,omitempty"` // mean (default) | median | trimmed_mean
	Force            bool   `json:"force,omitempty"`  // finalize even below MinimumReviewers
}

// Outcome is the result of one aggregation pass. InsufficientReviews is a
// state, not an error: callers may wait for more reviews or force.
type Outcome struct {
	Finalized           bool               `json:"finalized"`
	InsufficientReviews bool               `json:"insufficient_reviews"`
	ReviewsCounted      int                `json:"reviews_counted"`
	Method              string             `json:"method"`
	PerCriterion        map[string]float64 `json:"per_criterion"`
	Incomplete          []string           `json:"incomplete,omitempty"` // criteria with zero scores
	RubricTotal         float64            `json:"rubric_total"`
	RubricMax           float64            `json:"rubric_max"`
	FinalPoints         float64            `json:"final_points"`
	Feedback            string             `json:"feedback"`
}

// Strategy combines one criterion's scores across reviewers.
type Strategy interface {
	Combine(values []float64) float64
}

type meanStrategy struct{}

func (meanStrategy) Combine(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

type medianStrategy struct{}

func (medianStrategy) Combine(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// trimmedMeanStrategy drops the single highest and lowest score before
// averaging; below three scores it degrades to a plain mean.
type trimmedMeanStrategy struct{}

func (trimmedMeanStrategy) Combine(values []float64) float64 {
	if len(values) < 3 {
		return meanStrategy{}.Combine(values)
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	return meanStrategy{}.Combine(s[1 : len(s)-1])
}

func strategyFor(method string) (Strategy, error) {
	switch method {
	case "", "mean":
		return meanStrategy{}, nil
	case "median":
		return medianStrategy{}, nil
	case "trimmed_mean":
		return trimmedMeanStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown aggregation method: %s", method)
	}
}

// Aggregate combines reviews into a single grade scaled to maxPoints.
// It is a pure function: repeated calls over the same reviews yield the
// same outcome. When fewer than Policy.MinimumReviewers reviews exist
// and Force is unset, the outcome reports InsufficientReviews and no
// final points.
func Aggregate(rubric Rubric, reviews []ReviewScores, maxPoints float64, p Policy) (Outcome, error) {
	strat, err := strategyFor(p.Method)
	if err != nil {
		return Outcome{}, err
	}
	if p.MinimumReviewers <= 0 {
		p.MinimumReviewers = 1
	}
	if p.Method == "" {
		p.Method = "mean"
	}

	out := Outcome{
		ReviewsCounted: len(reviews),
		Method:         p.Method,
		PerCriterion:   make(map[string]float64, len(rubric.Criteria)),
		RubricMax:      rubric.MaxTotal(),
	}
	if len(reviews) < p.MinimumReviewers && !p.Force {
		out.InsufficientReviews = true
		return out, nil
	}

	for _, c := range rubric.Criteria {
		var vals []float64
		for _, rv := range reviews {
			if v, ok := rv.Scores[c.ID]; ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			out.Incomplete = append(out.Incomplete, c.ID)
			out.PerCriterion[c.ID] = 0
			continue
		}
		combined := strat.Combine(vals)
		out.PerCriterion[c.ID] = combined
		out.RubricTotal += combined
	}

	out.FinalPoints = Rescale(out.RubricTotal, out.RubricMax, maxPoints)
	out.Feedback = joinFeedback(reviews)
	out.Finalized = true
	return out, nil
}

// Rescale maps a rubric-space total onto the assignment's point scale,
// rounding half to even.
func Rescale(total, rubricMax, maxPoints float64) float64 {
	if rubricMax <= 0 {
		return 0
	}
	return math.RoundToEven(total / rubricMax * maxPoints)
}

func joinFeedback(reviews []ReviewScores) string {
	var parts []string
	for _, rv := range reviews {
		c := strings.TrimSpace(rv.Comment)
		if c == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", rv.ReviewerID, c))
	}
	return strings.Join(parts, "\n")
}
