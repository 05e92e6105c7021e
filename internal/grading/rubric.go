package grading

import (
	"encoding/json"
	"fmt"
)

type Criterion struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Desc      string  `json:"desc,omitempty"`
	MaxPoints float64 `json:"max_points"`
}

// Rubric is an ordered set of criteria. It is configuration, not code:
// each assignment carries its own (possibly versioned) rubric.
type Rubric struct {
	Version  string      `json:"version,omitempty"`
	Criteria []Criterion `json:"criteria"`
}

func (r Rubric) MaxTotal() float64 {
	total := 0.0
	for _, c := range r.Criteria {
		total += c.MaxPoints
	}
	return total
}

func (r Rubric) Criterion(id string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// Validate rejects empty rubrics and non-positive criterion maxima.
func (r Rubric) Validate() error {
	if len(r.Criteria) == 0 {
		return fmt.Errorf("rubric has no criteria")
	}
	seen := make(map[string]struct{}, len(r.Criteria))
	for _, c := range r.Criteria {
		if c.ID == "" {
			return fmt.Errorf("criterion %q missing id", c.Name)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate criterion id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.MaxPoints <= 0 {
			return fmt.Errorf("criterion %q: max points must be positive", c.ID)
		}
	}
	return nil
}

// CheckScores verifies that awarded covers exactly the rubric's criteria
// and that every score is within [0, max]. The first problem found is
// returned; nil means the score set is acceptable.
func (r Rubric) CheckScores(awarded map[string]float64) error {
	for _, c := range r.Criteria {
		v, ok := awarded[c.ID]
		if !ok {
			return fmt.Errorf("missing score for criterion %q", c.ID)
		}
		if v < 0 || v > c.MaxPoints {
			return fmt.Errorf("criterion %q: score %.2f out of range [0, %.0f]", c.ID, v, c.MaxPoints)
		}
	}
	for id := range awarded {
		if _, ok := r.Criterion(id); !ok {
			return fmt.Errorf("unknown criterion %q", id)
		}
	}
	return nil
}

// DefaultRubric is the stock four-criterion rubric used when an
// assignment does not define its own.
func DefaultRubric() Rubric {
	return Rubric{
		Version: "default-v1",
		Criteria: []Criterion{
			{ID: "content", Name: "Content Quality", Desc: "Accuracy, completeness, and depth of the content", MaxPoints: 25},
			{ID: "understanding", Name: "Understanding", Desc: "Demonstrates clear understanding of the concepts", MaxPoints: 25},
			{ID: "organization", Name: "Organization", Desc: "Clear structure and logical flow", MaxPoints: 25},
			{ID: "presentation", Name: "Presentation", Desc: "Clarity, formatting, and overall presentation", MaxPoints: 25},
		},
	}
}

// ParseRubric decodes a stored rubric document, falling back to the
// default rubric for empty input.
func ParseRubric(raw string) (Rubric, error) {
	if raw == "" {
		return DefaultRubric(), nil
	}
	var r Rubric
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Rubric{}, err
	}
	if err := r.Validate(); err != nil {
		return Rubric{}, err
	}
	return r, nil
}
