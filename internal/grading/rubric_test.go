package grading

import "testing"

func TestParseRubric(t *testing.T) {
	r, err := ParseRubric("")
	if err != nil {
		t.Fatalf("empty input: %v", err)
	}
	if len(r.Criteria) != 4 || r.MaxTotal() != 100 {
		t.Fatalf("default rubric = %+v", r)
	}

	r, err = ParseRubric(`{"version":"v2","criteria":[{"id":"code","name":"Code","max_points":40},{"id":"docs","name":"Docs","max_points":10}]}`)
	if err != nil {
		t.Fatalf("custom rubric: %v", err)
	}
	if r.MaxTotal() != 50 {
		t.Fatalf("MaxTotal = %v, want 50", r.MaxTotal())
	}

	bad := []string{
		`{"criteria":[]}`,
		`{"criteria":[{"id":"","name":"x","max_points":5}]}`,
		`{"criteria":[{"id":"a","max_points":5},{"id":"a","max_points":5}]}`,
		`{"criteria":[{"id":"a","max_points":0}]}`,
		`not json`,
	}
	for _, raw := range bad {
		if _, err := ParseRubric(raw); err == nil {
			t.Errorf("ParseRubric(%q) accepted invalid rubric", raw)
		}
	}
}

func TestCheckScores(t *testing.T) {
	r := DefaultRubric()
	ok := map[string]float64{"content": 25, "understanding": 0, "organization": 10, "presentation": 13}
	if err := r.CheckScores(ok); err != nil {
		t.Fatalf("valid scores rejected: %v", err)
	}

	cases := map[string]map[string]float64{
		"missing criterion": {"content": 10, "understanding": 10, "organization": 10},
		"below zero":        {"content": -1, "understanding": 10, "organization": 10, "presentation": 10},
		"above max":         {"content": 26, "understanding": 10, "organization": 10, "presentation": 10},
		"unknown criterion": {"content": 10, "understanding": 10, "organization": 10, "presentation": 10, "extra": 1},
	}
	for name, awarded := range cases {
		if err := r.CheckScores(awarded); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}
