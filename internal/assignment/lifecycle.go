package assignment

import "time"

// legalMoves is the submission lifecycle:
// draft -> submitted -> graded -> returned, with regrade cycles
// re-entering graded from either graded or returned.
var legalMoves = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusGraded},
	StatusGraded:    {StatusGraded, StatusReturned},
	StatusReturned:  {StatusGraded},
}

func canTransition(from, to Status) bool {
	for _, s := range legalMoves[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkSubmit validates the author-facing submit action against the
// assignment's deadline and content requirements. ownerOverride lets
// the assignment owner accept late work.
func checkSubmit(a Assignment, content, fileRef string, ownerOverride bool, now time.Time) error {
	if a.Retired {
		return ErrAssignmentRetired
	}
	if content == "" && fileRef == "" {
		return validationf("submission requires content or an attached file")
	}
	if a.DueAt != nil && now.After(*a.DueAt) && !ownerOverride {
		return &DeadlinePassedError{Due: *a.DueAt}
	}
	return nil
}

// checkGrade validates earned points against the assignment's scale.
func checkGrade(a Assignment, points float64) error {
	if points < 0 || points > a.MaxPoints {
		return validationf("points %.2f out of range [0, %.0f]", points, a.MaxPoints)
	}
	return nil
}
