package review

import (
	"fmt"
	"reflect"
	"testing"
)

func makePool(n int) ([]Candidate, []string) {
	var subs []Candidate
	var revs []string
	for i := 0; i < n; i++ {
		author := fmt.Sprintf("user-%02d", i)
		subs = append(subs, Candidate{SubmissionID: fmt.Sprintf("sub-%02d", i), AuthorID: author})
		revs = append(revs, author)
	}
	return subs, revs
}

func TestAllocateNoSelfReview(t *testing.T) {
	subs, revs := makePool(8)
	byAuthor := make(map[string]string)
	for _, c := range subs {
		byAuthor[c.SubmissionID] = c.AuthorID
	}
	for seed := int64(0); seed < 20; seed++ {
		alloc := Allocate(subs, revs, seed, AllocOpts{PerReviewer: 3})
		for _, p := range alloc.Pairs {
			if byAuthor[p.SubmissionID] == p.ReviewerID {
				t.Fatalf("seed %d: %s allocated own submission %s", seed, p.ReviewerID, p.SubmissionID)
			}
		}
	}
}

func TestAllocateDeterministic(t *testing.T) {
	subs, revs := makePool(10)
	first := Allocate(subs, revs, 42, AllocOpts{PerReviewer: 2})

	// Same seed, permuted input order.
	shuffled := append([]Candidate(nil), subs[5:]...)
	shuffled = append(shuffled, subs[:5]...)
	revsRev := make([]string, len(revs))
	for i, r := range revs {
		revsRev[len(revs)-1-i] = r
	}
	again := Allocate(shuffled, revsRev, 42, AllocOpts{PerReviewer: 2})
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("same seed diverged:\n%v\n%v", first, again)
	}

	other := Allocate(subs, revs, 43, AllocOpts{PerReviewer: 2})
	if reflect.DeepEqual(first.Pairs, other.Pairs) {
		t.Fatal("different seeds produced identical pairings")
	}
}

func TestAllocateLoadBalance(t *testing.T) {
	subs, revs := makePool(9)
	for seed := int64(0); seed < 20; seed++ {
		alloc := Allocate(subs, revs, seed, AllocOpts{PerReviewer: 3})
		load := make(map[string]int)
		perReviewer := make(map[string]int)
		for _, p := range alloc.Pairs {
			load[p.SubmissionID]++
			perReviewer[p.ReviewerID]++
		}
		min, max := len(revs), 0
		for _, c := range subs {
			n := load[c.SubmissionID]
			if n < min {
				min = n
			}
			if n > max {
				max = n
			}
		}
		if max-min > 1 {
			t.Fatalf("seed %d: review load spread %d..%d", seed, min, max)
		}
		rmin, rmax := reviewerSpread(revs, perReviewer)
		if rmax-rmin > 1 {
			t.Fatalf("seed %d: reviewer workload spread %d..%d (%v)", seed, rmin, rmax, perReviewer)
		}
		for r, n := range perReviewer {
			if n > 3 {
				t.Fatalf("seed %d: reviewer %s got %d submissions", seed, r, n)
			}
		}
	}
}

func reviewerSpread(revs []string, counts map[string]int) (min, max int) {
	min, max = 1<<30, 0
	for _, r := range revs {
		n := counts[r]
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	return min, max
}

// When the per-submission cap binds, total capacity runs out before
// every reviewer reaches PerReviewer. The leftover must still be spread
// evenly: no reviewer may end two assignments behind another.
func TestAllocateReviewerBalanceUnderCap(t *testing.T) {
	shapes := []AllocOpts{
		{PerReviewer: 3, PerSubmission: 2},
		{PerReviewer: 4, PerSubmission: 3},
	}
	for _, opts := range shapes {
		for _, n := range []int{4, 6, 8, 10} {
			subs, revs := makePool(n)
			for seed := int64(0); seed < 100; seed++ {
				alloc := Allocate(subs, revs, seed, opts)
				counts := make(map[string]int, n)
				load := make(map[string]int, n)
				for _, p := range alloc.Pairs {
					counts[p.ReviewerID]++
					load[p.SubmissionID]++
				}
				min, max := reviewerSpread(revs, counts)
				if max-min > 1 {
					t.Fatalf("opts %+v, n=%d, seed %d: reviewer workloads %v", opts, n, seed, counts)
				}
				if max > opts.PerReviewer {
					t.Fatalf("opts %+v, n=%d, seed %d: reviewer over limit (%v)", opts, n, seed, counts)
				}
				for id, l := range load {
					if l > opts.PerSubmission {
						t.Fatalf("opts %+v, n=%d, seed %d: %s over cap with %d reviewers", opts, n, seed, id, l)
					}
				}
			}
		}
	}
}

func TestAllocatePerSubmissionCap(t *testing.T) {
	subs, revs := makePool(6)
	alloc := Allocate(subs, revs, 7, AllocOpts{PerReviewer: 5, PerSubmission: 2})
	load := make(map[string]int)
	for _, p := range alloc.Pairs {
		load[p.SubmissionID]++
	}
	for id, n := range load {
		if n > 2 {
			t.Fatalf("submission %s has %d reviewers, cap 2", id, n)
		}
	}
}

func TestAllocateShortfall(t *testing.T) {
	subs, _ := makePool(4)

	// No reviewers at all: every submission goes uncovered.
	alloc := Allocate(subs, nil, 1, AllocOpts{MinPerSubmission: 1})
	if alloc.Shortfall != 4 || len(alloc.Pairs) != 0 {
		t.Fatalf("empty pool alloc = %+v", alloc)
	}

	// A single reviewer who authored one of the submissions cannot
	// cover their own.
	alloc = Allocate(subs, []string{"user-00"}, 1, AllocOpts{PerReviewer: 10, MinPerSubmission: 1})
	if alloc.Shortfall != 1 {
		t.Fatalf("shortfall = %d, want 1", alloc.Shortfall)
	}
	if len(alloc.Pairs) != 3 {
		t.Fatalf("pairs = %v", alloc.Pairs)
	}

	// No submissions: nothing to cover.
	alloc = Allocate(nil, []string{"a", "b"}, 1, AllocOpts{})
	if alloc.Shortfall != 0 || len(alloc.Pairs) != 0 {
		t.Fatalf("no submissions alloc = %+v", alloc)
	}
}
