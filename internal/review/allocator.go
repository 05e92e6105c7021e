package review

import (
	"math/rand"
	"sort"
)

// Candidate is a submission eligible for peer review in a round.
type Candidate struct {
	SubmissionID string
	AuthorID     string
}

// AllocOpts tunes the allocation shape. Zero values take the defaults
// used by the stock configuration.
type AllocOpts struct {
	// PerReviewer is how many submissions each reviewer is asked to
	// review (the pass count).
	PerReviewer int
	// PerSubmission caps reviewers assigned to one submission; zero
	// means uncapped.
	PerSubmission int
	// MinPerSubmission is the coverage target used to compute the
	// shortfall. Defaults to 1.
	MinPerSubmission int
}

// Allocation is the output of one allocator run. Shortfall counts the
// coverage slots that could not be filled; the round may still proceed
// and the organizer decides whether to recruit more reviewers.
type Allocation struct {
	Pairs     []Pair
	Shortfall int
}

// Allocate pairs reviewers with submissions. It is pure and
// deterministic: the same candidates, reviewers, and seed always yield
// the same pairs, regardless of input order. Nobody is assigned their
// own submission. Pairs are handed out one at a time to the reviewer
// with the fewest assignments so far, who takes the least-reviewed
// submission still open to them, and surplus pairs are then moved from
// the busiest reviewers to the idlest; reviewer workloads and
// per-submission coverage both end within one of each other even when
// the per-submission cap locks some reviewers out early.
func Allocate(candidates []Candidate, reviewers []string, seed int64, opts AllocOpts) Allocation {
	if opts.PerReviewer <= 0 {
		opts.PerReviewer = 3
	}
	if opts.MinPerSubmission <= 0 {
		opts.MinPerSubmission = 1
	}

	// Canonical order first so the shuffle depends only on the seed.
	subs := append([]Candidate(nil), candidates...)
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmissionID < subs[j].SubmissionID })
	revs := append([]string(nil), reviewers...)
	sort.Strings(revs)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(subs), func(i, j int) { subs[i], subs[j] = subs[j], subs[i] })
	rng.Shuffle(len(revs), func(i, j int) { revs[i], revs[j] = revs[j], revs[i] })

	load := make(map[string]int, len(subs))
	counts := make(map[string]int, len(revs))
	taken := make(map[Pair]struct{})
	var pairs []Pair

	for {
		bestRev, bestSub := -1, -1
		for i, r := range revs {
			if counts[r] >= opts.PerReviewer {
				continue
			}
			sub := -1
			for j, c := range subs {
				if c.AuthorID == r {
					continue
				}
				if _, dup := taken[Pair{ReviewerID: r, SubmissionID: c.SubmissionID}]; dup {
					continue
				}
				if opts.PerSubmission > 0 && load[c.SubmissionID] >= opts.PerSubmission {
					continue
				}
				if sub == -1 || load[c.SubmissionID] < load[subs[sub].SubmissionID] {
					sub = j
				}
			}
			if sub == -1 {
				continue
			}
			if bestRev == -1 || counts[r] < counts[revs[bestRev]] {
				bestRev, bestSub = i, sub
			}
		}
		if bestRev == -1 {
			break
		}
		p := Pair{ReviewerID: revs[bestRev], SubmissionID: subs[bestSub].SubmissionID}
		pairs = append(pairs, p)
		taken[p] = struct{}{}
		counts[p.ReviewerID]++
		load[p.SubmissionID]++
	}

	// The cap can lock a reviewer out while others still find open
	// submissions, leaving workloads two apart. Hand pairs down from the
	// busiest reviewer to the idlest where ownership and uniqueness
	// allow; a reviewer two ahead always holds more submissions than the
	// idle one has touched, so a legal move exists. Submission loads are
	// untouched by the moves.
	author := make(map[string]string, len(subs))
	for _, c := range subs {
		author[c.SubmissionID] = c.AuthorID
	}
	for moved := true; moved; {
		moved = false
	rebalance:
		for _, low := range revs {
			for _, high := range revs {
				if counts[high]-counts[low] < 2 {
					continue
				}
				for i, p := range pairs {
					if p.ReviewerID != high {
						continue
					}
					if author[p.SubmissionID] == low {
						continue
					}
					if _, dup := taken[Pair{ReviewerID: low, SubmissionID: p.SubmissionID}]; dup {
						continue
					}
					delete(taken, p)
					pairs[i].ReviewerID = low
					taken[pairs[i]] = struct{}{}
					counts[high]--
					counts[low]++
					moved = true
					break rebalance
				}
			}
		}
	}

	shortfall := 0
	for _, c := range subs {
		if d := opts.MinPerSubmission - load[c.SubmissionID]; d > 0 {
			shortfall += d
		}
	}
	return Allocation{Pairs: pairs, Shortfall: shortfall}
}
