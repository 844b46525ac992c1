// Package governance implements term-based elections for privileged positions.
//
// Each position cycles collecting-votes -> finalize -> collecting-votes.
// A voter may vote once per term. When a term expires the candidate with
// the most votes becomes the holder.
package governance

import (
	"errors"
	"sort"
	"time"

	"github.com/xraph/bits/store"
)

// President is the position that controls the treasury.
const President = "president"

// DefaultTerm is the length of one election term.
const DefaultTerm = 7 * 24 * time.Hour

// ErrAlreadyVoted is returned when a voter votes twice in one term.
var ErrAlreadyVoted = errors.New("governance: already voted this term")

// Position is the holder of an office.
type Position struct {
	CurrentHolder string `json:"current_holder,omitempty"`
}

// Election accumulates votes for one term.
type Election struct {
	StartTimestamp time.Time         `json:"start_timestamp"`
	Votes          map[string]int    `json:"votes"`
	Voters         map[string]string `json:"voters"`
}

func newElection(t time.Time) *Election {
	return &Election{
		StartTimestamp: t.UTC(),
		Votes:          make(map[string]int),
		Voters:         make(map[string]string),
	}
}

// Active reports whether the term is still collecting votes at now.
func (e *Election) Active(now time.Time, term time.Duration) bool {
	return e != nil && now.Sub(e.StartTimestamp) < term
}

// Expired reports whether the term has run its full length at now.
func (e *Election) Expired(now time.Time, term time.Duration) bool {
	return e != nil && now.Sub(e.StartTimestamp) >= term
}

// Candidates lists everyone with at least one vote, sorted by name.
func (e *Election) Candidates() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Votes))
	for c := range e.Votes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Winner returns the candidate with the highest tally. A tie is won by
// incumbent when incumbent is among the leaders, otherwise by the
// lexicographically smallest name. ok is false when nobody voted.
func (e *Election) Winner(incumbent string) (winner string, ok bool) {
	if e == nil || len(e.Votes) == 0 {
		return "", false
	}
	best := -1
	var leaders []string
	for c, n := range e.Votes {
		switch {
		case n > best:
			best = n
			leaders = []string{c}
		case n == best:
			leaders = append(leaders, c)
		}
	}
	for _, c := range leaders {
		if c == incumbent {
			return c, true
		}
	}
	sort.Strings(leaders)
	return leaders[0], true
}

// Record is the persisted governance state for every position.
type Record struct {
	Positions map[string]Position  `json:"positions"`
	Elections map[string]*Election `json:"elections"`
}

// Resource is the persisted governance record.
var Resource = store.Define[Record](store.Governance, "governance", 1)

func (r *Record) init() {
	if r.Positions == nil {
		r.Positions = map[string]Position{President: {}}
	}
	if r.Elections == nil {
		r.Elections = make(map[string]*Election)
	}
}

// Holder returns the current holder of position, or "" if vacant.
func (r Record) Holder(position string) string {
	return r.Positions[position].CurrentHolder
}

// Election returns the running election for position, or nil.
func (r Record) Election(position string) *Election {
	return r.Elections[position]
}

// Vote records voter's vote for candidate in the current term of position.
// The term starts with the first vote.
func (r *Record) Vote(position, candidate, voter string, now time.Time) error {
	r.init()
	e := r.Elections[position]
	if e == nil {
		e = newElection(now)
		r.Elections[position] = e
	}
	if e.Votes == nil {
		e.Votes = make(map[string]int)
	}
	if e.Voters == nil {
		e.Voters = make(map[string]string)
	}
	if _, voted := e.Voters[voter]; voted {
		return ErrAlreadyVoted
	}
	e.Voters[voter] = candidate
	e.Votes[candidate]++
	return nil
}

// Outcome describes one finalized election.
type Outcome struct {
	Position       string `json:"position"`
	PreviousHolder string `json:"previous_holder,omitempty"`
	Holder         string `json:"holder,omitempty"`
	Votes          int    `json:"votes"`
	Changed        bool   `json:"changed"`
}

// FinalizeExpired closes every election whose term has expired at now,
// installs the winners, and opens a fresh term. An election without votes
// leaves the holder unchanged. Outcomes are ordered by position.
func (r *Record) FinalizeExpired(now time.Time, term time.Duration) []Outcome {
	r.init()
	positions := make([]string, 0, len(r.Elections))
	for p, e := range r.Elections {
		if e.Expired(now, term) {
			positions = append(positions, p)
		}
	}
	sort.Strings(positions)

	out := make([]Outcome, 0, len(positions))
	for _, p := range positions {
		e := r.Elections[p]
		prev := r.Positions[p].CurrentHolder
		o := Outcome{Position: p, PreviousHolder: prev, Holder: prev}
		if winner, ok := e.Winner(prev); ok {
			o.Holder = winner
			o.Votes = e.Votes[winner]
			o.Changed = winner != prev
			r.Positions[p] = Position{CurrentHolder: winner}
		}
		r.Elections[p] = newElection(now)
		out = append(out, o)
	}
	return out
}

// Verify checks that every tally equals the number of voters for that
// candidate.
func (e *Election) Verify() bool {
	if e == nil {
		return true
	}
	counts := make(map[string]int, len(e.Votes))
	for _, c := range e.Voters {
		counts[c]++
	}
	if len(counts) != len(e.Votes) {
		return false
	}
	for c, n := range e.Votes {
		if counts[c] != n {
			return false
		}
	}
	return true
}
