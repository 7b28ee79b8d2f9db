// Package matcher computes Secret Santa assignments.
//
// An assignment is a permutation of the participants with no fixed point
// (nobody gives to themselves) in which every giver with a non-empty allowed
// set gives to a member of that set, and no (giver, receiver) pair from the
// forbidden list recurs. The problem is modelled as a bipartite graph from
// givers to receivers; a valid assignment is a perfect matching in it.
//
// Match finds one perfect matching with Hopcroft-Karp, then walks the space of
// valid matchings with random swap and rotation moves so that the output cannot
// be predicted from group composition. Every output is independently valid.
//
// The package is pure: no I/O, no locks, no suspension points.
package matcher

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

// Pair is a directed giver -> receiver pair.
type Pair struct {
	Giver    int64
	Receiver int64
}

// HistoryPolicy decides what happens when forbidden pairs make the
// constraints unsatisfiable.
type HistoryPolicy int

const (
	// HistoryStrict never repeats a forbidden pair. If no matching avoids
	// them all, Match fails with ErrUnsatisfiable.
	HistoryStrict HistoryPolicy = iota

	// HistoryRelaxed falls back to a matching with the fewest forbidden
	// pairs and reports them in Result.Repeats.
	HistoryRelaxed
)

func (p HistoryPolicy) String() string {
	switch p {
	case HistoryStrict:
		return "strict"
	case HistoryRelaxed:
		return "relaxed"
	default:
		return fmt.Sprintf("HistoryPolicy(%d)", int(p))
	}
}

// ParsePolicy parses "strict" or "relaxed".
func ParsePolicy(s string) (HistoryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return HistoryStrict, nil
	case "relaxed":
		return HistoryRelaxed, nil
	default:
		return 0, fmt.Errorf("unknown history policy %q (want strict or relaxed)", s)
	}
}

var (
	ErrUnsatisfiable        = errors.New("no valid assignment exists")
	ErrTooFewParticipants   = errors.New("need at least 2 participants")
	ErrDuplicateParticipant = errors.New("duplicate participant")
)

// UnsatisfiableError identifies the participants that block a valid assignment.
type UnsatisfiableError struct {
	// Givers cannot all be given distinct receivers. When a giver has no
	// valid receiver at all, it is listed here alone with its peers.
	Givers []int64

	// Receivers are participants nobody is allowed to give to.
	Receivers []int64

	// HistoryBlocked is true when the constraints would be satisfiable
	// if forbidden pairs were ignored.
	HistoryBlocked bool
}

func (e *UnsatisfiableError) Error() string {
	var parts []string
	if len(e.Givers) > 0 {
		parts = append(parts, fmt.Sprintf("givers %v have too few valid receivers", e.Givers))
	}
	if len(e.Receivers) > 0 {
		parts = append(parts, fmt.Sprintf("receivers %v have no valid giver", e.Receivers))
	}
	if len(parts) == 0 {
		return ErrUnsatisfiable.Error()
	}
	return ErrUnsatisfiable.Error() + ": " + strings.Join(parts, "; ")
}

func (e *UnsatisfiableError) Unwrap() error { return ErrUnsatisfiable }

// Input describes one matching problem.
type Input struct {
	// Participants are the IDs of everyone taking part, each exactly once.
	Participants []int64

	// Allowed maps a giver to the receivers it may give to. A missing or
	// empty entry means anyone but the giver. IDs outside Participants and
	// the giver's own ID are ignored.
	Allowed map[int64][]int64

	// Forbidden lists pairs that should not recur, typically prior years.
	Forbidden []Pair
}

// Options tune a Match call. The zero value is strict and cryptographically seeded.
type Options struct {
	Policy HistoryPolicy

	// Moves bounds the randomizing pass. 0 means 16 moves per participant.
	Moves int

	// Rand overrides the random source, for tests.
	Rand *rand.Rand
}

// Result is a valid assignment.
type Result struct {
	// Assignments maps every giver to its receiver.
	Assignments map[int64]int64

	// Repeats lists forbidden pairs that had to be reused (HistoryRelaxed only).
	Repeats []Pair
}

// Pairs returns the assignments sorted by giver ID.
func (r *Result) Pairs() []Pair {
	pairs := make([]Pair, 0, len(r.Assignments))
	for g, rcv := range r.Assignments {
		pairs = append(pairs, Pair{Giver: g, Receiver: rcv})
	}
	sortPairs(pairs)
	return pairs
}

// Match computes a random valid assignment for in.
func Match(in Input, opts Options) (*Result, error) {
	n := len(in.Participants)
	if n < 2 {
		return nil, ErrTooFewParticipants
	}

	rng := opts.Rand
	if rng == nil {
		rng = newRand()
	}
	moves := opts.Moves
	if moves <= 0 {
		moves = 16 * n
	}

	// Shuffling the node order randomizes which matching Hopcroft-Karp finds.
	ids := slices.Clone(in.Participants)
	rng.Shuffle(n, func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	g, err := newGraph(ids, in.Allowed, in.Forbidden)
	if err != nil {
		return nil, err
	}

	match, blocked := solve(g.adjacency(true, rng))
	if blocked == nil {
		g.randomize(match, true, moves, rng)
		return g.result(match), nil
	}

	_, relaxedBlocked := solve(g.adjacency(false, rng))
	if relaxedBlocked != nil {
		return nil, g.unsatisfiable(relaxedBlocked, false)
	}
	if opts.Policy != HistoryRelaxed {
		return nil, g.unsatisfiable(blocked, true)
	}

	match = minCostMatching(g.costMatrix())
	g.randomize(match, false, moves, rng)
	return g.result(match), nil
}

// Validate checks that assignments is a valid derangement of participants
// under the allowed sets. Forbidden pairs are returned, not treated as errors.
func Validate(in Input, assignments map[int64]int64) ([]Pair, error) {
	if len(assignments) != len(in.Participants) {
		return nil, fmt.Errorf("got %d assignments for %d participants", len(assignments), len(in.Participants))
	}
	members := make(map[int64]bool, len(in.Participants))
	for _, id := range in.Participants {
		members[id] = true
	}
	forbidden := make(map[Pair]bool, len(in.Forbidden))
	for _, p := range in.Forbidden {
		forbidden[p] = true
	}

	received := make(map[int64]bool, len(assignments))
	var repeats []Pair
	for giver, receiver := range assignments {
		if !members[giver] {
			return nil, fmt.Errorf("giver %d is not a participant", giver)
		}
		if !members[receiver] {
			return nil, fmt.Errorf("receiver %d is not a participant", receiver)
		}
		if giver == receiver {
			return nil, fmt.Errorf("participant %d is assigned to themselves", giver)
		}
		if received[receiver] {
			return nil, fmt.Errorf("receiver %d is assigned twice", receiver)
		}
		received[receiver] = true
		if allowed := in.Allowed[giver]; len(allowed) > 0 && !slices.Contains(allowed, receiver) {
			return nil, fmt.Errorf("giver %d may not give to %d", giver, receiver)
		}
		if forbidden[Pair{giver, receiver}] {
			repeats = append(repeats, Pair{giver, receiver})
		}
	}
	sortPairs(repeats)
	return repeats, nil
}

func newRand() *rand.Rand {
	var seed [32]byte
	// crypto/rand.Read does not fail.
	_, _ = crand.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}

func sortPairs(pairs []Pair) {
	slices.SortFunc(pairs, func(a, b Pair) int {
		if a.Giver != b.Giver {
			if a.Giver < b.Giver {
				return -1
			}
			return 1
		}
		if a.Receiver < b.Receiver {
			return -1
		}
		if a.Receiver > b.Receiver {
			return 1
		}
		return 0
	})
}
