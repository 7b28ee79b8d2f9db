package matcher

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// graph is the compatibility graph over participant indices. Givers and
// receivers share the same index space.
type graph struct {
	ids     []int64
	allowed [][]bool // restriction and no-self edges
	repeat  [][]bool // edge used in a forbidden pair
}

func newGraph(ids []int64, allowedSets map[int64][]int64, forbidden []Pair) (*graph, error) {
	n := len(ids)
	index := make(map[int64]int, n)
	for i, id := range ids {
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateParticipant, id)
		}
		index[id] = i
	}

	g := &graph{
		ids:     ids,
		allowed: make([][]bool, n),
		repeat:  make([][]bool, n),
	}
	for i, id := range ids {
		g.allowed[i] = make([]bool, n)
		g.repeat[i] = make([]bool, n)

		set := allowedSets[id]
		if len(set) == 0 {
			for j := range n {
				g.allowed[i][j] = j != i
			}
			continue
		}
		for _, rid := range set {
			if j, ok := index[rid]; ok && j != i {
				g.allowed[i][j] = true
			}
		}
	}
	for _, p := range forbidden {
		i, ok := index[p.Giver]
		if !ok {
			continue
		}
		if j, ok := index[p.Receiver]; ok {
			g.repeat[i][j] = true
		}
	}
	return g, nil
}

func (g *graph) usable(strict bool, i, j int) bool {
	return g.allowed[i][j] && !(strict && g.repeat[i][j])
}

// adjacency returns shuffled edge lists per giver.
func (g *graph) adjacency(strict bool, rng *rand.Rand) [][]int {
	n := len(g.ids)
	adj := make([][]int, n)
	for i := range n {
		for j := range n {
			if g.usable(strict, i, j) {
				adj[i] = append(adj[i], j)
			}
		}
		rng.Shuffle(len(adj[i]), func(a, b int) { adj[i][a], adj[i][b] = adj[i][b], adj[i][a] })
	}
	return adj
}

// costMatrix prices repeated edges at 1 and missing edges above any perfect matching.
func (g *graph) costMatrix() [][]int {
	n := len(g.ids)
	missing := n + 1
	cost := make([][]int, n)
	for i := range n {
		cost[i] = make([]int, n)
		for j := range n {
			switch {
			case !g.allowed[i][j]:
				cost[i][j] = missing
			case g.repeat[i][j]:
				cost[i][j] = 1
			}
		}
	}
	return cost
}

func (g *graph) cost(i, j int) int {
	if g.repeat[i][j] {
		return 1
	}
	return 0
}

// randomize applies random 2-swaps and 3-rotations of receivers that keep every
// edge usable. In relaxed mode a move must not add repeats, so a minimal
// matching stays minimal. Rotations are needed: two derangements of three
// people are not reachable from each other by swaps alone.
func (g *graph) randomize(match []int, strict bool, moves int, rng *rand.Rand) {
	n := len(match)
	for range moves {
		a, b := rng.IntN(n), rng.IntN(n)
		if a == b {
			continue
		}
		ra, rb := match[a], match[b]

		if n >= 3 && rng.IntN(2) == 0 {
			c := rng.IntN(n)
			if c == a || c == b {
				continue
			}
			rc := match[c]
			if !g.usable(strict, a, rb) || !g.usable(strict, b, rc) || !g.usable(strict, c, ra) {
				continue
			}
			if !strict && g.cost(a, rb)+g.cost(b, rc)+g.cost(c, ra) > g.cost(a, ra)+g.cost(b, rb)+g.cost(c, rc) {
				continue
			}
			match[a], match[b], match[c] = rb, rc, ra
			continue
		}

		if !g.usable(strict, a, rb) || !g.usable(strict, b, ra) {
			continue
		}
		if !strict && g.cost(a, rb)+g.cost(b, ra) > g.cost(a, ra)+g.cost(b, rb) {
			continue
		}
		match[a], match[b] = rb, ra
	}
}

func (g *graph) result(match []int) *Result {
	res := &Result{Assignments: make(map[int64]int64, len(match))}
	for i, j := range match {
		res.Assignments[g.ids[i]] = g.ids[j]
		if g.repeat[i][j] {
			res.Repeats = append(res.Repeats, Pair{Giver: g.ids[i], Receiver: g.ids[j]})
		}
	}
	sortPairs(res.Repeats)
	return res
}

func (g *graph) unsatisfiable(b *blocking, historyBlocked bool) *UnsatisfiableError {
	e := &UnsatisfiableError{HistoryBlocked: historyBlocked}
	for _, i := range b.givers {
		e.Givers = append(e.Givers, g.ids[i])
	}
	for _, j := range b.receivers {
		e.Receivers = append(e.Receivers, g.ids[j])
	}
	slices.Sort(e.Givers)
	slices.Sort(e.Receivers)
	return e
}

// blocking holds the indices that prevent a perfect matching.
type blocking struct {
	givers    []int
	receivers []int
}

// solve returns a perfect matching (giver index -> receiver index) or the
// participants blocking one. Nodes without edges are reported first since
// they are cheaper to find and easier to explain than a Hall violator.
func solve(adj [][]int) ([]int, *blocking) {
	n := len(adj)
	indegree := make([]int, n)
	b := &blocking{}
	for i, edges := range adj {
		if len(edges) == 0 {
			b.givers = append(b.givers, i)
		}
		for _, j := range edges {
			indegree[j]++
		}
	}
	for j, d := range indegree {
		if d == 0 {
			b.receivers = append(b.receivers, j)
		}
	}
	if len(b.givers) > 0 || len(b.receivers) > 0 {
		return nil, b
	}

	matchL, matchR, size := hopcroftKarp(adj)
	if size == n {
		return matchL, nil
	}
	return nil, &blocking{givers: hallViolator(adj, matchL, matchR)}
}

// hopcroftKarp computes a maximum matching. matchL[i] is the receiver of giver i
// and matchR[j] the giver of receiver j, -1 when unmatched.
func hopcroftKarp(adj [][]int) (matchL, matchR []int, size int) {
	n := len(adj)
	matchL = make([]int, n)
	matchR = make([]int, n)
	for i := range n {
		matchL[i] = -1
		matchR[i] = -1
	}
	dist := make([]int, n)
	const inf = math.MaxInt

	bfs := func() bool {
		queue := make([]int, 0, n)
		for u := range n {
			if matchL[u] == -1 {
				dist[u] = 0
				queue = append(queue, u)
			} else {
				dist[u] = inf
			}
		}
		found := false
		for k := 0; k < len(queue); k++ {
			u := queue[k]
			for _, v := range adj[u] {
				w := matchR[v]
				if w == -1 {
					found = true
				} else if dist[w] == inf {
					dist[w] = dist[u] + 1
					queue = append(queue, w)
				}
			}
		}
		return found
	}

	var dfs func(u int) bool
	dfs = func(u int) bool {
		for _, v := range adj[u] {
			w := matchR[v]
			if w == -1 || (dist[w] == dist[u]+1 && dfs(w)) {
				matchL[u] = v
				matchR[v] = u
				return true
			}
		}
		dist[u] = inf
		return false
	}

	for bfs() {
		for u := range n {
			if matchL[u] == -1 && dfs(u) {
				size++
			}
		}
	}
	return matchL, matchR, size
}

// hallViolator returns a set of givers whose combined neighbourhood is smaller
// than the set, found by alternating search from an unmatched giver of a
// maximum matching.
func hallViolator(adj [][]int, matchL, matchR []int) []int {
	start := slices.Index(matchL, -1)
	if start < 0 {
		return nil
	}
	seenL := make([]bool, len(adj))
	seenR := make([]bool, len(adj))
	seenL[start] = true
	queue := []int{start}
	for k := 0; k < len(queue); k++ {
		for _, v := range adj[queue[k]] {
			if seenR[v] {
				continue
			}
			seenR[v] = true
			if w := matchR[v]; w != -1 && !seenL[w] {
				seenL[w] = true
				queue = append(queue, w)
			}
		}
	}
	return queue
}

// minCostMatching solves the square assignment problem with the Hungarian
// method in O(n^3). It returns row -> column.
func minCostMatching(cost [][]int) []int {
	n := len(cost)
	const inf = math.MaxInt / 4
	u := make([]int, n+1)
	v := make([]int, n+1)
	p := make([]int, n+1) // p[j]: row matched to column j, 1-based
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]int, n+1)
		for j := range minv {
			minv[j] = inf
		}
		used := make([]bool, n+1)
		for {
			used[j0] = true
			i0, delta, j1 := p[j0], inf, 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				if cur := cost[i0-1][j-1] - u[i0] - v[j]; cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	match := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			match[p[j]-1] = j - 1
		}
	}
	return match
}
