package sim

import (
	"container/heap"
	"sort"
	"sync"

	"routeiq/internal/grid"
)

// PathFinder runs 4-neighbour A* over a bounded grid with blocked cells.
// It is safe for concurrent use.
type PathFinder struct {
	Width  int
	Height int

	mu         sync.RWMutex
	blocked    map[grid.Point]bool
	generation uint64
}

func NewPathFinder(width, height int, blocked map[grid.Point]bool) *PathFinder {
	b := make(map[grid.Point]bool, len(blocked))
	for p, v := range blocked {
		if v {
			b[p] = true
		}
	}
	return &PathFinder{Width: width, Height: height, blocked: b}
}

func (p *PathFinder) InBounds(x, y int) bool {
	return x >= 0 && x < p.Width && y >= 0 && y < p.Height
}

// Block marks a cell impassable. It reports whether anything changed.
func (p *PathFinder) Block(pt grid.Point) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.blocked[pt] {
		return false
	}
	p.blocked[pt] = true
	p.generation++
	return true
}

// Unblock clears a blocked cell. It reports whether anything changed.
func (p *PathFinder) Unblock(pt grid.Point) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.blocked[pt] {
		return false
	}
	delete(p.blocked, pt)
	p.generation++
	return true
}

func (p *PathFinder) IsBlocked(x, y int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.blocked[grid.Point{X: x, Y: y}]
}

// Blocked returns the blocked cells sorted row by row.
func (p *PathFinder) Blocked() []grid.Point {
	p.mu.RLock()
	out := make([]grid.Point, 0, len(p.blocked))
	for pt := range p.blocked {
		out = append(out, pt)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Generation changes every time the set of blocked cells changes.
func (p *PathFinder) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generation
}

func manhattan(a, b grid.Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type node struct {
	pt  grid.Point
	g   int // cost from start
	f   int // g + heuristic
	idx int // heap index
}

type nodePQ []*node

func (pq nodePQ) Len() int           { return len(pq) }
func (pq nodePQ) Less(i, j int) bool { return pq[i].f < pq[j].f }
func (pq nodePQ) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].idx = i
	pq[j].idx = j
}
func (pq *nodePQ) Push(x any) {
	n := x.(*node)
	n.idx = len(*pq)
	*pq = append(*pq, n)
}
func (pq *nodePQ) Pop() any {
	old := *pq
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return x
}

// Path returns the cells from start to goal inclusive. It returns nil when
// either end is out of bounds, the goal is blocked, or no route exists.
func (p *PathFinder) Path(sx, sy, gx, gy int) []grid.Point {
	if !p.InBounds(sx, sy) || !p.InBounds(gx, gy) {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	start := grid.Point{X: sx, Y: sy}
	goal := grid.Point{X: gx, Y: gy}
	if p.blocked[goal] {
		return nil
	}
	if start == goal {
		return []grid.Point{start}
	}

	came := make(map[grid.Point]grid.Point)
	gscore := map[grid.Point]int{start: 0}
	closed := make(map[grid.Point]bool)

	open := &nodePQ{}
	first := &node{pt: start, f: manhattan(start, goal)}
	heap.Push(open, first)
	inOpen := map[grid.Point]*node{start: first}

	var nbuf [4]grid.Point
	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		delete(inOpen, cur.pt)
		if cur.pt == goal {
			return reconstruct(came, start, goal)
		}
		closed[cur.pt] = true

		for _, nb := range p.neighbors(cur.pt, nbuf[:0]) {
			if closed[nb] {
				continue
			}
			tentative := cur.g + 1
			if g, ok := gscore[nb]; ok && tentative >= g {
				continue
			}
			came[nb] = cur.pt
			gscore[nb] = tentative
			f := tentative + manhattan(nb, goal)
			if on, ok := inOpen[nb]; ok {
				on.g, on.f = tentative, f
				heap.Fix(open, on.idx)
				continue
			}
			n := &node{pt: nb, g: tentative, f: f}
			heap.Push(open, n)
			inOpen[nb] = n
		}
	}
	return nil
}

// neighbors must be called with p.mu held.
func (p *PathFinder) neighbors(c grid.Point, out []grid.Point) []grid.Point {
	cand := [4]grid.Point{{X: c.X + 1, Y: c.Y}, {X: c.X - 1, Y: c.Y}, {X: c.X, Y: c.Y + 1}, {X: c.X, Y: c.Y - 1}}
	for _, n := range cand {
		if p.InBounds(n.X, n.Y) && !p.blocked[n] {
			out = append(out, n)
		}
	}
	return out
}

func reconstruct(came map[grid.Point]grid.Point, start, goal grid.Point) []grid.Point {
	var path []grid.Point
	for u := goal; u != start; u = came[u] {
		path = append(path, u)
	}
	path = append(path, start)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
