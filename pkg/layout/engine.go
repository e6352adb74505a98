package layout

import (
	"cmp"
	"slices"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// Config holds the fixed dimensions the layout is computed with.
type Config struct {
	NodeWidth  float64 `yaml:"node_width" toml:"node_width" json:"node_width"`
	NodeHeight float64 `yaml:"node_height" toml:"node_height" json:"node_height"`
	// RankSep is the vertical gap between two ranks.
	RankSep float64 `yaml:"rank_sep" toml:"rank_sep" json:"rank_sep"`
	// NodeSep is the minimum horizontal gap between two nodes of the same rank.
	NodeSep float64 `yaml:"node_sep" toml:"node_sep" json:"node_sep"`
	// Sweeps is the number of down+up barycenter sweeps of the ordering phase.
	Sweeps int `yaml:"sweeps" toml:"sweeps" json:"sweeps"`
}

// DefaultConfig returns the dimensions used by the editor's node cards.
func DefaultConfig() Config {
	return Config{
		NodeWidth:  250,
		NodeHeight: 100,
		RankSep:    100,
		NodeSep:    50,
		Sweeps:     8,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NodeWidth <= 0 {
		c.NodeWidth = d.NodeWidth
	}
	if c.NodeHeight <= 0 {
		c.NodeHeight = d.NodeHeight
	}
	if c.RankSep <= 0 {
		c.RankSep = d.RankSep
	}
	if c.NodeSep <= 0 {
		c.NodeSep = d.NodeSep
	}
	if c.Sweeps <= 0 {
		c.Sweeps = d.Sweeps
	}
	return c
}

// Engine computes layered layouts. It is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// New creates an engine. Zero fields of cfg take their default value.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Apply returns a copy of g with every node positioned. The input is not modified.
func (e *Engine) Apply(g domain.FlowGraph) domain.FlowGraph {
	out := g.Clone()
	pos := e.Positions(out.Nodes, out.Edges)
	for i := range out.Nodes {
		if p, ok := pos[out.Nodes[i].ID]; ok {
			out.Nodes[i].Position = p
		}
	}
	return out
}

// Positions assigns a top-left position to every distinct node id.
func (e *Engine) Positions(nodes []domain.FlowNode, edges []domain.FlowEdge) map[string]domain.Position {
	s := build(nodes, edges)
	if len(s.ids) == 0 {
		return map[string]domain.Position{}
	}
	layers := s.rank()
	layers = s.order(layers, e.cfg.Sweeps)
	xs := s.place(layers, e.cfg.NodeWidth+e.cfg.NodeSep)

	out := make(map[string]domain.Position, len(s.ids))
	for r, layer := range layers {
		y := float64(r) * (e.cfg.NodeHeight + e.cfg.RankSep)
		for _, v := range layer {
			out[s.ids[v]] = domain.Position{X: xs[v], Y: y}
		}
	}
	return out
}

// Ranks returns the rank of every distinct node id.
func Ranks(nodes []domain.FlowNode, edges []domain.FlowEdge) map[string]int {
	s := build(nodes, edges)
	out := make(map[string]int, len(s.ids))
	for r, layer := range s.rank() {
		for _, v := range layer {
			out[s.ids[v]] = r
		}
	}
	return out
}

// structure is the index-based view of a graph the phases work on.
type structure struct {
	ids      []string
	children [][]int
	parents  [][]int
	rankOf   []int
}

// build indexes nodes in array order, skipping empty and duplicate ids, and
// keeps only edges between known, distinct nodes.
func build(nodes []domain.FlowNode, edges []domain.FlowEdge) *structure {
	s := &structure{}
	index := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := index[n.ID]; dup {
			continue
		}
		index[n.ID] = len(s.ids)
		s.ids = append(s.ids, n.ID)
	}
	s.children = make([][]int, len(s.ids))
	s.parents = make([][]int, len(s.ids))

	seen := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		from, ok1 := index[e.Source]
		to, ok2 := index[e.Target]
		if !ok1 || !ok2 || from == to {
			continue
		}
		key := [2]int{from, to}
		if seen[key] {
			continue
		}
		seen[key] = true
		s.children[from] = append(s.children[from], to)
		s.parents[to] = append(s.parents[to], from)
	}
	return s
}

// rank assigns breadth-first depths from the roots and returns the layers in
// discovery order, which groups siblings under their parent.
func (s *structure) rank() [][]int {
	n := len(s.ids)
	s.rankOf = make([]int, n)
	for i := range s.rankOf {
		s.rankOf[i] = -1
	}

	var layers [][]int
	visit := func(root int) {
		s.rankOf[root] = 0
		queue := []int{root}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			r := s.rankOf[v]
			for len(layers) <= r {
				layers = append(layers, nil)
			}
			layers[r] = append(layers[r], v)
			for _, c := range s.children[v] {
				if s.rankOf[c] < 0 {
					s.rankOf[c] = r + 1
					queue = append(queue, c)
				}
			}
		}
	}

	for v := 0; v < n; v++ {
		if len(s.parents[v]) == 0 && s.rankOf[v] < 0 {
			visit(v)
		}
	}
	// Whatever is left sits on a cycle with no root; the first such node in
	// array order becomes one.
	for v := 0; v < n; v++ {
		if s.rankOf[v] < 0 {
			visit(v)
		}
	}
	return layers
}

// order reduces crossings with alternating barycenter sweeps and returns the
// best layering found.
func (s *structure) order(layers [][]int, sweeps int) [][]int {
	best := cloneLayers(layers)
	bestCrossings := s.crossings(layers)
	if bestCrossings == 0 {
		return best
	}

	cur := cloneLayers(layers)
	for i := 0; i < sweeps; i++ {
		for r := 1; r < len(cur); r++ {
			s.reorder(cur[r], cur[r-1], s.parents)
		}
		for r := len(cur) - 2; r >= 0; r-- {
			s.reorder(cur[r], cur[r+1], s.children)
		}
		c := s.crossings(cur)
		if c < bestCrossings {
			best, bestCrossings = cloneLayers(cur), c
			if c == 0 {
				break
			}
		}
	}
	return best
}

// reorder sorts layer by the mean position of each node's neighbours in the
// adjacent layer. Nodes without neighbours there keep their current position
// as barycenter. The sort is stable so ties keep their order.
func (s *structure) reorder(layer, adjacent []int, neighbours [][]int) {
	pos := posMap(adjacent)
	bary := make(map[int]float64, len(layer))
	for i, v := range layer {
		sum, count := 0.0, 0
		for _, u := range neighbours[v] {
			if p, ok := pos[u]; ok {
				sum += float64(p)
				count++
			}
		}
		if count == 0 {
			bary[v] = float64(i)
			continue
		}
		bary[v] = sum / float64(count)
	}
	slices.SortStableFunc(layer, func(a, b int) int {
		return cmp.Compare(bary[a], bary[b])
	})
}

// crossings counts edge crossings between all adjacent layer pairs.
func (s *structure) crossings(layers [][]int) int {
	total := 0
	for r := 0; r+1 < len(layers); r++ {
		total += s.layerCrossings(layers[r], layers[r+1])
	}
	return total
}

// layerCrossings counts crossings between two adjacent layers using a
// Fenwick tree over lower positions: two edges (u1,v1) and (u2,v2) cross iff
// pos(u1) < pos(u2) and pos(v1) > pos(v2), i.e. an inversion.
func (s *structure) layerCrossings(upper, lower []int) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}
	lowerPos := posMap(lower)

	type edge struct{ upper, lower int }
	var edges []edge
	for i, v := range upper {
		for _, c := range s.children[v] {
			if p, ok := lowerPos[c]; ok {
				edges = append(edges, edge{i, p})
			}
		}
	}
	if len(edges) < 2 {
		return 0
	}
	slices.SortFunc(edges, func(a, b edge) int {
		if a.upper != b.upper {
			return a.upper - b.upper
		}
		return a.lower - b.lower
	})

	fenwick := make([]int, len(lower)+1)
	crossings, seen := 0, 0
	for _, e := range edges {
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		crossings += seen - lessOrEqual
		seen++
		for q := e.lower + 1; q < len(fenwick); q += q & (-q) {
			fenwick[q]++
		}
	}
	return crossings
}

// place computes x coordinates. A top-down pass centers each sibling group
// under its parent, then a bottom-up pass centers parents over their
// children. Every pass ends with separate, which guarantees that two nodes of
// a rank are at least unit apart.
func (s *structure) place(layers [][]int, unit float64) []float64 {
	xs := make([]float64, len(s.ids))
	for i, v := range layers[0] {
		xs[v] = float64(i) * unit
	}

	for r := 1; r < len(layers); r++ {
		layer := layers[r]
		desired := make([]float64, len(layer))
		for i := 0; i < len(layer); {
			parent, ok := s.parentIn(layer[i], r-1)
			j := i + 1
			for j < len(layer) {
				p, ok2 := s.parentIn(layer[j], r-1)
				if ok2 != ok || p != parent {
					break
				}
				j++
			}
			for k := i; k < j; k++ {
				switch {
				case ok:
					offset := float64(k-i) - float64(j-i-1)/2
					desired[k] = xs[parent] + offset*unit
				case k > 0:
					desired[k] = desired[k-1] + unit
				}
			}
			i = j
		}
		separate(layer, desired, xs, unit)
	}

	for r := len(layers) - 2; r >= 0; r-- {
		layer := layers[r]
		desired := make([]float64, len(layer))
		for i, v := range layer {
			desired[i] = xs[v]
			sum, count := 0.0, 0
			for _, c := range s.children[v] {
				if s.rankOf[c] == r+1 {
					sum += xs[c]
					count++
				}
			}
			if count > 0 {
				desired[i] = sum / float64(count)
			}
		}
		separate(layer, desired, xs, unit)
	}

	minX := slices.Min(xs)
	for i := range xs {
		xs[i] -= minX
	}
	return xs
}

// parentIn returns the first parent of v that sits on rank r.
func (s *structure) parentIn(v, r int) (int, bool) {
	for _, p := range s.parents[v] {
		if s.rankOf[p] == r {
			return p, true
		}
	}
	return 0, false
}

// separate writes positions for layer as close to desired as possible while
// keeping neighbours at least unit apart, then shifts the whole layer by the
// mean displacement so the push to the right is balanced.
func separate(layer []int, desired, xs []float64, unit float64) {
	if len(layer) == 0 {
		return
	}
	placed := make([]float64, len(layer))
	drift := 0.0
	for i := range layer {
		placed[i] = desired[i]
		if i > 0 && placed[i] < placed[i-1]+unit {
			placed[i] = placed[i-1] + unit
		}
		drift += desired[i] - placed[i]
	}
	shift := drift / float64(len(layer))
	for i, v := range layer {
		xs[v] = placed[i] + shift
	}
}

func posMap(layer []int) map[int]int {
	m := make(map[int]int, len(layer))
	for i, v := range layer {
		m[v] = i
	}
	return m
}

func cloneLayers(layers [][]int) [][]int {
	out := make([][]int, len(layers))
	for i, l := range layers {
		out[i] = slices.Clone(l)
	}
	return out
}
