package evolve

import (
	"math"
	"math/rand"
	"sort"
)

// --------------------------- Body Generation ---------------------------

// RandomBody creates a body with node and muscle counts drawn uniformly from
// the configured bounds. Muscles first form a spanning tree where the count
// allows it so a fresh body is connected.
func RandomBody(rng *rand.Rand, cfg BodyConfig) *Genome {
	g := &Genome{FrequencyMultiplier: uniformIn(rng, cfg.FrequencyMultiplier())}

	nodeCount := cfg.MinNodes + rng.Intn(cfg.MaxNodes-cfg.MinNodes+1)
	for i := 0; i < nodeCount; i++ {
		g.Nodes = append(g.Nodes, randomNode(rng, i, cfg))
	}

	maxMuscles := cfg.MaxMuscles
	if p := maxPairs(nodeCount); p < maxMuscles {
		maxMuscles = p
	}
	target := cfg.MinMuscles
	if maxMuscles > target {
		target += rng.Intn(maxMuscles - target + 1)
	}

	for i := 1; i < nodeCount && len(g.Muscles) < target; i++ {
		j := rng.Intn(i)
		g.Muscles = append(g.Muscles, randomMuscle(rng, len(g.Muscles), g.Nodes[j], g.Nodes[i], cfg))
	}
	for _, p := range shuffledFreePairs(rng, g) {
		if len(g.Muscles) >= target {
			break
		}
		g.Muscles = append(g.Muscles, randomMuscle(rng, len(g.Muscles), p[0], p[1], cfg))
	}
	return g
}

func randomNode(rng *rand.Rand, id int, cfg BodyConfig) Node {
	return Node{
		ID:       id,
		Position: Vec2{X: uniformIn(rng, cfg.Position()), Y: uniformIn(rng, cfg.Position())},
		Size:     uniformIn(rng, cfg.Size()),
		Friction: uniformIn(rng, cfg.Friction()),
	}
}

// randomMuscle joins a and b. The rest length starts at the current node
// distance, clamped to the configured range.
func randomMuscle(rng *rand.Rand, id int, a, b Node, cfg BodyConfig) Muscle {
	dist := math.Hypot(a.Position.X-b.Position.X, a.Position.Y-b.Position.Y)
	m := Muscle{
		ID:         id,
		NodeA:      a.ID,
		NodeB:      b.ID,
		RestLength: cfg.RestLength().Clamp(dist),
		Stiffness:  uniformIn(rng, cfg.Stiffness()),
		Damping:    uniformIn(rng, cfg.Damping()),
		Frequency:  uniformIn(rng, cfg.Frequency()),
		Amplitude:  uniformIn(rng, cfg.Amplitude()),
		Phase:      uniformIn(rng, cfg.Phase()),
	}
	if rng.Float64() < cfg.SensingProb {
		m.Sensing = &SensingBias{
			Direction: uniformIn(rng, cfg.SensingBias()),
			Velocity:  uniformIn(rng, cfg.SensingBias()),
			Distance:  uniformIn(rng, cfg.SensingBias()),
		}
	}
	return m
}

// shuffledFreePairs lists every unordered node pair without a muscle, in random order.
func shuffledFreePairs(rng *rand.Rand, g *Genome) [][2]Node {
	var pairs [][2]Node
	for i := 0; i < len(g.Nodes); i++ {
		for j := i + 1; j < len(g.Nodes); j++ {
			if !g.hasMuscle(g.Nodes[i].ID, g.Nodes[j].ID) {
				pairs = append(pairs, [2]Node{g.Nodes[i], g.Nodes[j]})
			}
		}
	}
	rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
	return pairs
}

// --------------------------- Crossover ---------------------------

// CrossoverBody blends two bodies index by index. A single mixing coefficient
// t is drawn per child; numeric genes are lerp(a, b, t). Positions present in
// only the longer parent are carried with probability one half. Child nodes
// are renumbered 0..n-1 and muscle endpoints are remapped through per-parent
// id tables; muscles whose endpoints were not carried are dropped. Counts
// are trimmed to the maximum bounds and topped up to the minimums.
// The result carries no controller and no id.
func CrossoverBody(rng *rand.Rand, a, b *Genome, cfg BodyConfig) *Genome {
	t := rng.Float64()
	child := &Genome{FrequencyMultiplier: lerp(a.FrequencyMultiplier, b.FrequencyMultiplier, t)}

	mapA := make(map[int]int)
	mapB := make(map[int]int)
	for i := 0; i < len(a.Nodes) || i < len(b.Nodes); i++ {
		if len(child.Nodes) >= cfg.MaxNodes {
			break
		}
		id := len(child.Nodes)
		switch {
		case i < len(a.Nodes) && i < len(b.Nodes):
			na, nb := a.Nodes[i], b.Nodes[i]
			child.Nodes = append(child.Nodes, Node{
				ID: id,
				Position: Vec2{
					X: lerp(na.Position.X, nb.Position.X, t),
					Y: lerp(na.Position.Y, nb.Position.Y, t),
				},
				Size:     lerp(na.Size, nb.Size, t),
				Friction: lerp(na.Friction, nb.Friction, t),
			})
			mapA[na.ID] = id
			mapB[nb.ID] = id
		case i < len(a.Nodes):
			if rng.Float64() < 0.5 {
				n := a.Nodes[i]
				n.ID = id
				child.Nodes = append(child.Nodes, n)
				mapA[a.Nodes[i].ID] = id
			}
		default:
			if rng.Float64() < 0.5 {
				n := b.Nodes[i]
				n.ID = id
				child.Nodes = append(child.Nodes, n)
				mapB[b.Nodes[i].ID] = id
			}
		}
	}

	// remap resolves both endpoints through one parent's table.
	remap := func(table map[int]int, m Muscle) (int, int, bool) {
		x, okA := table[m.NodeA]
		y, okB := table[m.NodeB]
		if !okA || !okB || x == y || child.hasMuscle(x, y) {
			return 0, 0, false
		}
		return x, y, true
	}

	for i := 0; i < len(a.Muscles) || i < len(b.Muscles); i++ {
		if len(child.Muscles) >= cfg.MaxMuscles {
			break
		}
		var m Muscle
		var ok bool
		switch {
		case i < len(a.Muscles) && i < len(b.Muscles):
			ma, mb := a.Muscles[i], b.Muscles[i]
			m = blendMuscle(ma, mb, t)
			// Endpoints follow the parent t leans towards, falling back to the other.
			first, second := mapA, mapB
			ends := [2]Muscle{ma, mb}
			if t >= 0.5 {
				first, second = mapB, mapA
				ends[0], ends[1] = mb, ma
			}
			if m.NodeA, m.NodeB, ok = remap(first, ends[0]); !ok {
				m.NodeA, m.NodeB, ok = remap(second, ends[1])
			}
		case i < len(a.Muscles):
			if rng.Float64() < 0.5 {
				m = cloneMuscle(a.Muscles[i])
				m.NodeA, m.NodeB, ok = remap(mapA, a.Muscles[i])
			}
		default:
			if rng.Float64() < 0.5 {
				m = cloneMuscle(b.Muscles[i])
				m.NodeA, m.NodeB, ok = remap(mapB, b.Muscles[i])
			}
		}
		if !ok {
			continue
		}
		m.ID = len(child.Muscles)
		child.Muscles = append(child.Muscles, m)
	}
	repairBody(rng, child, cfg)
	return child
}

func cloneMuscle(m Muscle) Muscle {
	if m.Sensing != nil {
		s := *m.Sensing
		m.Sensing = &s
	}
	return m
}

func blendMuscle(a, b Muscle, t float64) Muscle {
	m := Muscle{
		RestLength: lerp(a.RestLength, b.RestLength, t),
		Stiffness:  lerp(a.Stiffness, b.Stiffness, t),
		Damping:    lerp(a.Damping, b.Damping, t),
		Frequency:  lerp(a.Frequency, b.Frequency, t),
		Amplitude:  lerp(a.Amplitude, b.Amplitude, t),
		Phase:      lerp(a.Phase, b.Phase, t),
	}
	switch {
	case a.Sensing != nil && b.Sensing != nil:
		m.Sensing = &SensingBias{
			Direction: lerp(a.Sensing.Direction, b.Sensing.Direction, t),
			Velocity:  lerp(a.Sensing.Velocity, b.Sensing.Velocity, t),
			Distance:  lerp(a.Sensing.Distance, b.Sensing.Distance, t),
		}
	case a.Sensing != nil && t < 0.5:
		s := *a.Sensing
		m.Sensing = &s
	case b.Sensing != nil && t >= 0.5:
		s := *b.Sensing
		m.Sensing = &s
	}
	return m
}

// CrossoverFixed blends two fixed-topology controllers index by index with a
// single mixing coefficient. Mismatched shapes yield a copy of a.
func CrossoverFixed(rng *rand.Rand, a, b *FixedTopology) *FixedTopology {
	child := a.Clone()
	if !a.SameShape(b) {
		return child
	}
	t := rng.Float64()
	dst, src := child.params(), b.params()
	for g := range dst {
		for i := range dst[g] {
			if i >= len(src[g]) {
				break
			}
			dst[g][i] = lerp(dst[g][i], src[g][i], t)
		}
	}
	return child
}

// --------------------------- Mutation ---------------------------

// MutateBody returns a mutated copy of g's body. Every numeric gene is
// perturbed with probability rate by a gaussian step of
// cfg.Mutation.Magnitude times its range width. Adding or removing a node or
// a muscle is each attempted with probability cfg.Mutation.StructuralRate.
// Counts are repaired into bounds afterwards. The bool reports whether the
// structure changed.
func MutateBody(rng *rand.Rand, g *Genome, cfg *Config, rate float64) (*Genome, bool) {
	b := cfg.Body
	mag := cfg.Mutation.Magnitude
	child := g.Clone()

	perturb := func(v *float64, r Range) {
		*v, _ = perturbInRange(rng, *v, rate, mag, r)
	}
	for i := range child.Nodes {
		n := &child.Nodes[i]
		perturb(&n.Position.X, b.Position())
		perturb(&n.Position.Y, b.Position())
		perturb(&n.Size, b.Size())
		perturb(&n.Friction, b.Friction())
	}
	for i := range child.Muscles {
		m := &child.Muscles[i]
		perturb(&m.RestLength, b.RestLength())
		perturb(&m.Stiffness, b.Stiffness())
		perturb(&m.Damping, b.Damping())
		perturb(&m.Frequency, b.Frequency())
		perturb(&m.Amplitude, b.Amplitude())
		perturb(&m.Phase, b.Phase())
		if m.Sensing != nil {
			perturb(&m.Sensing.Direction, b.SensingBias())
			perturb(&m.Sensing.Velocity, b.SensingBias())
			perturb(&m.Sensing.Distance, b.SensingBias())
		}
	}
	perturb(&child.FrequencyMultiplier, b.FrequencyMultiplier())

	structural := false
	sr := cfg.Mutation.StructuralRate
	if rng.Float64() < sr && addBodyNode(rng, child, cfg) {
		structural = true
	}
	if rng.Float64() < sr && removeBodyNode(rng, child, b) {
		structural = true
	}
	if rng.Float64() < sr && addBodyMuscle(rng, child, b) {
		structural = true
	}
	if rng.Float64() < sr && removeBodyMuscle(rng, child, b) {
		structural = true
	}
	if repairBody(rng, child, b) {
		structural = true
	}
	return child, structural
}

// addBodyNode places a node near a random existing node and, when the muscle
// budget allows, ties it to that node.
func addBodyNode(rng *rand.Rand, g *Genome, cfg *Config) bool {
	b := cfg.Body
	if len(g.Nodes) >= b.MaxNodes || len(g.Nodes) == 0 {
		return false
	}
	anchor := g.Nodes[rng.Intn(len(g.Nodes))]
	n := randomNode(rng, g.nextNodeID(), b)
	step := cfg.Mutation.Magnitude * b.Position().Width()
	n.Position = Vec2{
		X: b.Position().Clamp(anchor.Position.X + rng.NormFloat64()*step),
		Y: b.Position().Clamp(anchor.Position.Y + rng.NormFloat64()*step),
	}
	g.Nodes = append(g.Nodes, n)
	if len(g.Muscles) < b.MaxMuscles {
		g.Muscles = append(g.Muscles, randomMuscle(rng, g.nextMuscleID(), anchor, n, b))
	}
	return true
}

// removeBodyNode deletes a node chosen among the less connected half, with
// ties broken randomly, together with its muscles.
func removeBodyNode(rng *rand.Rand, g *Genome, b BodyConfig) bool {
	if len(g.Nodes) <= b.MinNodes {
		return false
	}
	deg := g.degree()
	ids := make([]int, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	sort.SliceStable(ids, func(i, j int) bool { return deg[ids[i]] < deg[ids[j]] })
	half := (len(ids) + 1) / 2
	removeNodeByID(g, ids[rng.Intn(half)])
	return true
}

func removeNodeByID(g *Genome, id int) {
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes
	muscles := g.Muscles[:0]
	for _, m := range g.Muscles {
		if m.NodeA != id && m.NodeB != id {
			muscles = append(muscles, m)
		}
	}
	g.Muscles = muscles
}

func addBodyMuscle(rng *rand.Rand, g *Genome, b BodyConfig) bool {
	if len(g.Muscles) >= b.MaxMuscles {
		return false
	}
	pairs := shuffledFreePairs(rng, g)
	if len(pairs) == 0 {
		return false
	}
	g.Muscles = append(g.Muscles, randomMuscle(rng, g.nextMuscleID(), pairs[0][0], pairs[0][1], b))
	return true
}

func removeBodyMuscle(rng *rand.Rand, g *Genome, b BodyConfig) bool {
	if len(g.Muscles) <= b.MinMuscles {
		return false
	}
	i := rng.Intn(len(g.Muscles))
	g.Muscles = append(g.Muscles[:i], g.Muscles[i+1:]...)
	return true
}

// repairBody moves node and muscle counts back into bounds. It reports
// whether anything changed.
func repairBody(rng *rand.Rand, g *Genome, b BodyConfig) bool {
	changed := false
	for len(g.Nodes) < b.MinNodes {
		g.Nodes = append(g.Nodes, randomNode(rng, g.nextNodeID(), b))
		changed = true
	}
	for len(g.Nodes) > b.MaxNodes {
		removeBodyNode(rng, g, b)
		changed = true
	}
	for len(g.Muscles) > b.MaxMuscles {
		i := rng.Intn(len(g.Muscles))
		g.Muscles = append(g.Muscles[:i], g.Muscles[i+1:]...)
		changed = true
	}
	for len(g.Muscles) < b.MinMuscles {
		if !addBodyMuscle(rng, g, b) {
			break
		}
		changed = true
	}
	return changed
}

// MutateFixed returns a copy of f with every weight and bias perturbed with
// probability rate, scaled by cfg.Mutation.Magnitude of the NEAT weight and
// bias ranges.
func MutateFixed(rng *rand.Rand, f *FixedTopology, cfg *Config, rate float64) *FixedTopology {
	child := f.Clone()
	mag := cfg.Mutation.Magnitude
	weights, biases := cfg.NEAT.WeightRange(), cfg.NEAT.BiasRange()
	for gi, group := range child.params() {
		r := weights
		if gi >= 2 {
			r = biases
		}
		for i := range group {
			group[i], _ = perturbInRange(rng, group[i], rate, mag, r)
		}
	}
	return child
}

// RandomFixed creates a fixed-topology controller with gaussian weights.
func RandomFixed(rng *rand.Rand, cfg *Config) *FixedTopology {
	ctl := cfg.Controller
	f := NewFixedTopology(ctl.Inputs, ctl.Hidden, ctl.Outputs, ctl.Activation)
	for gi, group := range f.params() {
		r := cfg.NEAT.WeightRange()
		if gi >= 2 {
			r = cfg.NEAT.BiasRange()
		}
		for i := range group {
			group[i] = initFloatAttribute(rng, 0, cfg.NEAT.WeightInitStdev, r)
		}
	}
	return f
}
