package evolve

import (
	"math/rand"
	"sort"

	"github.com/baldhumanity/creature-evo/evolve/netgraph"
)

// GenePair holds the two copies of a matching gene.
type GenePair struct {
	A ConnectionGene
	B ConnectionGene
}

// Alignment is the result of lining two genomes up by innovation id.
// All slices are ordered by innovation.
type Alignment struct {
	Matching  []GenePair
	DisjointA []ConnectionGene
	DisjointB []ConnectionGene
	ExcessA   []ConnectionGene
	ExcessB   []ConnectionGene
}

// Disjoint returns the number of disjoint genes on both sides.
func (al Alignment) Disjoint() int { return len(al.DisjointA) + len(al.DisjointB) }

// Excess returns the number of excess genes on both sides.
func (al Alignment) Excess() int { return len(al.ExcessA) + len(al.ExcessB) }

// AlignGenes indexes both genomes by innovation id. A shared id is matching.
// Unique ids are measured against the history both genomes share, i.e. the
// largest matching id: at or below it they are disjoint, above it excess.
// So {0,1,2} against {0,1,5} yields two excess genes, 2 and 5. Disabled
// genes take part like any other.
func AlignGenes(a, b *NEATGenome) Alignment {
	byA := make(map[int]ConnectionGene, len(a.Connections))
	for _, c := range a.Connections {
		byA[c.Innovation] = c
	}
	byB := make(map[int]ConnectionGene, len(b.Connections))
	for _, c := range b.Connections {
		byB[c.Innovation] = c
	}
	shared := NoInnovation
	var al Alignment
	for _, innov := range sortedKeys(byA) {
		if cb, ok := byB[innov]; ok {
			al.Matching = append(al.Matching, GenePair{A: byA[innov], B: cb})
			shared = innov
		}
	}

	classify := func(own, other map[int]ConnectionGene, disjoint, excess *[]ConnectionGene) {
		for _, innov := range sortedKeys(own) {
			if _, ok := other[innov]; ok {
				continue
			}
			if innov <= shared {
				*disjoint = append(*disjoint, own[innov])
			} else {
				*excess = append(*excess, own[innov])
			}
		}
	}
	classify(byA, byB, &al.DisjointA, &al.ExcessA)
	classify(byB, byA, &al.DisjointB, &al.ExcessB)
	return al
}

func sortedKeys(m map[int]ConnectionGene) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// NEATCrossover recombines two NEAT genomes aligned by innovation id.
//
// Parents are reordered so a is not less fit. Matching genes are inherited
// whole from a random parent; when either parent had the gene disabled the
// child's copy is disabled with probability cfg.DisabledInheritProb.
// Disjoint and excess genes come only from the fitter parent. On equal
// fitness each parent's unique genes are included independently with 50%
// probability and the neuron set is the union of both parents. Hidden
// neurons of b are first renamed into a's id space (see neuronRenames).
//
// Connections that would close a cycle among enabled connections, or that
// duplicate an endpoint pair already inherited, are dropped.
func NEATCrossover(rng *rand.Rand, a, b *NEATGenome, fitA, fitB float64, cfg NEATConfig) *NEATGenome {
	if fitB > fitA {
		a, b = b, a
		fitA, fitB = fitB, fitA
	}
	equal := fitA == fitB
	al := AlignGenes(a, b)

	rename := neuronRenames(a, b)
	fromB := func(c ConnectionGene) ConnectionGene {
		if id, ok := rename[c.Source]; ok {
			c.Source = id
		}
		if id, ok := rename[c.Target]; ok {
			c.Target = id
		}
		return c
	}
	renamedB := make([]NeuronGene, len(b.Neurons))
	neuronsB := make(map[int]NeuronGene, len(b.Neurons))
	for i, n := range b.Neurons {
		if id, ok := rename[n.ID]; ok {
			n.ID = id
		}
		renamedB[i] = n
		neuronsB[n.ID] = n
	}

	genes := make([]ConnectionGene, 0, len(a.Connections)+len(b.Connections))
	for _, p := range al.Matching {
		gene := p.A
		if rng.Float64() < 0.5 {
			gene = fromB(p.B)
		}
		if !p.A.Enabled || !p.B.Enabled {
			gene.Enabled = rng.Float64() >= cfg.DisabledInheritProb
		}
		genes = append(genes, gene)
	}
	if equal {
		for i, set := range [][]ConnectionGene{al.DisjointA, al.ExcessA, al.DisjointB, al.ExcessB} {
			for _, c := range set {
				if rng.Float64() >= 0.5 {
					continue
				}
				if i >= 2 {
					c = fromB(c)
				}
				genes = append(genes, c)
			}
		}
	} else {
		genes = append(genes, al.DisjointA...)
		genes = append(genes, al.ExcessA...)
	}
	sort.SliceStable(genes, func(i, j int) bool { return genes[i].Innovation < genes[j].Innovation })

	child := &NEATGenome{
		InputCount:  a.InputCount,
		OutputCount: a.OutputCount,
		Activation:  a.Activation,
	}

	// Neurons are seeded from the fitter parent (both on equal fitness) and
	// extended for any neuron a gene references but the seed lacks.
	present := make(map[int]bool)
	addNeuron := func(n NeuronGene) {
		if present[n.ID] {
			return
		}
		present[n.ID] = true
		child.Neurons = append(child.Neurons, n)
	}
	for _, n := range a.Neurons {
		addNeuron(n)
	}
	if equal {
		for _, n := range renamedB {
			addNeuron(n)
		}
	}
	for _, c := range genes {
		for _, id := range []int{c.Source, c.Target} {
			if n, ok := neuronsB[id]; ok && !present[id] {
				addNeuron(n)
			}
		}
	}
	child.sortNeurons()

	roles := child.roles()
	ids := make([]int, 0, len(child.Neurons))
	for _, n := range child.Neurons {
		ids = append(ids, n.ID)
	}
	view := netgraph.Build(ids, nil)
	seen := make(map[ConnectionKey]bool, len(genes))
	for _, c := range genes {
		src, okSrc := roles[c.Source]
		dst, okDst := roles[c.Target]
		if !okSrc || !okDst || !src.canSource() || !dst.canTarget() || seen[c.Key()] {
			continue
		}
		if c.Enabled {
			if view.WouldCycle(c.Source, c.Target) {
				continue
			}
			view.AddEdge(netgraph.Edge{From: c.Source, To: c.Target})
		}
		seen[c.Key()] = true
		child.Connections = append(child.Connections, c)
	}
	return child
}

// neuronRenames maps b's hidden neuron ids into a's id space. Hidden neuron
// ids are local, so the same node innovation may carry different ids in the
// two parents, and one id may name unrelated neurons. A b neuron sharing a
// node innovation with an a neuron takes a's id; one whose id a uses for a
// different neuron gets a fresh id above both genomes.
func neuronRenames(a, b *NEATGenome) map[int]int {
	byInnovation := make(map[int]int)
	for _, n := range a.Neurons {
		if n.Role != RoleHidden || n.Innovation == NoInnovation {
			continue
		}
		if _, dup := byInnovation[n.Innovation]; !dup {
			byInnovation[n.Innovation] = n.ID
		}
	}

	next := a.MaxNeuronID() + 1
	if m := b.MaxNeuronID() + 1; m > next {
		next = m
	}
	taken := make(map[int]bool)
	rename := make(map[int]int)
	for _, n := range b.Neurons {
		if n.Role != RoleHidden {
			continue
		}
		own, exists := a.Neuron(n.ID)
		shared, known := byInnovation[n.Innovation]
		switch {
		case exists && own.Role == RoleHidden && own.Innovation == n.Innovation && !taken[n.ID]:
			rename[n.ID] = n.ID
		case known && n.Innovation != NoInnovation && !taken[shared]:
			rename[n.ID] = shared
		case !exists:
			rename[n.ID] = n.ID
		default:
			rename[n.ID] = next
			next++
		}
		taken[rename[n.ID]] = true
	}
	return rename
}
