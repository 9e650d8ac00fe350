package evolve

import "sync"

// splitKey identifies one of the two connections created by splitting a
// historical connection.
type splitKey struct {
	innovation int
	outgoing   bool // false: source -> new neuron, true: new neuron -> target
}

// InnovationCounter is the ledger of historical markers shared by every genome
// mutated in a generation. Counters only grow; the caches remember which id a
// structural event received earlier in the current generation so identical
// events arising independently get identical ids.
//
// All methods are safe for concurrent use.
type InnovationCounter struct {
	mu             sync.Mutex
	nextConnection int
	nextNode       int
	connections    map[ConnectionKey]int
	nodes          map[int]int
	splits         map[splitKey]int
}

// NewInnovationCounter returns a counter starting at zero.
func NewInnovationCounter() *InnovationCounter {
	c := &InnovationCounter{}
	c.resetCaches()
	return c
}

// NewInnovationCounterFrom returns a counter whose next ids lie above every
// innovation already present in genomes.
func NewInnovationCounterFrom(genomes []*Genome) *InnovationCounter {
	c := NewInnovationCounter()
	for _, g := range genomes {
		if n := g.NEAT(); n != nil {
			c.Observe(n)
		}
	}
	return c
}

func (c *InnovationCounter) resetCaches() {
	c.connections = make(map[ConnectionKey]int)
	c.nodes = make(map[int]int)
	c.splits = make(map[splitKey]int)
}

// Observe advances the counters past every innovation carried by g.
func (c *InnovationCounter) Observe(g *NEATGenome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range g.Connections {
		if conn.Innovation >= c.nextConnection {
			c.nextConnection = conn.Innovation + 1
		}
	}
	for _, n := range g.Neurons {
		if n.Innovation >= c.nextNode {
			c.nextNode = n.Innovation + 1
		}
	}
}

// ConnectionInnovation returns the innovation id for a new source -> target
// connection, reusing the id handed out earlier this generation.
func (c *InnovationCounter) ConnectionInnovation(source, target int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := ConnectionKey{Source: source, Target: target}
	if id, ok := c.connections[key]; ok {
		return id
	}
	id := c.nextConnection
	c.nextConnection++
	c.connections[key] = id
	return id
}

// NodeInnovation returns the node innovation for splitting the connection
// with the given innovation id.
func (c *InnovationCounter) NodeInnovation(splitInnovation int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.nodes[splitInnovation]; ok {
		return id
	}
	id := c.nextNode
	c.nextNode++
	c.nodes[splitInnovation] = id
	return id
}

// SplitInnovations returns the connection innovations for the incoming and
// outgoing halves of a split. They are keyed on the split connection rather
// than on neuron ids, which are local to a genome.
func (c *InnovationCounter) SplitInnovations(splitInnovation int) (in, out int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lookup := func(k splitKey) int {
		if id, ok := c.splits[k]; ok {
			return id
		}
		id := c.nextConnection
		c.nextConnection++
		c.splits[k] = id
		return id
	}
	in = lookup(splitKey{innovation: splitInnovation})
	out = lookup(splitKey{innovation: splitInnovation, outgoing: true})
	return in, out
}

// NewGeneration clears the per-generation caches. Counters are kept.
func (c *InnovationCounter) NewGeneration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetCaches()
}

// Next returns the ids the counter would hand out next.
func (c *InnovationCounter) Next() (connection, node int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextConnection, c.nextNode
}
