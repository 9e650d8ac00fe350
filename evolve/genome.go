package evolve

import (
	"fmt"
)

// Vec2 is a 2D position.
type Vec2 struct {
	X float64
	Y float64
}

// Node is a point mass of the creature's body.
type Node struct {
	ID       int
	Position Vec2
	Size     float64
	Friction float64
}

// SensingBias weights how strongly a muscle reacts to direction, velocity and
// distance signals.
type SensingBias struct {
	Direction float64
	Velocity  float64
	Distance  float64
}

// Muscle is a spring between two nodes driven by an oscillator.
type Muscle struct {
	ID         int
	NodeA      int
	NodeB      int
	RestLength float64
	Stiffness  float64
	Damping    float64
	Frequency  float64
	Amplitude  float64
	Phase      float64
	Sensing    *SensingBias // nil when the muscle does not sense
}

// Lineage records where a genome came from.
type Lineage struct {
	ParentIDs      []string
	Generation     int
	SurvivalStreak int
}

// ControllerKind tags the controller variant carried by a genome.
type ControllerKind int

const (
	ControllerNone ControllerKind = iota
	ControllerFixed
	ControllerNEAT
)

func (k ControllerKind) String() string {
	switch k {
	case ControllerNone:
		return "none"
	case ControllerFixed:
		return "fixed"
	case ControllerNEAT:
		return "neat"
	default:
		return fmt.Sprintf("ControllerKind(%d)", int(k))
	}
}

// ParseControllerKind maps a configuration string to a ControllerKind.
func ParseControllerKind(s string) (ControllerKind, error) {
	switch s {
	case "none", "":
		return ControllerNone, nil
	case "fixed":
		return ControllerFixed, nil
	case "neat":
		return ControllerNEAT, nil
	}
	return ControllerNone, fmt.Errorf("invalid controller kind '%s', must be one of 'none', 'fixed', 'neat'", s)
}

// Controller is the tagged controller variant. It is implemented only by
// *FixedTopology and *NEATGenome; a nil Controller means no controller.
type Controller interface {
	Kind() ControllerKind
	cloneController() Controller
}

// Genome is the full hereditary description of one creature.
type Genome struct {
	ID                  string
	Nodes               []Node
	Muscles             []Muscle
	FrequencyMultiplier float64
	Lineage             Lineage
	Controller          Controller
}

// ControllerKind returns the kind of the attached controller.
func (g *Genome) ControllerKind() ControllerKind {
	if g.Controller == nil {
		return ControllerNone
	}
	return g.Controller.Kind()
}

// NEAT returns the NEAT controller, or nil.
func (g *Genome) NEAT() *NEATGenome {
	if n, ok := g.Controller.(*NEATGenome); ok {
		return n
	}
	return nil
}

// Fixed returns the fixed-topology controller, or nil.
func (g *Genome) Fixed() *FixedTopology {
	if f, ok := g.Controller.(*FixedTopology); ok {
		return f
	}
	return nil
}

// Clone returns a deep copy.
func (g *Genome) Clone() *Genome {
	c := &Genome{
		ID:                  g.ID,
		Nodes:               append([]Node(nil), g.Nodes...),
		Muscles:             make([]Muscle, len(g.Muscles)),
		FrequencyMultiplier: g.FrequencyMultiplier,
		Lineage: Lineage{
			ParentIDs:      append([]string(nil), g.Lineage.ParentIDs...),
			Generation:     g.Lineage.Generation,
			SurvivalStreak: g.Lineage.SurvivalStreak,
		},
	}
	for i, m := range g.Muscles {
		if m.Sensing != nil {
			s := *m.Sensing
			m.Sensing = &s
		}
		c.Muscles[i] = m
	}
	if g.Controller != nil {
		c.Controller = g.Controller.cloneController()
	}
	return c
}

// nodeIndex maps node ids to their slice position.
func (g *Genome) nodeIndex() map[int]int {
	idx := make(map[int]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// degree counts the muscles attached to each node id.
func (g *Genome) degree() map[int]int {
	deg := make(map[int]int, len(g.Nodes))
	for _, n := range g.Nodes {
		deg[n.ID] = 0
	}
	for _, m := range g.Muscles {
		deg[m.NodeA]++
		deg[m.NodeB]++
	}
	return deg
}

func (g *Genome) nextNodeID() int {
	next := 0
	for _, n := range g.Nodes {
		if n.ID >= next {
			next = n.ID + 1
		}
	}
	return next
}

func (g *Genome) nextMuscleID() int {
	next := 0
	for _, m := range g.Muscles {
		if m.ID >= next {
			next = m.ID + 1
		}
	}
	return next
}

// hasMuscle reports whether an (unordered) muscle between a and b exists.
func (g *Genome) hasMuscle(a, b int) bool {
	for _, m := range g.Muscles {
		if (m.NodeA == a && m.NodeB == b) || (m.NodeA == b && m.NodeB == a) {
			return true
		}
	}
	return false
}

// ValidateBody checks body references and bounds.
func (g *Genome) ValidateBody(b BodyConfig) error {
	if len(g.Nodes) < b.MinNodes || len(g.Nodes) > b.MaxNodes {
		return fmt.Errorf("genome %s: %d nodes outside [%d, %d]", g.ID, len(g.Nodes), b.MinNodes, b.MaxNodes)
	}
	if len(g.Muscles) < b.MinMuscles || len(g.Muscles) > b.MaxMuscles {
		return fmt.Errorf("genome %s: %d muscles outside [%d, %d]", g.ID, len(g.Muscles), b.MinMuscles, b.MaxMuscles)
	}
	idx := g.nodeIndex()
	if len(idx) != len(g.Nodes) {
		return fmt.Errorf("genome %s: duplicate node ids", g.ID)
	}
	for _, m := range g.Muscles {
		if _, ok := idx[m.NodeA]; !ok {
			return fmt.Errorf("genome %s: muscle %d references missing node %d", g.ID, m.ID, m.NodeA)
		}
		if _, ok := idx[m.NodeB]; !ok {
			return fmt.Errorf("genome %s: muscle %d references missing node %d", g.ID, m.ID, m.NodeB)
		}
		if m.NodeA == m.NodeB {
			return fmt.Errorf("genome %s: muscle %d connects node %d to itself", g.ID, m.ID, m.NodeA)
		}
	}
	return nil
}

// Validate checks body and controller consistency.
func (g *Genome) Validate(cfg *Config) error {
	if err := g.ValidateBody(cfg.Body); err != nil {
		return err
	}
	switch c := g.Controller.(type) {
	case nil:
	case *FixedTopology:
		if err := c.Validate(); err != nil {
			return fmt.Errorf("genome %s: %w", g.ID, err)
		}
	case *NEATGenome:
		if err := c.Validate(); err != nil {
			return fmt.Errorf("genome %s: %w", g.ID, err)
		}
	default:
		return fmt.Errorf("genome %s: unknown controller type %T", g.ID, c)
	}
	return nil
}

// --------------------------- FixedTopology ---------------------------

// FixedTopology is a single-hidden-layer controller whose shape never changes.
// Weight slices are row-major: InputHidden[i*HiddenSize+h], HiddenOutput[h*OutputSize+o].
type FixedTopology struct {
	InputSize    int
	HiddenSize   int
	OutputSize   int
	InputHidden  []float64
	HiddenOutput []float64
	HiddenBias   []float64
	OutputBias   []float64
	Activation   string
}

func (f *FixedTopology) Kind() ControllerKind { return ControllerFixed }

func (f *FixedTopology) cloneController() Controller { return f.Clone() }

// NewFixedTopology allocates zeroed weights for the given shape.
func NewFixedTopology(inputs, hidden, outputs int, activation string) *FixedTopology {
	return &FixedTopology{
		InputSize:    inputs,
		HiddenSize:   hidden,
		OutputSize:   outputs,
		InputHidden:  make([]float64, inputs*hidden),
		HiddenOutput: make([]float64, hidden*outputs),
		HiddenBias:   make([]float64, hidden),
		OutputBias:   make([]float64, outputs),
		Activation:   activation,
	}
}

// Clone returns a deep copy.
func (f *FixedTopology) Clone() *FixedTopology {
	return &FixedTopology{
		InputSize:    f.InputSize,
		HiddenSize:   f.HiddenSize,
		OutputSize:   f.OutputSize,
		InputHidden:  append([]float64(nil), f.InputHidden...),
		HiddenOutput: append([]float64(nil), f.HiddenOutput...),
		HiddenBias:   append([]float64(nil), f.HiddenBias...),
		OutputBias:   append([]float64(nil), f.OutputBias...),
		Activation:   f.Activation,
	}
}

// Validate fails when array lengths do not match the declared shape.
func (f *FixedTopology) Validate() error {
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"input_hidden", len(f.InputHidden), f.InputSize * f.HiddenSize},
		{"hidden_output", len(f.HiddenOutput), f.HiddenSize * f.OutputSize},
		{"hidden_bias", len(f.HiddenBias), f.HiddenSize},
		{"output_bias", len(f.OutputBias), f.OutputSize},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("%w: fixed topology %s has %d values, want %d", ErrLengthMismatch, c.name, c.got, c.want)
		}
	}
	return nil
}

// SameShape reports whether two controllers have identical dimensions.
func (f *FixedTopology) SameShape(o *FixedTopology) bool {
	return f.InputSize == o.InputSize && f.HiddenSize == o.HiddenSize && f.OutputSize == o.OutputSize
}

// Flatten returns every weight and bias in a single slice.
func (f *FixedTopology) Flatten() []float64 {
	out := make([]float64, 0, len(f.InputHidden)+len(f.HiddenOutput)+len(f.HiddenBias)+len(f.OutputBias))
	out = append(out, f.InputHidden...)
	out = append(out, f.HiddenOutput...)
	out = append(out, f.HiddenBias...)
	out = append(out, f.OutputBias...)
	return out
}

// params returns pointers-by-slice to every parameter group, in Flatten order.
func (f *FixedTopology) params() [][]float64 {
	return [][]float64{f.InputHidden, f.HiddenOutput, f.HiddenBias, f.OutputBias}
}

// Activate runs the controller on inputs.
func (f *FixedTopology) Activate(inputs []float64) ([]float64, error) {
	if len(inputs) != f.InputSize {
		return nil, fmt.Errorf("%w: got %d inputs, controller expects %d", ErrLengthMismatch, len(inputs), f.InputSize)
	}
	act, err := GetActivation(f.Activation)
	if err != nil {
		return nil, err
	}
	hidden := make([]float64, f.HiddenSize)
	for h := 0; h < f.HiddenSize; h++ {
		sum := f.HiddenBias[h]
		for i := 0; i < f.InputSize; i++ {
			sum += inputs[i] * f.InputHidden[i*f.HiddenSize+h]
		}
		hidden[h] = act(sum)
	}
	out := make([]float64, f.OutputSize)
	for o := 0; o < f.OutputSize; o++ {
		sum := f.OutputBias[o]
		for h := 0; h < f.HiddenSize; h++ {
			sum += hidden[h] * f.HiddenOutput[h*f.OutputSize+o]
		}
		out[o] = act(sum)
	}
	return out, nil
}
