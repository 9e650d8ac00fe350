package evolve

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// ErrEmptyPopulation is returned by Step when there is nothing to breed from.
var ErrEmptyPopulation = errors.New("population is empty")

// Evaluation is the external fitness collaborator's verdict on one genome.
// Performance carries auxiliary measurements, averaged into the statistics.
type Evaluation struct {
	GenomeID    string
	Fitness     float64
	Performance map[string]float64
}

// IDSource issues fresh genome ids.
type IDSource func() string

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source. Every random decision the engine makes is
// drawn from it.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithSeed seeds a fresh random source.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder sets the generation statistics sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithIDSource sets the genome id generator.
func WithIDSource(src IDSource) Option {
	return func(e *Engine) { e.newID = src }
}

// Engine drives generations: select survivors, breed offspring, mutate them,
// and report statistics. It is not safe for concurrent use.
type Engine struct {
	Config     *Config
	Adaptive   *AdaptiveMutation
	Generation int // index of the next population handed to Step

	rng      *rand.Rand
	logger   *slog.Logger
	recorder Recorder
	newID    IDSource
	counter  *InnovationCounter // used when Step is not given one
	kind     ControllerKind
}

// NewEngine validates config and builds an engine. A nil config means
// DefaultConfig.
func NewEngine(config *Config, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	kind, err := ParseControllerKind(config.Controller.Kind)
	if err != nil {
		return nil, invalid("%v", err)
	}

	e := &Engine{
		Config:   config,
		Adaptive: NewAdaptiveMutation(&config.Mutation),
		counter:  NewInnovationCounter(),
		kind:     kind,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.logger == nil {
		e.logger = slog.Default().With(slog.String("component", "evolve"))
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e, nil
}

// Counter returns the engine-owned innovation counter.
func (e *Engine) Counter() *InnovationCounter { return e.counter }

// GeneratePopulation creates size random genomes within the body bounds, each
// with a controller of the configured kind. NEAT controllers share the
// minimal topology and its innovation ids.
func (e *Engine) GeneratePopulation(size int) ([]*Genome, error) {
	if size <= 0 {
		return nil, invalid("population size must be positive, got %d", size)
	}
	out := make([]*Genome, 0, size)
	for i := 0; i < size; i++ {
		g := RandomBody(e.rng, e.Config.Body)
		g.ID = e.newID()
		g.Lineage = Lineage{Generation: e.Generation}
		g.Controller = e.newController()
		out = append(out, g)
	}
	e.logger.Info("generated population",
		slog.Int("size", size),
		slog.String("controller", e.kind.String()))
	return out, nil
}

func (e *Engine) newController() Controller {
	ctl := e.Config.Controller
	switch e.kind {
	case ControllerFixed:
		return RandomFixed(e.rng, e.Config)
	case ControllerNEAT:
		return NewNEATGenome(e.rng, ctl.Inputs, ctl.Outputs, ctl.Activation, e.Config.NEAT, e.counter)
	default:
		return nil
	}
}

// GenerationStats summarises one Step.
type GenerationStats struct {
	Generation   int
	Best         float64
	Mean         float64
	Median       float64
	Worst        float64
	Stdev        float64
	BestGenomeID string
	NonFinite    int // genomes whose fitness was NaN or infinite

	Survivors  int
	Offspring  int
	Crossovers int
	Clones     int
	Structural int // offspring whose topology or body structure changed

	Species          []SpeciesSummary // species of the evaluated population
	SurvivingSpecies int

	MutationRate float64
	Trend        Trend

	Performance map[string]float64 // mean of each auxiliary measurement
}

// Step breeds the next population from genomes and their evaluations.
//
// Survivors are chosen by the configured mode (truncation, speciation or
// sharing), the Elitism best always among them, and carried over with their
// id and an incremented survival streak. Remaining slots up to the population
// size are filled with offspring: crossover of two distinct parents with
// probability CrossoverRate, otherwise a clone of one parent. Every offspring
// is mutated and gets a fresh id.
//
// counter may be nil, in which case the engine's own counter is used. Its
// per-generation cache is cleared before breeding; counters never reset.
func (e *Engine) Step(genomes []*Genome, evaluations []Evaluation, counter *InnovationCounter) ([]*Genome, *GenerationStats, error) {
	if len(genomes) != len(evaluations) {
		return nil, nil, fmt.Errorf("%w: %d genomes but %d evaluations", ErrLengthMismatch, len(genomes), len(evaluations))
	}
	if len(genomes) == 0 {
		return nil, nil, ErrEmptyPopulation
	}
	pop, err := matchEvaluations(genomes, evaluations)
	if err != nil {
		return nil, nil, err
	}

	if counter == nil {
		counter = e.counter
	}
	for _, g := range genomes {
		if n := g.NEAT(); n != nil {
			counter.Observe(n)
		}
	}
	counter.NewGeneration()

	cfg := e.Config
	stats := e.fitnessStats(pop, evaluations)
	if stats.NonFinite > 0 {
		e.logger.Warn("non-finite fitness",
			slog.Int("generation", e.Generation),
			slog.Int("genomes", stats.NonFinite))
	}

	rate, trend := e.Adaptive.Update(stats.Best)
	stats.MutationRate, stats.Trend = rate, trend
	e.logger.Debug("mutation rate",
		slog.Float64("rate", rate),
		slog.String("trend", trend.String()))

	cache := NewDistanceCache(cfg.Speciation)
	species := AssignSpecies(pop, cfg.Speciation.CompatibilityThreshold, cache.Distance)
	stats.Species = Summarize(species)

	groups, err := e.selectSurvivors(pop, species, cache)
	if err != nil {
		return nil, nil, err
	}
	survivors := Members(groups)
	stats.Survivors = len(survivors)
	stats.SurvivingSpecies = len(groups)
	for _, grp := range groups {
		e.logger.Debug("species allocation",
			slog.Int("species", grp.ID),
			slog.Int("survivors", len(grp.Members)))
	}

	probs := e.parentProbabilities(groups)

	next := make([]*Genome, 0, cfg.Population.PopulationSize)
	for _, s := range survivors {
		g := s.Genome.Clone()
		g.Lineage.SurvivalStreak++
		next = append(next, g)
	}
	for len(next) < cfg.Population.PopulationSize {
		a := e.pickParent(survivors, probs)
		b := a
		crossover := len(survivors) > 1 && e.rng.Float64() < cfg.Selection.CrossoverRate
		if crossover {
			for try := 0; try <= cfg.Selection.MaxParentRetries; try++ {
				b = e.pickParent(survivors, probs)
				if b.Genome != a.Genome {
					break
				}
			}
			crossover = b.Genome != a.Genome
		}

		var child *Genome
		if crossover {
			child = e.crossover(a, b)
			stats.Crossovers++
		} else {
			child = a.Genome.Clone()
			stats.Clones++
		}
		child, structural := e.mutate(child, counter, rate)
		if structural {
			stats.Structural++
		}

		child.ID = e.newID()
		child.Lineage = Lineage{Generation: a.Genome.Lineage.Generation + 1, ParentIDs: []string{a.Genome.ID}}
		if crossover {
			child.Lineage.ParentIDs = append(child.Lineage.ParentIDs, b.Genome.ID)
			if gb := b.Genome.Lineage.Generation + 1; gb > child.Lineage.Generation {
				child.Lineage.Generation = gb
			}
		}
		next = append(next, child)
		stats.Offspring++
	}

	e.logger.Info("generation complete",
		slog.Int("generation", stats.Generation),
		slog.Float64("best", stats.Best),
		slog.Float64("mean", stats.Mean),
		slog.Int("species", len(stats.Species)),
		slog.Int("survivors", stats.Survivors),
		slog.Int("offspring", stats.Offspring))
	e.recorder.ObserveGeneration(stats)
	e.Generation++
	return next, stats, nil
}

// matchEvaluations pairs genomes with evaluations. An evaluation without a
// genome id applies to the genome at the same position.
func matchEvaluations(genomes []*Genome, evaluations []Evaluation) ([]Scored, error) {
	byID := make(map[string]float64, len(evaluations))
	for _, ev := range evaluations {
		if ev.GenomeID != "" {
			byID[ev.GenomeID] = ev.Fitness
		}
	}
	pop := make([]Scored, len(genomes))
	for i, g := range genomes {
		ev := evaluations[i]
		switch {
		case ev.GenomeID == "" || ev.GenomeID == g.ID:
			pop[i] = Scored{Genome: g, Fitness: ev.Fitness}
		default:
			f, ok := byID[g.ID]
			if !ok {
				return nil, fmt.Errorf("no evaluation for genome %s", g.ID)
			}
			pop[i] = Scored{Genome: g, Fitness: f}
		}
	}
	return pop, nil
}

func (e *Engine) fitnessStats(pop []Scored, evaluations []Evaluation) *GenerationStats {
	stats := &GenerationStats{Generation: e.Generation, Performance: map[string]float64{}}

	fitness := make([]float64, 0, len(pop))
	for _, s := range pop {
		if math.IsNaN(s.Fitness) || math.IsInf(s.Fitness, 0) {
			stats.NonFinite++
		}
		fitness = append(fitness, s.Fitness)
	}
	stats.Worst, stats.Best = MinMax(fitness)
	stats.Mean = Mean(fitness)
	stats.Median = Median(fitness)
	stats.Stdev = Stdev(fitness)
	if best := Elite(pop, 1); len(best) == 1 {
		stats.BestGenomeID = best[0].Genome.ID
	}

	counts := map[string]int{}
	for _, ev := range evaluations {
		for k, v := range ev.Performance {
			stats.Performance[k] += v
			counts[k]++
		}
	}
	for k, n := range counts {
		stats.Performance[k] /= float64(n)
	}
	return stats
}

// selectSurvivors returns the survivors grouped by species, each group best
// first. The fitness carried by a survivor is the one parent selection ranks
// by: shared fitness in sharing mode, raw fitness otherwise.
func (e *Engine) selectSurvivors(pop []Scored, species []*Species, cache *DistanceCache) ([]*Species, error) {
	sel := e.Config.Selection
	popSize := e.Config.Population.PopulationSize

	ranked := pop
	if sel.Mode == ModeSharing {
		shared := SharedFitness(pop, cache.Distance, sel.SharingSigma, sel.SharingAlpha)
		ranked = make([]Scored, len(pop))
		for i, s := range pop {
			ranked[i] = Scored{Genome: s.Genome, Fitness: shared[i]}
		}
	}
	rankedOf := make(map[*Genome]Scored, len(ranked))
	for _, s := range ranked {
		rankedOf[s.Genome] = s
	}

	var groups []*Species
	switch sel.Mode {
	case ModeSpeciation:
		groups = SelectWithinSpecies(species, popSize, sel.CullPercentage, e.Config.Speciation.MinSpeciesSize)
	default:
		budget := int(math.Floor(float64(popSize) * (1 - sel.CullPercentage)))
		// Half a genome of headroom keeps floor(n*rate) at budget.
		rate := 1.0
		if budget < len(ranked) {
			rate = (float64(budget) + 0.5) / float64(len(ranked))
		}
		survivors, _, err := TruncationSelection(ranked, rate)
		if err != nil {
			return nil, err
		}
		groups = regroup(survivors, species)
	}

	// Elites survive whatever the mode decided.
	kept := make(map[*Genome]bool)
	for _, grp := range groups {
		for _, m := range grp.Members {
			kept[m.Genome] = true
		}
	}
	var missing []Scored
	for _, elite := range Elite(pop, e.Config.Selection.Elitism) {
		if !kept[elite.Genome] {
			missing = append(missing, rankedOf[elite.Genome])
		}
	}
	if len(groups) == 0 && len(missing) == 0 {
		missing = append(missing, rankedOf[Elite(pop, 1)[0].Genome])
	}
	if len(missing) > 0 {
		groups = regroup(append(Members(groups), missing...), species)
	}
	return groups, nil
}

// regroup sorts survivors into the species they were assigned to, keeping
// species order and putting each group best first.
func regroup(survivors []Scored, species []*Species) []*Species {
	speciesOf := make(map[*Genome]*Species)
	for _, sp := range species {
		for _, m := range sp.Members {
			speciesOf[m.Genome] = sp
		}
	}
	byID := make(map[int]*Species)
	var order []int
	for _, s := range survivors {
		sp := speciesOf[s.Genome]
		id := 0
		var rep *Genome
		if sp != nil {
			id, rep = sp.ID, sp.Representative
		}
		grp, ok := byID[id]
		if !ok {
			grp = &Species{ID: id, Representative: rep}
			byID[id] = grp
			order = append(order, id)
		}
		grp.Members = append(grp.Members, s)
	}
	sort.Ints(order)
	out := make([]*Species, 0, len(order))
	for _, id := range order {
		grp := byID[id]
		grp.Members = sortByFitness(grp.Members)
		out = append(out, grp)
	}
	return out
}

// parentProbabilities returns rank-based selection probabilities aligned with
// Members(groups). Per species, each group receives a share proportional to
// its size, split by rank inside the group.
func (e *Engine) parentProbabilities(groups []*Species) []float64 {
	survivors := Members(groups)
	if !e.Config.Selection.PerSpeciesProbabilities {
		fitness := make([]float64, len(survivors))
		for i, s := range survivors {
			fitness[i] = s.Fitness
		}
		return RankProbabilities(fitness)
	}
	probs := make([]float64, 0, len(survivors))
	for _, grp := range groups {
		share := float64(len(grp.Members)) / float64(len(survivors))
		for _, p := range RankProbabilities(grp.Fitnesses()) {
			probs = append(probs, p*share)
		}
	}
	return probs
}

func (e *Engine) pickParent(survivors []Scored, probs []float64) Scored {
	if e.Config.Selection.ParentSelection == ParentsTournament {
		return TournamentSelection(e.rng, survivors, 1, e.Config.Selection.TournamentSize)[0]
	}
	return survivors[WeightedDraw(e.rng, probs)]
}

// crossover combines body and controller of two parents.
func (e *Engine) crossover(a, b Scored) *Genome {
	child := CrossoverBody(e.rng, a.Genome, b.Genome, e.Config.Body)
	switch {
	case a.Genome.NEAT() != nil && b.Genome.NEAT() != nil:
		child.Controller = NEATCrossover(e.rng, a.Genome.NEAT(), b.Genome.NEAT(), a.Fitness, b.Fitness, e.Config.NEAT)
	case a.Genome.Fixed() != nil && b.Genome.Fixed() != nil:
		child.Controller = CrossoverFixed(e.rng, a.Genome.Fixed(), b.Genome.Fixed())
	default:
		// Kinds differ: the fitter parent's controller is inherited whole.
		fitter := a
		if b.Fitness > a.Fitness {
			fitter = b
		}
		if fitter.Genome.Controller != nil {
			child.Controller = fitter.Genome.Controller.cloneController()
		}
	}
	return child
}

// mutate applies body and controller mutation. It reports whether any
// structure changed.
func (e *Engine) mutate(g *Genome, counter *InnovationCounter, rate float64) (*Genome, bool) {
	child, structural := MutateBody(e.rng, g, e.Config, rate)
	switch c := child.Controller.(type) {
	case *NEATGenome:
		n, report := MutateNEAT(e.rng, c, counter, e.Config.NEAT)
		child.Controller = n
		structural = structural || report.Structural()
	case *FixedTopology:
		child.Controller = MutateFixed(e.rng, c, e.Config, rate)
	}
	return child, structural
}

// --------------------------- Diversity ---------------------------

// DiversityReport describes how spread out a population is.
type DiversityReport struct {
	Species           []SpeciesSummary
	MeanDistance      float64 // over finite pairwise distances
	MaxDistance       float64
	Pairs             int // pairs with a finite distance
	IncompatiblePairs int // pairs with an infinite distance (different controller kinds or shapes)
	MeanNodes         float64
	MeanMuscles       float64
	MeanHidden        float64 // NEAT controllers only
	MeanConnections   float64 // enabled NEAT connections
}

// DiversityStats speciates pop and measures pairwise distances. Rows of the
// distance matrix are computed in parallel; genomes are only read.
func (e *Engine) DiversityStats(pop []Scored) DiversityReport {
	cfg := e.Config.Speciation
	var report DiversityReport
	if len(pop) == 0 {
		return report
	}
	report.Species = Summarize(AssignSpecies(pop, cfg.CompatibilityThreshold, func(a, b *Genome) float64 {
		return Distance(a, b, cfg)
	}))

	var (
		mu    sync.Mutex
		sum   float64
		maxD  float64
		pairs int
		inf   int
	)
	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i := range pop {
		i := i
		p.Go(func() {
			var rowSum, rowMax float64
			var rowPairs, rowInf int
			for j := i + 1; j < len(pop); j++ {
				d := Distance(pop[i].Genome, pop[j].Genome, cfg)
				if math.IsInf(d, 0) || math.IsNaN(d) {
					rowInf++
					continue
				}
				rowSum += d
				rowPairs++
				if d > rowMax {
					rowMax = d
				}
			}
			mu.Lock()
			defer mu.Unlock()
			sum += rowSum
			pairs += rowPairs
			inf += rowInf
			if rowMax > maxD {
				maxD = rowMax
			}
		})
	}
	p.Wait()

	report.Pairs, report.IncompatiblePairs, report.MaxDistance = pairs, inf, maxD
	if pairs > 0 {
		report.MeanDistance = sum / float64(pairs)
	}

	var nodes, muscles, hidden, conns []float64
	for _, s := range pop {
		nodes = append(nodes, float64(len(s.Genome.Nodes)))
		muscles = append(muscles, float64(len(s.Genome.Muscles)))
		if n := s.Genome.NEAT(); n != nil {
			hidden = append(hidden, float64(n.HiddenCount()))
			conns = append(conns, float64(n.EnabledCount()))
		}
	}
	report.MeanNodes = Mean(nodes)
	report.MeanMuscles = Mean(muscles)
	report.MeanHidden = Mean(hidden)
	report.MeanConnections = Mean(conns)
	return report
}
