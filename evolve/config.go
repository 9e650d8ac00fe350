package evolve

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("config error")

// ErrLengthMismatch is returned when parallel arrays disagree in length.
var ErrLengthMismatch = errors.New("length mismatch")

// Selection modes.
const (
	ModeTruncation = "truncation"
	ModeSpeciation = "speciation"
	ModeSharing    = "sharing"
)

// Parent selection strategies used when filling open slots.
const (
	ParentsRank       = "rank"
	ParentsTournament = "tournament"
)

// Config stores every tunable of the evolution engine. Sections mirror the
// INI layout; an absent key keeps its default.
type Config struct {
	Population PopulationConfig `yaml:"population"`
	Selection  SelectionConfig  `yaml:"selection"`
	Speciation SpeciationConfig `yaml:"speciation"`
	Mutation   MutationConfig   `yaml:"mutation"`
	NEAT       NEATConfig       `yaml:"neat"`
	Body       BodyConfig       `yaml:"body"`
	Controller ControllerConfig `yaml:"controller"`
}

// PopulationConfig holds population-wide sizes.
type PopulationConfig struct {
	PopulationSize int `ini:"population_size" yaml:"population_size"`
}

// SelectionConfig holds survivor and parent selection parameters.
type SelectionConfig struct {
	Mode                    string  `ini:"mode" yaml:"mode"` // truncation, speciation or sharing
	CullPercentage          float64 `ini:"cull_percentage" yaml:"cull_percentage"`
	Elitism                 int     `ini:"elitism" yaml:"elitism"`
	CrossoverRate           float64 `ini:"crossover_rate" yaml:"crossover_rate"`
	ParentSelection         string  `ini:"parent_selection" yaml:"parent_selection"` // rank or tournament
	TournamentSize          int     `ini:"tournament_size" yaml:"tournament_size"`
	PerSpeciesProbabilities bool    `ini:"per_species_probabilities" yaml:"per_species_probabilities"`
	MaxParentRetries        int     `ini:"max_parent_retries" yaml:"max_parent_retries"`
	SharingSigma            float64 `ini:"sharing_sigma" yaml:"sharing_sigma"`
	SharingAlpha            float64 `ini:"sharing_alpha" yaml:"sharing_alpha"`
}

// SpeciationConfig holds compatibility distance and species budget parameters.
type SpeciationConfig struct {
	CompatibilityThreshold   float64 `ini:"compatibility_threshold" yaml:"compatibility_threshold"`
	MinSpeciesSize           int     `ini:"min_species_size" yaml:"min_species_size"`
	ExcessCoefficient        float64 `ini:"excess_coefficient" yaml:"excess_coefficient"`
	DisjointCoefficient      float64 `ini:"disjoint_coefficient" yaml:"disjoint_coefficient"`
	WeightCoefficient        float64 `ini:"weight_coefficient" yaml:"weight_coefficient"`
	NormalizeBySize          bool    `ini:"normalize_by_size" yaml:"normalize_by_size"`
	BodyNodeCoefficient      float64 `ini:"body_node_coefficient" yaml:"body_node_coefficient"`
	BodyMuscleCoefficient    float64 `ini:"body_muscle_coefficient" yaml:"body_muscle_coefficient"`
	BodyFrequencyCoefficient float64 `ini:"body_frequency_coefficient" yaml:"body_frequency_coefficient"`
}

// MutationConfig holds the fixed-topology mutation schedule.
type MutationConfig struct {
	Rate           float64 `ini:"rate" yaml:"rate"`
	Magnitude      float64 `ini:"magnitude" yaml:"magnitude"` // fraction of a gene's valid range
	StructuralRate float64 `ini:"structural_rate" yaml:"structural_rate"`
	Adaptive       bool    `ini:"adaptive" yaml:"adaptive"`
	AdaptiveWindow int     `ini:"adaptive_window" yaml:"adaptive_window"`
	MinRate        float64 `ini:"min_rate" yaml:"min_rate"`
	MaxRate        float64 `ini:"max_rate" yaml:"max_rate"`
}

// NEATConfig holds structural and weight mutation parameters for NEAT controllers.
type NEATConfig struct {
	MaxHiddenNeurons      int     `ini:"max_hidden_neurons" yaml:"max_hidden_neurons"`
	AddConnectionProb     float64 `ini:"add_connection_prob" yaml:"add_connection_prob"`
	AddNodeProb           float64 `ini:"add_node_prob" yaml:"add_node_prob"`
	ToggleProb            float64 `ini:"toggle_prob" yaml:"toggle_prob"`
	DisableProb           float64 `ini:"disable_prob" yaml:"disable_prob"`
	WeightMutateRate      float64 `ini:"weight_mutate_rate" yaml:"weight_mutate_rate"`
	WeightReplaceRate     float64 `ini:"weight_replace_rate" yaml:"weight_replace_rate"` // share of mutated weights reset
	WeightMutatePower     float64 `ini:"weight_mutate_power" yaml:"weight_mutate_power"`
	WeightInitStdev       float64 `ini:"weight_init_stdev" yaml:"weight_init_stdev"`
	WeightMin             float64 `ini:"weight_min" yaml:"weight_min"`
	WeightMax             float64 `ini:"weight_max" yaml:"weight_max"`
	BiasMin               float64 `ini:"bias_min" yaml:"bias_min"`
	BiasMax               float64 `ini:"bias_max" yaml:"bias_max"`
	DisabledInheritProb   float64 `ini:"disabled_inherit_prob" yaml:"disabled_inherit_prob"`
	MaxConnectionAttempts int     `ini:"max_connection_attempts" yaml:"max_connection_attempts"`
}

// BodyConfig bounds the body genes. Every numeric gene has a [min, max] range
// that mutation magnitudes are scaled against.
type BodyConfig struct {
	MinNodes   int `ini:"min_nodes" yaml:"min_nodes"`
	MaxNodes   int `ini:"max_nodes" yaml:"max_nodes"`
	MinMuscles int `ini:"min_muscles" yaml:"min_muscles"`
	MaxMuscles int `ini:"max_muscles" yaml:"max_muscles"`

	PositionMin            float64 `ini:"position_min" yaml:"position_min"`
	PositionMax            float64 `ini:"position_max" yaml:"position_max"`
	SizeMin                float64 `ini:"size_min" yaml:"size_min"`
	SizeMax                float64 `ini:"size_max" yaml:"size_max"`
	FrictionMin            float64 `ini:"friction_min" yaml:"friction_min"`
	FrictionMax            float64 `ini:"friction_max" yaml:"friction_max"`
	RestLengthMin          float64 `ini:"rest_length_min" yaml:"rest_length_min"`
	RestLengthMax          float64 `ini:"rest_length_max" yaml:"rest_length_max"`
	StiffnessMin           float64 `ini:"stiffness_min" yaml:"stiffness_min"`
	StiffnessMax           float64 `ini:"stiffness_max" yaml:"stiffness_max"`
	DampingMin             float64 `ini:"damping_min" yaml:"damping_min"`
	DampingMax             float64 `ini:"damping_max" yaml:"damping_max"`
	FrequencyMin           float64 `ini:"frequency_min" yaml:"frequency_min"`
	FrequencyMax           float64 `ini:"frequency_max" yaml:"frequency_max"`
	AmplitudeMin           float64 `ini:"amplitude_min" yaml:"amplitude_min"`
	AmplitudeMax           float64 `ini:"amplitude_max" yaml:"amplitude_max"`
	PhaseMin               float64 `ini:"phase_min" yaml:"phase_min"`
	PhaseMax               float64 `ini:"phase_max" yaml:"phase_max"`
	FrequencyMultiplierMin float64 `ini:"frequency_multiplier_min" yaml:"frequency_multiplier_min"`
	FrequencyMultiplierMax float64 `ini:"frequency_multiplier_max" yaml:"frequency_multiplier_max"`
	SensingBiasMin         float64 `ini:"sensing_bias_min" yaml:"sensing_bias_min"`
	SensingBiasMax         float64 `ini:"sensing_bias_max" yaml:"sensing_bias_max"`
	SensingProb            float64 `ini:"sensing_prob" yaml:"sensing_prob"` // chance a new muscle carries sensing biases
}

// ControllerConfig selects and shapes the controller attached to new genomes.
type ControllerConfig struct {
	Kind       string `ini:"kind" yaml:"kind"` // none, fixed or neat
	Inputs     int    `ini:"inputs" yaml:"inputs"`
	Hidden     int    `ini:"hidden" yaml:"hidden"` // fixed topology only
	Outputs    int    `ini:"outputs" yaml:"outputs"`
	Activation string `ini:"activation" yaml:"activation"`
}

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64
	Max float64
}

// Width returns Max - Min.
func (r Range) Width() float64 { return r.Max - r.Min }

// Clamp restricts v to the range.
func (r Range) Clamp(v float64) float64 { return clamp(v, r.Min, r.Max) }

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Population: PopulationConfig{PopulationSize: 50},
		Selection: SelectionConfig{
			Mode:             ModeSpeciation,
			CullPercentage:   0.5,
			Elitism:          1,
			CrossoverRate:    0.5,
			ParentSelection:  ParentsRank,
			TournamentSize:   3,
			MaxParentRetries: 10,
			SharingSigma:     3.0,
			SharingAlpha:     1.0,
		},
		Speciation: SpeciationConfig{
			CompatibilityThreshold:   3.0,
			MinSpeciesSize:           2,
			ExcessCoefficient:        1.0,
			DisjointCoefficient:      1.0,
			WeightCoefficient:        0.4,
			NormalizeBySize:          true,
			BodyNodeCoefficient:      1.0,
			BodyMuscleCoefficient:    0.5,
			BodyFrequencyCoefficient: 1.0,
		},
		Mutation: MutationConfig{
			Rate:           0.1,
			Magnitude:      0.2,
			StructuralRate: 0.1,
			AdaptiveWindow: 5,
			MinRate:        0.01,
			MaxRate:        0.5,
		},
		NEAT: NEATConfig{
			MaxHiddenNeurons:      16,
			AddConnectionProb:     0.1,
			AddNodeProb:           0.05,
			ToggleProb:            0.02,
			DisableProb:           0.6,
			WeightMutateRate:      0.8,
			WeightReplaceRate:     0.1,
			WeightMutatePower:     0.5,
			WeightInitStdev:       1.0,
			WeightMin:             -4.0,
			WeightMax:             4.0,
			BiasMin:               -4.0,
			BiasMax:               4.0,
			DisabledInheritProb:   0.75,
			MaxConnectionAttempts: 20,
		},
		Body: BodyConfig{
			MinNodes:               3,
			MaxNodes:               12,
			MinMuscles:             2,
			MaxMuscles:             24,
			PositionMin:            -5,
			PositionMax:            5,
			SizeMin:                0.2,
			SizeMax:                1.0,
			FrictionMin:            0.1,
			FrictionMax:            1.0,
			RestLengthMin:          0.5,
			RestLengthMax:          4.0,
			StiffnessMin:           10,
			StiffnessMax:           200,
			DampingMin:             0.1,
			DampingMax:             5,
			FrequencyMin:           0.2,
			FrequencyMax:           3,
			AmplitudeMin:           0,
			AmplitudeMax:           0.5,
			PhaseMin:               0,
			PhaseMax:               2 * math.Pi,
			FrequencyMultiplierMin: 0.5,
			FrequencyMultiplierMax: 2.0,
			SensingBiasMin:         -1,
			SensingBiasMax:         1,
			SensingProb:            0.3,
		},
		Controller: ControllerConfig{
			Kind:       ControllerNEAT.String(),
			Inputs:     4,
			Hidden:     8,
			Outputs:    4,
			Activation: "tanh",
		},
	}
}

// LoadConfig loads configuration from an INI (.ini, .cfg) or YAML (.yaml,
// .yml) file on top of DefaultConfig, then validates it.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
		}
	default:
		if err := loadINI(filePath, config); err != nil {
			return nil, err
		}
	}

	config.clean()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadINI(filePath string, config *Config) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, filePath)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	sections := []struct {
		name   string
		target any
	}{
		{"Population", &config.Population},
		{"Selection", &config.Selection},
		{"Speciation", &config.Speciation},
		{"Mutation", &config.Mutation},
		{"NEAT", &config.NEAT},
		{"Body", &config.Body},
		{"Controller", &config.Controller},
	}
	for _, s := range sections {
		if !cfg.HasSection(s.name) {
			continue
		}
		if err := cfg.Section(s.name).MapTo(s.target); err != nil {
			return fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}
	return nil
}

// clean trims inline comments and whitespace from string options.
func (c *Config) clean() {
	c.Selection.Mode = strings.ToLower(cleanIniString(c.Selection.Mode))
	c.Selection.ParentSelection = strings.ToLower(cleanIniString(c.Selection.ParentSelection))
	c.Controller.Kind = strings.ToLower(cleanIniString(c.Controller.Kind))
	c.Controller.Activation = strings.ToLower(cleanIniString(c.Controller.Activation))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks every option. Out-of-range values are reported, never clamped.
func (c *Config) Validate() error {
	if c.Population.PopulationSize <= 0 {
		return invalid("population_size must be positive")
	}

	s := c.Selection
	switch s.Mode {
	case ModeTruncation, ModeSpeciation, ModeSharing:
	default:
		return invalid("invalid selection mode '%s', must be one of 'truncation', 'speciation', 'sharing'", s.Mode)
	}
	switch s.ParentSelection {
	case ParentsRank, ParentsTournament:
	default:
		return invalid("invalid parent_selection '%s', must be 'rank' or 'tournament'", s.ParentSelection)
	}
	if s.CullPercentage < 0 || s.CullPercentage >= 1 {
		return invalid("cull_percentage must be in [0, 1)")
	}
	if s.Elitism < 0 {
		return invalid("elitism cannot be negative")
	}
	if s.TournamentSize <= 0 {
		return invalid("tournament_size must be positive")
	}
	if s.MaxParentRetries < 0 {
		return invalid("max_parent_retries cannot be negative")
	}
	if s.SharingSigma <= 0 {
		return invalid("sharing_sigma must be positive")
	}
	if s.SharingAlpha <= 0 {
		return invalid("sharing_alpha must be positive")
	}

	sp := c.Speciation
	if sp.CompatibilityThreshold < 0 {
		return invalid("compatibility_threshold cannot be negative")
	}
	if sp.MinSpeciesSize < 0 {
		return invalid("min_species_size cannot be negative")
	}
	for name, v := range map[string]float64{
		"excess_coefficient":         sp.ExcessCoefficient,
		"disjoint_coefficient":       sp.DisjointCoefficient,
		"weight_coefficient":         sp.WeightCoefficient,
		"body_node_coefficient":      sp.BodyNodeCoefficient,
		"body_muscle_coefficient":    sp.BodyMuscleCoefficient,
		"body_frequency_coefficient": sp.BodyFrequencyCoefficient,
	} {
		if v < 0 {
			return invalid("%s cannot be negative", name)
		}
	}

	m := c.Mutation
	if m.Magnitude < 0 {
		return invalid("mutation magnitude cannot be negative")
	}
	if m.AdaptiveWindow <= 0 {
		return invalid("adaptive_window must be positive")
	}
	if m.MinRate > m.MaxRate {
		return invalid("min_rate cannot be greater than max_rate")
	}

	n := c.NEAT
	if n.MaxHiddenNeurons < 0 {
		return invalid("max_hidden_neurons cannot be negative")
	}
	if n.MaxConnectionAttempts <= 0 {
		return invalid("max_connection_attempts must be positive")
	}
	if n.WeightMutatePower < 0 || n.WeightInitStdev < 0 {
		return invalid("weight_mutate_power and weight_init_stdev cannot be negative")
	}

	for name, v := range map[string]float64{
		"crossover_rate":        s.CrossoverRate,
		"rate":                  m.Rate,
		"structural_rate":       m.StructuralRate,
		"min_rate":              m.MinRate,
		"max_rate":              m.MaxRate,
		"add_connection_prob":   n.AddConnectionProb,
		"add_node_prob":         n.AddNodeProb,
		"toggle_prob":           n.ToggleProb,
		"disable_prob":          n.DisableProb,
		"weight_mutate_rate":    n.WeightMutateRate,
		"weight_replace_rate":   n.WeightReplaceRate,
		"disabled_inherit_prob": n.DisabledInheritProb,
		"sensing_prob":          c.Body.SensingProb,
	} {
		if v < 0 || v > 1 {
			return invalid("%s must be between 0 and 1", name)
		}
	}

	if n.WeightMax < n.WeightMin {
		return invalid("weight_max cannot be less than weight_min")
	}
	if n.BiasMax < n.BiasMin {
		return invalid("bias_max cannot be less than bias_min")
	}

	b := c.Body
	if b.MinNodes < 2 {
		return invalid("min_nodes must be at least 2")
	}
	if b.MaxNodes < b.MinNodes {
		return invalid("max_nodes cannot be less than min_nodes")
	}
	if b.MinMuscles < 1 {
		return invalid("min_muscles must be at least 1")
	}
	if b.MaxMuscles < b.MinMuscles {
		return invalid("max_muscles cannot be less than min_muscles")
	}
	if b.MinMuscles > maxPairs(b.MinNodes) {
		return invalid("min_muscles (%d) cannot be reached with min_nodes (%d)", b.MinMuscles, b.MinNodes)
	}
	for name, r := range b.ranges() {
		if r.Max < r.Min {
			return invalid("%s_max cannot be less than %s_min", name, name)
		}
	}

	ctl := c.Controller
	kind, err := ParseControllerKind(ctl.Kind)
	if err != nil {
		return invalid("%v", err)
	}
	if kind != ControllerNone {
		if ctl.Inputs <= 0 || ctl.Outputs <= 0 {
			return invalid("controller inputs and outputs must be positive")
		}
		if kind == ControllerFixed && ctl.Hidden <= 0 {
			return invalid("fixed controller hidden size must be positive")
		}
		if _, err := GetActivation(ctl.Activation); err != nil {
			return invalid("%v", err)
		}
	}
	return nil
}

func (b BodyConfig) ranges() map[string]Range {
	return map[string]Range{
		"position":             b.Position(),
		"size":                 b.Size(),
		"friction":             b.Friction(),
		"rest_length":          b.RestLength(),
		"stiffness":            b.Stiffness(),
		"damping":              b.Damping(),
		"frequency":            b.Frequency(),
		"amplitude":            b.Amplitude(),
		"phase":                b.Phase(),
		"frequency_multiplier": b.FrequencyMultiplier(),
		"sensing_bias":         b.SensingBias(),
	}
}

func (b BodyConfig) Position() Range   { return Range{b.PositionMin, b.PositionMax} }
func (b BodyConfig) Size() Range       { return Range{b.SizeMin, b.SizeMax} }
func (b BodyConfig) Friction() Range   { return Range{b.FrictionMin, b.FrictionMax} }
func (b BodyConfig) RestLength() Range { return Range{b.RestLengthMin, b.RestLengthMax} }
func (b BodyConfig) Stiffness() Range  { return Range{b.StiffnessMin, b.StiffnessMax} }
func (b BodyConfig) Damping() Range    { return Range{b.DampingMin, b.DampingMax} }
func (b BodyConfig) Frequency() Range  { return Range{b.FrequencyMin, b.FrequencyMax} }
func (b BodyConfig) Amplitude() Range  { return Range{b.AmplitudeMin, b.AmplitudeMax} }
func (b BodyConfig) Phase() Range      { return Range{b.PhaseMin, b.PhaseMax} }
func (b BodyConfig) SensingBias() Range {
	return Range{b.SensingBiasMin, b.SensingBiasMax}
}
func (b BodyConfig) FrequencyMultiplier() Range {
	return Range{b.FrequencyMultiplierMin, b.FrequencyMultiplierMax}
}

// WeightRange returns the NEAT weight bounds.
func (n NEATConfig) WeightRange() Range { return Range{n.WeightMin, n.WeightMax} }

// BiasRange returns the NEAT bias bounds.
func (n NEATConfig) BiasRange() Range { return Range{n.BiasMin, n.BiasMax} }

// maxPairs is the number of distinct unordered node pairs.
func maxPairs(nodes int) int {
	return nodes * (nodes - 1) / 2
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
