package evolve

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives the statistics of every completed generation.
type Recorder interface {
	ObserveGeneration(stats *GenerationStats)
}

type nopRecorder struct{}

func (nopRecorder) ObserveGeneration(*GenerationStats) {}

// PrometheusRecorder exports generation statistics as Prometheus metrics.
type PrometheusRecorder struct {
	generation   prometheus.Gauge
	fitness      *prometheus.GaugeVec
	species      prometheus.Gauge
	mutationRate prometheus.Gauge
	offspring    prometheus.Counter
	crossovers   prometheus.Counter
	clones       prometheus.Counter
}

// NewPrometheusRecorder creates the metrics under namespace and registers
// them on reg.
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "generation",
			Help: "Index of the last completed generation.",
		}),
		fitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fitness",
			Help: "Fitness of the evaluated population by statistic.",
		}, []string{"stat"}),
		species: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "species",
			Help: "Number of species in the evaluated population.",
		}),
		mutationRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mutation_rate",
			Help: "Mutation rate applied to the offspring.",
		}),
		offspring: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "offspring_total",
			Help: "Offspring produced.",
		}),
		crossovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "crossovers_total",
			Help: "Offspring produced by crossover.",
		}),
		clones: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "clones_total",
			Help: "Offspring produced by cloning a single parent.",
		}),
	}
	for _, c := range []prometheus.Collector{
		r.generation, r.fitness, r.species, r.mutationRate, r.offspring, r.crossovers, r.clones,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveGeneration implements Recorder.
func (r *PrometheusRecorder) ObserveGeneration(s *GenerationStats) {
	r.generation.Set(float64(s.Generation))
	r.fitness.With(prometheus.Labels{"stat": "best"}).Set(s.Best)
	r.fitness.With(prometheus.Labels{"stat": "mean"}).Set(s.Mean)
	r.fitness.With(prometheus.Labels{"stat": "median"}).Set(s.Median)
	r.fitness.With(prometheus.Labels{"stat": "worst"}).Set(s.Worst)
	r.species.Set(float64(len(s.Species)))
	r.mutationRate.Set(s.MutationRate)
	r.offspring.Add(float64(s.Offspring))
	r.crossovers.Add(float64(s.Crossovers))
	r.clones.Add(float64(s.Clones))
}
