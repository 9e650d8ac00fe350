// Package evolve implements the evolutionary engine behind simulated
// creatures: genomes made of a spring-and-muscle body plus an optional neural
// controller, and the operators that select, recombine and mutate them.
//
// Two controller families are supported. A FixedTopology controller is a
// single hidden layer whose weights are recombined index by index. A
// NEATGenome grows its topology at runtime; its genes carry innovation ids
// issued by an InnovationCounter so differently shaped networks can still be
// aligned for crossover and compared for speciation. NEAT networks stay
// strictly feed-forward: no operator ever produces a cycle among enabled
// connections.
//
// Physics is not part of this package. The caller simulates each genome and
// hands back one fitness value per genome.
//
// Basic usage:
//
//	config, err := evolve.LoadConfig("path/to/config.ini")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	engine, err := evolve.NewEngine(config, evolve.WithSeed(1))
//	if err != nil {
//		log.Fatalf("Error creating engine: %v", err)
//	}
//
//	genomes, _ := engine.GeneratePopulation(config.Population.PopulationSize)
//	for i := 0; i < 100; i++ {
//		evaluations := simulate(genomes) // one Evaluation per genome
//		next, stats, err := engine.Step(genomes, evaluations, nil)
//		if err != nil {
//			log.Fatalf("Error running generation: %v", err)
//		}
//		genomes = next
//		fmt.Printf("generation %d best %.3f\n", stats.Generation, stats.Best)
//	}
package evolve
