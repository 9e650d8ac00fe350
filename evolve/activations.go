package evolve

import (
	"fmt"
	"math"
	"sort"
)

// ActivationFunc maps a neuron's summed input to its output.
type ActivationFunc func(x float64) float64

// Activations maps function names to activation functions so configuration
// can name them.
var Activations = map[string]ActivationFunc{
	"sigmoid":  Sigmoid,
	"tanh":     math.Tanh,
	"relu":     ReLU,
	"identity": Identity,
	"clamped":  Clamped,
	"gaussian": Gaussian,
	"sine":     math.Sin,
	"abs":      math.Abs,
	"hat":      Hat,
}

// GetActivation retrieves an activation function by name.
func GetActivation(name string) (ActivationFunc, error) {
	if fn, ok := Activations[name]; ok {
		return fn, nil
	}
	names := make([]string, 0, len(Activations))
	for n := range Activations {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown activation function '%s' (known: %v)", name, names)
}

// Sigmoid is the steepened logistic curve used by NEAT (k = 4.9).
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-4.9*clamp(x, -60, 60)))
}

// ReLU (Rectified Linear Unit) activation function.
func ReLU(x float64) float64 {
	return math.Max(0, x)
}

// Identity activation function (linear).
func Identity(x float64) float64 {
	return x
}

// Clamped clamps output between -1 and 1.
func Clamped(x float64) float64 {
	return clamp(x, -1.0, 1.0)
}

// Gaussian activation function.
func Gaussian(x float64) float64 {
	return math.Exp(-x * x / 2.0)
}

// Hat is a triangular pulse centered at 0.
func Hat(x float64) float64 {
	return math.Max(0.0, 1.0-math.Abs(x))
}
