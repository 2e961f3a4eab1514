// Package testutil provides deterministic signals for tests and benchmarks.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a sine wave of freqHz sampled at sampleRate.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// PeriodicSine generates a sine whose period is exactly period samples. One
// period is computed and then repeated, so samples one period apart are
// bitwise identical.
func PeriodicSine(period int, amplitude float64, length int) []float64 {
	cycle := make([]float64, period)
	for i := range cycle {
		cycle[i] = amplitude * math.Sin(2*math.Pi*float64(i)/float64(period))
	}
	out := make([]float64, length)
	for i := range out {
		out[i] = cycle[i%period]
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Alternating generates +amplitude, -amplitude, +amplitude, ...
func Alternating(amplitude float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		if i%2 == 0 {
			out[i] = amplitude
		} else {
			out[i] = -amplitude
		}
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}
