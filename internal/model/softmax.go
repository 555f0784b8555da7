package model

import "math"

// Normalize converts raw scores into a probability distribution with a
// max-subtracted softmax, so extreme logits neither overflow nor vanish.
//
// Non-finite scores still yield a distribution: +Inf entries share all of
// the mass equally, NaN entries get none, and a vector with no usable score
// becomes uniform.
func Normalize(raw RawScores) Probabilities {
	if len(raw) == 0 {
		return Probabilities{}
	}

	maxVal := math.Inf(-1)
	for _, v := range raw {
		if f := float64(v); !math.IsNaN(f) && f > maxVal {
			maxVal = f
		}
	}

	probs := make(Probabilities, len(raw))
	switch {
	case math.IsInf(maxVal, 1):
		for i, v := range raw {
			if math.IsInf(float64(v), 1) {
				probs[i] = 1
			}
		}
	case math.IsInf(maxVal, -1):
		for i := range probs {
			probs[i] = 1
		}
	default:
		for i, v := range raw {
			if f := float64(v); !math.IsNaN(f) {
				probs[i] = math.Exp(f - maxVal)
			}
		}
	}

	var sum float64
	for _, p := range probs {
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Argmax returns the index of the largest value, preferring the lowest index
// on ties, or -1 for an empty slice. NaN never wins unless every value is NaN,
// in which case the first index is returned.
func Argmax[T float32 | float64](values []T) int {
	if len(values) == 0 {
		return -1
	}
	best := -1
	for i, v := range values {
		if v != v {
			continue
		}
		if best < 0 || v > values[best] {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
