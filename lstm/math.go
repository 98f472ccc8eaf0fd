package lstm

import "math"

// softmaxFloats converts raw scores to probabilities, shifting by the max
// for numerical stability.
func softmaxFloats(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmaxFloats returns the index of the highest probability: pure greedy
// decoding, no temperature or sampling randomness.
func argmaxFloats(probs []float64) int {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best
}
