package raffle

import "math"

// weightedEntry is one normalized distribution slot.
type weightedEntry struct {
	id   string
	prob float64
}

// distribution normalizes working weights into probabilities, ordered by
// item insertion. Returns nil when no item survived the pipeline.
//
// Postcondition: probabilities sum to 1 up to floating-point error.
func (e *Engine) distribution(weights map[string]float64) []weightedEntry {
	if len(weights) == 0 {
		return nil
	}
	entries := make([]weightedEntry, 0, len(weights))

	switch e.normalization {
	case NormalizationSoftmax:
		// Max-shifted exponentials keep the transform overflow-safe.
		maxW := math.Inf(-1)
		for _, it := range e.items {
			if w, ok := weights[it.ID]; ok && w > maxW {
				maxW = w
			}
		}
		var sum float64
		for _, it := range e.items {
			if w, ok := weights[it.ID]; ok {
				exp := math.Exp(w - maxW)
				entries = append(entries, weightedEntry{id: it.ID, prob: exp})
				sum += exp
			}
		}
		for i := range entries {
			entries[i].prob /= sum
		}
	default: // NormalizationRelative
		var sum float64
		for _, it := range e.items {
			if w, ok := weights[it.ID]; ok {
				entries = append(entries, weightedEntry{id: it.ID, prob: w})
				sum += w
			}
		}
		for i := range entries {
			entries[i].prob /= sum
		}
	}
	return entries
}

// sample walks the distribution in order, accumulating probability, and
// returns the index of the first entry whose cumulative probability reaches
// r. Floating-point shortfall at the tail falls back to the last entry.
//
// Precondition: len(entries) > 0 and r in [0, 1).
func sample(entries []weightedEntry, r float64) int {
	acc := 0.0
	for i, entry := range entries {
		acc += entry.prob
		if r <= acc {
			return i
		}
	}
	return len(entries) - 1
}
