package raffle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func distEngine(t *testing.T, norm Normalization, weights map[string]float64, order ...string) *Engine {
	t.Helper()
	e, err := New(Options{Normalization: norm})
	require.NoError(t, err)
	for _, id := range order {
		require.NoError(t, e.AddItem(Item{ID: id, BaseWeight: weights[id]}))
	}
	return e
}

func TestDistribution_Relative(t *testing.T) {
	e := distEngine(t, NormalizationRelative,
		map[string]float64{"a": 1, "b": 3}, "a", "b")

	entries := e.distribution(map[string]float64{"a": 1, "b": 3})
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].id)
	assert.InDelta(t, 0.25, entries[0].prob, 1e-12)
	assert.Equal(t, "b", entries[1].id)
	assert.InDelta(t, 0.75, entries[1].prob, 1e-12)
}

func TestDistribution_SoftmaxPreservesOrderOfPreference(t *testing.T) {
	e := distEngine(t, NormalizationSoftmax,
		map[string]float64{"a": 1, "b": 2, "c": 3}, "a", "b", "c")

	entries := e.distribution(map[string]float64{"a": 1, "b": 2, "c": 3})
	require.Len(t, entries, 3)
	assert.Less(t, entries[0].prob, entries[1].prob)
	assert.Less(t, entries[1].prob, entries[2].prob)

	var sum float64
	for _, entry := range entries {
		sum += entry.prob
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestDistribution_SoftmaxLargeWeightsStayFinite(t *testing.T) {
	e := distEngine(t, NormalizationSoftmax,
		map[string]float64{"a": 1e4, "b": 1e4 + 1}, "a", "b")

	entries := e.distribution(map[string]float64{"a": 1e4, "b": 1e4 + 1})
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.False(t, math.IsNaN(entry.prob))
		assert.False(t, math.IsInf(entry.prob, 0))
	}
	// exp(0)/(exp(0)+exp(1)) for the smaller of two weights one apart.
	assert.InDelta(t, 1/(1+math.E), entries[0].prob, 1e-12)
}

func TestDistribution_EmptyWeights(t *testing.T) {
	e := distEngine(t, NormalizationRelative, nil)
	assert.Nil(t, e.distribution(map[string]float64{}))
}

func TestDistribution_InsertionOrder(t *testing.T) {
	e := distEngine(t, NormalizationRelative,
		map[string]float64{"z": 1, "m": 1, "a": 1}, "z", "m", "a")

	entries := e.distribution(map[string]float64{"a": 1, "m": 1, "z": 1})
	require.Len(t, entries, 3)
	assert.Equal(t, "z", entries[0].id)
	assert.Equal(t, "m", entries[1].id)
	assert.Equal(t, "a", entries[2].id)
}

func TestSample_Boundaries(t *testing.T) {
	entries := []weightedEntry{
		{id: "a", prob: 0.25},
		{id: "b", prob: 0.25},
		{id: "c", prob: 0.5},
	}

	assert.Equal(t, 0, sample(entries, 0))
	assert.Equal(t, 0, sample(entries, 0.25), "cumulative boundary belongs to the earlier entry")
	assert.Equal(t, 1, sample(entries, 0.3))
	assert.Equal(t, 2, sample(entries, 0.51))
	assert.Equal(t, 2, sample(entries, 0.999999))
}

func TestSample_FallsBackToLastEntry(t *testing.T) {
	// Probabilities that round short of 1 still resolve to the tail.
	entries := []weightedEntry{
		{id: "a", prob: 0.3},
		{id: "b", prob: 0.3},
		{id: "c", prob: 0.3999999999},
	}
	assert.Equal(t, 2, sample(entries, 0.99999999999))
}

// TestDistribution_Property_SumsToOne checks both normalizations against
// arbitrary positive weight sets.
func TestDistribution_Property_SumsToOne(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		norm := NormalizationRelative
		if rapid.Bool().Draw(rt, "softmax") {
			norm = NormalizationSoftmax
		}

		e, err := New(Options{Normalization: norm})
		require.NoError(rt, err)
		weights := make(map[string]float64, n)
		for i := 0; i < n; i++ {
			id := string(rune('a' + i))
			w := rapid.Float64Range(1e-3, 1e3).Draw(rt, id)
			require.NoError(rt, e.AddItem(Item{ID: id, BaseWeight: w}))
			weights[id] = w
		}

		entries := e.distribution(weights)
		require.Len(rt, entries, n)
		var sum float64
		for _, entry := range entries {
			assert.GreaterOrEqual(rt, entry.prob, 0.0)
			sum += entry.prob
		}
		assert.InDelta(rt, 1.0, sum, 1e-9)
	})
}
