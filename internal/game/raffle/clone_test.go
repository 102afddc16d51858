package raffle_test

import (
	"testing"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/raffle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClone_SeededClonesDrawIdentically(t *testing.T) {
	e := seededEngine(t, 314)
	require.NoError(t, e.AddItem(raffle.Item{ID: "a", BaseWeight: 1}))
	require.NoError(t, e.AddItem(raffle.Item{ID: "b", BaseWeight: 2}))
	require.NoError(t, e.AddItem(raffle.Item{ID: "c", BaseWeight: 4}))
	require.NoError(t, e.SetPity("a", raffle.PityConfig{Threshold: 1, Increment: 1, Cap: 3}))

	// Burn part of the stream so the clone must pick up mid-sequence.
	for i := 0; i < 7; i++ {
		_, err := e.DrawOne(raffle.DrawOptions{})
		require.NoError(t, err)
	}

	clone := e.Clone()
	for i := 0; i < 20; i++ {
		a, err := e.DrawOne(raffle.DrawOptions{})
		require.NoError(t, err)
		b, err := clone.DrawOne(raffle.DrawOptions{})
		require.NoError(t, err)
		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, a.ID, b.ID, "draw %d", i)
	}
}

func TestClone_StateIsIndependent(t *testing.T) {
	e := seededEngine(t, 1)
	require.NoError(t, e.AddItem(raffle.Item{
		ID: "a", BaseWeight: 1, Groups: []string{"g"}, Meta: map[string]any{"k": "v"},
	}))
	require.NoError(t, e.SetPity("a", raffle.PityConfig{Threshold: 1, Increment: 1, Cap: 3}))

	clone := e.Clone()

	require.NoError(t, clone.AddItem(raffle.Item{ID: "b", BaseWeight: 1}))
	require.NoError(t, clone.SetBaseWeight("a", 50))
	require.NoError(t, clone.ExcludeItem("a"))
	require.NoError(t, clone.AddToGroup("g2", "a"))
	require.True(t, clone.RemovePity("a"))

	assert.Equal(t, 1, e.Len())
	got, ok := e.GetItem("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, got.BaseWeight)
	assert.False(t, e.HasExclusion("a"))
	assert.False(t, e.HasInGroup("g2", "a"))
	_, ok = e.PityOf("a")
	assert.True(t, ok)
}

func TestClone_MetadataIsDeepCopied(t *testing.T) {
	e := seededEngine(t, 1)
	require.NoError(t, e.AddItem(raffle.Item{ID: "a", BaseWeight: 1, Meta: map[string]any{"tags": []any{"x"}}}))

	clone := e.Clone()
	item, ok := clone.GetItem("a")
	require.True(t, ok)
	item.Meta["extra"] = true

	original, _ := e.GetItem("a")
	_, leaked := original.Meta["extra"]
	assert.False(t, leaked)
}

func TestClone_CarriesFrequenciesAndModifiers(t *testing.T) {
	e := newEngine(t, raffle.Options{RNG: &fixedSource{v: 0.0}})
	require.NoError(t, e.AddItem(raffle.Item{ID: "a", BaseWeight: 1}))
	_, err := e.AddTemporaryModifier(func(weights map[string]float64, ctx *raffle.Context) map[string]float64 {
		return map[string]float64{"a": 1}
	}, 5)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := e.DrawOne(raffle.DrawOptions{})
		require.NoError(t, err)
	}

	clone := e.Clone()
	assert.Equal(t, 2, clone.Frequency("a"))
	infos := clone.Modifiers()
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].UsesLeft)

	// Consuming uses on the clone leaves the original's count alone.
	_, err = clone.DrawOne(raffle.DrawOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, clone.Modifiers()[0].UsesLeft)
	assert.Equal(t, 3, e.Modifiers()[0].UsesLeft)
}

func TestClone_SubscriptionsNotCloned(t *testing.T) {
	e := newEngine(t, raffle.Options{RNG: &fixedSource{v: 0.0}})
	require.NoError(t, e.AddItem(raffle.Item{ID: "a", BaseWeight: 1}))

	var calls int
	_, err := e.Events().On(raffle.EventDraw, func(args ...any) { calls++ })
	require.NoError(t, err)

	clone := e.Clone()
	_, err = clone.DrawOne(raffle.DrawOptions{})
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Zero(t, clone.Events().ListenerCount(raffle.EventDraw))
}

func TestClone_InjectedSourceIsShared(t *testing.T) {
	src := &seqSource{values: []float64{0.0, 0.9, 0.0}}
	e := newEngine(t, raffle.Options{RNG: src})
	require.NoError(t, e.AddItem(raffle.Item{ID: "a", BaseWeight: 1}))
	require.NoError(t, e.AddItem(raffle.Item{ID: "b", BaseWeight: 1}))

	clone := e.Clone()

	res, err := e.DrawOne(raffle.DrawOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a", res.ID)

	// The clone's draw consumes the next value from the shared stream.
	res, err = clone.DrawOne(raffle.DrawOptions{})
	require.NoError(t, err)
	assert.Equal(t, "b", res.ID)
}

// TestClone_Property_FutureDrawsMatch clones at arbitrary stream depths and
// checks the continuations agree.
func TestClone_Property_FutureDrawsMatch(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Int64().Draw(rt, "seed")
		burn := rapid.IntRange(0, 40).Draw(rt, "burn")

		e, err := raffle.New(raffle.Options{Seed: &seed})
		require.NoError(rt, err)
		require.NoError(rt, e.AddItem(raffle.Item{ID: "x", BaseWeight: 1}))
		require.NoError(rt, e.AddItem(raffle.Item{ID: "y", BaseWeight: 3}))

		for i := 0; i < burn; i++ {
			_, err := e.DrawOne(raffle.DrawOptions{})
			require.NoError(rt, err)
		}

		clone := e.Clone()
		for i := 0; i < 10; i++ {
			a, err := e.DrawOne(raffle.DrawOptions{})
			require.NoError(rt, err)
			b, err := clone.DrawOne(raffle.DrawOptions{})
			require.NoError(rt, err)
			require.Equal(rt, a.ID, b.ID)
		}
	})
}
