// Package sim runs Monte Carlo simulations over a raffle engine. Each trial
// works on a clone of the engine with its own deterministic seed, so a
// simulation never mutates the engine it measures and identical parameters
// reproduce identical statistics.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/raffle"
)

// ErrInvalidArgument reports malformed simulation parameters.
var ErrInvalidArgument = errors.New("invalid argument")

// Params describes one simulation run.
type Params struct {
	// TargetID is the item the trials draw toward.
	TargetID string `json:"targetId"`
	// Trials is the number of independent trials.
	Trials int `json:"trials"`
	// MaxDraws bounds one trial. A trial that never sees the target records
	// MaxDraws as its sample.
	MaxDraws int `json:"maxDraws"`
	// Seed derives the per-trial seeds: trial i runs on Seed + i.
	Seed int64 `json:"seed"`
}

// Stats summarizes the draws-until-target samples of a run.
type Stats struct {
	Trials   int     `json:"trials"`
	Hits     int     `json:"hits"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"stddev"`
	P50      float64 `json:"p50"`
	P90      float64 `json:"p90"`
	P99      float64 `json:"p99"`
	// Samples holds the raw per-trial draw counts for callers that build
	// histograms.
	Samples []int `json:"-"`
}

// Run executes p.Trials independent trials against clones of the engine and
// returns the collected statistics. The engine itself is never drawn from
// or mutated.
//
// Precondition: engine is non-nil, TargetID is non-empty, Trials and
// MaxDraws are >= 1.
func Run(engine *raffle.Engine, p Params) (Stats, error) {
	if engine == nil {
		return Stats{}, fmt.Errorf("sim: Run: engine must not be nil: %w", ErrInvalidArgument)
	}
	if p.TargetID == "" {
		return Stats{}, fmt.Errorf("sim: Run: target id must not be empty: %w", ErrInvalidArgument)
	}
	if p.Trials < 1 {
		return Stats{}, fmt.Errorf("sim: Run: trials must be >= 1, got %d: %w", p.Trials, ErrInvalidArgument)
	}
	if p.MaxDraws < 1 {
		return Stats{}, fmt.Errorf("sim: Run: max draws must be >= 1, got %d: %w", p.MaxDraws, ErrInvalidArgument)
	}

	samples := make([]int, p.Trials)
	hits := 0
	for i := 0; i < p.Trials; i++ {
		trial := engine.Clone()
		trial.SetSeed(p.Seed + int64(i))
		draws, hit, err := runTrial(trial, p)
		if err != nil {
			return Stats{}, fmt.Errorf("sim: Run: trial %d: %w", i, err)
		}
		samples[i] = draws
		if hit {
			hits++
		}
	}

	stats := calcStats(samples)
	stats.Trials = p.Trials
	stats.Hits = hits
	return stats, nil
}

// runTrial draws on the clone until the target appears or the budget runs
// out. Earlier results thread through as draw history so ordering rules see
// the same context they would in live play.
func runTrial(trial *raffle.Engine, p Params) (int, bool, error) {
	var history []raffle.Result
	for d := 1; d <= p.MaxDraws; d++ {
		res, err := trial.DrawOne(raffle.DrawOptions{PreviousDraws: history})
		if err != nil {
			return 0, false, err
		}
		if res == nil {
			// An empty distribution cannot change between draws without a
			// selection, so the rest of the budget would stay empty too.
			return p.MaxDraws, false, nil
		}
		if res.ID == p.TargetID {
			return d, true, nil
		}
		history = append(history, *res)
	}
	return p.MaxDraws, false, nil
}

// calcStats computes mean, population variance, and linearly interpolated
// percentiles over integer samples.
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}

	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}
	variance := acc / float64(n)

	sorted := append([]int(nil), xs...)
	sort.Ints(sorted)
	percentile := func(p float64) float64 {
		if p <= 0 || n == 1 {
			return float64(sorted[0])
		}
		if p >= 1 {
			return float64(sorted[n-1])
		}
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i+1 >= n {
			return float64(sorted[i])
		}
		return float64(sorted[i])*(1-f) + float64(sorted[i+1])*f
	}

	return Stats{
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		P50:      percentile(0.50),
		P90:      percentile(0.90),
		P99:      percentile(0.99),
		Samples:  xs,
	}
}
