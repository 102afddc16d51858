// Package main provides a Monte Carlo simulator for draw tables. It reports
// how many draws a target item takes across independent seeded trials.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/raffle"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/sim"
)

func main() {
	tablePath := flag.String("table", "", "path to a draw table YAML file")
	target := flag.String("target", "", "item id the trials draw toward")
	trials := flag.Int("trials", 10000, "number of independent trials")
	maxDraws := flag.Int("max-draws", 1000, "draw budget per trial")
	seed := flag.Int64("seed", 1, "base seed; trial i runs on seed+i")
	asJSON := flag.Bool("json", false, "print statistics as JSON")
	flag.Parse()

	if *tablePath == "" || *target == "" {
		fmt.Fprintln(os.Stderr, "usage: simulate -table <file> -target <id> [-trials n] [-max-draws n] [-seed n] [-json]")
		os.Exit(1)
	}

	table, err := raffle.LoadTableFromFile(*tablePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	engine, err := table.Build(raffle.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	stats, err := sim.Run(engine, sim.Params{
		TargetID: *target,
		Trials:   *trials,
		MaxDraws: *maxDraws,
		Seed:     *seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("table %q, target %q: %d trials, %d hits in %s\n",
		table.Name, *target, stats.Trials, stats.Hits, time.Since(start).Round(time.Millisecond))
	fmt.Printf("draws until target: mean=%.2f stddev=%.2f p50=%.1f p90=%.1f p99=%.1f\n",
		stats.Mean, stats.StdDev, stats.P50, stats.P90, stats.P99)
}
