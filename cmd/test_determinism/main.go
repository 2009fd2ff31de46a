package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"
	"time"

	"safety-monitor/distress"
)

// Runs every preset through the engine repeatedly and checks that all runs
// agree on everything except the timestamp.
func main() {
	runs := flag.Int("n", 100, "Runs per scenario")
	policyPath := flag.String("policy", "", "Optional YAML policy file")
	flag.Parse()

	policy := distress.DefaultPolicy()
	if *policyPath != "" {
		p, err := distress.LoadPolicy(*policyPath)
		if err != nil {
			log.Fatalf("failed to load policy: %v", err)
		}
		policy = p
	}
	engine := distress.NewEngine(policy)

	loc := &distress.Location{Latitude: 40.7128, Longitude: -74.0060}
	allIdentical := true

	for _, name := range distress.ScenarioNames() {
		for _, variant := range []struct{ spike, keyword bool }{{false, false}, {true, false}, {false, true}, {true, true}} {
			input, err := distress.BuildScenarioInput(name, variant.spike, variant.keyword, loc)
			if err != nil {
				log.Fatalf("build %s: %v", name, err)
			}

			first := stripTimestamp(engine.Analyze(input))
			for i := 1; i < *runs; i++ {
				got := stripTimestamp(engine.Analyze(input))
				if !reflect.DeepEqual(first, got) {
					allIdentical = false
					fmt.Printf("❌ %s spike=%v keyword=%v differs on run %d:\n   %+v\n   %+v\n",
						name, variant.spike, variant.keyword, i+1, first, got)
					break
				}
			}
			fmt.Printf("   %-6s spike=%-5v keyword=%-5v → %s\n", name, variant.spike, variant.keyword, first.DistressLevel)
		}
	}

	fmt.Println("\n=== Determinism Check ===")
	if !allIdentical {
		fmt.Println("❌ Engine output is NON-DETERMINISTIC")
		os.Exit(1)
	}
	fmt.Printf("✅ All %d runs per input produced IDENTICAL verdicts\n", *runs)
}

func stripTimestamp(r distress.DetectionResult) distress.DetectionResult {
	r.Timestamp = time.Time{}
	return r
}
