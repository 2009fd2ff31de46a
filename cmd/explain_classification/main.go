package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"safety-monitor/distress"
)

// Explains WHY a set of scores produces the verdict it does.
func main() {
	scream := flag.Float64("scream", 0, "Scream confidence")
	noise := flag.Float64("noise", 0, "Noise confidence")
	talking := flag.Float64("talking", 0, "Talking confidence")
	silence := flag.Float64("silence", 0, "Silence confidence")
	scenario := flag.String("scenario", "", "Use a preset instead of explicit scores (high, medium, low, none)")
	accel := flag.String("accel", "", "Accelerometer reading as x,y,z or a preset (normal, spike, movement)")
	keywords := flag.String("keywords", "", "Comma-separated transcript fragments")
	lat := flag.Float64("lat", math.NaN(), "Optional latitude")
	lon := flag.Float64("lon", math.NaN(), "Optional longitude")
	policyPath := flag.String("policy", "", "Optional YAML policy file")
	asJSON := flag.Bool("json", false, "Print the raw result as JSON")
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

	input := distress.AnalysisInput{
		Classification: distress.Classification{Scream: *scream, Noise: *noise, Talking: *talking, Silence: *silence},
	}
	if *scenario != "" {
		c, err := distress.Scenario(*scenario)
		if err != nil {
			log.Fatal(err)
		}
		input.Classification = c
	}
	if *accel != "" {
		reading, err := parseAccelerometer(*accel)
		if err != nil {
			log.Fatalf("invalid -accel: %v", err)
		}
		input.Accelerometer = &reading
	}
	if *keywords != "" {
		input.Keywords = strings.Split(*keywords, ",")
	}
	if !math.IsNaN(*lat) && !math.IsNaN(*lon) {
		input.Location = &distress.Location{Latitude: *lat, Longitude: *lon}
	}

	valid := engine.Validate(input.Classification)
	result := engine.Analyze(input)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatal(err)
		}
		return
	}

	c := input.Classification
	fmt.Println("=== Input ===")
	fmt.Printf("   scream=%.2f noise=%.2f talking=%.2f silence=%.2f (sum %.2f)\n", c.Scream, c.Noise, c.Talking, c.Silence, c.Sum())
	if valid {
		fmt.Println("   ✅ scores within [0,1]")
	} else {
		fmt.Println("   ❌ at least one score outside [0,1] (analyzed anyway)")
	}
	if input.Accelerometer != nil {
		a := input.Accelerometer
		fmt.Printf("   accelerometer magnitude=%.2f (spike > %.0f) L1=%.2f (movement > %.0f)\n",
			a.Magnitude(), policy.SpikeMagnitude, a.L1(), policy.MovementSum)
	}

	fmt.Println("\n=== Why ===")
	fmt.Printf("   %s\n", branch(policy, result))
	if result.KeywordDetected != "" {
		fmt.Printf("   keyword %q matched a distress phrase\n", result.KeywordDetected)
	}

	fmt.Println("\n=== Verdict ===")
	fmt.Printf("   level:    %s (detection=%v)\n", result.DistressLevel, result.Detection)
	fmt.Printf("   action:   %s\n", result.RecommendedAction)
	fmt.Printf("   user:     %s\n", result.MessageForUser)
	if result.MessageForEmergencyContacts != "" {
		fmt.Printf("   contacts: %s\n", result.MessageForEmergencyContacts)
	}
	fmt.Printf("   status:   %s\n", engine.Explain(result))
}

// branch names the classification rule that fired.
func branch(p distress.Policy, r distress.DetectionResult) string {
	switch r.DistressLevel {
	case distress.LevelHigh:
		return fmt.Sprintf("scream %.2f ≥ high threshold %.2f", r.ScreamConfidence, p.HighScreamThreshold)
	case distress.LevelMedium:
		return fmt.Sprintf("scream %.2f ≥ medium threshold %.2f", r.ScreamConfidence, p.MediumScreamThreshold)
	case distress.LevelLow:
		return fmt.Sprintf("noise %.2f ≥ %.2f together with an accelerometer spike", r.NoiseConfidence, p.UnusualNoiseThreshold)
	default:
		if r.NoiseConfidence >= p.UnusualNoiseThreshold {
			return fmt.Sprintf("noise %.2f is unusual but there was no accelerometer spike", r.NoiseConfidence)
		}
		return fmt.Sprintf("scream %.2f < %.2f and noise %.2f < %.2f", r.ScreamConfidence, p.MediumScreamThreshold, r.NoiseConfidence, p.UnusualNoiseThreshold)
	}
}

func parseAccelerometer(s string) (distress.AccelerometerReading, error) {
	if preset, err := distress.MockAccelerometer(s); err == nil {
		return preset, nil
	}
	var r distress.AccelerometerReading
	if _, err := fmt.Sscanf(s, "%g,%g,%g", &r.X, &r.Y, &r.Z); err != nil {
		return r, fmt.Errorf("want x,y,z or a preset name: %w", err)
	}
	return r, nil
}
