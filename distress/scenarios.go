package distress

import (
	"fmt"
	"sort"
)

// Preset classifications used to drive the engine without a live classifier.
var scenarios = map[string]Classification{
	"high":   {Scream: 0.85, Noise: 0.10, Talking: 0.03, Silence: 0.02},
	"medium": {Scream: 0.62, Noise: 0.25, Talking: 0.08, Silence: 0.05},
	"low":    {Scream: 0.35, Noise: 0.45, Talking: 0.15, Silence: 0.05},
	"none":   {Scream: 0.05, Noise: 0.15, Talking: 0.40, Silence: 0.40},
}

var accelerometerPresets = map[string]AccelerometerReading{
	"normal":   {X: 0.5, Y: -0.3, Z: 9.8},
	"spike":    {X: 18, Y: -12, Z: 15},
	"movement": {X: 5, Y: 4, Z: -6},
}

// ScenarioKeywords are the recognised words attached when a scenario asks for a keyword.
var ScenarioKeywords = []string{"help", "stop"}

// Scenario returns the preset classification called name.
func Scenario(name string) (Classification, error) {
	c, ok := scenarios[name]
	if !ok {
		return Classification{}, fmt.Errorf("unknown scenario %q", name)
	}
	return c, nil
}

// ScenarioNames lists the presets from most to least severe.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return DistressLevel(names[i]).Severity() > DistressLevel(names[j]).Severity()
	})
	return names
}

// MockAccelerometer returns a canned reading: "normal", "spike" or "movement".
func MockAccelerometer(kind string) (AccelerometerReading, error) {
	r, ok := accelerometerPresets[kind]
	if !ok {
		return AccelerometerReading{}, fmt.Errorf("unknown accelerometer preset %q", kind)
	}
	return r, nil
}

// BuildScenarioInput assembles a full input the way the test harness does: a
// spike reading when withSpike is set and a resting reading otherwise, plus
// ScenarioKeywords when withKeyword is set.
func BuildScenarioInput(name string, withSpike, withKeyword bool, loc *Location) (AnalysisInput, error) {
	c, err := Scenario(name)
	if err != nil {
		return AnalysisInput{}, err
	}

	kind := "normal"
	if withSpike {
		kind = "spike"
	}
	reading := accelerometerPresets[kind]

	input := AnalysisInput{
		Classification: c,
		Accelerometer:  &reading,
		Location:       loc,
	}
	if withKeyword {
		input.Keywords = append([]string(nil), ScenarioKeywords...)
	}
	return input, nil
}
