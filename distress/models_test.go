package distress

import (
	"encoding/json"
	"testing"
)

func TestDetectionResultJSONKeepsFalseMotionFlags(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	reading := AccelerometerReading{X: 0.1, Y: -0.2, Z: 1.0}
	result := e.Analyze(AnalysisInput{Classification: mustScenario(t, "medium"), Accelerometer: &reading})

	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, key := range []string{"accelerometer_spike", "device_movement"} {
		v, ok := fields[key]
		if !ok {
			t.Errorf("%s missing from %s", key, raw)
			continue
		}
		if v != false {
			t.Errorf("%s = %v, want false", key, v)
		}
	}
	if _, ok := fields["latitude"]; ok {
		t.Errorf("latitude should be absent without a location: %s", raw)
	}
}
