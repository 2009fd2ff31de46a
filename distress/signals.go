package distress

import "strings"

// DetectAccelerometerSpike reports a sudden physical disturbance. A nil reading never spikes.
func (e *Engine) DetectAccelerometerSpike(reading *AccelerometerReading) bool {
	if reading == nil {
		return false
	}
	return reading.Magnitude() > e.policy.SpikeMagnitude
}

// DetectDeviceMovement reports that the device changed position or orientation.
func (e *Engine) DetectDeviceMovement(reading *AccelerometerReading) bool {
	if reading == nil {
		return false
	}
	return reading.L1() > e.policy.MovementSum
}

// DetectDistressKeyword returns the first candidate containing a distress
// phrase, in its original casing, or "" when none matches.
//
// Matching is by substring, so "know" matches "no".
func (e *Engine) DetectDistressKeyword(candidates []string) string {
	for _, candidate := range candidates {
		lower := strings.ToLower(candidate)
		for _, phrase := range e.policy.DistressKeywords {
			if strings.Contains(lower, phrase) {
				return candidate
			}
		}
	}
	return ""
}
