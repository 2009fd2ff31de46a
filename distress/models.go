package distress

import (
	"fmt"
	"math"
	"time"
)

// Classification is the four-way score breakdown produced by the audio classifier.
// Scores are expected in [0,1] and to sum to roughly 1.0.
type Classification struct {
	Scream  float64 `json:"scream" yaml:"scream"`
	Noise   float64 `json:"noise" yaml:"noise"`
	Talking float64 `json:"talking" yaml:"talking"`
	Silence float64 `json:"silence" yaml:"silence"`
}

// Sum returns the total of all four scores.
func (c Classification) Sum() float64 {
	return c.Scream + c.Noise + c.Talking + c.Silence
}

// AccelerometerReading is a single instantaneous motion sample.
type AccelerometerReading struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude is the Euclidean norm of the reading.
func (a AccelerometerReading) Magnitude() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// L1 is the sum of absolute axis values.
func (a AccelerometerReading) L1() float64 {
	return math.Abs(a.X) + math.Abs(a.Y) + math.Abs(a.Z)
}

// Location is a latitude/longitude pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AnalysisInput is everything the engine looks at for one verdict. Nil
// pointers and a nil keyword slice mean the signal was not available.
type AnalysisInput struct {
	Classification Classification        `json:"classification"`
	Accelerometer  *AccelerometerReading `json:"accelerometer,omitempty"`
	Location       *Location             `json:"location,omitempty"`
	Keywords       []string              `json:"keywords,omitempty"`
}

// DistressLevel is the severity of a verdict.
type DistressLevel string

const (
	LevelNone   DistressLevel = "none"
	LevelLow    DistressLevel = "low"
	LevelMedium DistressLevel = "medium"
	LevelHigh   DistressLevel = "high"
)

// Severity orders levels none < low < medium < high. Unknown levels rank below none.
func (l DistressLevel) Severity() int {
	switch l {
	case LevelNone:
		return 0
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	default:
		return -1
	}
}

// Valid reports whether l is one of the four known levels.
func (l DistressLevel) Valid() bool {
	return l.Severity() >= 0
}

// AtLeast reports whether l is as severe as other or more.
func (l DistressLevel) AtLeast(other DistressLevel) bool {
	return l.Severity() >= other.Severity()
}

// ParseDistressLevel converts s into a DistressLevel.
func ParseDistressLevel(s string) (DistressLevel, error) {
	level := DistressLevel(s)
	if !level.Valid() {
		return "", fmt.Errorf("unknown distress level %q", s)
	}
	return level, nil
}

// Action is the recommended response text attached to a verdict.
type Action string

const (
	ActionSOSImmediate       Action = "Auto-trigger SOS and send location to emergency contacts immediately"
	ActionSOS                Action = "Auto-trigger SOS and send location to emergency contacts"
	ActionNotifyContacts     Action = "Notify trusted contacts and ask user to confirm safety"
	ActionSafetyCheck        Action = `Ask user "Are you safe?" and monitor for response`
	ActionContinueMonitoring Action = "Continue monitoring - no action required"
)

// TriggersSOS reports whether the action auto-dispatches an SOS.
func (a Action) TriggersSOS() bool {
	return a == ActionSOSImmediate || a == ActionSOS
}

// DetectionResult is the verdict for one analysis. It is never mutated after
// the engine returns it.
type DetectionResult struct {
	Detection                   bool          `json:"detection"`
	DistressLevel               DistressLevel `json:"distress_level"`
	ScreamConfidence            float64       `json:"scream_confidence"`
	NoiseConfidence             float64       `json:"noise_confidence"`
	TalkingConfidence           float64       `json:"talking_confidence"`
	SilenceConfidence           float64       `json:"silence_confidence"`
	RecommendedAction           Action        `json:"recommended_action"`
	Timestamp                   time.Time     `json:"timestamp"`
	MessageForUser              string        `json:"message_for_user"`
	MessageForEmergencyContacts string        `json:"message_for_emergency_contacts"`
	AccelerometerSpike          bool          `json:"accelerometer_spike"`
	DeviceMovement              bool          `json:"device_movement"`
	KeywordDetected             string        `json:"keyword_detected,omitempty"`
	Latitude                    *float64      `json:"latitude,omitempty"`
	Longitude                   *float64      `json:"longitude,omitempty"`
}

// HasLocation reports whether the verdict carries coordinates.
func (r DetectionResult) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Classification reconstructs the scores the verdict was computed from.
func (r DetectionResult) Classification() Classification {
	return Classification{
		Scream:  r.ScreamConfidence,
		Noise:   r.NoiseConfidence,
		Talking: r.TalkingConfidence,
		Silence: r.SilenceConfidence,
	}
}
