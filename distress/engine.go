package distress

// Distress Decision Engine
//
// The engine turns one multi-signal snapshot into an explainable verdict. It
// is a pure function of its input apart from reading the clock for the
// timestamp, so a single Engine can be shared freely between goroutines.
//
// How a verdict is reached:
//
// 1. Auxiliary signals:
//    - Accelerometer spike: Euclidean magnitude of the reading > SpikeMagnitude
//    - Device movement: |x|+|y|+|z| > MovementSum (looser, independent of spike)
//    - Keyword: first candidate whose lower-cased form contains a distress
//      substring, reported with its original casing
//
// 2. Distress level (first match wins):
//    - scream >= HighScreamThreshold                      -> high
//    - scream >= MediumScreamThreshold                    -> medium
//    - noise >= UnusualNoiseThreshold AND spike           -> low
//    - otherwise                                          -> none
//    Motion and noise can only corroborate up to low; anything above low
//    needs direct scream confidence.
//
// 3. Action and messages are selected from the level, the spike flag and the
//    matched keyword.

import (
	"log/slog"
	"strings"
	"time"

	"safety-monitor/utils"
)

// Engine applies a Policy to analysis inputs.
type Engine struct {
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger overrides the logger used for advisory warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine builds an engine around policy. The policy is copied and its
// distress phrases are lower-cased so they match lower-cased candidates.
func NewEngine(policy Policy, opts ...Option) *Engine {
	keywords := make([]string, len(policy.DistressKeywords))
	for i, k := range policy.DistressKeywords {
		keywords[i] = strings.ToLower(k)
	}
	policy.DistressKeywords = keywords
	e := &Engine{
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = utils.GetLogger()
	}
	return e
}

// Policy returns a copy of the engine's thresholds.
func (e *Engine) Policy() Policy {
	p := e.policy
	p.DistressKeywords = append([]string(nil), e.policy.DistressKeywords...)
	return p
}

// Analyze produces the verdict for input. It never fails: missing optional
// signals simply leave the corresponding flags unset.
func (e *Engine) Analyze(input AnalysisInput) DetectionResult {
	c := input.Classification

	spike := e.DetectAccelerometerSpike(input.Accelerometer)
	movement := e.DetectDeviceMovement(input.Accelerometer)
	keyword := e.DetectDistressKeyword(input.Keywords)

	level := e.ClassifyDistress(c.Scream, c.Noise, spike)
	action := e.RecommendAction(level, spike, keyword)
	forUser, forContacts := e.ComposeMessages(level, c.Scream, keyword)

	result := DetectionResult{
		Detection:                   level != LevelNone,
		DistressLevel:               level,
		ScreamConfidence:            c.Scream,
		NoiseConfidence:             c.Noise,
		TalkingConfidence:           c.Talking,
		SilenceConfidence:           c.Silence,
		RecommendedAction:           action,
		Timestamp:                   e.now(),
		MessageForUser:              forUser,
		MessageForEmergencyContacts: forContacts,
		AccelerometerSpike:          spike,
		DeviceMovement:              movement,
		KeywordDetected:             keyword,
	}

	if input.Location != nil {
		lat, lng := input.Location.Latitude, input.Location.Longitude
		result.Latitude = &lat
		result.Longitude = &lng
	}

	return result
}

// ClassifyDistress maps the scream and noise scores plus the spike flag to a level.
func (e *Engine) ClassifyDistress(scream, noise float64, spike bool) DistressLevel {
	switch {
	case scream >= e.policy.HighScreamThreshold:
		return LevelHigh
	case scream >= e.policy.MediumScreamThreshold:
		return LevelMedium
	case noise >= e.policy.UnusualNoiseThreshold && spike:
		return LevelLow
	default:
		return LevelNone
	}
}

var defaultEngine = NewEngine(DefaultPolicy())

// Analyze runs input through an engine configured with DefaultPolicy.
func Analyze(input AnalysisInput) DetectionResult {
	return defaultEngine.Analyze(input)
}

// Explain returns the status line for result under the default engine.
func Explain(result DetectionResult) string {
	return defaultEngine.Explain(result)
}

// Validate checks c under the default engine.
func Validate(c Classification) bool {
	return defaultEngine.Validate(c)
}
