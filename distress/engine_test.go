package distress

import (
	"bytes"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(DefaultPolicy(),
		WithClock(func() time.Time { return fixedTime }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func mustScenario(t *testing.T, name string) Classification {
	t.Helper()
	c, err := Scenario(name)
	if err != nil {
		t.Fatalf("Scenario(%q): %v", name, err)
	}
	return c
}

func TestClassifyDistressThresholds(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	tests := []struct {
		name   string
		scream float64
		noise  float64
		spike  bool
		want   DistressLevel
	}{
		{"scream at high threshold", 0.75, 0, false, LevelHigh},
		{"scream above high with noise and spike", 0.99, 0.9, true, LevelHigh},
		{"scream just under high", 0.7499, 0, false, LevelMedium},
		{"scream at medium threshold", 0.50, 0, false, LevelMedium},
		{"medium dominates noise corroboration", 0.55, 0.9, true, LevelMedium},
		{"noise and spike with moderate scream", 0.35, 0.65, true, LevelLow},
		{"noise and spike with no scream", 0.0, 0.60, true, LevelLow},
		{"noise without spike", 0.35, 0.95, false, LevelNone},
		{"spike without enough noise", 0.35, 0.45, true, LevelNone},
		{"quiet room", 0.05, 0.15, false, LevelNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.ClassifyDistress(tc.scream, tc.noise, tc.spike); got != tc.want {
				t.Errorf("ClassifyDistress(%.4f, %.2f, %v) = %s, want %s", tc.scream, tc.noise, tc.spike, got, tc.want)
			}
		})
	}
}

func TestAnalyzeHighIgnoresOtherSignals(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	for _, scream := range []float64{0.75, 0.8, 0.85, 1.0} {
		result := e.Analyze(AnalysisInput{
			Classification: Classification{Scream: scream, Noise: 0, Talking: 1, Silence: 1},
			Keywords:       []string{"fine"},
		})
		if result.DistressLevel != LevelHigh || !result.Detection {
			t.Fatalf("scream=%.2f: level=%s detection=%v, want high/true", scream, result.DistressLevel, result.Detection)
		}
		if result.RecommendedAction != ActionSOSImmediate {
			t.Errorf("scream=%.2f: action=%q, want %q", scream, result.RecommendedAction, ActionSOSImmediate)
		}
	}
}

func TestAnalyzeMediumNotifiesContacts(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	result := e.Analyze(AnalysisInput{Classification: mustScenario(t, "medium")})

	if result.DistressLevel != LevelMedium || !result.Detection {
		t.Fatalf("level=%s detection=%v, want medium/true", result.DistressLevel, result.Detection)
	}
	if result.RecommendedAction != ActionNotifyContacts {
		t.Errorf("action=%q, want %q", result.RecommendedAction, ActionNotifyContacts)
	}
	if result.RecommendedAction.TriggersSOS() {
		t.Error("medium without corroboration must not auto-trigger SOS")
	}
	if result.AccelerometerSpike || result.DeviceMovement || result.KeywordDetected != "" {
		t.Errorf("expected no auxiliary flags, got %+v", result)
	}
	if !strings.Contains(result.MessageForUser, "62%") {
		t.Errorf("user message %q should carry 62%%", result.MessageForUser)
	}
}

func TestAnalyzeMediumEscalatesOnSpike(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	spike, err := MockAccelerometer("spike")
	if err != nil {
		t.Fatal(err)
	}
	result := e.Analyze(AnalysisInput{
		Classification: mustScenario(t, "medium"),
		Accelerometer:  &spike,
	})

	if result.DistressLevel != LevelMedium {
		t.Fatalf("level=%s, want medium", result.DistressLevel)
	}
	if !result.AccelerometerSpike {
		t.Fatal("expected accelerometer spike")
	}
	if result.RecommendedAction != ActionSOS {
		t.Errorf("action=%q, want %q", result.RecommendedAction, ActionSOS)
	}
}

func TestAnalyzeMediumEscalatesOnKeyword(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	result := e.Analyze(AnalysisInput{
		Classification: mustScenario(t, "medium"),
		Keywords:       []string{"Someone Help"},
	})

	if result.RecommendedAction != ActionSOS {
		t.Errorf("action=%q, want %q", result.RecommendedAction, ActionSOS)
	}
	if result.KeywordDetected != "Someone Help" {
		t.Errorf("keyword=%q, want verbatim %q", result.KeywordDetected, "Someone Help")
	}
	if !strings.Contains(result.MessageForUser, `"Someone Help"`) {
		t.Errorf("user message %q should echo the keyword", result.MessageForUser)
	}
}

func TestAnalyzeLowPresetStaysNone(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	input, err := BuildScenarioInput("low", true, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	result := e.Analyze(input)

	if result.DistressLevel != LevelNone || result.Detection {
		t.Fatalf("level=%s detection=%v, want none/false (noise 0.45 is below threshold)", result.DistressLevel, result.Detection)
	}
	if !result.AccelerometerSpike {
		t.Error("spike flag should still be reported")
	}
}

func TestAnalyzeLowLevelAsksForSafetyCheck(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	spike, _ := MockAccelerometer("spike")
	result := e.Analyze(AnalysisInput{
		Classification: Classification{Scream: 0.2, Noise: 0.7, Talking: 0.05, Silence: 0.05},
		Accelerometer:  &spike,
	})

	if result.DistressLevel != LevelLow || !result.Detection {
		t.Fatalf("level=%s detection=%v, want low/true", result.DistressLevel, result.Detection)
	}
	if result.RecommendedAction != ActionSafetyCheck {
		t.Errorf("action=%q, want %q", result.RecommendedAction, ActionSafetyCheck)
	}
	if !strings.Contains(result.MessageForUser, "Are you safe?") {
		t.Errorf("user message %q should ask for a safety check", result.MessageForUser)
	}
}

func TestAnalyzeNoneContinuesMonitoring(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	result := e.Analyze(AnalysisInput{Classification: mustScenario(t, "none")})

	if result.DistressLevel != LevelNone || result.Detection {
		t.Fatalf("level=%s detection=%v, want none/false", result.DistressLevel, result.Detection)
	}
	if result.RecommendedAction != ActionContinueMonitoring {
		t.Errorf("action=%q, want %q", result.RecommendedAction, ActionContinueMonitoring)
	}
	if result.ScreamConfidence != 0.05 || result.NoiseConfidence != 0.15 ||
		result.TalkingConfidence != 0.40 || result.SilenceConfidence != 0.40 {
		t.Errorf("confidences not passed through: %+v", result)
	}
}

func TestAnalyzeLocationRoundTrip(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	loc := &Location{Latitude: 51.5072, Longitude: -0.1276}
	with := e.Analyze(AnalysisInput{Classification: mustScenario(t, "high"), Location: loc})
	if !with.HasLocation() {
		t.Fatal("expected location on result")
	}
	if *with.Latitude != loc.Latitude || *with.Longitude != loc.Longitude {
		t.Errorf("location = (%v, %v), want (%v, %v)", *with.Latitude, *with.Longitude, loc.Latitude, loc.Longitude)
	}

	loc.Latitude = 0
	if *with.Latitude != 51.5072 {
		t.Error("result must not alias the input location")
	}

	without := e.Analyze(AnalysisInput{Classification: mustScenario(t, "high")})
	if without.Latitude != nil || without.Longitude != nil {
		t.Errorf("expected no location, got (%v, %v)", without.Latitude, without.Longitude)
	}
}

func TestAnalyzeIsIdempotentApartFromTimestamp(t *testing.T) {
	t.Parallel()

	tick := fixedTime
	e := NewEngine(DefaultPolicy(),
		WithClock(func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	for _, name := range ScenarioNames() {
		input, err := BuildScenarioInput(name, true, true, &Location{Latitude: 1, Longitude: 2})
		if err != nil {
			t.Fatal(err)
		}
		first := e.Analyze(input)
		second := e.Analyze(input)
		if first.Timestamp.Equal(second.Timestamp) {
			t.Fatalf("%s: expected distinct timestamps from the ticking clock", name)
		}
		first.Timestamp, second.Timestamp = time.Time{}, time.Time{}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: results differ:\n%+v\n%+v", name, first, second)
		}
	}
}

func TestDetectAccelerometerSignals(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	tests := []struct {
		name     string
		reading  *AccelerometerReading
		spike    bool
		movement bool
	}{
		{"absent", nil, false, false},
		{"resting", &AccelerometerReading{X: 0.5, Y: -0.3, Z: 9.8}, false, true},
		{"movement only", &AccelerometerReading{X: 5, Y: 4, Z: -6}, false, true},
		{"spike", &AccelerometerReading{X: 18, Y: -12, Z: 15}, true, true},
		{"still", &AccelerometerReading{X: 1, Y: 1, Z: 1}, false, false},
		{"magnitude exactly at threshold", &AccelerometerReading{X: 15}, false, true},
		{"l1 exactly at threshold", &AccelerometerReading{X: 4, Y: -4}, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.DetectAccelerometerSpike(tc.reading); got != tc.spike {
				t.Errorf("spike = %v, want %v", got, tc.spike)
			}
			if got := e.DetectDeviceMovement(tc.reading); got != tc.movement {
				t.Errorf("movement = %v, want %v", got, tc.movement)
			}
		})
	}
}

func TestDetectDistressKeyword(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"nil list", nil, ""},
		{"empty list", []string{}, ""},
		{"first match wins", []string{"help", "stop"}, "help"},
		{"original casing preserved", []string{"HELP"}, "HELP"},
		{"skips non matching", []string{"hello", "stop"}, "stop"},
		{"multi word phrase", []string{"Leave Me alone"}, "Leave Me alone"},
		{"substring false positive", []string{"I know"}, "I know"},
		{"nothing matches", []string{"weather", "lunch"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.DetectDistressKeyword(tc.candidates); got != tc.want {
				t.Errorf("DetectDistressKeyword(%q) = %q, want %q", tc.candidates, got, tc.want)
			}
		})
	}
}

func TestComposeMessagesRoundsConfidence(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	forUser, forContacts := e.ComposeMessages(LevelMedium, 0.617, "")
	if !strings.Contains(forUser, "62%") || !strings.Contains(forContacts, "62%") {
		t.Errorf("messages should interpolate 62%%: %q / %q", forUser, forContacts)
	}

	forUser, _ = e.ComposeMessages(LevelNone, 0.05, "")
	if forUser != "All clear - no distress detected." {
		t.Errorf("none user message = %q", forUser)
	}
}

func TestExplainCoversEveryLevel(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	seen := map[string]DistressLevel{}
	for _, level := range []DistressLevel{LevelHigh, LevelMedium, LevelLow, LevelNone} {
		line := e.Explain(DetectionResult{DistressLevel: level})
		if line == "" {
			t.Fatalf("empty explanation for %s", level)
		}
		if prev, dup := seen[line]; dup {
			t.Fatalf("levels %s and %s share explanation %q", prev, level, line)
		}
		seen[line] = level
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	for _, name := range ScenarioNames() {
		if !e.Validate(mustScenario(t, name)) {
			t.Errorf("preset %s should validate", name)
		}
	}
	if e.Validate(Classification{Scream: 1.5}) {
		t.Error("scream=1.5 should fail validation")
	}
	if e.Validate(Classification{Scream: 0.5, Noise: -0.1, Talking: 0.3, Silence: 0.3}) {
		t.Error("negative noise should fail validation")
	}
}

func TestValidateWarnsOnBadSumWithoutRejecting(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewEngine(DefaultPolicy(), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	if !e.Validate(Classification{Scream: 0.9, Noise: 0.9, Talking: 0.9, Silence: 0.9}) {
		t.Fatal("in-range scores with a bad sum must still validate")
	}
	if !strings.Contains(buf.String(), "do not sum") {
		t.Errorf("expected a sum warning, got %q", buf.String())
	}

	buf.Reset()
	e.Validate(Classification{Scream: 0.5, Noise: 0.5})
	if buf.Len() != 0 {
		t.Errorf("unexpected warning for a well-formed classification: %q", buf.String())
	}
}

func TestAnalyzeDoesNotRejectOutOfRangeScores(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	result := e.Analyze(AnalysisInput{Classification: Classification{Scream: 1.5, Noise: -2}})
	if result.DistressLevel != LevelHigh {
		t.Errorf("level = %s, want high", result.DistressLevel)
	}
}

func TestCustomPolicyMovesThresholds(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.HighScreamThreshold = 0.9
	p.DistressKeywords = []string{"mayday"}
	e := NewEngine(p, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	result := e.Analyze(AnalysisInput{
		Classification: mustScenario(t, "high"),
		Keywords:       []string{"help", "MAYDAY"},
	})
	if result.DistressLevel != LevelMedium {
		t.Errorf("level = %s, want medium under raised high threshold", result.DistressLevel)
	}
	if result.KeywordDetected != "MAYDAY" {
		t.Errorf("keyword = %q, want MAYDAY", result.KeywordDetected)
	}

	p.DistressKeywords[0] = "changed"
	if got := e.Policy().DistressKeywords[0]; got != "mayday" {
		t.Errorf("engine policy aliased caller slice: %q", got)
	}
}

func TestPackageLevelHelpers(t *testing.T) {
	t.Parallel()

	result := Analyze(AnalysisInput{Classification: Classification{Scream: 0.85, Noise: 0.1, Talking: 0.03, Silence: 0.02}})
	if result.DistressLevel != LevelHigh {
		t.Fatalf("level = %s, want high", result.DistressLevel)
	}
	if Explain(result) != "Emergency detected - Help has been dispatched" {
		t.Errorf("Explain = %q", Explain(result))
	}
	if !Validate(result.Classification()) {
		t.Error("Validate should accept the high preset")
	}
}
