package distress

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds every tunable threshold the engine applies.
type Policy struct {
	HighScreamThreshold   float64 `json:"high_scream_threshold" yaml:"high_scream_threshold"`
	MediumScreamThreshold float64 `json:"medium_scream_threshold" yaml:"medium_scream_threshold"`
	UnusualNoiseThreshold float64 `json:"unusual_noise_threshold" yaml:"unusual_noise_threshold"`

	// SpikeMagnitude is compared against the Euclidean norm of a reading.
	SpikeMagnitude float64 `json:"spike_magnitude" yaml:"spike_magnitude"`
	// MovementSum is compared against the L1 norm of a reading.
	MovementSum float64 `json:"movement_sum" yaml:"movement_sum"`

	// SumTolerance bounds |sum-1| before Validate logs a warning.
	SumTolerance float64 `json:"sum_tolerance" yaml:"sum_tolerance"`

	SafetyCheckTimeoutSeconds int `json:"safety_check_timeout_seconds" yaml:"safety_check_timeout_seconds"`

	// DistressKeywords are matched as lower-case substrings of each candidate.
	DistressKeywords []string `json:"distress_keywords" yaml:"distress_keywords"`
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		HighScreamThreshold:       0.75,
		MediumScreamThreshold:     0.50,
		UnusualNoiseThreshold:     0.60,
		SpikeMagnitude:            15,
		MovementSum:               8,
		SumTolerance:              0.1,
		SafetyCheckTimeoutSeconds: 30,
		DistressKeywords:          []string{"help", "stop", "leave me", "no", "please", "someone"},
	}
}

// Validate returns a joined error listing every incoherent threshold.
func (p Policy) Validate() error {
	var errs []error

	unit := []struct {
		name  string
		value float64
	}{
		{"high_scream_threshold", p.HighScreamThreshold},
		{"medium_scream_threshold", p.MediumScreamThreshold},
		{"unusual_noise_threshold", p.UnusualNoiseThreshold},
	}
	for _, u := range unit {
		if u.value < 0 || u.value > 1 {
			errs = append(errs, fmt.Errorf("%s %.3f must lie in [0,1]", u.name, u.value))
		}
	}
	if p.MediumScreamThreshold > p.HighScreamThreshold {
		errs = append(errs, fmt.Errorf("medium_scream_threshold %.3f exceeds high_scream_threshold %.3f",
			p.MediumScreamThreshold, p.HighScreamThreshold))
	}
	if p.SpikeMagnitude <= 0 {
		errs = append(errs, errors.New("spike_magnitude must be positive"))
	}
	if p.MovementSum <= 0 {
		errs = append(errs, errors.New("movement_sum must be positive"))
	}
	if p.SumTolerance < 0 {
		errs = append(errs, errors.New("sum_tolerance must not be negative"))
	}
	if p.SafetyCheckTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("safety_check_timeout_seconds must be positive"))
	}
	for i, kw := range p.DistressKeywords {
		if kw == "" {
			errs = append(errs, fmt.Errorf("distress_keywords[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}

// LoadPolicy reads a YAML policy file. Fields absent from the file keep their
// default values.
func LoadPolicy(path string) (Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := LoadPolicyFromReader(f)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: parse %q: %w", path, err)
	}
	return p, nil
}

// LoadPolicyFromReader decodes a YAML policy from r on top of DefaultPolicy and validates it.
func LoadPolicyFromReader(r io.Reader) (Policy, error) {
	p := DefaultPolicy()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("policy: decode yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
