package distress

import (
	"context"
	"log/slog"
	"math"
)

// Validate reports whether every score lies in [0,1]. A sum far from 1.0 is
// logged but does not fail validation. The result is advisory: Analyze never
// consults it.
func (e *Engine) Validate(c Classification) bool {
	sum := c.Sum()
	if math.Abs(sum-1.0) > e.policy.SumTolerance {
		e.logger.WarnContext(context.Background(), "classification scores do not sum to ~1.0",
			slog.Float64("sum", sum),
			slog.Float64("tolerance", e.policy.SumTolerance),
		)
	}

	return inUnitRange(c.Scream) &&
		inUnitRange(c.Noise) &&
		inUnitRange(c.Talking) &&
		inUnitRange(c.Silence)
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
