package distress

import (
	"fmt"
	"math"
)

// RecommendAction picks the response for a level. A medium verdict escalates
// to SOS when a keyword matched or the device spiked.
func (e *Engine) RecommendAction(level DistressLevel, spike bool, keyword string) Action {
	switch level {
	case LevelHigh:
		return ActionSOSImmediate
	case LevelMedium:
		if keyword != "" || spike {
			return ActionSOS
		}
		return ActionNotifyContacts
	case LevelLow:
		return ActionSafetyCheck
	default:
		return ActionContinueMonitoring
	}
}

// ComposeMessages returns the user-facing and contact-facing texts for a level.
func (e *Engine) ComposeMessages(level DistressLevel, scream float64, keyword string) (forUser, forContacts string) {
	percent := ConfidencePercent(scream)

	switch level {
	case LevelHigh:
		forUser = fmt.Sprintf("EMERGENCY DETECTED: High distress signal (%d%% confidence). Emergency contacts are being notified immediately. Help is on the way.", percent)
		forContacts = fmt.Sprintf("🚨 EMERGENCY ALERT: Possible distress detected with high confidence (%d%%). Please check on this person immediately and consider contacting emergency services.", percent)
	case LevelMedium:
		if keyword != "" {
			forUser = fmt.Sprintf("Distress signal detected including keyword \"%s\". Emergency contacts will be notified. Tap here if this is a false alarm.", keyword)
		} else {
			forUser = fmt.Sprintf("Possible distress detected (%d%% confidence). Emergency contacts will be notified shortly. Tap here if you're safe.", percent)
		}
		forContacts = fmt.Sprintf("⚠️ SAFETY ALERT: Potential distress detected (%d%% confidence). Please reach out to check if they need assistance.", percent)
	case LevelLow:
		forUser = fmt.Sprintf("Unusual activity detected. Are you safe? Please respond within %d seconds.", e.policy.SafetyCheckTimeoutSeconds)
		forContacts = "ℹ️ Safety check: Unusual activity detected. Monitoring the situation."
	default:
		forUser = "All clear - no distress detected."
		forContacts = "No emergency detected."
	}

	return forUser, forContacts
}

// Explain returns the one-line status shown for result.
func (e *Engine) Explain(result DetectionResult) string {
	switch result.DistressLevel {
	case LevelHigh:
		return "Emergency detected - Help has been dispatched"
	case LevelMedium:
		return "Possible distress - Emergency contacts notified"
	case LevelLow:
		return "Unusual activity detected - Please confirm you are safe"
	default:
		return "All clear - Monitoring continues"
	}
}

// ConfidencePercent rounds a [0,1] score to the nearest whole percent.
func ConfidencePercent(score float64) int {
	return int(math.Round(score * 100))
}
