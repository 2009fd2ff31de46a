package models

import (
	"time"

	"safety-monitor/distress"
)

// AnalysisRequest is the payload clients send to request a verdict.
type AnalysisRequest struct {
	UserID         string                         `json:"userId,omitempty"`
	Classification *distress.Classification       `json:"classification,omitempty"`
	Accelerometer  *distress.AccelerometerReading `json:"accelerometer,omitempty"`
	Latitude       *float64                       `json:"latitude,omitempty"`
	Longitude      *float64                       `json:"longitude,omitempty"`
	Keywords       []string                       `json:"keywords,omitempty"`
	// Samples is raw mono PCM to be sent to the remote classifier when no
	// classification is supplied.
	Samples []float32 `json:"samples,omitempty"`
}

// Location returns the request coordinates, or nil unless both are present.
func (r AnalysisRequest) Location() *distress.Location {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &distress.Location{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

// ScenarioRequest asks the server to run one of the preset classifications.
type ScenarioRequest struct {
	Scenario      string   `json:"scenario"`
	UserID        string   `json:"userId,omitempty"`
	Accelerometer bool     `json:"accelerometer,omitempty"`
	Keyword       bool     `json:"keyword,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

// SafetyResponse is the user's answer to a safety check.
type SafetyResponse struct {
	AlertID string `json:"alertId"`
	IsSafe  bool   `json:"isSafe"`
	Message string `json:"message,omitempty"`
}

// DetectionEvent is a persisted verdict.
type DetectionEvent struct {
	ID                 string                 `json:"id" bson:"_id"`
	UserID             string                 `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Detection          bool                   `json:"detection" bson:"detection"`
	DistressLevel      distress.DistressLevel `json:"distress_level" bson:"distress_level"`
	ScreamConfidence   float64                `json:"scream_confidence" bson:"scream_confidence"`
	NoiseConfidence    float64                `json:"noise_confidence" bson:"noise_confidence"`
	TalkingConfidence  float64                `json:"talking_confidence" bson:"talking_confidence"`
	SilenceConfidence  float64                `json:"silence_confidence" bson:"silence_confidence"`
	AccelerometerSpike bool                   `json:"accelerometer_spike" bson:"accelerometer_spike"`
	DeviceMovement     bool                   `json:"device_movement" bson:"device_movement"`
	KeywordDetected    string                 `json:"keyword_detected,omitempty" bson:"keyword_detected,omitempty"`
	RecommendedAction  string                 `json:"recommended_action" bson:"recommended_action"`
	Latitude           *float64               `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude          *float64               `json:"longitude,omitempty" bson:"longitude,omitempty"`
	CreatedAt          time.Time              `json:"created_at" bson:"created_at"`
	Metadata           map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// NewDetectionEvent copies result into a storable event. The messages travel
// in Metadata.
func NewDetectionEvent(result distress.DetectionResult, userID string) *DetectionEvent {
	return &DetectionEvent{
		UserID:             userID,
		Detection:          result.Detection,
		DistressLevel:      result.DistressLevel,
		ScreamConfidence:   result.ScreamConfidence,
		NoiseConfidence:    result.NoiseConfidence,
		TalkingConfidence:  result.TalkingConfidence,
		SilenceConfidence:  result.SilenceConfidence,
		AccelerometerSpike: result.AccelerometerSpike,
		DeviceMovement:     result.DeviceMovement,
		KeywordDetected:    result.KeywordDetected,
		RecommendedAction:  string(result.RecommendedAction),
		Latitude:           result.Latitude,
		Longitude:          result.Longitude,
		CreatedAt:          result.Timestamp,
		Metadata: map[string]interface{}{
			"message_for_user":     result.MessageForUser,
			"message_for_contacts": result.MessageForEmergencyContacts,
		},
	}
}

// AlertType is the kind of alert raised for a verdict.
type AlertType string

const (
	AlertSOS            AlertType = "sos"
	AlertNotifyContacts AlertType = "notify_contacts"
	AlertSafetyCheck    AlertType = "safety_check"
)

// AlertTypeFor maps a distress level to the alert raised for it.
func AlertTypeFor(level distress.DistressLevel) AlertType {
	switch level {
	case distress.LevelHigh:
		return AlertSOS
	case distress.LevelMedium:
		return AlertNotifyContacts
	default:
		return AlertSafetyCheck
	}
}

// AlertStatus tracks an alert from creation to resolution.
type AlertStatus string

const (
	StatusPending      AlertStatus = "pending"
	StatusSent         AlertStatus = "sent"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusFalseAlarm   AlertStatus = "false_alarm"
)

// Active reports whether an alert still needs attention.
func (s AlertStatus) Active() bool {
	return s == StatusPending || s == StatusSent
}

// ContactNotification records one delivered notification.
type ContactNotification struct {
	Name   string    `json:"name" bson:"name"`
	Method string    `json:"method" bson:"method"`
	SentAt time.Time `json:"sent_at" bson:"sent_at"`
}

// SafetyAlert is raised for every verdict above none.
type SafetyAlert struct {
	ID                 string                `json:"id" bson:"_id"`
	DetectionEventID   string                `json:"detection_event_id" bson:"detection_event_id"`
	UserID             string                `json:"user_id,omitempty" bson:"user_id,omitempty"`
	AlertType          AlertType             `json:"alert_type" bson:"alert_type"`
	Status             AlertStatus           `json:"status" bson:"status"`
	MessageForUser     string                `json:"message_for_user" bson:"message_for_user"`
	MessageForContacts string                `json:"message_for_contacts,omitempty" bson:"message_for_contacts,omitempty"`
	ContactsNotified   []ContactNotification `json:"contacts_notified" bson:"contacts_notified"`
	UserResponse       string                `json:"user_response,omitempty" bson:"user_response,omitempty"`
	Latitude           *float64              `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude          *float64              `json:"longitude,omitempty" bson:"longitude,omitempty"`
	CreatedAt          time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at" bson:"updated_at"`
}

// EmergencyContact is someone notified when an alert fires.
type EmergencyContact struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty"`
	Priority  int       `json:"priority" bson:"priority"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NotificationMethod is SMS when a phone number is known, Email otherwise.
func (c EmergencyContact) NotificationMethod() string {
	if c.Phone != "" {
		return "SMS"
	}
	return "Email"
}

// UserSettings are per-user switches for the monitoring pipeline.
type UserSettings struct {
	UserID                    string    `json:"user_id" bson:"_id"`
	SensitivityThreshold      float64   `json:"sensitivity_threshold" bson:"sensitivity_threshold"`
	AutoAlertEnabled          bool      `json:"auto_alert_enabled" bson:"auto_alert_enabled"`
	LocationSharingEnabled    bool      `json:"location_sharing_enabled" bson:"location_sharing_enabled"`
	KeywordDetectionEnabled   bool      `json:"keyword_detection_enabled" bson:"keyword_detection_enabled"`
	AccelerometerEnabled      bool      `json:"accelerometer_enabled" bson:"accelerometer_enabled"`
	FalseAlarmCooldownMinutes int       `json:"false_alarm_cooldown_minutes" bson:"false_alarm_cooldown_minutes"`
	CreatedAt                 time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at" bson:"updated_at"`
}

// DefaultUserSettings returns the settings created for a user on first use.
func DefaultUserSettings(userID string) UserSettings {
	now := time.Now().UTC()
	return UserSettings{
		UserID:                    userID,
		SensitivityThreshold:      0.75,
		AutoAlertEnabled:          true,
		LocationSharingEnabled:    true,
		KeywordDetectionEnabled:   true,
		AccelerometerEnabled:      true,
		FalseAlarmCooldownMinutes: 5,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}

// FalseAlarmCooldown is the suppression window after a false alarm.
func (s UserSettings) FalseAlarmCooldown() time.Duration {
	return time.Duration(s.FalseAlarmCooldownMinutes) * time.Minute
}
