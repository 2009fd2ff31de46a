package models

import (
	"testing"
	"time"

	"safety-monitor/distress"
)

func TestAlertTypeFor(t *testing.T) {
	t.Parallel()

	cases := map[distress.DistressLevel]AlertType{
		distress.LevelHigh:   AlertSOS,
		distress.LevelMedium: AlertNotifyContacts,
		distress.LevelLow:    AlertSafetyCheck,
		distress.LevelNone:   AlertSafetyCheck,
	}
	for level, want := range cases {
		if got := AlertTypeFor(level); got != want {
			t.Errorf("AlertTypeFor(%s) = %s, want %s", level, got, want)
		}
	}
}

func TestAlertStatusActive(t *testing.T) {
	t.Parallel()

	for _, s := range []AlertStatus{StatusPending, StatusSent} {
		if !s.Active() {
			t.Errorf("%s should be active", s)
		}
	}
	for _, s := range []AlertStatus{StatusAcknowledged, StatusFalseAlarm} {
		if s.Active() {
			t.Errorf("%s should not be active", s)
		}
	}
}

func TestAnalysisRequestLocationNeedsBoth(t *testing.T) {
	t.Parallel()

	lat, lng := 0.0, -74.006
	if loc := (AnalysisRequest{Latitude: &lat}).Location(); loc != nil {
		t.Fatalf("expected nil location with only latitude, got %+v", loc)
	}

	// Zero is a real coordinate.
	loc := AnalysisRequest{Latitude: &lat, Longitude: &lng}.Location()
	if loc == nil || loc.Latitude != 0 || loc.Longitude != lng {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestNewDetectionEvent(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	result := distress.DetectionResult{
		Detection:                   true,
		DistressLevel:               distress.LevelMedium,
		ScreamConfidence:            0.62,
		RecommendedAction:           distress.ActionNotifyContacts,
		Timestamp:                   ts,
		MessageForUser:              "user text",
		MessageForEmergencyContacts: "contact text",
	}

	ev := NewDetectionEvent(result, "user-1")
	if ev.UserID != "user-1" || ev.DistressLevel != distress.LevelMedium || !ev.CreatedAt.Equal(ts) {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.RecommendedAction != string(distress.ActionNotifyContacts) {
		t.Errorf("action = %q", ev.RecommendedAction)
	}
	if ev.Metadata["message_for_contacts"] != "contact text" {
		t.Errorf("metadata = %v", ev.Metadata)
	}
}

func TestNotificationMethod(t *testing.T) {
	t.Parallel()

	if got := (EmergencyContact{Phone: "+15550100", Email: "a@b.c"}).NotificationMethod(); got != "SMS" {
		t.Errorf("with phone = %s, want SMS", got)
	}
	if got := (EmergencyContact{Email: "a@b.c"}).NotificationMethod(); got != "Email" {
		t.Errorf("without phone = %s, want Email", got)
	}
}

func TestDefaultUserSettings(t *testing.T) {
	t.Parallel()

	s := DefaultUserSettings("u")
	if !s.AutoAlertEnabled || s.FalseAlarmCooldown() != 5*time.Minute {
		t.Fatalf("unexpected defaults %+v", s)
	}
}
