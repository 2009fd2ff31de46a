package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"safety-monitor/models"
	"safety-monitor/utils"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("record not found")

// DBClient persists detection events, alerts, contacts and settings.
type DBClient interface {
	Close() error

	SaveDetectionEvent(ctx context.Context, event *models.DetectionEvent) error
	// GetRecentDetectionEvents returns the user's newest events first.
	GetRecentDetectionEvents(ctx context.Context, userID string, limit int) ([]models.DetectionEvent, error)

	CreateSafetyAlert(ctx context.Context, alert *models.SafetyAlert) error
	GetSafetyAlert(ctx context.Context, alertID string) (models.SafetyAlert, error)
	UpdateAlertStatus(ctx context.Context, alertID string, status models.AlertStatus, userResponse string) error
	SetContactsNotified(ctx context.Context, alertID string, notified []models.ContactNotification) error
	// GetActiveAlerts returns pending and sent alerts, newest first.
	GetActiveAlerts(ctx context.Context, userID string) ([]models.SafetyAlert, error)

	AddEmergencyContact(ctx context.Context, contact *models.EmergencyContact) error
	// GetEmergencyContacts returns active contacts ordered by ascending priority.
	GetEmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)

	// GetUserSettings returns ErrNotFound when the user has no settings yet.
	GetUserSettings(ctx context.Context, userID string) (models.UserSettings, error)
	SaveUserSettings(ctx context.Context, settings models.UserSettings) error
}

// NewDBClient opens the store selected by DB_TYPE (sqlite or mongo).
func NewDBClient() (DBClient, error) {
	dbType := strings.ToLower(utils.GetEnv("DB_TYPE", "sqlite"))

	switch dbType {
	case "mongo", "mongodb":
		uri := utils.GetEnv("MONGO_URI", "mongodb://localhost:27017")
		database := utils.GetEnv("MONGO_DB", "safety_monitor")
		return NewMongoClient(uri, database)
	case "sqlite", "sqlite3":
		path := utils.GetEnv("SQLITE_PATH", filepath.Join("db", "safety.sqlite3"))
		return NewSQLiteClient(path)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", dbType)
	}
}
