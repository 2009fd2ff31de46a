package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"safety-monitor/models"
	"safety-monitor/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createEventsTable := `
    CREATE TABLE IF NOT EXISTS detection_events (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL DEFAULT '',
        detection INTEGER NOT NULL DEFAULT 0,
        distress_level TEXT NOT NULL,
        scream_confidence REAL NOT NULL DEFAULT 0,
        noise_confidence REAL NOT NULL DEFAULT 0,
        talking_confidence REAL NOT NULL DEFAULT 0,
        silence_confidence REAL NOT NULL DEFAULT 0,
        accelerometer_spike INTEGER NOT NULL DEFAULT 0,
        device_movement INTEGER NOT NULL DEFAULT 0,
        keyword_detected TEXT NOT NULL DEFAULT '',
        recommended_action TEXT NOT NULL,
        latitude REAL,
        longitude REAL,
        created_at DATETIME NOT NULL,
        metadata TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_events_user_created ON detection_events(user_id, created_at);
    `

	createAlertsTable := `
    CREATE TABLE IF NOT EXISTS safety_alerts (
        id TEXT PRIMARY KEY,
        detection_event_id TEXT NOT NULL REFERENCES detection_events(id),
        user_id TEXT NOT NULL DEFAULT '',
        alert_type TEXT NOT NULL,
        status TEXT NOT NULL,
        message_for_user TEXT NOT NULL,
        message_for_contacts TEXT NOT NULL DEFAULT '',
        contacts_notified TEXT NOT NULL DEFAULT '[]',
        user_response TEXT NOT NULL DEFAULT '',
        latitude REAL,
        longitude REAL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_alerts_user_status ON safety_alerts(user_id, status);
    `

	createContactsTable := `
    CREATE TABLE IF NOT EXISTS emergency_contacts (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        name TEXT NOT NULL,
        phone TEXT NOT NULL DEFAULT '',
        email TEXT NOT NULL DEFAULT '',
        priority INTEGER NOT NULL DEFAULT 0,
        active INTEGER NOT NULL DEFAULT 1,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_contacts_user ON emergency_contacts(user_id, priority);
    `

	createSettingsTable := `
    CREATE TABLE IF NOT EXISTS user_settings (
        user_id TEXT PRIMARY KEY,
        sensitivity_threshold REAL NOT NULL,
        auto_alert_enabled INTEGER NOT NULL,
        location_sharing_enabled INTEGER NOT NULL,
        keyword_detection_enabled INTEGER NOT NULL,
        accelerometer_enabled INTEGER NOT NULL,
        false_alarm_cooldown_minutes INTEGER NOT NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );
    `

	for name, stmt := range map[string]string{
		"detection_events":   createEventsTable,
		"safety_alerts":      createAlertsTable,
		"emergency_contacts": createContactsTable,
		"user_settings":      createSettingsTable,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("error creating %s table: %w", name, err)
		}
	}

	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// SaveDetectionEvent stores event, assigning an id and timestamp when unset.
func (db *SQLiteClient) SaveDetectionEvent(ctx context.Context, event *models.DetectionEvent) error {
	if event.ID == "" {
		event.ID = utils.GenerateUniqueID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var metadataJSON *string
	if event.Metadata != nil {
		metadataBytes, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("error marshaling metadata: %w", err)
		}
		metadataStr := string(metadataBytes)
		metadataJSON = &metadataStr
	}

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO detection_events (
			id, user_id, detection, distress_level, scream_confidence,
			noise_confidence, talking_confidence, silence_confidence,
			accelerometer_spike, device_movement, keyword_detected,
			recommended_action, latitude, longitude, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.UserID,
		event.Detection,
		string(event.DistressLevel),
		event.ScreamConfidence,
		event.NoiseConfidence,
		event.TalkingConfidence,
		event.SilenceConfidence,
		event.AccelerometerSpike,
		event.DeviceMovement,
		event.KeywordDetected,
		event.RecommendedAction,
		event.Latitude,
		event.Longitude,
		event.CreatedAt.UTC(),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("error storing detection event: %w", err)
	}
	return nil
}

// GetRecentDetectionEvents returns at most limit events for userID, newest first.
func (db *SQLiteClient) GetRecentDetectionEvents(ctx context.Context, userID string, limit int) ([]models.DetectionEvent, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, detection, distress_level, scream_confidence,
		       noise_confidence, talking_confidence, silence_confidence,
		       accelerometer_spike, device_movement, keyword_detected,
		       recommended_action, latitude, longitude, created_at, metadata
		FROM detection_events
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying detection events: %w", err)
	}
	defer rows.Close()

	var events []models.DetectionEvent
	for rows.Next() {
		var e models.DetectionEvent
		var metadataJSON *string

		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Detection,
			&e.DistressLevel,
			&e.ScreamConfidence,
			&e.NoiseConfidence,
			&e.TalkingConfidence,
			&e.SilenceConfidence,
			&e.AccelerometerSpike,
			&e.DeviceMovement,
			&e.KeywordDetected,
			&e.RecommendedAction,
			&e.Latitude,
			&e.Longitude,
			&e.CreatedAt,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning detection event: %w", err)
		}

		if metadataJSON != nil {
			if err := json.Unmarshal([]byte(*metadataJSON), &e.Metadata); err != nil {
				return nil, fmt.Errorf("error unmarshaling metadata: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// CreateSafetyAlert stores alert, assigning an id and timestamps when unset.
func (db *SQLiteClient) CreateSafetyAlert(ctx context.Context, alert *models.SafetyAlert) error {
	if alert.ID == "" {
		alert.ID = utils.GenerateUniqueID()
	}
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	if alert.ContactsNotified == nil {
		alert.ContactsNotified = []models.ContactNotification{}
	}

	notifiedJSON, err := json.Marshal(alert.ContactsNotified)
	if err != nil {
		return fmt.Errorf("error marshaling notifications: %w", err)
	}

	_, err = db.db.ExecContext(ctx, `
		INSERT INTO safety_alerts (
			id, detection_event_id, user_id, alert_type, status,
			message_for_user, message_for_contacts, contacts_notified,
			user_response, latitude, longitude, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.DetectionEventID,
		alert.UserID,
		string(alert.AlertType),
		string(alert.Status),
		alert.MessageForUser,
		alert.MessageForContacts,
		string(notifiedJSON),
		alert.UserResponse,
		alert.Latitude,
		alert.Longitude,
		alert.CreatedAt.UTC(),
		alert.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error creating safety alert: %w", err)
	}
	return nil
}

const alertColumns = `id, detection_event_id, user_id, alert_type, status,
       message_for_user, message_for_contacts, contacts_notified,
       user_response, latitude, longitude, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (models.SafetyAlert, error) {
	var a models.SafetyAlert
	var notifiedJSON string

	err := row.Scan(
		&a.ID,
		&a.DetectionEventID,
		&a.UserID,
		&a.AlertType,
		&a.Status,
		&a.MessageForUser,
		&a.MessageForContacts,
		&notifiedJSON,
		&a.UserResponse,
		&a.Latitude,
		&a.Longitude,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return models.SafetyAlert{}, err
	}

	if err := json.Unmarshal([]byte(notifiedJSON), &a.ContactsNotified); err != nil {
		return models.SafetyAlert{}, fmt.Errorf("error unmarshaling notifications: %w", err)
	}
	return a, nil
}

// GetSafetyAlert looks up an alert by id.
func (db *SQLiteClient) GetSafetyAlert(ctx context.Context, alertID string) (models.SafetyAlert, error) {
	row := db.db.QueryRowContext(ctx, "SELECT "+alertColumns+" FROM safety_alerts WHERE id = ?", alertID)
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SafetyAlert{}, ErrNotFound
		}
		return models.SafetyAlert{}, fmt.Errorf("failed to retrieve safety alert: %w", err)
	}
	return alert, nil
}

// UpdateAlertStatus moves an alert to status and records the user's response.
func (db *SQLiteClient) UpdateAlertStatus(ctx context.Context, alertID string, status models.AlertStatus, userResponse string) error {
	res, err := db.db.ExecContext(ctx, `
		UPDATE safety_alerts
		SET status = ?,
		    user_response = CASE WHEN ? = '' THEN user_response ELSE ? END,
		    updated_at = ?
		WHERE id = ?`,
		string(status), userResponse, userResponse, time.Now().UTC(), alertID,
	)
	if err != nil {
		return fmt.Errorf("error updating alert status: %w", err)
	}
	return requireAffected(res)
}

// SetContactsNotified replaces the delivery record of an alert.
func (db *SQLiteClient) SetContactsNotified(ctx context.Context, alertID string, notified []models.ContactNotification) error {
	if notified == nil {
		notified = []models.ContactNotification{}
	}
	notifiedJSON, err := json.Marshal(notified)
	if err != nil {
		return fmt.Errorf("error marshaling notifications: %w", err)
	}

	res, err := db.db.ExecContext(ctx,
		"UPDATE safety_alerts SET contacts_notified = ?, updated_at = ? WHERE id = ?",
		string(notifiedJSON), time.Now().UTC(), alertID,
	)
	if err != nil {
		return fmt.Errorf("error recording notifications: %w", err)
	}
	return requireAffected(res)
}

// GetActiveAlerts returns userID's pending and sent alerts, newest first.
func (db *SQLiteClient) GetActiveAlerts(ctx context.Context, userID string) ([]models.SafetyAlert, error) {
	rows, err := db.db.QueryContext(ctx, "SELECT "+alertColumns+`
		FROM safety_alerts
		WHERE user_id = ? AND status IN (?, ?)
		ORDER BY created_at DESC`,
		userID, string(models.StatusPending), string(models.StatusSent),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.SafetyAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning safety alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// AddEmergencyContact stores contact, assigning an id when unset.
func (db *SQLiteClient) AddEmergencyContact(ctx context.Context, contact *models.EmergencyContact) error {
	if contact.ID == "" {
		contact.ID = utils.GenerateUniqueID()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO emergency_contacts (id, user_id, name, phone, email, priority, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.ID,
		contact.UserID,
		contact.Name,
		contact.Phone,
		contact.Email,
		contact.Priority,
		contact.Active,
		contact.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error storing emergency contact: %w", err)
	}
	return nil
}

// GetEmergencyContacts returns userID's active contacts by ascending priority.
func (db *SQLiteClient) GetEmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, name, phone, email, priority, active, created_at
		FROM emergency_contacts
		WHERE user_id = ? AND active = 1
		ORDER BY priority ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying emergency contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.EmergencyContact
	for rows.Next() {
		var c models.EmergencyContact
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.Email, &c.Priority, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning emergency contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// GetUserSettings returns ErrNotFound when userID has no stored settings.
func (db *SQLiteClient) GetUserSettings(ctx context.Context, userID string) (models.UserSettings, error) {
	var s models.UserSettings
	err := db.db.QueryRowContext(ctx, `
		SELECT user_id, sensitivity_threshold, auto_alert_enabled, location_sharing_enabled,
		       keyword_detection_enabled, accelerometer_enabled, false_alarm_cooldown_minutes,
		       created_at, updated_at
		FROM user_settings WHERE user_id = ?`,
		userID,
	).Scan(
		&s.UserID,
		&s.SensitivityThreshold,
		&s.AutoAlertEnabled,
		&s.LocationSharingEnabled,
		&s.KeywordDetectionEnabled,
		&s.AccelerometerEnabled,
		&s.FalseAlarmCooldownMinutes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserSettings{}, ErrNotFound
		}
		return models.UserSettings{}, fmt.Errorf("failed to retrieve user settings: %w", err)
	}
	return s, nil
}

// SaveUserSettings inserts or replaces the settings row for settings.UserID.
func (db *SQLiteClient) SaveUserSettings(ctx context.Context, settings models.UserSettings) error {
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO user_settings (
			user_id, sensitivity_threshold, auto_alert_enabled, location_sharing_enabled,
			keyword_detection_enabled, accelerometer_enabled, false_alarm_cooldown_minutes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			sensitivity_threshold = excluded.sensitivity_threshold,
			auto_alert_enabled = excluded.auto_alert_enabled,
			location_sharing_enabled = excluded.location_sharing_enabled,
			keyword_detection_enabled = excluded.keyword_detection_enabled,
			accelerometer_enabled = excluded.accelerometer_enabled,
			false_alarm_cooldown_minutes = excluded.false_alarm_cooldown_minutes,
			updated_at = excluded.updated_at`,
		settings.UserID,
		settings.SensitivityThreshold,
		settings.AutoAlertEnabled,
		settings.LocationSharingEnabled,
		settings.KeywordDetectionEnabled,
		settings.AccelerometerEnabled,
		settings.FalseAlarmCooldownMinutes,
		settings.CreatedAt.UTC(),
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving user settings: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
