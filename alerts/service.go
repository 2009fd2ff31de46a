// Package alerts turns verdicts into stored events, raises alerts, notifies
// emergency contacts and resolves safety checks.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"safety-monitor/cooldown"
	"safety-monitor/db"
	"safety-monitor/distress"
	"safety-monitor/models"
	"safety-monitor/observe"
	"safety-monitor/utils"

	"github.com/mdobak/go-xerrors"
)

// ErrNoContacts is returned when a user has no active emergency contacts.
var ErrNoContacts = errors.New("no emergency contacts configured")

type Service struct {
	store    db.DBClient
	notifier Notifier
	cooldown cooldown.Store
	metrics  *observe.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the pipeline. A nil notifier logs instead of sending and a
// nil cooldown store keeps windows in memory.
func NewService(store db.DBClient, notifier Notifier, cd cooldown.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		cooldown: cd,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = utils.GetLogger()
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.logger)
	}
	if s.cooldown == nil {
		s.cooldown = cooldown.NewMemoryStore()
	}
	return s
}

// ApplySettings drops the signals a user has switched off.
func ApplySettings(input distress.AnalysisInput, settings models.UserSettings) distress.AnalysisInput {
	if !settings.AccelerometerEnabled {
		input.Accelerometer = nil
	}
	if !settings.KeywordDetectionEnabled {
		input.Keywords = nil
	}
	if !settings.LocationSharingEnabled {
		input.Location = nil
	}
	return input
}

// Settings returns the user's settings, creating the defaults on first use.
func (s *Service) Settings(ctx context.Context, userID string) (models.UserSettings, error) {
	settings, err := s.store.GetUserSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return models.UserSettings{}, err
	}

	settings = models.DefaultUserSettings(userID)
	if err := s.store.SaveUserSettings(ctx, settings); err != nil {
		return models.UserSettings{}, fmt.Errorf("failed to create default settings: %w", err)
	}
	return settings, nil
}

// HandleDetection persists result and, unless the level is none, raises an
// alert. Contacts are notified when the user has auto-alert on and is not in a
// false-alarm cooldown. The returned alert is nil for level none.
func (s *Service) HandleDetection(ctx context.Context, result distress.DetectionResult, userID string) (*models.SafetyAlert, error) {
	event := models.NewDetectionEvent(result, userID)
	if err := s.store.SaveDetectionEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to save detection event: %w", err)
	}

	if result.DistressLevel == distress.LevelNone {
		return nil, nil
	}

	createdAt := result.Timestamp
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	alert := &models.SafetyAlert{
		DetectionEventID:   event.ID,
		UserID:             userID,
		AlertType:          models.AlertTypeFor(result.DistressLevel),
		Status:             models.StatusPending,
		MessageForUser:     result.MessageForUser,
		MessageForContacts: result.MessageForEmergencyContacts,
		Latitude:           result.Latitude,
		Longitude:          result.Longitude,
		CreatedAt:          createdAt,
	}
	if err := s.store.CreateSafetyAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create safety alert: %w", err)
	}
	s.metrics.RecordAlert(ctx, string(alert.AlertType))

	s.logger.InfoContext(ctx, "safety alert raised",
		slog.String("alert_id", alert.ID),
		slog.String("alert_type", string(alert.AlertType)),
		slog.String("user_id", userID),
	)

	if userID == "" {
		return alert, nil
	}

	settings, err := s.Settings(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load user settings", slog.Any("error", xerrors.New(err)))
		return alert, nil
	}
	if !settings.AutoAlertEnabled {
		return alert, nil
	}

	inCooldown, err := s.cooldown.Active(ctx, userID)
	if err != nil {
		// Fail open: notify anyway.
		s.logger.WarnContext(ctx, "cooldown lookup failed", slog.Any("error", xerrors.New(err)))
	}
	if inCooldown {
		s.logger.InfoContext(ctx, "contact notification suppressed by false-alarm cooldown",
			slog.String("alert_id", alert.ID),
			slog.String("user_id", userID),
		)
		return alert, nil
	}

	if _, err := s.NotifyEmergencyContacts(ctx, alert, userID); err != nil {
		if errors.Is(err, ErrNoContacts) {
			s.logger.WarnContext(ctx, "no emergency contacts found for user", slog.String("user_id", userID))
		} else {
			s.logger.ErrorContext(ctx, "failed to notify emergency contacts", slog.Any("error", xerrors.New(err)))
		}
	}

	return alert, nil
}

// NotifyEmergencyContacts sends alert to every active contact by priority,
// records the deliveries and marks the alert sent.
func (s *Service) NotifyEmergencyContacts(ctx context.Context, alert *models.SafetyAlert, userID string) ([]models.ContactNotification, error) {
	contacts, err := s.store.GetEmergencyContacts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load emergency contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}

	notified := make([]models.ContactNotification, 0, len(contacts))
	for _, contact := range contacts {
		if err := s.notifier.Notify(ctx, contact, *alert); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				slog.String("contact", contact.Name),
				slog.Any("error", xerrors.New(err)),
			)
			continue
		}
		method := contact.NotificationMethod()
		notified = append(notified, models.ContactNotification{
			Name:   contact.Name,
			Method: method,
			SentAt: s.now(),
		})
		s.metrics.RecordNotification(ctx, method)
	}

	if err := s.store.SetContactsNotified(ctx, alert.ID, notified); err != nil {
		return notified, fmt.Errorf("failed to record notifications: %w", err)
	}
	if err := s.store.UpdateAlertStatus(ctx, alert.ID, models.StatusSent, ""); err != nil {
		return notified, fmt.Errorf("failed to mark alert sent: %w", err)
	}
	alert.Status = models.StatusSent
	alert.ContactsNotified = notified

	s.logger.InfoContext(ctx, "emergency contacts notified",
		slog.String("alert_id", alert.ID),
		slog.Int("notified", len(notified)),
		slog.Int("contacts", len(contacts)),
	)
	return notified, nil
}

// SafetyResponseText is the response recorded for a safety-check answer.
func SafetyResponseText(isSafe bool, message string) string {
	text := "User confirmed distress"
	if isSafe {
		text = "User confirmed safe"
	}
	if message != "" {
		text += ": " + message
	}
	return text
}

// RespondToSafetyCheck resolves an alert from the user's answer. Safe answers
// mark it a false alarm and start the user's cooldown window.
func (s *Service) RespondToSafetyCheck(ctx context.Context, alertID string, isSafe bool, message string) (models.SafetyAlert, error) {
	alert, err := s.store.GetSafetyAlert(ctx, alertID)
	if err != nil {
		return models.SafetyAlert{}, err
	}

	status := models.StatusAcknowledged
	if isSafe {
		status = models.StatusFalseAlarm
	}
	if err := s.store.UpdateAlertStatus(ctx, alertID, status, SafetyResponseText(isSafe, message)); err != nil {
		return models.SafetyAlert{}, fmt.Errorf("failed to update alert: %w", err)
	}

	if isSafe && alert.UserID != "" {
		settings, err := s.Settings(ctx, alert.UserID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load settings for cooldown", slog.Any("error", xerrors.New(err)))
		} else if err := s.cooldown.Start(ctx, alert.UserID, settings.FalseAlarmCooldown()); err != nil {
			s.logger.WarnContext(ctx, "failed to start cooldown", slog.Any("error", xerrors.New(err)))
		}
	}

	return s.store.GetSafetyAlert(ctx, alertID)
}

// ActiveAlerts lists the user's unresolved alerts.
func (s *Service) ActiveAlerts(ctx context.Context, userID string) ([]models.SafetyAlert, error) {
	return s.store.GetActiveAlerts(ctx, userID)
}
