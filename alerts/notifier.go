package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"safety-monitor/models"
	"safety-monitor/utils"
)

// Notifier delivers an alert to one emergency contact.
type Notifier interface {
	Notify(ctx context.Context, contact models.EmergencyContact, alert models.SafetyAlert) error
}

// LogNotifier simulates delivery by logging what would have been sent.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, contact models.EmergencyContact, alert models.SafetyAlert) error {
	recipient := contact.Email
	if contact.NotificationMethod() == "SMS" {
		recipient = contact.Phone
	}

	n.logger.InfoContext(ctx, "simulated emergency notification",
		slog.String("contact", contact.Name),
		slog.String("method", contact.NotificationMethod()),
		slog.String("recipient", recipient),
		slog.String("alert_id", alert.ID),
		slog.String("message", FormatNotification(alert)),
	)
	return nil
}

// FormatNotification builds the text sent to a contact: the contact message,
// a maps link or "Location not available", and the alert time.
func FormatNotification(alert models.SafetyAlert) string {
	return fmt.Sprintf("%s\n\n%s\n\nTime: %s",
		alert.MessageForContacts,
		LocationText(alert.Latitude, alert.Longitude),
		alert.CreatedAt.Format(time.RFC1123),
	)
}

func LocationText(lat, lng *float64) string {
	if lat == nil || lng == nil {
		return "Location not available"
	}
	return "Location: https://maps.google.com/?q=" +
		strconv.FormatFloat(*lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(*lng, 'f', -1, 64)
}
