package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safety-monitor/models"
	"safety-monitor/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	eventsCollection   = "detection_events"
	alertsCollection   = "safety_alerts"
	contactsCollection = "emergency_contacts"
	settingsCollection = "user_settings"
)

type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoClient(uri, database string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	return &MongoClient{client: client, db: client.Database(database)}, nil
}

func (db *MongoClient) Close() error {
	if db.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.client.Disconnect(ctx)
	}
	return nil
}

func (db *MongoClient) SaveDetectionEvent(ctx context.Context, event *models.DetectionEvent) error {
	if event.ID == "" {
		event.ID = utils.GenerateUniqueID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if _, err := db.db.Collection(eventsCollection).InsertOne(ctx, event); err != nil {
		return fmt.Errorf("error storing detection event: %w", err)
	}
	return nil
}

func (db *MongoClient) GetRecentDetectionEvents(ctx context.Context, userID string, limit int) ([]models.DetectionEvent, error) {
	if limit <= 0 {
		limit = 10
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := db.db.Collection(eventsCollection).Find(ctx, userFilter(userID), opts)
	if err != nil {
		return nil, fmt.Errorf("error querying detection events: %w", err)
	}

	var events []models.DetectionEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("error decoding detection events: %w", err)
	}
	return events, nil
}

func (db *MongoClient) CreateSafetyAlert(ctx context.Context, alert *models.SafetyAlert) error {
	if alert.ID == "" {
		alert.ID = utils.GenerateUniqueID()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	if alert.ContactsNotified == nil {
		alert.ContactsNotified = []models.ContactNotification{}
	}

	if _, err := db.db.Collection(alertsCollection).InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("error creating safety alert: %w", err)
	}
	return nil
}

func (db *MongoClient) GetSafetyAlert(ctx context.Context, alertID string) (models.SafetyAlert, error) {
	var alert models.SafetyAlert
	err := db.db.Collection(alertsCollection).FindOne(ctx, bson.M{"_id": alertID}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.SafetyAlert{}, ErrNotFound
		}
		return models.SafetyAlert{}, fmt.Errorf("failed to retrieve safety alert: %w", err)
	}
	return alert, nil
}

func (db *MongoClient) UpdateAlertStatus(ctx context.Context, alertID string, status models.AlertStatus, userResponse string) error {
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	if userResponse != "" {
		set["user_response"] = userResponse
	}
	return db.updateAlert(ctx, alertID, set)
}

func (db *MongoClient) SetContactsNotified(ctx context.Context, alertID string, notified []models.ContactNotification) error {
	if notified == nil {
		notified = []models.ContactNotification{}
	}
	return db.updateAlert(ctx, alertID, bson.M{"contacts_notified": notified, "updated_at": time.Now().UTC()})
}

func (db *MongoClient) updateAlert(ctx context.Context, alertID string, set bson.M) error {
	res, err := db.db.Collection(alertsCollection).UpdateByID(ctx, alertID, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("error updating safety alert: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *MongoClient) GetActiveAlerts(ctx context.Context, userID string) ([]models.SafetyAlert, error) {
	filter := userFilter(userID)
	filter["status"] = bson.M{"$in": []models.AlertStatus{models.StatusPending, models.StatusSent}}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := db.db.Collection(alertsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying active alerts: %w", err)
	}

	var alerts []models.SafetyAlert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("error decoding safety alerts: %w", err)
	}
	return alerts, nil
}

func (db *MongoClient) AddEmergencyContact(ctx context.Context, contact *models.EmergencyContact) error {
	if contact.ID == "" {
		contact.ID = utils.GenerateUniqueID()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}

	if _, err := db.db.Collection(contactsCollection).InsertOne(ctx, contact); err != nil {
		return fmt.Errorf("error storing emergency contact: %w", err)
	}
	return nil
}

func (db *MongoClient) GetEmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "priority", Value: 1},
		{Key: "created_at", Value: 1},
	})
	cursor, err := db.db.Collection(contactsCollection).Find(ctx, bson.M{"user_id": userID, "active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying emergency contacts: %w", err)
	}

	var contacts []models.EmergencyContact
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("error decoding emergency contacts: %w", err)
	}
	return contacts, nil
}

func (db *MongoClient) GetUserSettings(ctx context.Context, userID string) (models.UserSettings, error) {
	var settings models.UserSettings
	err := db.db.Collection(settingsCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&settings)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.UserSettings{}, ErrNotFound
		}
		return models.UserSettings{}, fmt.Errorf("failed to retrieve user settings: %w", err)
	}
	return settings, nil
}

func (db *MongoClient) SaveUserSettings(ctx context.Context, settings models.UserSettings) error {
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	_, err := db.db.Collection(settingsCollection).ReplaceOne(ctx, bson.M{"_id": settings.UserID}, settings, opts)
	if err != nil {
		return fmt.Errorf("error saving user settings: %w", err)
	}
	return nil
}

// userFilter matches documents with no user_id when userID is empty, since
// the field is omitted on insert.
func userFilter(userID string) bson.M {
	if userID == "" {
		return bson.M{"user_id": bson.M{"$exists": false}}
	}
	return bson.M{"user_id": userID}
}
