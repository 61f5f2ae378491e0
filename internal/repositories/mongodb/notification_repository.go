package mongodb

import (
	"context"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NotificationRepository handles MongoDB operations for Notification
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection(NotificationsCollection),
	}
}

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	now := time.Now().UTC()
	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, notification)
	return err
}

// UpdateStatus updates the delivery status of a notification
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, messageID, statusMessage string) error {
	now := time.Now().UTC()
	set := bson.M{
		"status":        status,
		"statusMessage": statusMessage,
		"updatedAt":     now,
	}
	if messageID != "" {
		set["messageId"] = messageID
	}
	if status == models.NotificationStatusSent {
		set["sentDate"] = now
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
