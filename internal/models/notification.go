package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification statuses
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Notification types
const (
	NotificationTypeSaleReceipt = "SALE_RECEIPT"
	NotificationTypeReply       = "REPLY"
	NotificationTypeLoan        = "LOAN"
)

// Notification records one outbound message and its delivery outcome.
type Notification struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PhoneNumber   string             `bson:"phoneNumber" json:"phoneNumber"`
	Channel       Channel            `bson:"channel" json:"channel"`
	Content       string             `bson:"content" json:"content"`
	Type          string             `bson:"type" json:"type"`
	Status        string             `bson:"status" json:"status"`
	StatusMessage string             `bson:"statusMessage,omitempty" json:"statusMessage,omitempty"`
	Gateway       string             `bson:"gateway" json:"gateway"`
	MessageID     string             `bson:"messageId,omitempty" json:"messageId,omitempty"`
	SentDate      time.Time          `bson:"sentDate,omitempty" json:"sentDate,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
