package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer represents a buyer identified by phone number, shared across all vendors.
type Customer struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PhoneNumber string             `bson:"phoneNumber" json:"phoneNumber"`
	Name        string             `bson:"name,omitempty" json:"name,omitempty"`
	KulaPoints  float64            `bson:"kulaPoints" json:"kulaPoints"`
	CreditLimit float64            `bson:"creditLimit" json:"creditLimit"` // rewritten on every eligibility check
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
