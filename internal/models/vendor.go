package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vendor represents a food vendor registered on KulaPay. The phone number is the identity.
type Vendor struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PhoneNumber   string             `bson:"phoneNumber" json:"phoneNumber"`
	OwnerName     string             `bson:"ownerName" json:"ownerName"`
	BusinessName  string             `bson:"businessName" json:"businessName"`
	PINHash       string             `bson:"pinHash,omitempty" json:"-"`
	WalletBalance float64            `bson:"walletBalance" json:"walletBalance"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasPIN reports whether the vendor has set a dashboard PIN.
func (v *Vendor) HasPIN() bool {
	return v.PINHash != ""
}
