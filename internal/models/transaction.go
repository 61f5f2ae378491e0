package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentKind is how a sale was settled.
type PaymentKind string

const (
	PaymentKindCash        PaymentKind = "Cash"
	PaymentKindMobileMoney PaymentKind = "MobileMoney"
	PaymentKindCredit      PaymentKind = "Credit"
)

// Valid reports whether k is one of the known payment kinds.
func (k PaymentKind) Valid() bool {
	switch k {
	case PaymentKindCash, PaymentKindMobileMoney, PaymentKindCredit:
		return true
	}
	return false
}

// Label is the human readable name used in replies.
func (k PaymentKind) Label() string {
	if k == PaymentKindMobileMoney {
		return "M-Pesa"
	}
	return string(k)
}

// ParsePaymentKind maps a user supplied token to a sale payment kind.
// Credit is never accepted here: credit is extended through the loan flow only.
func ParsePaymentKind(token string) (PaymentKind, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "cash":
		return PaymentKindCash, true
	case "mpesa", "m-pesa", "momo", "mobilemoney", "mobile-money":
		return PaymentKindMobileMoney, true
	}
	return "", false
}

// Channel identifies the inbound surface a transaction was recorded through.
type Channel string

const (
	ChannelUSSD     Channel = "ussd"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelAdmin    Channel = "admin"
)

// Transaction is an immutable ledger entry. Reference is an optional idempotency key.
type Transaction struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	VendorID      primitive.ObjectID `bson:"vendorId" json:"vendorId"`
	VendorPhone   string             `bson:"vendorPhone" json:"vendorPhone"`
	CustomerPhone string             `bson:"customerPhone" json:"customerPhone"`
	CustomerName  string             `bson:"customerName,omitempty" json:"customerName,omitempty"`
	Amount        float64            `bson:"amount" json:"amount"`
	PaymentKind   PaymentKind        `bson:"paymentKind" json:"paymentKind"`
	Item          string             `bson:"item,omitempty" json:"item,omitempty"`
	Channel       Channel            `bson:"channel" json:"channel"`
	Reference     string             `bson:"reference,omitempty" json:"reference,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// Summary aggregates a set of transactions.
type Summary struct {
	Count int64   `bson:"count" json:"count"`
	Total float64 `bson:"total" json:"total"`
}
