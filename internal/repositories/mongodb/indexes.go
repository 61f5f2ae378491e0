package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	VendorsCollection       = "vendors"
	CustomersCollection     = "customers"
	TransactionsCollection  = "transactions"
	NotificationsCollection = "notifications"
)

// EnsureIndexes creates the unique and lookup indexes the ledger relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		VendorsCollection: {
			{Keys: bson.D{{Key: "phoneNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CustomersCollection: {
			{Keys: bson.D{{Key: "phoneNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		TransactionsCollection: {
			{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "customerPhone", Value: 1}, {Key: "paymentKind", Value: 1}}},
			{Keys: bson.D{{Key: "vendorId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		NotificationsCollection: {
			{Keys: bson.D{{Key: "phoneNumber", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}

	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
