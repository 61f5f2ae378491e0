package mongodb

import (
	"context"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

// CustomerRepository handles MongoDB operations for Customer
type CustomerRepository struct {
	collection *mongo.Collection
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(db *mongo.Database) *CustomerRepository {
	return &CustomerRepository{
		collection: db.Collection(CustomersCollection),
	}
}

// FindByPhone finds a customer by phone number
func (r *CustomerRepository) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.collection.FindOne(ctx, bson.M{"phoneNumber": phone}).Decode(&customer); err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

// GetOrCreate returns the customer with the given phone, creating it with zero points and
// zero credit when absent. The upsert makes concurrent first sales converge on one document.
func (r *CustomerRepository) GetOrCreate(ctx context.Context, phone, name string) (*models.Customer, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"phoneNumber": phone,
			"name":        name,
			"kulaPoints":  0.0,
			"creditLimit": 0.0,
			"createdAt":   now,
			"updatedAt":   now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var customer models.Customer
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"phoneNumber": phone}, update, opts).Decode(&customer)
	if err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

// IncrementPoints atomically adds points and returns the updated customer
func (r *CustomerRepository) IncrementPoints(ctx context.Context, phone string, points float64) (*models.Customer, error) {
	update := bson.M{
		"$inc": bson.M{"kulaPoints": points},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var customer models.Customer
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"phoneNumber": phone}, update, opts).Decode(&customer)
	if err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

// SetCreditLimit overwrites the derived credit limit
func (r *CustomerRepository) SetCreditLimit(ctx context.Context, phone string, limit float64) error {
	update := bson.M{"$set": bson.M{"creditLimit": limit, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"phoneNumber": phone}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
