package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure VendorRepository implements the interface
var _ repositories.VendorRepository = (*VendorRepository)(nil)

// VendorRepository handles MongoDB operations for Vendor
type VendorRepository struct {
	collection *mongo.Collection
}

// NewVendorRepository creates a new VendorRepository
func NewVendorRepository(db *mongo.Database) *VendorRepository {
	return &VendorRepository{
		collection: db.Collection(VendorsCollection),
	}
}

// Create inserts a new vendor
func (r *VendorRepository) Create(ctx context.Context, vendor *models.Vendor) error {
	now := time.Now().UTC()
	vendor.ID = primitive.NewObjectID()
	vendor.CreatedAt = now
	vendor.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, vendor)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}

// FindByPhone finds a vendor by phone number
func (r *VendorRepository) FindByPhone(ctx context.Context, phone string) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.collection.FindOne(ctx, bson.M{"phoneNumber": phone}).Decode(&vendor)
	if err != nil {
		return nil, translate(err)
	}
	return &vendor, nil
}

// List returns vendors ordered by creation time
func (r *VendorRepository) List(ctx context.Context, skip, limit int) ([]*models.Vendor, error) {
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	vendors := []*models.Vendor{}
	if err := cursor.All(ctx, &vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

// UpdatePIN replaces the stored PIN hash
func (r *VendorRepository) UpdatePIN(ctx context.Context, id primitive.ObjectID, pinHash string) error {
	update := bson.M{"$set": bson.M{"pinHash": pinHash, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// IncrementBalance atomically adds amount to the vendor's wallet balance
func (r *VendorRepository) IncrementBalance(ctx context.Context, id primitive.ObjectID, amount float64) error {
	update := bson.M{
		"$inc": bson.M{"walletBalance": amount},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// translate maps driver errors onto the repository error set.
func translate(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repositories.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}
