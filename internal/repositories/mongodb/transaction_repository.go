package mongodb

import (
	"context"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository handles MongoDB operations for Transaction
type TransactionRepository struct {
	collection *mongo.Collection
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{
		collection: db.Collection(TransactionsCollection),
	}
}

// Create inserts a transaction. A repeated reference yields repositories.ErrDuplicate.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	tx.ID = primitive.NewObjectID()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, tx)
	if err != nil {
		return translate(err)
	}
	return nil
}

// FindByReference finds the transaction recorded under an idempotency reference
func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.collection.FindOne(ctx, bson.M{"reference": reference}).Decode(&tx); err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}

// List returns transactions, newest first
func (r *TransactionRepository) List(ctx context.Context, skip, limit int) ([]*models.Transaction, error) {
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	transactions := []*models.Transaction{}
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

// SpendSummary counts and sums a customer's non-credit transactions
func (r *TransactionRepository) SpendSummary(ctx context.Context, customerPhone string) (models.Summary, error) {
	return r.summarize(ctx, bson.D{
		{Key: "customerPhone", Value: customerPhone},
		{Key: "paymentKind", Value: bson.M{"$ne": models.PaymentKindCredit}},
	})
}

// VendorSummary counts and sums a vendor's transactions in [from, to)
func (r *TransactionRepository) VendorSummary(ctx context.Context, vendorID primitive.ObjectID, from, to time.Time) (models.Summary, error) {
	return r.summarize(ctx, bson.D{
		{Key: "vendorId", Value: vendorID},
		{Key: "createdAt", Value: bson.M{"$gte": from, "$lt": to}},
	})
}

func (r *TransactionRepository) summarize(ctx context.Context, match bson.D) (models.Summary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "total", Value: bson.M{"$sum": "$amount"}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return models.Summary{}, err
	}
	defer cursor.Close(ctx)

	var summary models.Summary
	if cursor.Next(ctx) {
		if err := cursor.Decode(&summary); err != nil {
			return models.Summary{}, err
		}
	}
	return summary, cursor.Err()
}
