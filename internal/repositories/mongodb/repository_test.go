package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestVendorRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find by phone", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "kulapay.vendors", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "phoneNumber", Value: "+254700000001"},
			{Key: "ownerName", Value: "Jane"},
			{Key: "businessName", Value: "Jane's Kitchen"},
			{Key: "walletBalance", Value: 120.5},
		}))

		vendor, err := NewVendorRepository(mt.DB).FindByPhone(context.Background(), "+254700000001")
		require.NoError(t, err)
		assert.Equal(t, id, vendor.ID)
		assert.Equal(t, "Jane's Kitchen", vendor.BusinessName)
		assert.Equal(t, 120.5, vendor.WalletBalance)
	})

	mt.Run("find by phone not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "kulapay.vendors", mtest.FirstBatch))

		_, err := NewVendorRepository(mt.DB).FindByPhone(context.Background(), "+254700000009")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := NewVendorRepository(mt.DB).Create(context.Background(), &models.Vendor{PhoneNumber: "+254700000001"})
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})

	mt.Run("increment balance missing vendor", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := NewVendorRepository(mt.DB).IncrementBalance(context.Background(), primitive.NewObjectID(), 50)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestCustomerRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get or create returns upserted document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "phoneNumber", Value: "0712345678"},
			{Key: "kulaPoints", Value: 0.0},
			{Key: "creditLimit", Value: 0.0},
		}}))

		customer, err := NewCustomerRepository(mt.DB).GetOrCreate(context.Background(), "0712345678", "")
		require.NoError(t, err)
		assert.Equal(t, "0712345678", customer.PhoneNumber)
		assert.Zero(t, customer.KulaPoints)
	})

	mt.Run("increment points returns updated total", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "phoneNumber", Value: "0712345678"},
			{Key: "kulaPoints", Value: 150.0},
		}}))

		customer, err := NewCustomerRepository(mt.DB).IncrementPoints(context.Background(), "0712345678", 50)
		require.NoError(t, err)
		assert.Equal(t, 150.0, customer.KulaPoints)
	})

	mt.Run("increment points missing customer", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := NewCustomerRepository(mt.DB).IncrementPoints(context.Background(), "0712345678", 50)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	mt.Run("set credit limit", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := NewCustomerRepository(mt.DB).SetCreditLimit(context.Background(), "0712345678", 300)
		assert.NoError(t, err)
	})
}

func TestTransactionRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create assigns id and timestamp", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		tx := &models.Transaction{CustomerPhone: "0712345678", Amount: 500, PaymentKind: models.PaymentKindCash}
		require.NoError(t, NewTransactionRepository(mt.DB).Create(context.Background(), tx))
		assert.False(t, tx.ID.IsZero())
		assert.False(t, tx.CreatedAt.IsZero())
	})

	mt.Run("create duplicate reference", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: kulapay.transactions index: reference_1",
		}))

		err := NewTransactionRepository(mt.DB).Create(context.Background(), &models.Transaction{Amount: 1, Reference: "ussd:s1"})
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})

	mt.Run("spend summary", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "kulapay.transactions", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: int64(5)},
			{Key: "total", Value: 2000.0},
		}))

		sum, err := NewTransactionRepository(mt.DB).SpendSummary(context.Background(), "0712345678")
		require.NoError(t, err)
		assert.Equal(t, int64(5), sum.Count)
		assert.Equal(t, 2000.0, sum.Total)
	})

	mt.Run("vendor summary with no transactions", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "kulapay.transactions", mtest.FirstBatch))

		from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		sum, err := NewTransactionRepository(mt.DB).VendorSummary(context.Background(), primitive.NewObjectID(), from, from.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.Summary{}, sum)
	})
}

func TestNotificationRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create then mark sent", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		repo := NewNotificationRepository(mt.DB)
		n := &models.Notification{PhoneNumber: "+254712345678", Status: models.NotificationStatusPending}
		require.NoError(t, repo.Create(context.Background(), n))
		assert.NoError(t, repo.UpdateStatus(context.Background(), n.ID, models.NotificationStatusSent, "ATXid_1", ""))
	})
}
