package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key (phone number, transaction reference) already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// VendorRepository defines the interface for vendor data operations
type VendorRepository interface {
	Create(ctx context.Context, vendor *models.Vendor) error
	FindByPhone(ctx context.Context, phone string) (*models.Vendor, error)
	List(ctx context.Context, skip, limit int) ([]*models.Vendor, error)
	UpdatePIN(ctx context.Context, id primitive.ObjectID, pinHash string) error
	IncrementBalance(ctx context.Context, id primitive.ObjectID, amount float64) error
}

// CustomerRepository defines the interface for customer data operations.
// Point and limit updates are single-document atomic writes; there is no multi-document transaction.
type CustomerRepository interface {
	FindByPhone(ctx context.Context, phone string) (*models.Customer, error)
	GetOrCreate(ctx context.Context, phone, name string) (*models.Customer, error)
	IncrementPoints(ctx context.Context, phone string, points float64) (*models.Customer, error)
	SetCreditLimit(ctx context.Context, phone string, limit float64) error
}

// TransactionRepository defines the interface for ledger transactions
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
	List(ctx context.Context, skip, limit int) ([]*models.Transaction, error)
	// SpendSummary aggregates a customer's transactions, excluding Credit-kind entries.
	SpendSummary(ctx context.Context, customerPhone string) (models.Summary, error)
	// VendorSummary aggregates a vendor's transactions created in [from, to).
	VendorSummary(ctx context.Context, vendorID primitive.ObjectID, from, to time.Time) (models.Summary, error)
}

// NotificationRepository defines the interface for outbound message records
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status, messageID, statusMessage string) error
}
