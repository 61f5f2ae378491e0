// Package memory is an in-process ledger store used for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ repositories.VendorRepository       = (*VendorRepository)(nil)
	_ repositories.CustomerRepository     = (*CustomerRepository)(nil)
	_ repositories.TransactionRepository  = (*TransactionRepository)(nil)
	_ repositories.NotificationRepository = (*NotificationRepository)(nil)
)

// Store holds all ledger state in memory. Every repository built from the same Store
// shares one lock, so each method is atomic with respect to the others.
type Store struct {
	mu            sync.RWMutex
	vendors       map[string]*models.Vendor
	customers     map[string]*models.Customer
	transactions  []*models.Transaction
	references    map[string]*models.Transaction
	notifications map[primitive.ObjectID]*models.Notification
	now           func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		vendors:       make(map[string]*models.Vendor),
		customers:     make(map[string]*models.Customer),
		references:    make(map[string]*models.Transaction),
		notifications: make(map[primitive.ObjectID]*models.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source. Tests use it to pin CreatedAt values.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Vendors returns the vendor repository view of the store.
func (s *Store) Vendors() *VendorRepository { return &VendorRepository{s} }

// Customers returns the customer repository view of the store.
func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{s} }

// Transactions returns the transaction repository view of the store.
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s} }

// Notifications returns the notification repository view of the store.
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s} }

// NotificationsFor returns copies of the notifications recorded for a phone number.
func (s *Store) NotificationsFor(phone string) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.PhoneNumber == phone {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// VendorRepository is the in-memory vendor store.
type VendorRepository struct{ s *Store }

func (r *VendorRepository) Create(_ context.Context, vendor *models.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.vendors[vendor.PhoneNumber]; ok {
		return repositories.ErrDuplicate
	}
	now := r.s.now()
	vendor.ID = primitive.NewObjectID()
	vendor.CreatedAt = now
	vendor.UpdatedAt = now
	stored := *vendor
	r.s.vendors[vendor.PhoneNumber] = &stored
	return nil
}

func (r *VendorRepository) FindByPhone(_ context.Context, phone string) (*models.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vendors[phone]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (r *VendorRepository) List(_ context.Context, skip, limit int) ([]*models.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]*models.Vendor, 0, len(r.s.vendors))
	for _, v := range r.s.vendors {
		out := *v
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return page(all, skip, limit), nil
}

func (r *VendorRepository) UpdatePIN(_ context.Context, id primitive.ObjectID, pinHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v := r.s.vendorByID(id)
	if v == nil {
		return repositories.ErrNotFound
	}
	v.PINHash = pinHash
	v.UpdatedAt = r.s.now()
	return nil
}

func (r *VendorRepository) IncrementBalance(_ context.Context, id primitive.ObjectID, amount float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v := r.s.vendorByID(id)
	if v == nil {
		return repositories.ErrNotFound
	}
	v.WalletBalance += amount
	v.UpdatedAt = r.s.now()
	return nil
}

func (s *Store) vendorByID(id primitive.ObjectID) *models.Vendor {
	for _, v := range s.vendors {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// CustomerRepository is the in-memory customer store.
type CustomerRepository struct{ s *Store }

func (r *CustomerRepository) FindByPhone(_ context.Context, phone string) (*models.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[phone]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *CustomerRepository) GetOrCreate(_ context.Context, phone, name string) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[phone]
	if !ok {
		now := r.s.now()
		c = &models.Customer{
			ID:          primitive.NewObjectID(),
			PhoneNumber: phone,
			Name:        name,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		r.s.customers[phone] = c
	}
	out := *c
	return &out, nil
}

func (r *CustomerRepository) IncrementPoints(_ context.Context, phone string, points float64) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[phone]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c.KulaPoints += points
	c.UpdatedAt = r.s.now()
	out := *c
	return &out, nil
}

func (r *CustomerRepository) SetCreditLimit(_ context.Context, phone string, limit float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[phone]
	if !ok {
		return repositories.ErrNotFound
	}
	c.CreditLimit = limit
	c.UpdatedAt = r.s.now()
	return nil
}

// TransactionRepository is the in-memory transaction ledger.
type TransactionRepository struct{ s *Store }

func (r *TransactionRepository) Create(_ context.Context, tx *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tx.Reference != "" {
		if _, ok := r.s.references[tx.Reference]; ok {
			return repositories.ErrDuplicate
		}
	}
	tx.ID = primitive.NewObjectID()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.s.now()
	}
	stored := *tx
	r.s.transactions = append(r.s.transactions, &stored)
	if tx.Reference != "" {
		r.s.references[tx.Reference] = &stored
	}
	return nil
}

func (r *TransactionRepository) FindByReference(_ context.Context, reference string) (*models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tx, ok := r.s.references[reference]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := *tx
	return &out, nil
}

func (r *TransactionRepository) List(_ context.Context, skip, limit int) ([]*models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]*models.Transaction, 0, len(r.s.transactions))
	for i := len(r.s.transactions) - 1; i >= 0; i-- {
		out := *r.s.transactions[i]
		all = append(all, &out)
	}
	return page(all, skip, limit), nil
}

func (r *TransactionRepository) SpendSummary(_ context.Context, customerPhone string) (models.Summary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var sum models.Summary
	for _, tx := range r.s.transactions {
		if tx.CustomerPhone == customerPhone && tx.PaymentKind != models.PaymentKindCredit {
			sum.Count++
			sum.Total += tx.Amount
		}
	}
	return sum, nil
}

func (r *TransactionRepository) VendorSummary(_ context.Context, vendorID primitive.ObjectID, from, to time.Time) (models.Summary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var sum models.Summary
	for _, tx := range r.s.transactions {
		if tx.VendorID != vendorID || tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		sum.Count++
		sum.Total += tx.Amount
	}
	return sum, nil
}

// NotificationRepository is the in-memory notification log.
type NotificationRepository struct{ s *Store }

func (r *NotificationRepository) Create(_ context.Context, notification *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	stored := *notification
	r.s.notifications[notification.ID] = &stored
	return nil
}

func (r *NotificationRepository) UpdateStatus(_ context.Context, id primitive.ObjectID, status, messageID, statusMessage string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return repositories.ErrNotFound
	}
	now := r.s.now()
	n.Status = status
	n.StatusMessage = statusMessage
	n.UpdatedAt = now
	if messageID != "" {
		n.MessageID = messageID
	}
	if status == models.NotificationStatusSent {
		n.SentDate = now
	}
	return nil
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
