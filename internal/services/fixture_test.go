package services

import (
	"context"
	"testing"
	"time"

	"github.com/kulapay/kulapay-backend/internal/loyalty"
	"github.com/kulapay/kulapay-backend/internal/metrics"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories/memory"
	"github.com/kulapay/kulapay-backend/pkg/mobilemoney"
	"github.com/kulapay/kulapay-backend/pkg/smsgateway"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	vendorPhone   = "+254700000001"
	customerPhone = "0712345678"
)

type fixture struct {
	store         *memory.Store
	gateway       *smsgateway.MockGateway
	metrics       *metrics.Collector
	notifications *NotificationService
	vendors       *VendorService
	credit        *CreditService
	sales         *SaleService
	stats         *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	gateway := smsgateway.NewMockGateway("254")
	collector := metrics.New()
	notifications := NewNotificationService(store.Notifications(), gateway, collector, 2, 16)
	t.Cleanup(func() { _ = notifications.Close(context.Background()) })

	credit := NewCreditService(store.Vendors(), store.Customers(), store.Transactions(),
		loyalty.DefaultPolicy(), mobilemoney.NewClient(mobilemoney.Config{Mock: true}), collector, "254")

	return &fixture{
		store:         store,
		gateway:       gateway,
		metrics:       collector,
		notifications: notifications,
		vendors:       NewVendorService(store.Vendors(), bcrypt.MinCost),
		credit:        credit,
		sales:         NewSaleService(store.Vendors(), store.Customers(), store.Transactions(), credit, notifications, collector),
		stats:         NewStatsService(store.Transactions()),
	}
}

func (f *fixture) vendor(t *testing.T) *models.Vendor {
	t.Helper()
	v, err := f.vendors.Onboard(context.Background(), vendorPhone, "Jane", "Jane's Kitchen", "1234")
	require.NoError(t, err)
	return v
}

// drain waits for queued notifications to be delivered.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.notifications.Close(ctx))
}

func cashSale(amount float64) SaleRequest {
	return SaleRequest{
		VendorPhone:   vendorPhone,
		CustomerPhone: customerPhone,
		Amount:        amount,
		Kind:          models.PaymentKindCash,
		Channel:       models.ChannelUSSD,
	}
}
