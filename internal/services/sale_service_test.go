package services

import (
	"context"
	"testing"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSaleFreshCustomer(t *testing.T) {
	f := newFixture(t)
	f.vendor(t)

	result, err := f.sales.RecordSale(context.Background(), cashSale(500))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 50.0, result.PointsEarned)
	assert.Equal(t, 50.0, result.TotalPoints)
	assert.False(t, result.Eligible)
	assert.Zero(t, result.CreditLimit)
	assert.Equal(t, "Sale successful! Amount: 500.00 KES, Payment: Cash. Customer earned 50.00 points.", result.Message)

	customer, err := f.store.Customers().FindByPhone(context.Background(), customerPhone)
	require.NoError(t, err)
	assert.Equal(t, 50.0, customer.KulaPoints)
	assert.Zero(t, customer.CreditLimit)
}

func TestRecordSaleUnknownVendor(t *testing.T) {
	f := newFixture(t)

	_, err := f.sales.RecordSale(context.Background(), cashSale(500))
	assert.ErrorIs(t, err, ErrVendorNotFound)

	_, err = f.store.Customers().FindByPhone(context.Background(), customerPhone)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = f.store.Vendors().FindByPhone(context.Background(), vendorPhone)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRecordSaleValidation(t *testing.T) {
	f := newFixture(t)
	f.vendor(t)

	bad := []SaleRequest{
		cashSale(0),
		cashSale(-5),
		{VendorPhone: vendorPhone, Amount: 10, Kind: models.PaymentKindCash},
		{VendorPhone: vendorPhone, CustomerPhone: customerPhone, Amount: 10, Kind: models.PaymentKindCredit},
		{VendorPhone: vendorPhone, CustomerPhone: customerPhone, Amount: 10, Kind: "Barter"},
	}
	for _, req := range bad {
		_, err := f.sales.RecordSale(context.Background(), req)
		assert.True(t, IsValidation(err), "%+v", req)
	}

	sum, err := f.store.Transactions().SpendSummary(context.Background(), customerPhone)
	require.NoError(t, err)
	assert.Zero(t, sum.Count)
}

func TestRecordSaleUnlocksCappedCredit(t *testing.T) {
	f := newFixture(t)
	f.vendor(t)
	ctx := context.Background()

	var last *SaleResult
	for i := 0; i < 5; i++ {
		r, err := f.sales.RecordSale(ctx, cashSale(400))
		require.NoError(t, err)
		if i < 4 {
			assert.False(t, r.Eligible)
		}
		last = r
	}

	assert.True(t, last.Eligible)
	assert.Equal(t, 300.0, last.CreditLimit)
	assert.Equal(t, "Available Credit: KES 300.00", last.Eligibility.Message)
	assert.Equal(t, 200.0, last.TotalPoints)

	customer, err := f.store.Customers().FindByPhone(ctx, customerPhone)
	require.NoError(t, err)
	assert.Equal(t, 300.0, customer.CreditLimit)
}

func TestRecordSaleDuplicateReference(t *testing.T) {
	f := newFixture(t)
	f.vendor(t)
	ctx := context.Background()

	req := cashSale(500)
	req.Reference = "ussd:session-1"

	first, err := f.sales.RecordSale(ctx, req)
	require.NoError(t, err)
	second, err := f.sales.RecordSale(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, first.Message, second.Message)

	customer, err := f.store.Customers().FindByPhone(ctx, customerPhone)
	require.NoError(t, err)
	assert.Equal(t, 50.0, customer.KulaPoints)

	sum, err := f.store.Transactions().SpendSummary(ctx, customerPhone)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Count)
}

func TestRecordSaleMobileMoneyCreditsWallet(t *testing.T) {
	f := newFixture(t)
	f.vendor(t)
	ctx := context.Background()

	req := cashSale(250)
	req.Kind = models.PaymentKindMobileMoney
	result, err := f.sales.RecordSale(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, result.Message, "Payment: M-Pesa")

	_, err = f.sales.RecordSale(ctx, cashSale(100))
	require.NoError(t, err)

	vendor, err := f.vendors.FindByPhone(ctx, vendorPhone)
	require.NoError(t, err)
	assert.Equal(t, 250.0, vendor.WalletBalance)
}

func TestRecordSaleSendsReceipt(t *testing.T) {
	f := newFixture(t)
	f.vendor(t)

	_, err := f.sales.RecordSale(context.Background(), cashSale(500))
	require.NoError(t, err)
	f.drain(t)

	sent := f.gateway.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "+254712345678", sent[0].Phone)
	assert.Equal(t, "KulaPay: Your purchase of 500.00 KES was successful! You earned 50.00 Kula Points. Thank you!", sent[0].Message)

	recorded := f.store.NotificationsFor(customerPhone)
	require.Len(t, recorded, 1)
	assert.Equal(t, models.NotificationStatusSent, recorded[0].Status)
	assert.Equal(t, models.NotificationTypeSaleReceipt, recorded[0].Type)

	series, err := testutil.GatherAndCount(f.metrics.Registry(), "kulapay_sales_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}
