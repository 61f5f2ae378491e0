package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kulapay/kulapay-backend/internal/loyalty"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories/memory"
	"github.com/kulapay/kulapay-backend/internal/services"
	"github.com/kulapay/kulapay-backend/internal/ussd"
	"github.com/kulapay/kulapay-backend/pkg/mobilemoney"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	vendorPhone   = "+254700000001"
	customerPhone = "0712345678"
)

type env struct {
	store   *memory.Store
	vendors *services.VendorService
	sales   *services.SaleService
	router  *Router
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	vendors := services.NewVendorService(store.Vendors(), bcrypt.MinCost)
	credit := services.NewCreditService(store.Vendors(), store.Customers(), store.Transactions(),
		loyalty.DefaultPolicy(), mobilemoney.NewClient(mobilemoney.Config{Mock: true}), nil, "254")
	sales := services.NewSaleService(store.Vendors(), store.Customers(), store.Transactions(), credit, nil, nil)

	_, err := vendors.Onboard(context.Background(), vendorPhone, "Jane", "Jane's Kitchen", "1234")
	require.NoError(t, err)

	return &env{store: store, vendors: vendors, sales: sales, router: NewRouter(sales, credit, "KES", nil)}
}

func (e *env) say(text string) Reply {
	return e.router.Handle(context.Background(), Message{From: vendorPhone, Text: text, Channel: models.ChannelWhatsApp})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Kind
	}{
		{"hi", KindGreeting},
		{"  HELLO ", KindGreeting},
		{"help", KindGreeting},
		{"sale", KindSaleIntent},
		{"I want to make a new sale", KindSaleIntent},
		{"sell", KindSaleIntent},
		{"sale 0712345678 500 cash", KindSaleCommand},
		{"Sale 0712345678", KindSaleCommand},
		{"points", KindPointsIntent},
		{"check points please", KindPointsIntent},
		{"points 0712345678", KindPointsCommand},
		{"credit", KindCreditIntent},
		{"can I get a loan", KindCreditIntent},
		{"credit 0712345678 accept", KindCreditCommand},
		{"salesman", KindSaleIntent},
		{"what is this", KindUnrecognized},
		{"", KindUnrecognized},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.text), tt.text)
	}
}

func TestHelpReplies(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, helpText, e.say("hi").Text)
	assert.Contains(t, e.say("sale").Text, "Format: sale <phone> <amount> <cash|mpesa>")
	assert.Contains(t, e.say("points").Text, "Format: points <phone>")
	assert.Contains(t, e.say("loan").Text, "Format: credit <phone>")
	assert.Equal(t, unrecognizedText, e.say("gibberish").Text)
}

func TestSaleCommand(t *testing.T) {
	e := newEnv(t)

	reply := e.say("sale 0712345678 500 cash")
	assert.Equal(t, KindSaleCommand, reply.Kind)
	assert.Equal(t, "Sale successful!\n\nAmount: 500.00 KES\nPayment: Cash\nPoints earned: 50.00\n\nCustomer now has 50.00 total points.", reply.Text)

	reply = e.say("sale 0712345678 100 mpesa")
	assert.Contains(t, reply.Text, "Payment: M-Pesa")
	assert.Contains(t, reply.Text, "Customer now has 60.00 total points.")

	v, err := e.vendors.FindByPhone(context.Background(), vendorPhone)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v.WalletBalance)
}

func TestSaleCommandErrors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		text string
		want string
	}{
		{"sale 0712345678 500", "Invalid format. Use: sale <phone> <amount> <cash|mpesa>"},
		{"sale 0712345678 500 cash now", "Invalid format. Use: sale <phone> <amount> <cash|mpesa>"},
		{"sale 0712345678 five cash", "Invalid amount. Please use a number."},
		{"sale 0712345678 -5 cash", "Amount must be greater than 0."},
		{"sale 0712345678 500 credit", "Payment type must be 'cash' or 'mpesa'."},
		{"sale 0712345678 500 card", "Payment type must be 'cash' or 'mpesa'."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.say(tt.text).Text, tt.text)
	}

	_, err := e.store.Customers().FindByPhone(context.Background(), customerPhone)
	assert.Error(t, err)
}

func TestSaleCommandUnknownVendor(t *testing.T) {
	e := newEnv(t)

	reply := e.router.Handle(context.Background(), Message{From: "+254799999999", Text: "sale 0712345678 500 cash", Channel: models.ChannelWhatsApp})
	assert.Equal(t, "Vendor not found. Please register first.", reply.Text)

	_, err := e.store.Customers().FindByPhone(context.Background(), customerPhone)
	assert.Error(t, err)
}

func TestSaleCommandRetriedMessage(t *testing.T) {
	e := newEnv(t)
	msg := Message{From: vendorPhone, Text: "sale 0712345678 500 cash", Channel: models.ChannelWhatsApp, MessageID: "wamid.1"}

	first := e.router.Handle(context.Background(), msg)
	second := e.router.Handle(context.Background(), msg)
	assert.Equal(t, first, second)

	c, err := e.store.Customers().FindByPhone(context.Background(), customerPhone)
	require.NoError(t, err)
	assert.Equal(t, 50.0, c.KulaPoints)
}

func TestSaleCommandMatchesUSSDSale(t *testing.T) {
	ctx := context.Background()

	chatEnv := newEnv(t)
	chatEnv.say("sale 0712345678 500 cash")

	ussdEnv := newEnv(t)
	stats := services.NewStatsService(ussdEnv.store.Transactions())
	machine := ussd.NewMachine(ussdEnv.vendors, ussdEnv.sales, stats, ussd.DefaultOptions(), nil)
	resp := machine.Handle(ctx, ussd.Request{SessionID: "S1", PhoneNumber: vendorPhone, Text: "1234*1*Amina*0712345678*500*Chapati*1"})
	require.False(t, resp.Continue)

	chatTxs, err := chatEnv.store.Transactions().List(ctx, 0, 10)
	require.NoError(t, err)
	ussdTxs, err := ussdEnv.store.Transactions().List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, chatTxs, 1)
	require.Len(t, ussdTxs, 1)

	for _, pair := range [][2]any{
		{chatTxs[0].Amount, ussdTxs[0].Amount},
		{chatTxs[0].PaymentKind, ussdTxs[0].PaymentKind},
		{chatTxs[0].CustomerPhone, ussdTxs[0].CustomerPhone},
		{chatTxs[0].VendorPhone, ussdTxs[0].VendorPhone},
	} {
		assert.Equal(t, pair[0], pair[1])
	}

	chatCustomer, err := chatEnv.store.Customers().FindByPhone(ctx, customerPhone)
	require.NoError(t, err)
	ussdCustomer, err := ussdEnv.store.Customers().FindByPhone(ctx, customerPhone)
	require.NoError(t, err)
	assert.Equal(t, ussdCustomer.KulaPoints, chatCustomer.KulaPoints)
	assert.Equal(t, ussdCustomer.CreditLimit, chatCustomer.CreditLimit)
}

func TestPointsCommand(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, "Customer not found.", e.say("points 0712345678").Text)
	assert.Equal(t, "Invalid format. Use: points <phone>", e.say("points 0712345678 extra").Text)

	e.say("sale 0712345678 200 cash")
	reply := e.say("points 0712345678")
	assert.Equal(t, KindPointsCommand, reply.Kind)
	assert.Equal(t, "You have 20.00 KulaPoints. Spend 300.00 more to get a free Mandazi!", reply.Text)
}

func TestCreditCommand(t *testing.T) {
	e := newEnv(t)

	reply := e.say("credit 0712345678")
	assert.Equal(t, "Keep buying to unlock credit. Need 5 more transactions and 500.00 KES more.", reply.Text)

	reply = e.say("credit 0712345678 accept")
	assert.Equal(t, "Keep buying to unlock credit. Need 5 more transactions and 500.00 KES more.", reply.Text)

	assert.Equal(t, "Invalid format. Use: credit <phone> [accept]", e.say("credit 0712345678 please").Text)

	for i := 0; i < 5; i++ {
		e.say("sale 0712345678 200 cash")
	}

	reply = e.say("credit 0712345678")
	assert.Equal(t, "Available Credit: KES 200.00\n\nTo accept the loan, reply:\ncredit 0712345678 accept", reply.Text)

	reply = e.say("credit 0712345678 ACCEPT")
	assert.Equal(t, "Loan approved!\n\nAmount: 200.00 KES\nRepayment will be processed via M-Pesa.", reply.Text)

	txs, err := e.store.Transactions().List(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, txs, 6)
	var credits int
	for _, tx := range txs {
		if tx.PaymentKind == models.PaymentKindCredit {
			credits++
			assert.Equal(t, 200.0, tx.Amount)
		}
	}
	assert.Equal(t, 1, credits)

	// loans do not count as spend
	sum, err := e.store.Transactions().SpendSummary(context.Background(), customerPhone)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.Count)
}

func TestParseKulaCommand(t *testing.T) {
	cmd, err := ParseKulaCommand("KULA 0712345678 Chapati 50")
	require.NoError(t, err)
	assert.Equal(t, KulaCommand{CustomerPhone: customerPhone, Item: "Chapati", Amount: 50}, cmd)

	cmd, err = ParseKulaCommand("  kula 0712345678 Beef   stew with rice 120.5 ")
	require.NoError(t, err)
	assert.Equal(t, "Beef stew with rice", cmd.Item)
	assert.Equal(t, 120.5, cmd.Amount)

	for _, text := range []string{
		"",
		"INVALID COMMAND",
		"KULA0712345678 Chapati 50",
		"KULA 0712345678 50",
		"KULA 0712345678 Chapati fifty",
		"KULA 0712345678 Chapati 0",
		"KULA 0712345678 Chapati -10",
		"KULA 07123 Chapati 50",
		"KULAX 0712345678 Chapati 50",
	} {
		_, err := ParseKulaCommand(text)
		assert.ErrorIs(t, err, ErrInvalidKulaCommand, text)
	}
}

func TestRecordKula(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cmd, err := ParseKulaCommand("KULA 0712345678 Chapati 50")
	require.NoError(t, err)

	out := e.router.RecordKula(ctx, vendorPhone, models.ChannelSMS, "", cmd)
	require.True(t, out.Success)
	assert.Equal(t, "Sale Recorded! Customer 0712345678 earned 5.00 points. Total points: 5.00. Credit Limit: 0.00.", out.Message)
	assert.Equal(t, "Chapati", out.Result.Transaction.Item)
	assert.Equal(t, models.ChannelSMS, out.Result.Transaction.Channel)

	for i := 0; i < 4; i++ {
		out = e.router.RecordKula(ctx, vendorPhone, models.ChannelSMS, fmt.Sprintf("sms:%d", i), KulaCommand{CustomerPhone: customerPhone, Item: "Pilau", Amount: 200})
	}
	require.True(t, out.Success)
	assert.True(t, strings.HasSuffix(out.Message, "Credit Limit: 170.00. Credit Eligible!"), out.Message)

	out = e.router.RecordKula(ctx, "+254799999999", models.ChannelWhatsApp, "", cmd)
	assert.False(t, out.Success)
	assert.Equal(t, "Vendor +254799999999 not found. Please register first.", out.Message)
}
