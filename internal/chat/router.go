package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kulapay/kulapay-backend/internal/loyalty"
	"github.com/kulapay/kulapay-backend/internal/metrics"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/services"
	"golang.org/x/exp/slog"
)

// Kind is the classification of an inbound chat message.
type Kind string

const (
	KindGreeting      Kind = "greeting"
	KindSaleIntent    Kind = "sale_intent"
	KindSaleCommand   Kind = "sale_command"
	KindPointsIntent  Kind = "points_intent"
	KindPointsCommand Kind = "points_command"
	KindCreditIntent  Kind = "credit_intent"
	KindCreditCommand Kind = "credit_command"
	KindUnrecognized  Kind = "unrecognized"
)

const (
	saleKeyword   = "sale"
	pointsKeyword = "points"
	creditKeyword = "credit"
	acceptKeyword = "accept"
)

var greetings = map[string]bool{"hi": true, "hello": true, "hey": true, "start": true, "help": true}

// Sales records a sale on behalf of a vendor.
type Sales interface {
	RecordSale(ctx context.Context, req services.SaleRequest) (*services.SaleResult, error)
}

// Credit serves the points and credit read paths and loan acceptance.
type Credit interface {
	PointsInfo(ctx context.Context, customerPhone string) (loyalty.PointsInfo, error)
	CheckEligibility(ctx context.Context, customerPhone string) (loyalty.Eligibility, error)
	AcceptLoan(ctx context.Context, vendorPhone, customerPhone string, channel models.Channel) (*services.LoanResult, error)
}

// Message is one inbound chat message from a vendor.
type Message struct {
	From      string
	Text      string
	Channel   models.Channel
	MessageID string
}

// Reply is the router's answer to a Message.
type Reply struct {
	Kind Kind
	Text string
}

// Router answers chat messages. Each message is handled on its own; there is no conversation state.
type Router struct {
	sales    Sales
	credit   Credit
	currency string
	metrics  *metrics.Collector
}

// NewRouter creates a new Router
func NewRouter(sales Sales, credit Credit, currency string, collector *metrics.Collector) *Router {
	if currency == "" {
		currency = "KES"
	}
	return &Router{sales: sales, credit: credit, currency: currency, metrics: collector}
}

// Classify maps text to a Kind. Commands, a keyword followed by arguments, win over intents.
func Classify(text string) Kind {
	lower := strings.ToLower(strings.TrimSpace(text))
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return KindUnrecognized
	}

	if len(fields) > 1 {
		switch fields[0] {
		case saleKeyword:
			return KindSaleCommand
		case pointsKeyword:
			return KindPointsCommand
		case creditKeyword:
			return KindCreditCommand
		}
	}

	switch {
	case greetings[lower]:
		return KindGreeting
	case strings.Contains(lower, "sale") || strings.Contains(lower, "sell"):
		return KindSaleIntent
	case strings.Contains(lower, "points"):
		return KindPointsIntent
	case strings.Contains(lower, "credit") || strings.Contains(lower, "loan"):
		return KindCreditIntent
	}
	return KindUnrecognized
}

// Handle classifies msg and produces the reply. Failures become reply text, never errors.
func (r *Router) Handle(ctx context.Context, msg Message) Reply {
	kind := Classify(msg.Text)
	r.metrics.ChatMessage(string(kind))

	var text string
	switch kind {
	case KindGreeting:
		text = helpText
	case KindSaleIntent:
		text = saleHelp
	case KindPointsIntent:
		text = pointsHelp
	case KindCreditIntent:
		text = creditHelp
	case KindSaleCommand:
		text = r.sale(ctx, msg)
	case KindPointsCommand:
		text = r.points(ctx, strings.Fields(msg.Text))
	case KindCreditCommand:
		text = r.creditCommand(ctx, msg)
	default:
		text = unrecognizedText
	}
	return Reply{Kind: kind, Text: text}
}

// sale handles "sale <phone> <amount> <payment>".
func (r *Router) sale(ctx context.Context, msg Message) string {
	args := strings.Fields(msg.Text)
	if len(args) != 4 {
		return "Invalid format. Use: sale <phone> <amount> <cash|mpesa>"
	}

	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "Invalid amount. Please use a number."
	}
	if amount <= 0 {
		return "Amount must be greater than 0."
	}
	kind, ok := models.ParsePaymentKind(args[3])
	if !ok {
		return "Payment type must be 'cash' or 'mpesa'."
	}

	req := services.SaleRequest{
		VendorPhone:   msg.From,
		CustomerPhone: args[1],
		Amount:        amount,
		Kind:          kind,
		Channel:       msg.Channel,
	}
	if msg.MessageID != "" {
		req.Reference = string(msg.Channel) + ":" + msg.MessageID
	}

	result, err := r.sales.RecordSale(ctx, req)
	if err != nil {
		return r.saleFailure(err)
	}

	text := fmt.Sprintf("Sale successful!\n\nAmount: %.2f %s\nPayment: %s\nPoints earned: %.2f\n\nCustomer now has %.2f total points.",
		amount, r.currency, kind.Label(), result.PointsEarned, result.TotalPoints)
	if result.Eligible {
		text += "\n" + result.Eligibility.Message
	}
	return text
}

func (r *Router) saleFailure(err error) string {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrVendorNotFound):
		return "Vendor not found. Please register first."
	case errors.As(err, &verr):
		return "Sale not recorded: " + verr.Message + "."
	}
	slog.Error("Chat sale failed", "error", err)
	return "Sale could not be recorded. Please try again later."
}

// points handles "points <phone>".
func (r *Router) points(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return "Invalid format. Use: points <phone>"
	}

	info, err := r.credit.PointsInfo(ctx, args[1])
	if err != nil {
		if errors.Is(err, services.ErrCustomerNotFound) {
			return "Customer not found."
		}
		slog.Error("Chat points lookup failed", "error", err)
		return "Could not look up points. Please try again later."
	}
	return info.Message
}

// creditCommand handles "credit <phone>" and "credit <phone> accept".
func (r *Router) creditCommand(ctx context.Context, msg Message) string {
	args := strings.Fields(msg.Text)
	accept := len(args) == 3 && strings.EqualFold(args[2], acceptKeyword)
	if len(args) != 2 && !accept {
		return "Invalid format. Use: credit <phone> [accept]"
	}
	customerPhone := args[1]

	if !accept {
		eligibility, err := r.credit.CheckEligibility(ctx, customerPhone)
		if err != nil {
			slog.Error("Chat eligibility check failed", "error", err)
			return "Could not check credit. Please try again later."
		}
		if !eligibility.Eligible {
			return eligibility.Message
		}
		return fmt.Sprintf("%s\n\nTo accept the loan, reply:\ncredit %s accept", eligibility.Message, customerPhone)
	}

	loan, err := r.credit.AcceptLoan(ctx, msg.From, customerPhone, msg.Channel)
	switch {
	case errors.Is(err, services.ErrNotEligible):
		return loan.Eligibility.Message
	case errors.Is(err, services.ErrVendorNotFound):
		return "Vendor not found. Please register first."
	case errors.Is(err, services.ErrCustomerNotFound):
		return "Customer not found."
	case err != nil:
		slog.Error("Chat loan acceptance failed", "error", err)
		return "Could not process the loan. Please try again later."
	}
	return fmt.Sprintf("Loan approved!\n\nAmount: %.2f %s\nRepayment will be processed via M-Pesa.", loan.Amount, r.currency)
}

const (
	helpText = "Welcome to KulaPay!\n\n" +
		"I can help you with:\n" +
		"- New Sale: record a customer purchase\n" +
		"- Check Points: view customer loyalty points\n" +
		"- Credit: check credit eligibility\n\n" +
		"Just type what you'd like to do!"

	saleHelp = "New Sale\n\n" +
		"Send the customer phone number, the amount and the payment type (cash or mpesa).\n" +
		"Format: sale <phone> <amount> <cash|mpesa>\n" +
		"Example: sale 0712345678 500 cash"

	pointsHelp = "Check Points\n\n" +
		"Send the customer phone number.\n" +
		"Format: points <phone>\n" +
		"Example: points 0712345678"

	creditHelp = "Credit (Eat Now, Pay Later)\n\n" +
		"Send the customer phone number to check eligibility.\n" +
		"Format: credit <phone>\n" +
		"Example: credit 0712345678"

	unrecognizedText = "I didn't understand that.\n\n" +
		"Try:\n" +
		"- 'sale' to record a new sale\n" +
		"- 'points' to check customer points\n" +
		"- 'credit' to check credit eligibility\n" +
		"- 'help' to see all options"
)
