package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/services"
	"golang.org/x/exp/slog"
)

const (
	// KulaKeyword opens every unified-callback command.
	KulaKeyword = "KULA"
	// MinKulaPhoneLength is the shortest customer phone token accepted.
	MinKulaPhoneLength = 9
	// KulaUsage is sent back to the sender of a malformed command.
	KulaUsage = "Invalid Format: Use 'KULA [CustomerPhone] [Item] [Amount]'"
)

// ErrInvalidKulaCommand is returned for text that does not follow the KULA grammar.
var ErrInvalidKulaCommand = errors.New("invalid KULA command")

// KulaCommand is a parsed "KULA <phone> <item words...> <amount>" line.
type KulaCommand struct {
	CustomerPhone string
	Item          string
	Amount        float64
}

// ParseKulaCommand parses text. The keyword is case-insensitive, the amount is always the last
// token and everything between the phone and the amount is the item description.
func ParseKulaCommand(text string) (KulaCommand, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.EqualFold(fields[0], KulaKeyword) {
		return KulaCommand{}, fmt.Errorf("%w: missing %s keyword", ErrInvalidKulaCommand, KulaKeyword)
	}

	args := fields[1:]
	if len(args) < 3 {
		return KulaCommand{}, fmt.Errorf("%w: expected phone, item and amount", ErrInvalidKulaCommand)
	}

	amount, err := strconv.ParseFloat(args[len(args)-1], 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return KulaCommand{}, fmt.Errorf("%w: amount must be a positive number", ErrInvalidKulaCommand)
	}

	phone := args[0]
	if len(phone) < MinKulaPhoneLength {
		return KulaCommand{}, fmt.Errorf("%w: phone number too short", ErrInvalidKulaCommand)
	}

	return KulaCommand{
		CustomerPhone: phone,
		Item:          strings.Join(args[1:len(args)-1], " "),
		Amount:        amount,
	}, nil
}

// Outcome is the result of a unified-callback sale.
type Outcome struct {
	Success bool
	Message string
	Result  *services.SaleResult
}

// RecordKula records cmd as a cash sale by the vendor at sender.
func (r *Router) RecordKula(ctx context.Context, sender string, channel models.Channel, reference string, cmd KulaCommand) Outcome {
	r.metrics.ChatMessage("kula")

	result, err := r.sales.RecordSale(ctx, services.SaleRequest{
		VendorPhone:   sender,
		CustomerPhone: cmd.CustomerPhone,
		Amount:        cmd.Amount,
		Kind:          models.PaymentKindCash,
		Item:          cmd.Item,
		Channel:       channel,
		Reference:     reference,
	})
	if err != nil {
		if errors.Is(err, services.ErrVendorNotFound) {
			return Outcome{Message: fmt.Sprintf("Vendor %s not found. Please register first.", sender)}
		}
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			return Outcome{Message: "Sale not recorded: " + verr.Message + "."}
		}
		slog.Error("Unified callback sale failed", "error", err, "channel", channel)
		return Outcome{Message: "Sale could not be recorded. Please try again later."}
	}

	msg := fmt.Sprintf("Sale Recorded! Customer %s earned %.2f points. Total points: %.2f. Credit Limit: %.2f.",
		cmd.CustomerPhone, result.PointsEarned, result.TotalPoints, result.CreditLimit)
	if result.Eligible {
		msg += " Credit Eligible!"
	}
	return Outcome{Success: true, Message: msg, Result: result}
}
