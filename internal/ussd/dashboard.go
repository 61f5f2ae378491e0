package ussd

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

type screen int

const (
	screenPIN screen = iota
	screenMenu
	screenSaleName
	screenSalePhone
	screenSaleAmount
	screenSaleItem
	screenSaleConfirm
	screenStats
	screenWallet
)

// subflow reports whether back/home navigation applies on s.
func (s screen) subflow() bool {
	return s >= screenSaleName
}

// Main menu selections.
const (
	menuRecordSale = "1"
	menuStats      = "2"
	menuWallet     = "3"
	menuLogout     = "4"
)

// Sale confirmation choices.
const (
	confirmSale = "1"
	cancelSale  = "2"
)

// saleDraft collects the record-sale fields as the steps are replayed.
type saleDraft struct {
	name   string
	phone  string
	amount float64
	item   string
}

// dashboard serves a registered vendor: PIN, main menu and the three sub-flows.
type dashboard struct {
	m         *Machine
	vendor    *models.Vendor
	sessionID string
}

func (d *dashboard) name() string { return "dashboard" }

// replay folds every step through the screen transitions, then renders the screen reached.
// A step can end the session early (wrong PIN, logout, sale confirmation); otherwise invalid input
// leaves the screen unchanged with a notice.
func (d *dashboard) replay(ctx context.Context, steps Steps) Response {
	if isOnboardingReplay(d.m, d.vendor, steps) {
		return end(registeredText(d.m, d.vendor))
	}

	var (
		cur    = screenPIN
		draft  saleDraft
		notice string
	)
	for i, tok := range steps {
		notice = ""
		last := i == len(steps)-1

		// navigation is recognized before any step-specific validation
		if i >= 2 && cur.subflow() {
			switch tok {
			case d.m.opts.BackToken:
				cur, draft = screenMenu, saleDraft{}
				continue
			case d.m.opts.HomeToken:
				cur, draft = screenPIN, saleDraft{}
				continue
			}
		}

		switch cur {
		case screenPIN:
			if !d.m.vendors.VerifyPIN(d.vendor, tok) {
				return end("Wrong PIN. Please try again.")
			}
			cur = screenMenu

		case screenMenu:
			switch tok {
			case menuRecordSale:
				cur = screenSaleName
			case menuStats:
				cur = screenStats
			case menuWallet:
				cur = screenWallet
			case menuLogout:
				return end(fmt.Sprintf("Goodbye %s. Thank you for using %s.", d.vendor.OwnerName, d.m.opts.ServiceName))
			default:
				notice = "Invalid selection."
			}

		case screenSaleName:
			name := strings.TrimSpace(tok)
			if name == "" {
				notice = "Customer name cannot be empty."
				continue
			}
			draft.name = name
			cur = screenSalePhone

		case screenSalePhone:
			phone := strings.TrimSpace(tok)
			if !validPhone(phone, d.m.opts.MinPhoneLength) {
				notice = "Invalid phone number."
				continue
			}
			draft.phone = phone
			cur = screenSaleAmount

		case screenSaleAmount:
			amount, ok := parseAmount(tok)
			if !ok {
				notice = "Invalid amount. Enter a number greater than 0."
				continue
			}
			draft.amount = amount
			cur = screenSaleItem

		case screenSaleItem:
			item := strings.TrimSpace(tok)
			if item == "" {
				notice = "Item description cannot be empty."
				continue
			}
			draft.item = item
			cur = screenSaleConfirm

		case screenSaleConfirm:
			if !last {
				// the session closed at this step; later steps belong to no screen
				return end("This session has ended. Please dial again.")
			}
			switch tok {
			case confirmSale:
				return d.commit(ctx, draft)
			case cancelSale:
				return end("Sale cancelled.")
			default:
				return end("Invalid choice. Sale not recorded.")
			}

		case screenStats, screenWallet:
			notice = "Invalid selection."
		}
	}

	return d.render(ctx, cur, draft, notice)
}

// commit records the confirmed sale. It runs only when the confirmation is the newest step.
func (d *dashboard) commit(ctx context.Context, draft saleDraft) Response {
	req := services.SaleRequest{
		VendorPhone:   d.vendor.PhoneNumber,
		CustomerPhone: draft.phone,
		CustomerName:  draft.name,
		Amount:        draft.amount,
		Kind:          models.PaymentKindCash,
		Item:          draft.item,
		Channel:       models.ChannelUSSD,
	}
	if d.sessionID != "" {
		req.Reference = "ussd:" + d.sessionID
	}

	result, err := d.m.sales.RecordSale(ctx, req)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			return end("Sale not recorded: " + verr.Message + ".")
		}
		slog.Error("USSD sale failed", "error", err, "sessionId", d.sessionID, "vendorId", d.vendor.ID.Hex())
		return end("Sale could not be recorded. Please try again later.")
	}

	text := result.Message + fmt.Sprintf(" Total points: %.2f.", result.TotalPoints)
	if result.Eligible {
		text += "\n" + result.Eligibility.Message
	}
	return end(text)
}

func (d *dashboard) render(ctx context.Context, cur screen, draft saleDraft, notice string) Response {
	var body string
	switch cur {
	case screenPIN:
		body = fmt.Sprintf("Welcome to %s, %s.\nEnter your PIN:", d.m.opts.ServiceName, d.vendor.BusinessName)
	case screenMenu:
		body = fmt.Sprintf("%s Dashboard\n1. Record Sale\n2. Today's Stats\n3. Wallet\n4. Logout", d.m.opts.ServiceName)
	case screenSaleName:
		body = "Enter customer name:" + d.navFooter()
	case screenSalePhone:
		body = "Enter customer phone number:" + d.navFooter()
	case screenSaleAmount:
		body = fmt.Sprintf("Enter amount (%s):", d.m.opts.Currency) + d.navFooter()
	case screenSaleItem:
		body = "Enter item description:" + d.navFooter()
	case screenSaleConfirm:
		body = fmt.Sprintf("Confirm sale:\nCustomer: %s (%s)\nAmount: %s %.2f\nItem: %s\n1. Confirm\n2. Cancel",
			draft.name, draft.phone, d.m.opts.Currency, draft.amount, draft.item) + d.navFooter()
	case screenStats:
		summary, err := d.m.stats.Today(ctx, d.vendor)
		if err != nil {
			slog.Error("USSD stats failed", "error", err, "vendorId", d.vendor.ID.Hex())
			return end(msgServiceError)
		}
		body = fmt.Sprintf("Today's Stats\nSales: %d\nTotal: %s %.2f", summary.Count, d.m.opts.Currency, summary.Total) + d.navFooter()
	case screenWallet:
		body = fmt.Sprintf("Wallet\nBalance: %s %.2f", d.m.opts.Currency, d.vendor.WalletBalance) + d.navFooter()
	}

	if notice != "" {
		body = notice + "\n" + body
	}
	return con(body)
}

func (d *dashboard) navFooter() string {
	return fmt.Sprintf("\n%s. Back %s. Home", d.m.opts.BackToken, d.m.opts.HomeToken)
}

// validPhone accepts an optional leading "+" followed by at least minDigits digits.
func validPhone(phone string, minDigits int) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < minDigits {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseAmount(tok string) (float64, bool) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, false
	}
	return amount, true
}
