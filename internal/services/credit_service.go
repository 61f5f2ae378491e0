package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kulapay/kulapay-backend/internal/loyalty"
	"github.com/kulapay/kulapay-backend/internal/metrics"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"github.com/kulapay/kulapay-backend/pkg/mobilemoney"
	"github.com/kulapay/kulapay-backend/pkg/smsgateway"
	"golang.org/x/exp/slog"
)

// Checkout starts a mobile-money collection from a customer.
type Checkout interface {
	InitiateCheckout(ctx context.Context, phone string, amount float64, reference string) (*mobilemoney.CheckoutResponse, error)
}

// CreditService handles points lookups, credit eligibility and loan acceptance
type CreditService struct {
	vendors      repositories.VendorRepository
	customers    repositories.CustomerRepository
	transactions repositories.TransactionRepository
	policy       loyalty.Policy
	checkout     Checkout
	metrics      *metrics.Collector
	countryCode  string
}

// NewCreditService creates a new CreditService
func NewCreditService(
	vendors repositories.VendorRepository,
	customers repositories.CustomerRepository,
	transactions repositories.TransactionRepository,
	policy loyalty.Policy,
	checkout Checkout,
	collector *metrics.Collector,
	countryCode string,
) *CreditService {
	return &CreditService{
		vendors:      vendors,
		customers:    customers,
		transactions: transactions,
		policy:       policy,
		checkout:     checkout,
		metrics:      collector,
		countryCode:  countryCode,
	}
}

// Policy returns the loyalty policy in force.
func (s *CreditService) Policy() loyalty.Policy { return s.policy }

// CheckEligibility evaluates the customer's non-credit history and, when eligible,
// stores the new credit limit. This is the only writer of Customer.CreditLimit.
func (s *CreditService) CheckEligibility(ctx context.Context, customerPhone string) (loyalty.Eligibility, error) {
	summary, err := s.transactions.SpendSummary(ctx, customerPhone)
	if err != nil {
		return loyalty.Eligibility{}, fmt.Errorf("failed to aggregate spend: %w", err)
	}

	eligibility := s.policy.Evaluate(summary.Count, summary.Total)
	if eligibility.Eligible {
		err := s.customers.SetCreditLimit(ctx, customerPhone, eligibility.Limit)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return eligibility, fmt.Errorf("failed to store credit limit: %w", err)
		}
	}
	return eligibility, nil
}

// Customer returns the customer registered under phone, or ErrCustomerNotFound.
func (s *CreditService) Customer(ctx context.Context, phone string) (*models.Customer, error) {
	customer, err := s.customers.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}
	return customer, nil
}

// PointsInfo reports the customer's points and reward progress.
func (s *CreditService) PointsInfo(ctx context.Context, customerPhone string) (loyalty.PointsInfo, error) {
	customer, err := s.customers.FindByPhone(ctx, customerPhone)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return loyalty.PointsInfo{}, ErrCustomerNotFound
		}
		return loyalty.PointsInfo{}, fmt.Errorf("failed to look up customer: %w", err)
	}
	return s.policy.Progress(customer.KulaPoints), nil
}

// LoanResult describes an accepted loan.
type LoanResult struct {
	Amount      float64             `json:"amount"`
	Transaction *models.Transaction `json:"transaction"`
	CheckoutID  string              `json:"checkoutId,omitempty"`
	Eligibility loyalty.Eligibility `json:"eligibility"`
}

// AcceptLoan extends the customer's full current credit limit as a Credit transaction
// and starts a mobile-money checkout for repayment. A failed checkout is logged and does not
// undo the loan. Returns ErrNotEligible together with the eligibility when no credit is available.
func (s *CreditService) AcceptLoan(ctx context.Context, vendorPhone, customerPhone string, channel models.Channel) (*LoanResult, error) {
	eligibility, err := s.CheckEligibility(ctx, customerPhone)
	if err != nil {
		return nil, err
	}
	result := &LoanResult{Eligibility: eligibility}
	if !eligibility.Eligible || eligibility.Limit <= 0 {
		return result, ErrNotEligible
	}

	vendor, err := s.vendors.FindByPhone(ctx, vendorPhone)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return result, ErrVendorNotFound
		}
		return result, fmt.Errorf("failed to look up vendor: %w", err)
	}
	if _, err := s.customers.FindByPhone(ctx, customerPhone); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return result, ErrCustomerNotFound
		}
		return result, fmt.Errorf("failed to look up customer: %w", err)
	}

	tx := &models.Transaction{
		VendorID:      vendor.ID,
		VendorPhone:   vendor.PhoneNumber,
		CustomerPhone: customerPhone,
		Amount:        eligibility.Limit,
		PaymentKind:   models.PaymentKindCredit,
		Channel:       channel,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return result, fmt.Errorf("failed to record loan: %w", err)
	}
	result.Amount = tx.Amount
	result.Transaction = tx
	s.metrics.LoanIssued()

	checkout, err := s.checkout.InitiateCheckout(ctx, smsgateway.NormalizePhone(customerPhone, s.countryCode), tx.Amount, tx.ID.Hex())
	if err != nil {
		slog.Error("Failed to start loan repayment checkout", "error", err, "transactionId", tx.ID.Hex(),
			"customer", smsgateway.MaskPhone(customerPhone))
	} else {
		result.CheckoutID = checkout.TransactionID
	}

	slog.Info("Loan issued", "transactionId", tx.ID.Hex(), "vendorId", vendor.ID.Hex(),
		"customer", smsgateway.MaskPhone(customerPhone), "amount", tx.Amount)
	return result, nil
}
