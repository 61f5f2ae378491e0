package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kulapay/kulapay-backend/internal/loyalty"
	"github.com/kulapay/kulapay-backend/internal/metrics"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"github.com/kulapay/kulapay-backend/pkg/smsgateway"
	"golang.org/x/exp/slog"
)

// SaleRequest is a sale to be recorded against a vendor.
type SaleRequest struct {
	VendorPhone   string
	CustomerPhone string
	CustomerName  string
	Amount        float64
	Kind          models.PaymentKind
	Item          string
	Channel       models.Channel
	// Reference makes the sale idempotent: a second request with the same reference
	// returns the first outcome without awarding points again.
	Reference string
}

// SaleResult is the outcome of RecordSale.
type SaleResult struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	PointsEarned float64             `json:"pointsEarned"`
	TotalPoints  float64             `json:"totalPoints"`
	CreditLimit  float64             `json:"creditLimit"`
	Eligible     bool                `json:"eligible"`
	Eligibility  loyalty.Eligibility `json:"eligibility"`
	Duplicate    bool                `json:"duplicate,omitempty"`
	Transaction  *models.Transaction `json:"transaction,omitempty"`
}

// SaleService is the sale-processing core shared by every inbound channel
type SaleService struct {
	vendors      repositories.VendorRepository
	customers    repositories.CustomerRepository
	transactions repositories.TransactionRepository
	credit       *CreditService
	notifier     Notifier
	metrics      *metrics.Collector
	policy       loyalty.Policy
}

// NewSaleService creates a new SaleService. notifier may be nil to skip customer receipts.
func NewSaleService(
	vendors repositories.VendorRepository,
	customers repositories.CustomerRepository,
	transactions repositories.TransactionRepository,
	credit *CreditService,
	notifier Notifier,
	collector *metrics.Collector,
) *SaleService {
	return &SaleService{
		vendors:      vendors,
		customers:    customers,
		transactions: transactions,
		credit:       credit,
		notifier:     notifier,
		metrics:      collector,
		policy:       credit.Policy(),
	}
}

// RecordSale persists a sale, awards points and refreshes credit eligibility.
//
// The vendor must exist; the customer is created on first sale. If the transaction cannot be
// stored no points are awarded. Points and the credit limit are separate single-document writes,
// so a failure after the transaction is stored leaves the transaction in place.
func (s *SaleService) RecordSale(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	if err := validateSale(req); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.FindByPhone(ctx, req.VendorPhone)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("failed to look up vendor: %w", err)
	}

	if _, err := s.customers.GetOrCreate(ctx, req.CustomerPhone, strings.TrimSpace(req.CustomerName)); err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}

	tx := &models.Transaction{
		VendorID:      vendor.ID,
		VendorPhone:   vendor.PhoneNumber,
		CustomerPhone: req.CustomerPhone,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Amount:        req.Amount,
		PaymentKind:   req.Kind,
		Item:          strings.TrimSpace(req.Item),
		Channel:       req.Channel,
		Reference:     req.Reference,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) && req.Reference != "" {
			return s.replay(ctx, req)
		}
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	points := s.policy.AwardPoints(req.Amount)
	customer, err := s.customers.IncrementPoints(ctx, req.CustomerPhone, points)
	if err != nil {
		slog.Error("Points award failed after transaction was stored", "error", err, "transactionId", tx.ID.Hex())
		return nil, fmt.Errorf("failed to award points: %w", err)
	}

	if req.Kind == models.PaymentKindMobileMoney {
		if err := s.vendors.IncrementBalance(ctx, vendor.ID, req.Amount); err != nil {
			slog.Error("Failed to credit vendor wallet", "error", err, "vendorId", vendor.ID.Hex(), "transactionId", tx.ID.Hex())
		}
	}

	eligibility, err := s.credit.CheckEligibility(ctx, req.CustomerPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to check credit eligibility: %w", err)
	}

	result := &SaleResult{
		Success:      true,
		PointsEarned: points,
		TotalPoints:  customer.KulaPoints,
		CreditLimit:  customer.CreditLimit,
		Eligible:     eligibility.Eligible,
		Eligibility:  eligibility,
		Transaction:  tx,
	}
	if eligibility.Eligible {
		result.CreditLimit = eligibility.Limit
	}
	result.Message = s.saleMessage(tx, result)

	s.metrics.Sale(string(req.Channel), string(req.Kind), req.Amount, points)
	slog.Info("Sale recorded", "transactionId", tx.ID.Hex(), "vendorId", vendor.ID.Hex(),
		"customer", smsgateway.MaskPhone(req.CustomerPhone), "amount", req.Amount, "kind", req.Kind,
		"channel", req.Channel, "points", points)

	if s.notifier != nil {
		s.notifier.Dispatch(Message{
			Phone:   req.CustomerPhone,
			Channel: models.ChannelSMS,
			Content: s.ReceiptText(req.Amount, points),
			Type:    models.NotificationTypeSaleReceipt,
		})
	}
	return result, nil
}

// replay rebuilds the result of an already recorded sale without touching points.
func (s *SaleService) replay(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	tx, err := s.transactions.FindByReference(ctx, req.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to load recorded sale: %w", err)
	}
	customer, err := s.customers.FindByPhone(ctx, tx.CustomerPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	summary, err := s.transactions.SpendSummary(ctx, tx.CustomerPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate spend: %w", err)
	}
	eligibility := s.policy.Evaluate(summary.Count, summary.Total)

	result := &SaleResult{
		Success:      true,
		PointsEarned: s.policy.AwardPoints(tx.Amount),
		TotalPoints:  customer.KulaPoints,
		CreditLimit:  customer.CreditLimit,
		Eligible:     eligibility.Eligible,
		Eligibility:  eligibility,
		Duplicate:    true,
		Transaction:  tx,
	}
	result.Message = s.saleMessage(tx, result)
	slog.Info("Duplicate sale ignored", "reference", req.Reference, "transactionId", tx.ID.Hex())
	return result, nil
}

// ReceiptText is the SMS receipt sent to the customer after a sale.
func (s *SaleService) ReceiptText(amount, points float64) string {
	return fmt.Sprintf("KulaPay: Your purchase of %.2f %s was successful! You earned %.2f Kula Points. Thank you!",
		amount, s.policy.Currency, points)
}

func (s *SaleService) saleMessage(tx *models.Transaction, r *SaleResult) string {
	return fmt.Sprintf("Sale successful! Amount: %.2f %s, Payment: %s. Customer earned %.2f points.",
		tx.Amount, s.policy.Currency, tx.PaymentKind.Label(), r.PointsEarned)
}

func validateSale(req SaleRequest) error {
	switch {
	case strings.TrimSpace(req.VendorPhone) == "":
		return &ValidationError{Field: "vendorPhone", Message: "vendor phone is required"}
	case strings.TrimSpace(req.CustomerPhone) == "":
		return &ValidationError{Field: "customerPhone", Message: "customer phone is required"}
	case math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0:
		return &ValidationError{Field: "amount", Message: "amount must be greater than 0"}
	case req.Kind == models.PaymentKindCredit || !req.Kind.Valid():
		return &ValidationError{Field: "paymentKind", Message: "payment must be cash or mobile money"}
	}
	return nil
}
