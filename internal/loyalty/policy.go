// Package loyalty holds the pure points and credit rules. Nothing here touches the ledger store.
package loyalty

import (
	"fmt"
	"math"
)

// Policy is the per-deployment loyalty configuration.
type Policy struct {
	PointsPerUnit    float64 // points awarded per currency unit spent
	RewardPoints     float64 // points needed for the reward item
	RewardName       string
	MinTransactions  int64
	MinSpend         float64
	CreditPercentage float64
	MaxCreditLimit   float64
	Currency         string
}

// DefaultPolicy returns the launch rules: 1 point per 10 KES, a free Mandazi at 50 points,
// and credit of 20% of spend capped at 300 KES after 5 purchases totalling 500 KES.
func DefaultPolicy() Policy {
	return Policy{
		PointsPerUnit:    0.1,
		RewardPoints:     50,
		RewardName:       "Mandazi",
		MinTransactions:  5,
		MinSpend:         500,
		CreditPercentage: 0.20,
		MaxCreditLimit:   300,
		Currency:         "KES",
	}
}

// Eligibility is the outcome of a credit check.
type Eligibility struct {
	Eligible         bool    `json:"eligible"`
	Limit            float64 `json:"creditLimit"`
	TransactionCount int64   `json:"transactionCount"`
	TotalSpend       float64 `json:"totalSpend"`
	Message          string  `json:"message"`
}

// PointsInfo describes a customer's progress towards the reward item.
type PointsInfo struct {
	Points          float64 `json:"points"`
	PointsToReward  float64 `json:"pointsToReward"`
	SpendToReward   float64 `json:"spendToReward"`
	RewardAvailable bool    `json:"rewardAvailable"`
	Message         string  `json:"message"`
}

// AwardPoints returns the points earned for a sale of amount.
func (p Policy) AwardPoints(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return round2(amount * p.PointsPerUnit)
}

// Evaluate applies the eligibility rule to a customer's non-credit spend.
func (p Policy) Evaluate(count int64, totalSpend float64) Eligibility {
	e := Eligibility{TransactionCount: count, TotalSpend: totalSpend}
	e.Eligible = count >= p.MinTransactions && totalSpend >= p.MinSpend
	if e.Eligible {
		e.Limit = round2(math.Min(totalSpend*p.CreditPercentage, p.MaxCreditLimit))
		e.Message = fmt.Sprintf("Available Credit: %s %.2f", p.Currency, e.Limit)
		return e
	}

	remainingTx := p.MinTransactions - count
	if remainingTx < 0 {
		remainingTx = 0
	}
	remainingSpend := math.Max(0, p.MinSpend-totalSpend)
	e.Message = fmt.Sprintf("Keep buying to unlock credit. Need %d more transactions and %.2f %s more.",
		remainingTx, remainingSpend, p.Currency)
	return e
}

// Progress reports reward progress for a points balance.
func (p Policy) Progress(points float64) PointsInfo {
	info := PointsInfo{Points: points}
	if points >= p.RewardPoints {
		info.RewardAvailable = true
		info.Message = fmt.Sprintf("You have %.2f KulaPoints. You can get a free %s!", points, p.RewardName)
		return info
	}

	info.PointsToReward = p.RewardPoints - points
	if p.PointsPerUnit > 0 {
		info.SpendToReward = round2(info.PointsToReward / p.PointsPerUnit)
	}
	info.Message = fmt.Sprintf("You have %.2f KulaPoints. Spend %.2f more to get a free %s!",
		points, info.SpendToReward, p.RewardName)
	return info
}

// Validate checks that the policy can produce sensible results.
func (p Policy) Validate() error {
	switch {
	case p.PointsPerUnit <= 0:
		return fmt.Errorf("loyalty: points per unit must be positive, got %v", p.PointsPerUnit)
	case p.RewardPoints <= 0:
		return fmt.Errorf("loyalty: reward points must be positive, got %v", p.RewardPoints)
	case p.MinTransactions < 0 || p.MinSpend < 0:
		return fmt.Errorf("loyalty: eligibility thresholds must not be negative")
	case p.CreditPercentage < 0 || p.CreditPercentage > 1:
		return fmt.Errorf("loyalty: credit percentage must be within [0,1], got %v", p.CreditPercentage)
	case p.MaxCreditLimit < 0:
		return fmt.Errorf("loyalty: max credit limit must not be negative")
	}
	return nil
}

// round2 rounds to cents, the currency's natural precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
